package employeeshandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"firmpay/internal/domain/audit"
	"firmpay/internal/domain/auth"
	"firmpay/internal/domain/employees"
	"firmpay/internal/domain/tenant"
	"firmpay/internal/transport/http/api"
	"firmpay/internal/transport/http/middleware"
	"firmpay/internal/transport/http/shared"
)

type Handler struct {
	Store *employees.Store
	Audit *audit.Service
	Perms middleware.PermissionStore
}

func NewHandler(store *employees.Store, auditSvc *audit.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Store: store, Audit: auditSvc, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/employees", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermEmployeesRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermEmployeesWrite, h.Perms)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermEmployeesRead, h.Perms)).Get("/{employeeID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermEmployeesWrite, h.Perms)).Put("/{employeeID}", h.handleUpdate)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	_, scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}

	filter := employees.Filter{}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.EmploymentStatuses = []string{status}
	}
	if empType := r.URL.Query().Get("type"); empType != "" {
		filter.EmployeeTypes = []string{empType}
	}

	list, err := h.Store.FindEmployees(r.Context(), scope, filter)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employees_list_failed", "failed to list employees", middleware.GetRequestID(r.Context()))
		return
	}
	total, err := h.Store.CountEmployees(r.Context(), scope)
	if err != nil {
		slog.Warn("employee count failed", "err", err)
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, list, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	_, scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}

	employee, err := h.Store.FindEmployee(r.Context(), scope, chi.URLParam(r, "employeeID"))
	if err != nil {
		if errors.Is(err, employees.ErrNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "employee not found", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "employee_get_failed", "failed to load employee", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, employee, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}

	var payload employees.Employee
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	if !h.validatePayload(w, r, payload) {
		return
	}

	id, err := h.Store.CreateEmployee(r.Context(), scope, payload)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employee_create_failed", "failed to create employee", middleware.GetRequestID(r.Context()))
		return
	}
	payload.ID = id

	h.recordAudit(r, scope, user.UserID, "employees.create", id, nil, payload)
	api.Created(w, payload, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}

	var payload employees.Employee
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	payload.ID = chi.URLParam(r, "employeeID")
	if !h.validatePayload(w, r, payload) {
		return
	}

	if err := h.Store.UpdateEmployee(r.Context(), scope, payload); err != nil {
		if errors.Is(err, employees.ErrNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "employee not found", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "employee_update_failed", "failed to update employee", middleware.GetRequestID(r.Context()))
		return
	}

	h.recordAudit(r, scope, user.UserID, "employees.update", payload.ID, nil, payload)
	api.Success(w, payload, middleware.GetRequestID(r.Context()))
}

func (h *Handler) validatePayload(w http.ResponseWriter, r *http.Request, payload employees.Employee) bool {
	v := shared.NewValidator()
	v.Required("email", payload.Email, "email is required")
	v.Required("personalInfo.firstName", payload.PersonalInfo.FirstName, "first name is required")
	v.Enum("employment.status", payload.Employment.Status, []string{
		employees.EmploymentStatusActive, employees.EmploymentStatusOnLeave,
		employees.EmploymentStatusSuspended, employees.EmploymentStatusTerminated,
	}, "must be a valid employment status")
	v.Enum("employment.type", payload.Employment.Type, []string{
		employees.EmployeeTypeFullTime, employees.EmployeeTypePartTime, employees.EmployeeTypeContractor,
	}, "must be a valid employee type")
	v.Enum("compensation.paymentMethod", payload.Compensation.PaymentMethod, []string{
		employees.PaymentMethodBankTransfer, employees.PaymentMethodCheque, employees.PaymentMethodCash,
	}, "must be a valid payment method")
	if payload.Compensation.BasicSalary < 0 {
		v.Add("compensation.basicSalary", "must not be negative")
	}
	return !v.Reject(w, middleware.GetRequestID(r.Context()))
}

func (h *Handler) requireScope(w http.ResponseWriter, r *http.Request) (auth.UserContext, tenant.Scope, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return auth.UserContext{}, tenant.Scope{}, false
	}
	scope := user.Scope()
	if err := scope.Validate(); err != nil {
		api.Fail(w, http.StatusForbidden, "forbidden", "tenant scope required", middleware.GetRequestID(r.Context()))
		return auth.UserContext{}, tenant.Scope{}, false
	}
	return user, scope, true
}

func (h *Handler) recordAudit(r *http.Request, scope tenant.Scope, actorID, action, entityID string, before, after any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), scope, actorID, action, "employee", entityID,
		middleware.GetRequestID(r.Context()), shared.ClientIP(r), before, after); err != nil {
		slog.Warn("audit record failed", "action", action, "entityId", entityID, "err", err)
	}
}
