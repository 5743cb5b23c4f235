package payrollhandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"firmpay/internal/domain/audit"
	"firmpay/internal/domain/auth"
	"firmpay/internal/domain/employees"
	"firmpay/internal/domain/payroll"
	"firmpay/internal/domain/tenant"
	"firmpay/internal/transport/http/api"
	"firmpay/internal/transport/http/middleware"
	"firmpay/internal/transport/http/shared"
)

type Handler struct {
	Service     *payroll.Service
	Audit       *audit.Service
	Idempotency *middleware.IdempotencyStore
	Perms       middleware.PermissionStore
}

func NewHandler(service *payroll.Service, auditSvc *audit.Service, idem *middleware.IdempotencyStore, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Audit: auditSvc, Idempotency: idem, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/payroll", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermPayrollWrite, h.Perms)).Post("/runs", h.handleCreateRun)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/runs", h.handleListRuns)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/runs/{runID}", h.handleGetRun)
		r.With(middleware.RequirePermission(auth.PermPayrollWrite, h.Perms)).Patch("/runs/{runID}", h.handleUpdateRun)
		r.With(middleware.RequirePermission(auth.PermPayrollWrite, h.Perms)).Delete("/runs/{runID}", h.handleDeleteRun)

		r.With(middleware.RequirePermission(auth.PermPayrollRun, h.Perms)).Post("/runs/{runID}/calculate", h.handleCalculate)
		r.With(middleware.RequirePermission(auth.PermPayrollRun, h.Perms)).Post("/runs/{runID}/validate", h.handleValidate)
		r.With(middleware.RequirePermission(auth.PermPayrollApprove, h.Perms)).Post("/runs/{runID}/approve", h.handleApprove)
		r.With(middleware.RequirePermission(auth.PermPayrollPay, h.Perms)).Post("/runs/{runID}/process-payments", h.handleProcessPayments)
		r.With(middleware.RequirePermission(auth.PermPayrollWrite, h.Perms)).Post("/runs/{runID}/cancel", h.handleCancel)

		r.With(middleware.RequirePermission(auth.PermPayrollWrite, h.Perms)).Post("/runs/{runID}/employees/{employeeID}/exclude", h.handleExcludeEmployee)
		r.With(middleware.RequirePermission(auth.PermPayrollWrite, h.Perms)).Post("/runs/{runID}/employees/{employeeID}/include", h.handleIncludeEmployee)
		r.With(middleware.RequirePermission(auth.PermPayrollRun, h.Perms)).Post("/runs/{runID}/employees/{employeeID}/recalculate", h.handleRecalculateEmployee)
		r.With(middleware.RequirePermission(auth.PermPayrollWrite, h.Perms)).Post("/runs/{runID}/employees/{employeeID}/hold", h.handleHoldEmployee)
		r.With(middleware.RequirePermission(auth.PermPayrollWrite, h.Perms)).Post("/runs/{runID}/employees/{employeeID}/unhold", h.handleUnholdEmployee)

		r.With(middleware.RequirePermission(auth.PermPayrollExport, h.Perms)).Post("/runs/{runID}/wps", h.handleGenerateWPS)
		r.With(middleware.RequirePermission(auth.PermPayrollExport, h.Perms)).Get("/runs/{runID}/export", h.handleExportReport)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/runs/{runID}/slips", h.handleListSlips)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/slips/{slipID}/download", h.handleDownloadSlip)
	})
}

type createRunPayload struct {
	Name          string                `json:"name"`
	Period        payroll.PayPeriod     `json:"payPeriod"`
	Notes         string                `json:"notes"`
	Configuration payroll.Configuration `json:"configuration"`
}

type updateRunPayload struct {
	Name          *string                `json:"name"`
	Notes         *string                `json:"notes"`
	Period        *payroll.PayPeriod     `json:"payPeriod"`
	Configuration *payroll.Configuration `json:"configuration"`
	Version       int                    `json:"version"`
}

type versionPayload struct {
	Version int `json:"version"`
}

type reasonPayload struct {
	Version int    `json:"version"`
	Reason  string `json:"reason"`
}

type approvePayload struct {
	Version  int    `json:"version"`
	Comments string `json:"comments"`
}

func (h *Handler) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	user, scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}

	var payload createRunPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("name", payload.Name, "run name is required")
	if payload.Period.Year < 2000 || payload.Period.Year > 2200 {
		v.Add("payPeriod.year", "must be a plausible year")
	}
	if payload.Period.Month < 1 || payload.Period.Month > 12 {
		v.Add("payPeriod.month", "must be between 1 and 12")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	run, err := h.Service.CreateRun(r.Context(), scope, user.UserID, payroll.CreateRunInput{
		Name:          payload.Name,
		Period:        payload.Period,
		Notes:         payload.Notes,
		Configuration: payload.Configuration,
	})
	if err != nil {
		h.failDomain(w, r, err, "failed to create run")
		return
	}

	h.recordAudit(r, scope, user.UserID, "payroll.run.create", run.ID, nil, run)
	api.Created(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	_, scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}

	page := shared.ParsePagination(r, 20, 100)
	filter := payroll.ListFilter{
		Status: r.URL.Query().Get("status"),
		Limit:  page.Limit,
		Offset: page.Offset,
	}
	if raw := r.URL.Query().Get("month"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			filter.Month = v
		}
	}
	if raw := r.URL.Query().Get("year"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			filter.Year = v
		}
	}

	runs, total, err := h.Service.ListRuns(r.Context(), scope, filter)
	if err != nil {
		h.failDomain(w, r, err, "failed to list runs")
		return
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, runs, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	_, scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}

	run, err := h.Service.GetRun(r.Context(), scope, chi.URLParam(r, "runID"))
	if err != nil {
		h.failDomain(w, r, err, "failed to load run")
		return
	}
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateRun(w http.ResponseWriter, r *http.Request) {
	user, scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}

	var payload updateRunPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	runID := chi.URLParam(r, "runID")
	run, err := h.Service.UpdateRun(r.Context(), scope, user.UserID, runID, payroll.UpdateRunInput{
		Name:          payload.Name,
		Notes:         payload.Notes,
		Period:        payload.Period,
		Configuration: payload.Configuration,
		Version:       payload.Version,
	})
	if err != nil {
		h.failDomain(w, r, err, "failed to update run")
		return
	}

	h.recordAudit(r, scope, user.UserID, "payroll.run.update", run.ID, nil, run)
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	user, scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}

	runID := chi.URLParam(r, "runID")
	version := 0
	if raw := r.URL.Query().Get("version"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			version = v
		}
	}

	if err := h.Service.DeleteRun(r.Context(), scope, runID, version); err != nil {
		h.failDomain(w, r, err, "failed to delete run")
		return
	}

	h.recordAudit(r, scope, user.UserID, "payroll.run.delete", runID, nil, nil)
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	user, scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}

	var payload versionPayload
	if err := decodeOptional(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	runID := chi.URLParam(r, "runID")
	run, err := h.Service.Calculate(r.Context(), scope, user.UserID, runID, payload.Version)
	if err != nil {
		h.failDomain(w, r, err, "failed to calculate run")
		return
	}

	h.recordAudit(r, scope, user.UserID, "payroll.run.calculate", run.ID, nil, run.Summary)
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	user, scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}

	var payload versionPayload
	if err := decodeOptional(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	result, err := h.Service.Validate(r.Context(), scope, user.UserID, chi.URLParam(r, "runID"), payload.Version)
	if err != nil {
		h.failDomain(w, r, err, "failed to validate run")
		return
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	user, scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}

	var payload approvePayload
	if err := decodeOptional(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	runID := chi.URLParam(r, "runID")
	run, err := h.Service.Approve(r.Context(), scope, user.UserID, runID, payload.Comments, payload.Version)
	if err != nil {
		h.failDomain(w, r, err, "failed to approve run")
		return
	}

	h.recordAudit(r, scope, user.UserID, "payroll.run.approve", run.ID, nil, run.Approval)
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleProcessPayments(w http.ResponseWriter, r *http.Request) {
	user, scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	var payload versionPayload
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
			return
		}
	}

	runID := chi.URLParam(r, "runID")
	endpoint := "POST /payroll/runs/" + runID + "/process-payments"
	idemKey := r.Header.Get("Idempotency-Key")
	requestHash := middleware.RequestHash(body)

	if idemKey != "" && h.Idempotency != nil {
		stored, replayed, err := h.Idempotency.Check(r.Context(), middleware.TenantKey(user), user.UserID, endpoint, idemKey, requestHash)
		if err != nil {
			if errors.Is(err, middleware.ErrIdempotencyConflict) {
				api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used with a different payload", middleware.GetRequestID(r.Context()))
				return
			}
			api.Fail(w, http.StatusInternalServerError, "idempotency_error", "idempotency check failed", middleware.GetRequestID(r.Context()))
			return
		}
		if replayed {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(stored)
			return
		}
	}

	run, slips, err := h.Service.ProcessPayments(r.Context(), scope, user.UserID, runID, payload.Version)
	if err != nil {
		h.failDomain(w, r, err, "failed to process payments")
		return
	}

	data := map[string]any{"run": run, "slips": slips}
	h.recordAudit(r, scope, user.UserID, "payroll.run.pay", run.ID, nil, run.Payment)

	if idemKey != "" && h.Idempotency != nil {
		envelope, marshalErr := json.Marshal(api.Envelope{Success: true, Data: data, RequestID: middleware.GetRequestID(r.Context())})
		if marshalErr == nil {
			if err := h.Idempotency.Save(r.Context(), middleware.TenantKey(user), user.UserID, endpoint, idemKey, requestHash, envelope); err != nil {
				slog.Warn("idempotency save failed", "runId", runID, "err", err)
			}
		}
	}

	api.Success(w, data, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	user, scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}

	var payload reasonPayload
	if err := decodeOptional(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	runID := chi.URLParam(r, "runID")
	run, err := h.Service.Cancel(r.Context(), scope, user.UserID, runID, payload.Reason, payload.Version)
	if err != nil {
		h.failDomain(w, r, err, "failed to cancel run")
		return
	}

	h.recordAudit(r, scope, user.UserID, "payroll.run.cancel", run.ID, nil, map[string]string{"reason": payload.Reason})
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleExcludeEmployee(w http.ResponseWriter, r *http.Request) {
	user, scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}

	var payload reasonPayload
	if err := decodeOptional(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	runID := chi.URLParam(r, "runID")
	employeeID := chi.URLParam(r, "employeeID")
	run, err := h.Service.ExcludeEmployee(r.Context(), scope, user.UserID, runID, employeeID, payload.Reason, payload.Version)
	if err != nil {
		h.failDomain(w, r, err, "failed to exclude employee")
		return
	}

	h.recordAudit(r, scope, user.UserID, "payroll.run.exclude_employee", run.ID, nil, map[string]string{"employeeId": employeeID, "reason": payload.Reason})
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleIncludeEmployee(w http.ResponseWriter, r *http.Request) {
	h.rosterOp(w, r, "payroll.run.include_employee", h.Service.IncludeEmployee)
}

func (h *Handler) handleRecalculateEmployee(w http.ResponseWriter, r *http.Request) {
	h.rosterOp(w, r, "payroll.run.recalculate_employee", h.Service.RecalculateEmployee)
}

func (h *Handler) handleUnholdEmployee(w http.ResponseWriter, r *http.Request) {
	h.rosterOp(w, r, "payroll.run.unhold_employee", h.Service.UnholdEmployee)
}

func (h *Handler) handleHoldEmployee(w http.ResponseWriter, r *http.Request) {
	user, scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}

	var payload reasonPayload
	if err := decodeOptional(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	runID := chi.URLParam(r, "runID")
	employeeID := chi.URLParam(r, "employeeID")
	run, err := h.Service.HoldEmployee(r.Context(), scope, user.UserID, runID, employeeID, payload.Reason, payload.Version)
	if err != nil {
		h.failDomain(w, r, err, "failed to hold employee")
		return
	}

	h.recordAudit(r, scope, user.UserID, "payroll.run.hold_employee", run.ID, nil, map[string]string{"employeeId": employeeID, "reason": payload.Reason})
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

type rosterFunc func(ctx context.Context, scope tenant.Scope, actor, runID, employeeID string, version int) (*payroll.PayrollRun, error)

func (h *Handler) rosterOp(w http.ResponseWriter, r *http.Request, action string, op rosterFunc) {
	user, scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}

	var payload versionPayload
	if err := decodeOptional(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	runID := chi.URLParam(r, "runID")
	employeeID := chi.URLParam(r, "employeeID")
	run, err := op(r.Context(), scope, user.UserID, runID, employeeID, payload.Version)
	if err != nil {
		h.failDomain(w, r, err, "roster operation failed")
		return
	}

	h.recordAudit(r, scope, user.UserID, action, run.ID, nil, map[string]string{"employeeId": employeeID})
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGenerateWPS(w http.ResponseWriter, r *http.Request) {
	user, scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}

	var payload versionPayload
	if err := decodeOptional(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	runID := chi.URLParam(r, "runID")
	run, err := h.Service.GenerateWPS(r.Context(), scope, user.UserID, runID, payload.Version)
	if err != nil {
		h.failDomain(w, r, err, "failed to generate wps file")
		return
	}

	h.recordAudit(r, scope, user.UserID, "payroll.run.generate_wps", run.ID, nil, run.WPS)
	api.Success(w, run.WPS, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleExportReport(w http.ResponseWriter, r *http.Request) {
	_, scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = payroll.ExportFormatJSON
	}

	file, err := h.Service.ExportReport(r.Context(), scope, chi.URLParam(r, "runID"), format)
	if err != nil {
		h.failDomain(w, r, err, "failed to export run")
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.FileName+`"`)
	if _, err := w.Write(file.Data); err != nil {
		slog.Warn("export write failed", "err", err)
	}
}

func (h *Handler) handleListSlips(w http.ResponseWriter, r *http.Request) {
	_, scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}

	slips, err := h.Service.ListSlips(r.Context(), scope, chi.URLParam(r, "runID"))
	if err != nil {
		h.failDomain(w, r, err, "failed to list slips")
		return
	}
	api.Success(w, slips, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDownloadSlip(w http.ResponseWriter, r *http.Request) {
	_, scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}

	fileName, data, err := h.Service.DownloadSlip(r.Context(), scope, chi.URLParam(r, "slipID"))
	if err != nil {
		h.failDomain(w, r, err, "failed to download slip")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+fileName+`"`)
	if _, err := w.Write(data); err != nil {
		slog.Warn("slip download write failed", "err", err)
	}
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
	if err := h.Audit.Record(r.Context(), scope, actorID, action, "payroll_run", entityID,
		middleware.GetRequestID(r.Context()), shared.ClientIP(r), before, after); err != nil {
		slog.Warn("audit record failed", "action", action, "entityId", entityID, "err", err)
	}
}

func (h *Handler) failDomain(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, payroll.ErrRunNotFound),
		errors.Is(err, payroll.ErrTenantMismatch),
		errors.Is(err, payroll.ErrEmployeeNotFound),
		errors.Is(err, employees.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), requestID)
	case errors.Is(err, payroll.ErrConcurrencyConflict):
		api.Fail(w, http.StatusConflict, "concurrency_conflict", err.Error(), requestID)
	case errors.Is(err, payroll.ErrInvalidTransition):
		api.Fail(w, http.StatusConflict, "invalid_transition", err.Error(), requestID)
	case errors.Is(err, payroll.ErrInvalidState):
		api.Fail(w, http.StatusConflict, "invalid_state", err.Error(), requestID)
	case errors.Is(err, payroll.ErrInvalidAmount):
		api.Fail(w, http.StatusBadRequest, "invalid_amount", err.Error(), requestID)
	case errors.Is(err, payroll.ErrInvalidFormat):
		api.Fail(w, http.StatusBadRequest, "invalid_format", err.Error(), requestID)
	case errors.Is(err, payroll.ErrCalculationTimeout):
		api.Fail(w, http.StatusGatewayTimeout, "calculation_timeout", err.Error(), requestID)
	case errors.Is(err, payroll.ErrLedgerPosting):
		api.Fail(w, http.StatusInternalServerError, "ledger_posting_failed", err.Error(), requestID)
	case errors.Is(err, tenant.ErrInvalidScope):
		api.Fail(w, http.StatusForbidden, "forbidden", err.Error(), requestID)
	default:
		slog.Warn("payroll handler error", "err", err)
		api.Fail(w, http.StatusInternalServerError, "internal_error", fallback, requestID)
	}
}

// decodeOptional tolerates an empty body so version-only endpoints can be
// called without a payload, defaulting the version to zero.
func decodeOptional(r *http.Request, out any) error {
	err := json.NewDecoder(r.Body).Decode(out)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
