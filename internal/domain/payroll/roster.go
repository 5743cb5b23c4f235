package payroll

import (
	"context"
	"fmt"
	"time"

	"firmpay/internal/domain/tenant"
)

// ExcludeEmployee drops one employee from the run and adjusts the summary
// incrementally, so the remaining run does not have to be recalculated.
func (s *Service) ExcludeEmployee(ctx context.Context, scope tenant.Scope, actor, runID, employeeID, reason string, version int) (*PayrollRun, error) {
	run, err := s.loadOwned(ctx, scope, runID)
	if err != nil {
		return nil, err
	}
	if err := ensureState(run, rosterStatuses...); err != nil {
		return nil, err
	}
	if version > 0 {
		run.Version = version
	}

	idx, entry := run.Entry(employeeID)
	if entry == nil {
		return nil, fmt.Errorf("%w: %s in run %s", ErrEmployeeNotFound, employeeID, runID)
	}
	removed := *entry
	run.EmployeeList = append(run.EmployeeList[:idx], run.EmployeeList[idx+1:]...)
	subtractFromSummary(&run.Summary, removed)
	run.Configuration.ExcludedEmployees = append(run.Configuration.ExcludedEmployees, ExcludedEmployee{
		EmployeeID: employeeID,
		Reason:     reason,
		ExcludedBy: actor,
		ExcludedAt: time.Now().UTC(),
	})
	run.recordLog(LogEntry{
		Action:            ActionExcludeEmployee,
		ActionType:        ActionTypeRoster,
		PerformedBy:       actor,
		Status:            LogStatusSuccess,
		AffectedEmployees: 1,
		AffectedAmount:    removed.NetPay,
		Message:           reason,
	})
	if err := s.store.SaveRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// IncludeEmployee reverses an exclusion. The entry is computed fresh from
// the directory rather than restored from the removed snapshot, so changes
// to the employee record since exclusion are picked up.
func (s *Service) IncludeEmployee(ctx context.Context, scope tenant.Scope, actor, runID, employeeID string, version int) (*PayrollRun, error) {
	run, err := s.loadOwned(ctx, scope, runID)
	if err != nil {
		return nil, err
	}
	if err := ensureState(run, rosterStatuses...); err != nil {
		return nil, err
	}
	if version > 0 {
		run.Version = version
	}

	if !run.Configuration.IsExcluded(employeeID) {
		return nil, fmt.Errorf("%w: %s is not excluded from run %s", ErrEmployeeNotFound, employeeID, runID)
	}
	emp, err := s.employees.FindEmployee(ctx, scope, employeeID)
	if err != nil {
		return nil, err
	}
	entry, err := ComputeEntry(emp, run.Configuration)
	if err != nil {
		return nil, err
	}

	kept := run.Configuration.ExcludedEmployees[:0]
	for _, excluded := range run.Configuration.ExcludedEmployees {
		if excluded.EmployeeID != employeeID {
			kept = append(kept, excluded)
		}
	}
	run.Configuration.ExcludedEmployees = kept
	run.EmployeeList = append(run.EmployeeList, entry)
	addToSummary(&run.Summary, entry)
	run.recordLog(LogEntry{
		Action:            ActionIncludeEmployee,
		ActionType:        ActionTypeRoster,
		PerformedBy:       actor,
		Status:            LogStatusSuccess,
		AffectedEmployees: 1,
		AffectedAmount:    entry.NetPay,
	})
	if err := s.store.SaveRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// RecalculateEmployee refreshes one entry from the directory. Manually
// entered loan, advance and absence deductions and the hold flag survive.
func (s *Service) RecalculateEmployee(ctx context.Context, scope tenant.Scope, actor, runID, employeeID string, version int) (*PayrollRun, error) {
	run, err := s.loadOwned(ctx, scope, runID)
	if err != nil {
		return nil, err
	}
	if err := ensureState(run, rosterStatuses...); err != nil {
		return nil, err
	}
	if version > 0 {
		run.Version = version
	}

	idx, old := run.Entry(employeeID)
	if old == nil {
		return nil, fmt.Errorf("%w: %s in run %s", ErrEmployeeNotFound, employeeID, runID)
	}
	emp, err := s.employees.FindEmployee(ctx, scope, employeeID)
	if err != nil {
		return nil, err
	}
	entry, err := ComputeEntry(emp, run.Configuration)
	if err != nil {
		return nil, err
	}
	entry.LoanDeduction = old.LoanDeduction
	entry.AdvanceDeduction = old.AdvanceDeduction
	entry.AbsenceDeduction = old.AbsenceDeduction
	entry.OnHold = old.OnHold
	finishEntry(&entry)

	subtractFromSummary(&run.Summary, *old)
	run.EmployeeList[idx] = entry
	addToSummary(&run.Summary, entry)
	run.recordLog(LogEntry{
		Action:            ActionRecalculateEmployee,
		ActionType:        ActionTypeRoster,
		PerformedBy:       actor,
		Status:            LogStatusSuccess,
		AffectedEmployees: 1,
		AffectedAmount:    entry.NetPay,
	})
	if err := s.store.SaveRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// HoldEmployee flags an entry so payment processing skips it. Totals are
// untouched; the employee is still part of the run.
func (s *Service) HoldEmployee(ctx context.Context, scope tenant.Scope, actor, runID, employeeID, reason string, version int) (*PayrollRun, error) {
	return s.setHold(ctx, scope, actor, runID, employeeID, reason, version, true)
}

func (s *Service) UnholdEmployee(ctx context.Context, scope tenant.Scope, actor, runID, employeeID string, version int) (*PayrollRun, error) {
	return s.setHold(ctx, scope, actor, runID, employeeID, "", version, false)
}

func (s *Service) setHold(ctx context.Context, scope tenant.Scope, actor, runID, employeeID, reason string, version int, hold bool) (*PayrollRun, error) {
	run, err := s.loadOwned(ctx, scope, runID)
	if err != nil {
		return nil, err
	}
	if err := ensureState(run, StatusDraft, StatusCalculated, StatusApproved); err != nil {
		return nil, err
	}
	if version > 0 {
		run.Version = version
	}

	_, entry := run.Entry(employeeID)
	if entry == nil {
		return nil, fmt.Errorf("%w: %s in run %s", ErrEmployeeNotFound, employeeID, runID)
	}
	action := ActionHoldEmployee
	if !hold {
		action = ActionUnholdEmployee
	}
	entry.OnHold = hold
	if hold {
		entry.PaymentStatus = PaymentStatusOnHold
	} else {
		entry.PaymentStatus = PaymentStatusPending
	}
	run.recordLog(LogEntry{
		Action:            action,
		ActionType:        ActionTypeRoster,
		PerformedBy:       actor,
		Status:            LogStatusSuccess,
		AffectedEmployees: 1,
		Message:           reason,
	})
	if err := s.store.SaveRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}
