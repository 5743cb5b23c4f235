package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"firmpay/internal/domain/employees"
	"firmpay/internal/domain/tenant"
)

// Calculate rebuilds the employee list from the directory and derives the
// summary, statistics and validation result. Manual deductions and holds
// entered on a previous calculation are carried over per employee, which
// also makes recalculating an unchanged run a no-op.
func (s *Service) Calculate(ctx context.Context, scope tenant.Scope, actor, runID string, version int) (*PayrollRun, error) {
	run, err := s.loadOwned(ctx, scope, runID)
	if err != nil {
		return nil, err
	}
	if err := ensureTransition(run, ActionCalculate); err != nil {
		return nil, err
	}
	priorStatus := run.Status
	if version > 0 {
		run.Version = version
	}
	run.Status = StatusCalculating
	if err := s.store.SaveRun(ctx, run); err != nil {
		return nil, err
	}

	started := time.Now()
	calcCtx, cancel := context.WithTimeout(ctx, s.calcTimeout)
	defer cancel()

	entries, err := s.computeEntries(calcCtx, scope, run)
	if err != nil {
		if errors.Is(calcCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: after %s", ErrCalculationTimeout, s.calcTimeout)
		}
		run.Status = priorStatus
		run.recordLog(LogEntry{
			Action:      ActionCalculate,
			ActionType:  ActionTypeCalculation,
			PerformedBy: actor,
			Status:      LogStatusFailed,
			Message:     err.Error(),
		})
		if saveErr := s.store.SaveRun(ctx, run); saveErr != nil {
			return nil, saveErr
		}
		return nil, err
	}

	run.EmployeeList = entries
	run.Summary = Summarize(entries)
	run.Statistics = ComputeStatistics(entries, time.Since(started))
	validation := ValidateEntries(entries)
	run.Validation = &validation
	run.Status = StatusCalculated
	run.recordLog(LogEntry{
		Action:            ActionCalculate,
		ActionType:        ActionTypeCalculation,
		PerformedBy:       actor,
		Status:            LogStatusSuccess,
		AffectedEmployees: len(entries),
		AffectedAmount:    run.Summary.TotalNetPay,
	})
	if err := s.store.SaveRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *Service) computeEntries(ctx context.Context, scope tenant.Scope, run *PayrollRun) ([]EmployeeEntry, error) {
	cfg := run.Configuration
	filter := employees.Filter{
		EmploymentStatuses: cfg.IncludedEmploymentStatuses,
		EmployeeTypes:      cfg.IncludedEmployeeTypes,
	}
	for _, excluded := range cfg.ExcludedEmployees {
		filter.ExcludeIDs = append(filter.ExcludeIDs, excluded.EmployeeID)
	}
	roster, err := s.employees.FindEmployees(ctx, scope, filter)
	if err != nil {
		return nil, err
	}

	previous := make(map[string]EmployeeEntry, len(run.EmployeeList))
	for _, e := range run.EmployeeList {
		previous[e.EmployeeID] = e
	}

	entries := make([]EmployeeEntry, 0, len(roster))
	for _, emp := range roster {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, err := ComputeEntry(emp, cfg)
		if err != nil {
			return nil, err
		}
		if prior, ok := previous[emp.ID]; ok {
			entry.LoanDeduction = prior.LoanDeduction
			entry.AdvanceDeduction = prior.AdvanceDeduction
			entry.AbsenceDeduction = prior.AbsenceDeduction
			entry.OnHold = prior.OnHold
			finishEntry(&entry)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Validate re-checks the current employee list without changing status. The
// result is stored on the run so approvers see the same report.
func (s *Service) Validate(ctx context.Context, scope tenant.Scope, actor, runID string, version int) (*ValidationResult, error) {
	run, err := s.loadOwned(ctx, scope, runID)
	if err != nil {
		return nil, err
	}
	if version > 0 {
		run.Version = version
	}
	validation := ValidateEntries(run.EmployeeList)
	run.Validation = &validation
	run.recordLog(LogEntry{
		Action:      ActionValidate,
		ActionType:  ActionTypeCalculation,
		PerformedBy: actor,
		Status:      LogStatusSuccess,
		Message: fmt.Sprintf("%d warnings, %d errors, %d critical",
			validation.WarningCount, validation.ErrorCount, validation.CriticalCount),
	})
	if err := s.store.SaveRun(ctx, run); err != nil {
		return nil, err
	}
	return &validation, nil
}

// Approve re-validates before moving the run forward. A blocking validation
// result rejects the approval but the attempt is still logged on the run.
func (s *Service) Approve(ctx context.Context, scope tenant.Scope, actor, runID, comments string, version int) (*PayrollRun, error) {
	run, err := s.loadOwned(ctx, scope, runID)
	if err != nil {
		return nil, err
	}
	if err := ensureTransition(run, ActionApprove); err != nil {
		return nil, err
	}
	if version > 0 {
		run.Version = version
	}

	validation := ValidateEntries(run.EmployeeList)
	run.Validation = &validation
	if validation.HasBlockingErrors {
		run.recordLog(LogEntry{
			Action:      ActionApprove,
			ActionType:  ActionTypeLifecycle,
			PerformedBy: actor,
			Status:      LogStatusRejected,
			Message: fmt.Sprintf("approval blocked: %d errors, %d critical issues",
				validation.ErrorCount, validation.CriticalCount),
		})
		if saveErr := s.store.SaveRun(ctx, run); saveErr != nil {
			return nil, saveErr
		}
		return nil, fmt.Errorf("%w: run %s has blocking validation issues", ErrInvalidTransition, run.ID)
	}

	run.Approval = &ApprovalWorkflow{
		ApprovedBy: actor,
		ApprovedAt: time.Now().UTC(),
		Comments:   comments,
	}
	run.Status = StatusApproved
	run.recordLog(LogEntry{
		Action:            ActionApprove,
		ActionType:        ActionTypeLifecycle,
		PerformedBy:       actor,
		Status:            LogStatusSuccess,
		AffectedEmployees: run.Summary.EmployeeCount,
		AffectedAmount:    run.Summary.TotalNetPay,
	})
	if err := s.store.SaveRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// Cancel is allowed from any status except paid and cancelled. A rejected
// cancellation is still appended to the processing log.
func (s *Service) Cancel(ctx context.Context, scope tenant.Scope, actor, runID, reason string, version int) (*PayrollRun, error) {
	run, err := s.loadOwned(ctx, scope, runID)
	if err != nil {
		return nil, err
	}
	if version > 0 {
		run.Version = version
	}
	if err := ensureTransition(run, ActionCancel); err != nil {
		run.recordLog(LogEntry{
			Action:      ActionCancel,
			ActionType:  ActionTypeLifecycle,
			PerformedBy: actor,
			Status:      LogStatusRejected,
			Message:     fmt.Sprintf("cannot cancel a %s run", run.Status),
		})
		if saveErr := s.store.SaveRun(ctx, run); saveErr != nil {
			return nil, saveErr
		}
		return nil, err
	}

	run.Status = StatusCancelled
	run.recordLog(LogEntry{
		Action:      ActionCancel,
		ActionType:  ActionTypeLifecycle,
		PerformedBy: actor,
		Status:      LogStatusSuccess,
		Message:     reason,
	})
	if err := s.store.SaveRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}
