package payroll

import (
	"context"
	"fmt"
	"time"

	"firmpay/internal/domain/tenant"
)

// ProcessPayments settles the run. Every non-held employee gets a salary
// slip and a balanced ledger posting, and the run moves to paid, all within
// one store transaction. Any failure leaves no slips, no ledger rows and the
// run still approved.
func (s *Service) ProcessPayments(ctx context.Context, scope tenant.Scope, actor, runID string, version int) (*PayrollRun, []SalarySlip, error) {
	run, err := s.loadOwned(ctx, scope, runID)
	if err != nil {
		return nil, nil, err
	}
	if err := ensureTransition(run, ActionProcessPayments); err != nil {
		return nil, nil, err
	}
	if version > 0 {
		run.Version = version
	}

	payable := make([]*EmployeeEntry, 0, len(run.EmployeeList))
	for i := range run.EmployeeList {
		entry := &run.EmployeeList[i]
		if entry.OnHold {
			continue
		}
		if entry.NetPay < 0 || !validAmount(entry.NetPay) {
			return nil, nil, fmt.Errorf("%w: net pay %v for %s", ErrInvalidAmount, entry.NetPay, entry.Name)
		}
		payable = append(payable, entry)
	}
	if len(payable) == 0 {
		return nil, nil, fmt.Errorf("%w: run %s has no payable employees", ErrInvalidState, run.ID)
	}

	now := time.Now().UTC()
	slips := make([]SalarySlip, 0, len(payable))
	var totalPaid float64
	for i, entry := range payable {
		slip := SalarySlip{
			RunID:           run.ID,
			EmployeeID:      entry.EmployeeID,
			EmployeeName:    entry.Name,
			FirmID:          run.FirmID,
			LawyerID:        run.LawyerID,
			SlipNumber:      fmt.Sprintf("SLP-%04d%02d-%04d", run.Period.Year, run.Period.Month, i+1),
			PeriodStart:     run.Period.PeriodStart,
			PeriodEnd:       run.Period.PeriodEnd,
			BasicSalary:     entry.BasicSalary,
			Allowances:      entry.Allowances,
			GrossPay:        entry.GrossPay,
			GOSIEmployee:    entry.GOSIEmployee,
			GOSIEmployer:    entry.GOSIEmployer,
			OtherDeductions: round2(entry.ManualDeductions()),
			TotalDeductions: entry.TotalDeductions,
			NetPay:          entry.NetPay,
			PaymentMethod:   entry.PaymentMethod,
			IBAN:            entry.IBAN,
			Status:          PaymentStatusPaid,
		}
		slips = append(slips, slip)
		totalPaid = round2(totalPaid + entry.NetPay)
	}

	// processing_payment is only ever an in-memory state; the store writes
	// either the paid outcome or nothing.
	run.Status = StatusProcessingPayment
	for i, entry := range payable {
		entry.PaymentStatus = PaymentStatusPaid
		entry.SlipID = slips[i].SlipNumber
	}
	run.Payment = &PaymentProcessing{
		PaymentStatus:        PaymentStatusCompleted,
		PaidEmployees:        len(payable),
		TotalPaid:            totalPaid,
		CompletionPercentage: 100,
		ProcessedBy:          actor,
		ProcessedAt:          now,
	}
	run.Status = StatusPaid
	run.recordLog(LogEntry{
		Action:            ActionProcessPayments,
		ActionType:        ActionTypePayment,
		PerformedBy:       actor,
		Status:            LogStatusSuccess,
		AffectedEmployees: len(payable),
		AffectedAmount:    totalPaid,
	})

	if err := s.store.SavePaymentOutcome(ctx, run, slips, s.ledger); err != nil {
		return nil, nil, err
	}
	return run, slips, nil
}
