package payroll

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"firmpay/internal/domain/tenant"
)

// GenerateWPS records Wage Protection System file metadata for the run.
// Only bank-transfer employees that are not on hold are counted; cash and
// cheque payments fall outside WPS reporting.
func (s *Service) GenerateWPS(ctx context.Context, scope tenant.Scope, actor, runID string, version int) (*PayrollRun, error) {
	run, err := s.loadOwned(ctx, scope, runID)
	if err != nil {
		return nil, err
	}
	if err := ensureState(run, allowedFrom[ActionGenerateWPS]...); err != nil {
		return nil, err
	}
	if version > 0 {
		run.Version = version
	}

	var count int
	var total float64
	for _, entry := range run.EmployeeList {
		if entry.OnHold || entry.PaymentMethod != "bank_transfer" {
			continue
		}
		count++
		total = round2(total + entry.NetPay)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: run %s has no bank-transfer employees", ErrInvalidState, run.ID)
	}

	reference := strings.ToUpper(uuid.NewString()[:8])
	run.WPS = &WPSFile{
		FileName:    fmt.Sprintf("WPS_%04d%02d_%s.sif", run.Period.Year, run.Period.Month, reference),
		Reference:   reference,
		RecordCount: count,
		TotalAmount: total,
		GeneratedBy: actor,
		GeneratedAt: time.Now().UTC(),
	}
	run.recordLog(LogEntry{
		Action:            ActionGenerateWPS,
		ActionType:        ActionTypeExport,
		PerformedBy:       actor,
		Status:            LogStatusSuccess,
		AffectedEmployees: count,
		AffectedAmount:    total,
	})
	if err := s.store.SaveRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}
