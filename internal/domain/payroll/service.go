package payroll

import (
	"context"
	"fmt"
	"time"

	"firmpay/internal/domain/tenant"
	cryptoutil "firmpay/internal/platform/crypto"
)

const DefaultCalcTimeout = 2 * time.Minute

// Service owns the run lifecycle. All operations take an explicit tenant
// scope and the run's expected version where they mutate, so concurrent
// editors fail fast instead of overwriting each other.
type Service struct {
	store       StoreAPI
	employees   EmployeeDirectory
	ledger      LedgerPoster
	crypto      *cryptoutil.Service
	slipDir     string
	calcTimeout time.Duration
}

func NewService(store StoreAPI, directory EmployeeDirectory, poster LedgerPoster, crypto *cryptoutil.Service, slipDir string, calcTimeout time.Duration) *Service {
	if calcTimeout <= 0 {
		calcTimeout = DefaultCalcTimeout
	}
	return &Service{
		store:       store,
		employees:   directory,
		ledger:      poster,
		crypto:      crypto,
		slipDir:     slipDir,
		calcTimeout: calcTimeout,
	}
}

type CreateRunInput struct {
	Name          string
	Period        PayPeriod
	Notes         string
	Configuration Configuration
}

func (s *Service) CreateRun(ctx context.Context, scope tenant.Scope, actor string, in CreateRunInput) (*PayrollRun, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if in.Period.Month < 1 || in.Period.Month > 12 {
		return nil, fmt.Errorf("%w: pay period month %d", ErrInvalidAmount, in.Period.Month)
	}
	cfg := in.Configuration
	if len(cfg.IncludedEmploymentStatuses) == 0 {
		cfg.IncludedEmploymentStatuses = []string{"active"}
	}
	run := &PayrollRun{
		FirmID:        scope.FirmID,
		LawyerID:      scope.LawyerID,
		Name:          in.Name,
		Period:        in.Period,
		Status:        StatusDraft,
		Notes:         in.Notes,
		Configuration: cfg,
		EmployeeList:  []EmployeeEntry{},
		ProcessingLog: []LogEntry{},
		CreatedBy:     actor,
	}
	run.recordLog(LogEntry{
		Action:      ActionCreate,
		ActionType:  ActionTypeLifecycle,
		PerformedBy: actor,
		Status:      LogStatusSuccess,
		Message:     fmt.Sprintf("run created for %04d-%02d", in.Period.Year, in.Period.Month),
	})
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *Service) GetRun(ctx context.Context, scope tenant.Scope, runID string) (*PayrollRun, error) {
	return s.loadOwned(ctx, scope, runID)
}

// loadOwned fetches a run through the scoped store and re-checks ownership,
// so a store that ignores scoping still cannot leak another tenant's run.
func (s *Service) loadOwned(ctx context.Context, scope tenant.Scope, runID string) (*PayrollRun, error) {
	run, err := s.store.GetRun(ctx, scope, runID)
	if err != nil {
		return nil, err
	}
	if !scope.Owns(run.FirmID, run.LawyerID) {
		return nil, fmt.Errorf("%w: run %s", ErrTenantMismatch, runID)
	}
	return run, nil
}

func (s *Service) ListRuns(ctx context.Context, scope tenant.Scope, filter ListFilter) ([]PayrollRun, int, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	total, err := s.store.CountRuns(ctx, scope, filter)
	if err != nil {
		return nil, 0, err
	}
	runs, err := s.store.ListRuns(ctx, scope, filter)
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

type UpdateRunInput struct {
	Name          *string
	Notes         *string
	Period        *PayPeriod
	Configuration *Configuration
	Version       int
}

// UpdateRun edits metadata in draft or calculated. Configuration and period
// changes are draft-only because they invalidate a finished calculation.
func (s *Service) UpdateRun(ctx context.Context, scope tenant.Scope, actor, runID string, in UpdateRunInput) (*PayrollRun, error) {
	run, err := s.loadOwned(ctx, scope, runID)
	if err != nil {
		return nil, err
	}
	if err := ensureState(run, StatusDraft, StatusCalculated); err != nil {
		return nil, err
	}
	if (in.Configuration != nil || in.Period != nil) && run.Status != StatusDraft {
		return nil, fmt.Errorf("%w: configuration changes require a draft run, run %s is %s",
			ErrInvalidState, run.ID, run.Status)
	}
	if in.Version > 0 {
		run.Version = in.Version
	}
	if in.Name != nil {
		run.Name = *in.Name
	}
	if in.Notes != nil {
		run.Notes = *in.Notes
	}
	if in.Period != nil {
		if in.Period.Month < 1 || in.Period.Month > 12 {
			return nil, fmt.Errorf("%w: pay period month %d", ErrInvalidAmount, in.Period.Month)
		}
		run.Period = *in.Period
	}
	if in.Configuration != nil {
		run.Configuration = *in.Configuration
	}
	run.recordLog(LogEntry{
		Action:      ActionUpdate,
		ActionType:  ActionTypeLifecycle,
		PerformedBy: actor,
		Status:      LogStatusSuccess,
	})
	if err := s.store.SaveRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *Service) DeleteRun(ctx context.Context, scope tenant.Scope, runID string, version int) error {
	run, err := s.loadOwned(ctx, scope, runID)
	if err != nil {
		return err
	}
	if run.Status != StatusDraft {
		return fmt.Errorf("%w: only draft runs can be deleted, run %s is %s", ErrInvalidState, run.ID, run.Status)
	}
	if version <= 0 {
		version = run.Version
	}
	return s.store.DeleteRun(ctx, scope, runID, version)
}
