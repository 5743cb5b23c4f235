package payroll

import (
	"context"

	"firmpay/internal/domain/employees"
	"firmpay/internal/domain/ledger"
	"firmpay/internal/domain/tenant"
)

type ListFilter struct {
	Status string
	Month  int
	Year   int
	Limit  int
	Offset int
}

type StoreAPI interface {
	CreateRun(ctx context.Context, run *PayrollRun) error
	GetRun(ctx context.Context, scope tenant.Scope, runID string) (*PayrollRun, error)
	ListRuns(ctx context.Context, scope tenant.Scope, filter ListFilter) ([]PayrollRun, error)
	CountRuns(ctx context.Context, scope tenant.Scope, filter ListFilter) (int, error)
	// SaveRun persists the run only if the stored version still matches
	// run.Version; on success run.Version is incremented.
	SaveRun(ctx context.Context, run *PayrollRun) error
	DeleteRun(ctx context.Context, scope tenant.Scope, runID string, expectedVersion int) error
	// SavePaymentOutcome writes the slips, posts the ledger entries and
	// marks the run paid in one transaction.
	SavePaymentOutcome(ctx context.Context, run *PayrollRun, slips []SalarySlip, poster LedgerPoster) error
	ListSlips(ctx context.Context, scope tenant.Scope, runID string) ([]SalarySlip, error)
	GetSlip(ctx context.Context, scope tenant.Scope, slipID string) (*SalarySlip, error)
}

// EmployeeDirectory is the slice of the employee store the engine needs.
type EmployeeDirectory interface {
	FindEmployees(ctx context.Context, scope tenant.Scope, filter employees.Filter) ([]employees.Employee, error)
	FindEmployee(ctx context.Context, scope tenant.Scope, employeeID string) (employees.Employee, error)
}

// LedgerPoster posts one slip's balanced journal rows using the caller's
// transaction, so posting shares fate with the payment write.
type LedgerPoster interface {
	PostToGeneralLedger(ctx context.Context, tx ledger.Execer, posting ledger.Posting) error
}
