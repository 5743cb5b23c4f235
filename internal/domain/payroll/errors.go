package payroll

import "errors"

var (
	ErrRunNotFound         = errors.New("payroll run not found")
	ErrEmployeeNotFound    = errors.New("employee not found in run")
	ErrInvalidState        = errors.New("operation not allowed in current run status")
	ErrInvalidTransition   = errors.New("invalid run status transition")
	ErrInvalidAmount       = errors.New("invalid monetary amount")
	ErrInvalidFormat       = errors.New("unsupported export format")
	ErrConcurrencyConflict = errors.New("payroll run was modified concurrently")
	ErrLedgerPosting       = errors.New("general ledger posting failed")
	ErrTenantMismatch      = errors.New("payroll run does not belong to tenant")
	ErrCalculationTimeout  = errors.New("payroll calculation timed out")
)
