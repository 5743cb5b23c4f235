package payroll

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"firmpay/internal/domain/ledger"
	"firmpay/internal/domain/tenant"
)

// Store persists payroll runs with the nested calculation state held in
// JSONB columns. The scalar columns exist for filtering and the version
// column for optimistic concurrency.
type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const runColumns = `
    id, COALESCE(firm_id::text, ''), COALESCE(lawyer_id::text, ''), name,
    period_month, period_year, period_start, period_end, payment_date,
    status, COALESCE(notes, ''),
    configuration_json, employee_list_json, financial_summary_json, statistics_json,
    validation_json, approval_json, payment_json, wps_json, processing_log_json,
    version, created_by, created_at, updated_at`

func (s *Store) CreateRun(ctx context.Context, run *PayrollRun) error {
	blobs, err := marshalRunBlobs(run)
	if err != nil {
		return err
	}
	return s.DB.QueryRow(ctx, `
    INSERT INTO payroll_runs (firm_id, lawyer_id, name,
                              period_month, period_year, period_start, period_end, payment_date,
                              status, notes,
                              configuration_json, employee_list_json, financial_summary_json,
                              statistics_json, validation_json, approval_json, payment_json,
                              wps_json, processing_log_json, version, created_by)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,1,$20)
    RETURNING id, version, created_at, updated_at
  `, nullable(run.FirmID), nullable(run.LawyerID), run.Name,
		run.Period.Month, run.Period.Year, run.Period.PeriodStart, run.Period.PeriodEnd, run.Period.PaymentDate,
		run.Status, run.Notes,
		blobs.configuration, blobs.employeeList, blobs.summary, blobs.statistics,
		blobs.validation, blobs.approval, blobs.payment, blobs.wps, blobs.processingLog,
		run.CreatedBy,
	).Scan(&run.ID, &run.Version, &run.CreatedAt, &run.UpdatedAt)
}

func (s *Store) GetRun(ctx context.Context, scope tenant.Scope, runID string) (*PayrollRun, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	column, owner := scope.Owner()
	query := fmt.Sprintf("SELECT %s FROM payroll_runs WHERE %s = $1 AND id = $2", runColumns, column)
	rows, err := s.DB.Query(ctx, query, owner, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return scanRun(rows)
}

func (s *Store) ListRuns(ctx context.Context, scope tenant.Scope, filter ListFilter) ([]PayrollRun, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	column, owner := scope.Owner()
	query := fmt.Sprintf("SELECT %s FROM payroll_runs WHERE %s = $1", runColumns, column)
	args := []any{owner}
	query, args = appendRunFilters(query, args, filter)
	query += fmt.Sprintf(" ORDER BY period_year DESC, period_month DESC, created_at DESC LIMIT $%d OFFSET $%d",
		len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PayrollRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

func (s *Store) CountRuns(ctx context.Context, scope tenant.Scope, filter ListFilter) (int, error) {
	column, owner := scope.Owner()
	query := fmt.Sprintf("SELECT COUNT(1) FROM payroll_runs WHERE %s = $1", column)
	args := []any{owner}
	query, args = appendRunFilters(query, args, filter)
	var total int
	err := s.DB.QueryRow(ctx, query, args...).Scan(&total)
	return total, err
}

// SaveRun writes the run back guarded by the version it was loaded at. A
// zero-row update means either the run vanished or someone else saved first;
// a recheck tells the two apart.
func (s *Store) SaveRun(ctx context.Context, run *PayrollRun) error {
	blobs, err := marshalRunBlobs(run)
	if err != nil {
		return err
	}
	tag, err := s.DB.Exec(ctx, `
    UPDATE payroll_runs
    SET name = $1, period_month = $2, period_year = $3, period_start = $4, period_end = $5,
        payment_date = $6, status = $7, notes = $8,
        configuration_json = $9, employee_list_json = $10, financial_summary_json = $11,
        statistics_json = $12, validation_json = $13, approval_json = $14, payment_json = $15,
        wps_json = $16, processing_log_json = $17,
        version = version + 1, updated_at = NOW()
    WHERE id = $18 AND version = $19
  `, run.Name, run.Period.Month, run.Period.Year, run.Period.PeriodStart, run.Period.PeriodEnd,
		run.Period.PaymentDate, run.Status, run.Notes,
		blobs.configuration, blobs.employeeList, blobs.summary, blobs.statistics,
		blobs.validation, blobs.approval, blobs.payment, blobs.wps, blobs.processingLog,
		run.ID, run.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.staleOrMissing(ctx, run.ID)
	}
	run.Version++
	return nil
}

func (s *Store) DeleteRun(ctx context.Context, scope tenant.Scope, runID string, expectedVersion int) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	column, owner := scope.Owner()
	tag, err := s.DB.Exec(ctx,
		fmt.Sprintf("DELETE FROM payroll_runs WHERE %s = $1 AND id = $2 AND version = $3", column),
		owner, runID, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.staleOrMissing(ctx, runID)
	}
	return nil
}

// SavePaymentOutcome commits the payment as a single unit: every slip, every
// ledger row and the run's move to paid, or none of them. The run passed in
// must already carry its post-payment state.
func (s *Store) SavePaymentOutcome(ctx context.Context, run *PayrollRun, slips []SalarySlip, poster LedgerPoster) error {
	blobs, err := marshalRunBlobs(run)
	if err != nil {
		return err
	}
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := range slips {
		slip := &slips[i]
		err := tx.QueryRow(ctx, `
      INSERT INTO salary_slips (run_id, employee_id, employee_name, firm_id, lawyer_id, slip_number,
                                period_start, period_end, basic_salary, allowances, gross_pay,
                                gosi_employee, gosi_employer, other_deductions, total_deductions,
                                net_pay, payment_method, iban, status)
      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
      RETURNING id, created_at
    `, slip.RunID, slip.EmployeeID, slip.EmployeeName, nullable(slip.FirmID), nullable(slip.LawyerID),
			slip.SlipNumber, slip.PeriodStart, slip.PeriodEnd, slip.BasicSalary, slip.Allowances,
			slip.GrossPay, slip.GOSIEmployee, slip.GOSIEmployer, slip.OtherDeductions,
			slip.TotalDeductions, slip.NetPay, slip.PaymentMethod, slip.IBAN, slip.Status,
		).Scan(&slip.ID, &slip.CreatedAt)
		if err != nil {
			return err
		}
		posting := ledger.Posting{
			SlipID:          slip.ID,
			RunID:           slip.RunID,
			FirmID:          nullable(slip.FirmID),
			LawyerID:        nullable(slip.LawyerID),
			Memo:            fmt.Sprintf("payroll %s slip %s", run.Name, slip.SlipNumber),
			Gross:           slip.GrossPay,
			EmployerGOSI:    slip.GOSIEmployer,
			EmployeeGOSI:    slip.GOSIEmployee,
			OtherDeductions: slip.OtherDeductions,
			Net:             slip.NetPay,
		}
		if err := poster.PostToGeneralLedger(ctx, tx, posting); err != nil {
			return fmt.Errorf("%w: slip %s: %v", ErrLedgerPosting, slip.SlipNumber, err)
		}
	}

	tag, err := tx.Exec(ctx, `
    UPDATE payroll_runs
    SET status = $1, employee_list_json = $2, payment_json = $3, processing_log_json = $4,
        version = version + 1, updated_at = NOW()
    WHERE id = $5 AND version = $6
  `, run.Status, blobs.employeeList, blobs.payment, blobs.processingLog, run.ID, run.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.staleOrMissing(ctx, run.ID)
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	run.Version++
	return nil
}

func (s *Store) ListSlips(ctx context.Context, scope tenant.Scope, runID string) ([]SalarySlip, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	column, owner := scope.Owner()
	query := fmt.Sprintf("SELECT %s FROM salary_slips WHERE %s = $1 AND run_id = $2 ORDER BY slip_number", slipColumns, column)
	rows, err := s.DB.Query(ctx, query, owner, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SalarySlip
	for rows.Next() {
		slip, err := scanSlip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, slip)
	}
	return out, rows.Err()
}

func (s *Store) GetSlip(ctx context.Context, scope tenant.Scope, slipID string) (*SalarySlip, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	column, owner := scope.Owner()
	query := fmt.Sprintf("SELECT %s FROM salary_slips WHERE %s = $1 AND id = $2", slipColumns, column)
	rows, err := s.DB.Query(ctx, query, owner, slipID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("salary slip %s: %w", slipID, ErrRunNotFound)
	}
	slip, err := scanSlip(rows)
	if err != nil {
		return nil, err
	}
	return &slip, nil
}

const slipColumns = `
    id, run_id, employee_id, employee_name,
    COALESCE(firm_id::text, ''), COALESCE(lawyer_id::text, ''), slip_number,
    period_start, period_end, basic_salary, allowances, gross_pay,
    gosi_employee, gosi_employer, other_deductions, total_deductions, net_pay,
    payment_method, COALESCE(iban, ''), status, created_at`

func (s *Store) staleOrMissing(ctx context.Context, runID string) error {
	var exists bool
	if err := s.DB.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM payroll_runs WHERE id = $1)", runID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: run %s", ErrConcurrencyConflict, runID)
	}
	return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
}

func appendRunFilters(query string, args []any, filter ListFilter) (string, []any) {
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	if filter.Month != 0 {
		query += fmt.Sprintf(" AND period_month = $%d", len(args)+1)
		args = append(args, filter.Month)
	}
	if filter.Year != 0 {
		query += fmt.Sprintf(" AND period_year = $%d", len(args)+1)
		args = append(args, filter.Year)
	}
	return query, args
}

func nullable(id string) any {
	if id == "" {
		return nil
	}
	return id
}

type runBlobs struct {
	configuration []byte
	employeeList  []byte
	summary       []byte
	statistics    []byte
	validation    []byte
	approval      []byte
	payment       []byte
	wps           []byte
	processingLog []byte
}

func marshalRunBlobs(run *PayrollRun) (runBlobs, error) {
	var blobs runBlobs
	var err error
	marshal := func(dst *[]byte, v any) {
		if err != nil {
			return
		}
		*dst, err = json.Marshal(v)
	}
	marshal(&blobs.configuration, run.Configuration)
	marshal(&blobs.employeeList, run.EmployeeList)
	marshal(&blobs.summary, run.Summary)
	marshal(&blobs.statistics, run.Statistics)
	marshal(&blobs.processingLog, run.ProcessingLog)
	if run.Validation != nil {
		marshal(&blobs.validation, run.Validation)
	}
	if run.Approval != nil {
		marshal(&blobs.approval, run.Approval)
	}
	if run.Payment != nil {
		marshal(&blobs.payment, run.Payment)
	}
	if run.WPS != nil {
		marshal(&blobs.wps, run.WPS)
	}
	return blobs, err
}

func scanRun(rows pgx.Rows) (*PayrollRun, error) {
	var run PayrollRun
	var configuration, employeeList, summary, statistics, processingLog []byte
	var validation, approval, payment, wps []byte
	err := rows.Scan(&run.ID, &run.FirmID, &run.LawyerID, &run.Name,
		&run.Period.Month, &run.Period.Year, &run.Period.PeriodStart, &run.Period.PeriodEnd,
		&run.Period.PaymentDate, &run.Status, &run.Notes,
		&configuration, &employeeList, &summary, &statistics,
		&validation, &approval, &payment, &wps, &processingLog,
		&run.Version, &run.CreatedBy, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(configuration, &run.Configuration); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(employeeList, &run.EmployeeList); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(summary, &run.Summary); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(statistics, &run.Statistics); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(processingLog, &run.ProcessingLog); err != nil {
		return nil, err
	}
	if len(validation) > 0 {
		run.Validation = &ValidationResult{}
		if err := json.Unmarshal(validation, run.Validation); err != nil {
			return nil, err
		}
	}
	if len(approval) > 0 {
		run.Approval = &ApprovalWorkflow{}
		if err := json.Unmarshal(approval, run.Approval); err != nil {
			return nil, err
		}
	}
	if len(payment) > 0 {
		run.Payment = &PaymentProcessing{}
		if err := json.Unmarshal(payment, run.Payment); err != nil {
			return nil, err
		}
	}
	if len(wps) > 0 {
		run.WPS = &WPSFile{}
		if err := json.Unmarshal(wps, run.WPS); err != nil {
			return nil, err
		}
	}
	return &run, nil
}

func scanSlip(rows pgx.Rows) (SalarySlip, error) {
	var slip SalarySlip
	err := rows.Scan(&slip.ID, &slip.RunID, &slip.EmployeeID, &slip.EmployeeName,
		&slip.FirmID, &slip.LawyerID, &slip.SlipNumber,
		&slip.PeriodStart, &slip.PeriodEnd, &slip.BasicSalary, &slip.Allowances, &slip.GrossPay,
		&slip.GOSIEmployee, &slip.GOSIEmployer, &slip.OtherDeductions, &slip.TotalDeductions,
		&slip.NetPay, &slip.PaymentMethod, &slip.IBAN, &slip.Status, &slip.CreatedAt)
	return slip, err
}
