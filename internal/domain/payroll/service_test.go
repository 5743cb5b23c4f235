package payroll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"firmpay/internal/domain/employees"
	"firmpay/internal/domain/ledger"
	"firmpay/internal/domain/tenant"
)

// fakeStore keeps runs in memory with the same version semantics as the
// SQL store, including the all-or-nothing payment transaction.
type fakeStore struct {
	runs    map[string]*PayrollRun
	slips   map[string]*SalarySlip
	glExecs []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		runs:  map[string]*PayrollRun{},
		slips: map[string]*SalarySlip{},
	}
}

func cloneRun(run *PayrollRun) *PayrollRun {
	data, err := json.Marshal(run)
	if err != nil {
		panic(err)
	}
	var out PayrollRun
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return &out
}

func (f *fakeStore) CreateRun(_ context.Context, run *PayrollRun) error {
	run.ID = uuid.NewString()
	run.Version = 1
	run.CreatedAt = time.Now().UTC()
	run.UpdatedAt = run.CreatedAt
	f.runs[run.ID] = cloneRun(run)
	return nil
}

func (f *fakeStore) GetRun(_ context.Context, scope tenant.Scope, runID string) (*PayrollRun, error) {
	run, ok := f.runs[runID]
	if !ok || !scope.Owns(run.FirmID, run.LawyerID) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return cloneRun(run), nil
}

func (f *fakeStore) ListRuns(_ context.Context, scope tenant.Scope, _ ListFilter) ([]PayrollRun, error) {
	var out []PayrollRun
	for _, run := range f.runs {
		if scope.Owns(run.FirmID, run.LawyerID) {
			out = append(out, *cloneRun(run))
		}
	}
	return out, nil
}

func (f *fakeStore) CountRuns(_ context.Context, scope tenant.Scope, _ ListFilter) (int, error) {
	runs, _ := f.ListRuns(context.Background(), scope, ListFilter{})
	return len(runs), nil
}

func (f *fakeStore) SaveRun(_ context.Context, run *PayrollRun) error {
	stored, ok := f.runs[run.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	if stored.Version != run.Version {
		return fmt.Errorf("%w: run %s", ErrConcurrencyConflict, run.ID)
	}
	run.Version++
	run.UpdatedAt = time.Now().UTC()
	f.runs[run.ID] = cloneRun(run)
	return nil
}

func (f *fakeStore) DeleteRun(_ context.Context, scope tenant.Scope, runID string, expectedVersion int) error {
	run, ok := f.runs[runID]
	if !ok || !scope.Owns(run.FirmID, run.LawyerID) {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if run.Version != expectedVersion {
		return fmt.Errorf("%w: run %s", ErrConcurrencyConflict, runID)
	}
	delete(f.runs, runID)
	return nil
}

type fakeExec struct {
	statements *[]string
}

func (f fakeExec) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	*f.statements = append(*f.statements, strings.TrimSpace(sql))
	return pgconn.CommandTag{}, nil
}

func (f *fakeStore) SavePaymentOutcome(ctx context.Context, run *PayrollRun, slips []SalarySlip, poster LedgerPoster) error {
	stored, ok := f.runs[run.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	if stored.Version != run.Version {
		return fmt.Errorf("%w: run %s", ErrConcurrencyConflict, run.ID)
	}

	var staged []string
	stagedSlips := make([]SalarySlip, len(slips))
	copy(stagedSlips, slips)
	for i := range stagedSlips {
		slip := &stagedSlips[i]
		slip.ID = uuid.NewString()
		slip.CreatedAt = time.Now().UTC()
		posting := ledger.Posting{
			SlipID:       slip.ID,
			RunID:        slip.RunID,
			Gross:        slip.GrossPay,
			EmployerGOSI: slip.GOSIEmployer,
			EmployeeGOSI: slip.GOSIEmployee,
			Net:          slip.NetPay,
		}
		if err := poster.PostToGeneralLedger(ctx, fakeExec{statements: &staged}, posting); err != nil {
			return fmt.Errorf("%w: slip %s: %v", ErrLedgerPosting, slip.SlipNumber, err)
		}
	}

	for i := range stagedSlips {
		slip := stagedSlips[i]
		f.slips[slip.ID] = &slip
	}
	f.glExecs = append(f.glExecs, staged...)
	run.Version++
	run.UpdatedAt = time.Now().UTC()
	f.runs[run.ID] = cloneRun(run)
	copy(slips, stagedSlips)
	return nil
}

func (f *fakeStore) ListSlips(_ context.Context, scope tenant.Scope, runID string) ([]SalarySlip, error) {
	var out []SalarySlip
	for _, slip := range f.slips {
		if slip.RunID == runID && scope.Owns(slip.FirmID, slip.LawyerID) {
			out = append(out, *slip)
		}
	}
	return out, nil
}

func (f *fakeStore) GetSlip(_ context.Context, scope tenant.Scope, slipID string) (*SalarySlip, error) {
	slip, ok := f.slips[slipID]
	if !ok || !scope.Owns(slip.FirmID, slip.LawyerID) {
		return nil, fmt.Errorf("salary slip %s: %w", slipID, ErrRunNotFound)
	}
	out := *slip
	return &out, nil
}

// mutate edits the stored run in place without a version bump, standing in
// for edits made by another actor or module.
func (f *fakeStore) mutate(runID string, fn func(run *PayrollRun)) {
	fn(f.runs[runID])
}

type fakeDirectory struct {
	employees map[string]employees.Employee
	delay     time.Duration
}

func (d *fakeDirectory) FindEmployees(ctx context.Context, _ tenant.Scope, filter employees.Filter) ([]employees.Employee, error) {
	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	excluded := map[string]bool{}
	for _, id := range filter.ExcludeIDs {
		excluded[id] = true
	}
	var out []employees.Employee
	for _, emp := range d.employees {
		if excluded[emp.ID] {
			continue
		}
		out = append(out, emp)
	}
	return out, nil
}

func (d *fakeDirectory) FindEmployee(_ context.Context, _ tenant.Scope, employeeID string) (employees.Employee, error) {
	emp, ok := d.employees[employeeID]
	if !ok {
		return employees.Employee{}, fmt.Errorf("%w: %s", employees.ErrNotFound, employeeID)
	}
	return emp, nil
}

// failingPoster fails on the nth posting to exercise rollback behavior.
type failingPoster struct {
	failOn int
	calls  int
}

func (p *failingPoster) PostToGeneralLedger(_ context.Context, _ ledger.Execer, _ ledger.Posting) error {
	p.calls++
	if p.calls == p.failOn {
		return errors.New("gl rejected entry")
	}
	return nil
}

type testEnv struct {
	svc   *Service
	store *fakeStore
	dir   *fakeDirectory
	scope tenant.Scope
}

func newTestEnv(t *testing.T, poster LedgerPoster) *testEnv {
	t.Helper()
	store := newFakeStore()
	dir := &fakeDirectory{employees: map[string]employees.Employee{}}
	for _, emp := range []employees.Employee{
		saudiEmployee("s1", 5000),
		saudiEmployee("s2", 5000),
		nonSaudiEmployee("n1", 8000),
	} {
		emp.FirmID = "firm-1"
		dir.employees[emp.ID] = emp
	}
	if poster == nil {
		poster = ledger.New()
	}
	return &testEnv{
		svc:   NewService(store, dir, poster, nil, t.TempDir(), time.Minute),
		store: store,
		dir:   dir,
		scope: tenant.FirmScope("firm-1"),
	}
}

func (e *testEnv) createDraft(t *testing.T) *PayrollRun {
	t.Helper()
	run, err := e.svc.CreateRun(context.Background(), e.scope, "admin", CreateRunInput{
		Name: "August 2026",
		Period: PayPeriod{
			Month:       8,
			Year:        2026,
			PeriodStart: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			PeriodEnd:   time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
			PaymentDate: time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC),
		},
		Configuration: Configuration{CalculateGOSI: true},
	})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	return run
}

func (e *testEnv) calculated(t *testing.T) *PayrollRun {
	t.Helper()
	run := e.createDraft(t)
	run, err := e.svc.Calculate(context.Background(), e.scope, "admin", run.ID, run.Version)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	return run
}

func (e *testEnv) approved(t *testing.T) *PayrollRun {
	t.Helper()
	run := e.calculated(t)
	run, err := e.svc.Approve(context.Background(), e.scope, "manager", run.ID, "", run.Version)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	return run
}

func TestCreateRunRequiresSingleTenant(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.svc.CreateRun(context.Background(), tenant.Scope{FirmID: "f", LawyerID: "l"}, "admin", CreateRunInput{
		Name:   "bad scope",
		Period: PayPeriod{Month: 8, Year: 2026},
	})
	if !errors.Is(err, tenant.ErrInvalidScope) {
		t.Fatalf("expected ErrInvalidScope, got %v", err)
	}
}

func TestCalculateThreeEmployeeRun(t *testing.T) {
	env := newTestEnv(t, nil)
	run := env.calculated(t)

	if run.Status != StatusCalculated {
		t.Fatalf("expected calculated, got %s", run.Status)
	}
	if run.Summary.TotalBasicSalary != 18000 {
		t.Fatalf("expected total basic 18000, got %v", run.Summary.TotalBasicSalary)
	}
	if run.Summary.TotalGOSIEmployee != 976 {
		t.Fatalf("expected employee GOSI 976, got %v", run.Summary.TotalGOSIEmployee)
	}
	if run.Summary.TotalGOSIEmployer != 1436 {
		t.Fatalf("expected employer GOSI 1436, got %v", run.Summary.TotalGOSIEmployer)
	}
	if run.Validation == nil || !run.Validation.CanProceed {
		t.Fatalf("expected passing validation, got %+v", run.Validation)
	}
	assertSummaryInvariant(t, run.EmployeeList, run.Summary)
}

func TestCalculateIsIdempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	first := env.calculated(t)
	second, err := env.svc.Calculate(context.Background(), env.scope, "admin", first.ID, first.Version)
	if err != nil {
		t.Fatalf("second Calculate: %v", err)
	}
	if first.Summary != second.Summary {
		t.Fatalf("summary changed on recalculation: %+v vs %+v", first.Summary, second.Summary)
	}
	if len(first.EmployeeList) != len(second.EmployeeList) {
		t.Fatalf("employee list length changed: %d vs %d", len(first.EmployeeList), len(second.EmployeeList))
	}
}

func TestCalculateRejectedAfterApproval(t *testing.T) {
	env := newTestEnv(t, nil)
	run := env.approved(t)
	_, err := env.svc.Calculate(context.Background(), env.scope, "admin", run.ID, run.Version)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCalculateTimeout(t *testing.T) {
	env := newTestEnv(t, nil)
	env.dir.delay = 200 * time.Millisecond
	env.svc.calcTimeout = 10 * time.Millisecond

	run := env.createDraft(t)
	_, err := env.svc.Calculate(context.Background(), env.scope, "admin", run.ID, run.Version)
	if !errors.Is(err, ErrCalculationTimeout) {
		t.Fatalf("expected ErrCalculationTimeout, got %v", err)
	}
	stored, err := env.svc.GetRun(context.Background(), env.scope, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if stored.Status != StatusDraft {
		t.Fatalf("expected run back in draft after timeout, got %s", stored.Status)
	}
	last := stored.ProcessingLog[len(stored.ProcessingLog)-1]
	if last.Action != ActionCalculate || last.Status != LogStatusFailed {
		t.Fatalf("expected failed calculate log entry, got %+v", last)
	}
}

func TestApproveBlockedByCriticalValidationIssues(t *testing.T) {
	env := newTestEnv(t, nil)
	run := env.calculated(t)

	stored := env.store.runs[run.ID]
	stored.EmployeeList[0].AbsenceDeduction = stored.EmployeeList[0].GrossPay + 100
	stored.EmployeeList[0].NetPay = -100

	_, err := env.svc.Approve(context.Background(), env.scope, "manager", run.ID, "", run.Version)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected rejection, got %v", err)
	}

	stored, err = env.svc.GetRun(context.Background(), env.scope, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if stored.Status != StatusCalculated {
		t.Fatalf("expected run to stay calculated, got %s", stored.Status)
	}
	if stored.Approval != nil {
		t.Fatal("expected no approval recorded")
	}
	last := stored.ProcessingLog[len(stored.ProcessingLog)-1]
	if last.Action != ActionApprove || last.Status != LogStatusRejected {
		t.Fatalf("expected rejected approve log entry, got %+v", last)
	}
}

func TestApproveAllowedWithMissingIBAN(t *testing.T) {
	env := newTestEnv(t, nil)
	emp := env.dir.employees["s1"]
	emp.Compensation.BankDetails.IBAN = ""
	env.dir.employees["s1"] = emp

	run := env.calculated(t)
	approved, err := env.svc.Approve(context.Background(), env.scope, "manager", run.ID, "", run.Version)
	if err != nil {
		t.Fatalf("Approve with error-severity issues only: %v", err)
	}
	if approved.Status != StatusApproved {
		t.Fatalf("expected approved, got %s", approved.Status)
	}
	if approved.Validation == nil || approved.Validation.ErrorCount != 1 {
		t.Fatalf("expected the missing IBAN recorded as an error issue, got %+v", approved.Validation)
	}
	if approved.Validation.HasBlockingErrors {
		t.Fatal("missing IBAN must not block approval")
	}
}

func TestProcessPaymentsHappyPath(t *testing.T) {
	env := newTestEnv(t, nil)
	run := env.approved(t)

	paid, slips, err := env.svc.ProcessPayments(context.Background(), env.scope, "accountant", run.ID, run.Version)
	if err != nil {
		t.Fatalf("ProcessPayments: %v", err)
	}
	if paid.Status != StatusPaid {
		t.Fatalf("expected paid, got %s", paid.Status)
	}
	if len(slips) != 3 {
		t.Fatalf("expected 3 slips, got %d", len(slips))
	}
	if paid.Payment == nil || paid.Payment.PaidEmployees != 3 {
		t.Fatalf("expected payment block for 3 employees, got %+v", paid.Payment)
	}
	if math.Abs(paid.Payment.TotalPaid-paid.Summary.TotalNetPay) > 1e-6 {
		t.Fatalf("total paid %v does not match summary net %v", paid.Payment.TotalPaid, paid.Summary.TotalNetPay)
	}
	stored, _ := env.store.ListSlips(context.Background(), env.scope, run.ID)
	if len(stored) != 3 {
		t.Fatalf("expected 3 persisted slips, got %d", len(stored))
	}
	if len(env.store.glExecs) == 0 {
		t.Fatal("expected ledger rows to be posted")
	}
}

func TestProcessPaymentsAtomicUnderLedgerFailure(t *testing.T) {
	poster := &failingPoster{failOn: 2}
	env := newTestEnv(t, poster)
	run := env.approved(t)

	_, _, err := env.svc.ProcessPayments(context.Background(), env.scope, "accountant", run.ID, run.Version)
	if !errors.Is(err, ErrLedgerPosting) {
		t.Fatalf("expected ErrLedgerPosting, got %v", err)
	}

	stored, getErr := env.svc.GetRun(context.Background(), env.scope, run.ID)
	if getErr != nil {
		t.Fatalf("GetRun: %v", getErr)
	}
	if stored.Status != StatusApproved {
		t.Fatalf("expected run to stay approved, got %s", stored.Status)
	}
	if stored.Payment != nil {
		t.Fatal("expected no payment block after rollback")
	}
	slips, _ := env.store.ListSlips(context.Background(), env.scope, run.ID)
	if len(slips) != 0 {
		t.Fatalf("expected no persisted slips, got %d", len(slips))
	}
	if len(env.store.glExecs) != 0 {
		t.Fatalf("expected no ledger rows, got %d", len(env.store.glExecs))
	}
}

func TestProcessPaymentsSkipsHeldEmployees(t *testing.T) {
	env := newTestEnv(t, nil)
	run := env.calculated(t)
	run, err := env.svc.HoldEmployee(context.Background(), env.scope, "admin", run.ID, "s2", "dispute", run.Version)
	if err != nil {
		t.Fatalf("HoldEmployee: %v", err)
	}
	run, err = env.svc.Approve(context.Background(), env.scope, "manager", run.ID, "", run.Version)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	paid, slips, err := env.svc.ProcessPayments(context.Background(), env.scope, "accountant", run.ID, run.Version)
	if err != nil {
		t.Fatalf("ProcessPayments: %v", err)
	}
	if len(slips) != 2 {
		t.Fatalf("expected 2 slips with one employee held, got %d", len(slips))
	}
	_, held := paid.Entry("s2")
	if held == nil || held.PaymentStatus != PaymentStatusOnHold {
		t.Fatalf("expected held employee to remain on hold, got %+v", held)
	}
}

func TestExcludeIncludeRoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)
	run := env.calculated(t)
	before := run.Summary

	run, err := env.svc.ExcludeEmployee(context.Background(), env.scope, "admin", run.ID, "s2", "unpaid leave", run.Version)
	if err != nil {
		t.Fatalf("ExcludeEmployee: %v", err)
	}
	if run.Summary.EmployeeCount != 2 {
		t.Fatalf("expected 2 employees after exclusion, got %d", run.Summary.EmployeeCount)
	}
	if run.Summary.TotalBasicSalary != 13000 {
		t.Fatalf("expected total basic 13000 after exclusion, got %v", run.Summary.TotalBasicSalary)
	}
	if !run.Configuration.IsExcluded("s2") {
		t.Fatal("expected s2 in the exclusion list")
	}
	assertSummaryInvariant(t, run.EmployeeList, run.Summary)

	run, err = env.svc.IncludeEmployee(context.Background(), env.scope, "admin", run.ID, "s2", run.Version)
	if err != nil {
		t.Fatalf("IncludeEmployee: %v", err)
	}
	if run.Summary != before {
		t.Fatalf("expected summary restored after round trip: %+v vs %+v", run.Summary, before)
	}
	if run.Configuration.IsExcluded("s2") {
		t.Fatal("expected s2 removed from the exclusion list")
	}
	assertSummaryInvariant(t, run.EmployeeList, run.Summary)
}

func TestExcludeUnknownEmployee(t *testing.T) {
	env := newTestEnv(t, nil)
	run := env.calculated(t)
	_, err := env.svc.ExcludeEmployee(context.Background(), env.scope, "admin", run.ID, "ghost", "", run.Version)
	if !errors.Is(err, ErrEmployeeNotFound) {
		t.Fatalf("expected ErrEmployeeNotFound, got %v", err)
	}
}

func TestRecalculatePreservesManualDeductions(t *testing.T) {
	env := newTestEnv(t, nil)
	run := env.calculated(t)

	env.store.mutate(run.ID, func(r *PayrollRun) {
		_, entry := r.Entry("s1")
		entry.LoanDeduction = 400
		entry.AdvanceDeduction = 100
		finishEntry(entry)
		r.Summary = Summarize(r.EmployeeList)
	})

	emp := env.dir.employees["s1"]
	emp.Compensation.BasicSalary = 6000
	env.dir.employees["s1"] = emp

	run, err := env.svc.RecalculateEmployee(context.Background(), env.scope, "admin", run.ID, "s1", run.Version)
	if err != nil {
		t.Fatalf("RecalculateEmployee: %v", err)
	}
	_, entry := run.Entry("s1")
	if entry.BasicSalary != 6000 {
		t.Fatalf("expected refreshed basic 6000, got %v", entry.BasicSalary)
	}
	if entry.LoanDeduction != 400 || entry.AdvanceDeduction != 100 {
		t.Fatalf("expected manual deductions preserved, got loan %v advance %v",
			entry.LoanDeduction, entry.AdvanceDeduction)
	}
	wantGOSI, _ := GOSIShares(6000, true)
	if entry.GOSIEmployee != wantGOSI {
		t.Fatalf("expected recomputed GOSI %v, got %v", wantGOSI, entry.GOSIEmployee)
	}
	assertSummaryInvariant(t, run.EmployeeList, run.Summary)
}

func TestHoldDoesNotChangeTotals(t *testing.T) {
	env := newTestEnv(t, nil)
	run := env.calculated(t)
	before := run.Summary

	run, err := env.svc.HoldEmployee(context.Background(), env.scope, "admin", run.ID, "n1", "bank issue", run.Version)
	if err != nil {
		t.Fatalf("HoldEmployee: %v", err)
	}
	if run.Summary != before {
		t.Fatalf("hold changed the summary: %+v vs %+v", run.Summary, before)
	}
	_, entry := run.Entry("n1")
	if !entry.OnHold || entry.PaymentStatus != PaymentStatusOnHold {
		t.Fatalf("expected entry on hold, got %+v", entry)
	}

	run, err = env.svc.UnholdEmployee(context.Background(), env.scope, "admin", run.ID, "n1", run.Version)
	if err != nil {
		t.Fatalf("UnholdEmployee: %v", err)
	}
	_, entry = run.Entry("n1")
	if entry.OnHold || entry.PaymentStatus != PaymentStatusPending {
		t.Fatalf("expected entry released, got %+v", entry)
	}
}

func TestStaleVersionRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	run := env.calculated(t)

	if _, err := env.svc.HoldEmployee(context.Background(), env.scope, "admin", run.ID, "s1", "", run.Version); err != nil {
		t.Fatalf("HoldEmployee: %v", err)
	}
	// run.Version is now stale.
	_, err := env.svc.Approve(context.Background(), env.scope, "manager", run.ID, "", run.Version)
	if !errors.Is(err, ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
	}
}

func TestCancelPaidRunRejectedButLogged(t *testing.T) {
	env := newTestEnv(t, nil)
	run := env.approved(t)
	run, _, err := env.svc.ProcessPayments(context.Background(), env.scope, "accountant", run.ID, run.Version)
	if err != nil {
		t.Fatalf("ProcessPayments: %v", err)
	}

	_, err = env.svc.Cancel(context.Background(), env.scope, "admin", run.ID, "mistake", run.Version)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	stored, _ := env.svc.GetRun(context.Background(), env.scope, run.ID)
	if stored.Status != StatusPaid {
		t.Fatalf("expected run to stay paid, got %s", stored.Status)
	}
	last := stored.ProcessingLog[len(stored.ProcessingLog)-1]
	if last.Action != ActionCancel || last.Status != LogStatusRejected {
		t.Fatalf("expected rejected cancel log entry, got %+v", last)
	}
}

func TestCancelStrandedCalculatingRun(t *testing.T) {
	env := newTestEnv(t, nil)
	run := env.createDraft(t)

	// A crash between the calculating save and the calculated save leaves
	// the run persisted in this state.
	env.store.runs[run.ID].Status = StatusCalculating
	env.store.runs[run.ID].Version++

	cancelled, err := env.svc.Cancel(context.Background(), env.scope, "admin", run.ID, "stuck after restart", 0)
	if err != nil {
		t.Fatalf("Cancel from calculating: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
}

func TestTenantIsolation(t *testing.T) {
	env := newTestEnv(t, nil)
	run := env.createDraft(t)

	_, err := env.svc.GetRun(context.Background(), tenant.FirmScope("other-firm"), run.ID)
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected not found for foreign tenant, got %v", err)
	}
	_, err = env.svc.GetRun(context.Background(), tenant.LawyerScope("lawyer-9"), run.ID)
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected not found for lawyer scope, got %v", err)
	}
}

func TestGenerateWPS(t *testing.T) {
	env := newTestEnv(t, nil)
	run := env.approved(t)

	run, err := env.svc.GenerateWPS(context.Background(), env.scope, "admin", run.ID, run.Version)
	if err != nil {
		t.Fatalf("GenerateWPS: %v", err)
	}
	if run.WPS == nil {
		t.Fatal("expected WPS metadata")
	}
	if run.WPS.RecordCount != 3 {
		t.Fatalf("expected 3 WPS records, got %d", run.WPS.RecordCount)
	}
	if math.Abs(run.WPS.TotalAmount-run.Summary.TotalNetPay) > 1e-6 {
		t.Fatalf("WPS total %v does not match summary net %v", run.WPS.TotalAmount, run.Summary.TotalNetPay)
	}
	if !strings.HasSuffix(run.WPS.FileName, ".sif") {
		t.Fatalf("unexpected WPS file name %q", run.WPS.FileName)
	}
}

func TestGenerateWPSRequiresApprovedRun(t *testing.T) {
	env := newTestEnv(t, nil)
	run := env.calculated(t)
	_, err := env.svc.GenerateWPS(context.Background(), env.scope, "admin", run.ID, run.Version)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestExportReportJSON(t *testing.T) {
	env := newTestEnv(t, nil)
	run := env.calculated(t)

	file, err := env.svc.ExportReport(context.Background(), env.scope, run.ID, ExportFormatJSON)
	if err != nil {
		t.Fatalf("ExportReport: %v", err)
	}
	var decoded PayrollRun
	if err := json.Unmarshal(file.Data, &decoded); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if decoded.Summary.TotalBasicSalary != 18000 {
		t.Fatalf("expected exported total basic 18000, got %v", decoded.Summary.TotalBasicSalary)
	}
}

func TestExportReportCSV(t *testing.T) {
	env := newTestEnv(t, nil)
	run := env.calculated(t)

	file, err := env.svc.ExportReport(context.Background(), env.scope, run.ID, ExportFormatCSV)
	if err != nil {
		t.Fatalf("ExportReport: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(file.Data)), "\n")
	// header + 3 employees + totals row
	if len(lines) != 5 {
		t.Fatalf("expected 5 CSV lines, got %d", len(lines))
	}
	if !strings.Contains(lines[len(lines)-1], "TOTAL") {
		t.Fatalf("expected totals row, got %q", lines[len(lines)-1])
	}
}

func TestExportReportUnknownFormat(t *testing.T) {
	env := newTestEnv(t, nil)
	run := env.calculated(t)
	_, err := env.svc.ExportReport(context.Background(), env.scope, run.ID, "xml")
	if !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestUpdateRunConfigurationDraftOnly(t *testing.T) {
	env := newTestEnv(t, nil)
	run := env.calculated(t)
	cfg := run.Configuration
	cfg.CalculateGOSI = false
	_, err := env.svc.UpdateRun(context.Background(), env.scope, "admin", run.ID, UpdateRunInput{
		Configuration: &cfg,
		Version:       run.Version,
	})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for config change on calculated run, got %v", err)
	}

	name := "renamed"
	updated, err := env.svc.UpdateRun(context.Background(), env.scope, "admin", run.ID, UpdateRunInput{
		Name:    &name,
		Version: run.Version,
	})
	if err != nil {
		t.Fatalf("UpdateRun: %v", err)
	}
	if updated.Name != "renamed" {
		t.Fatalf("expected renamed run, got %q", updated.Name)
	}
}

func TestDeleteRunDraftOnly(t *testing.T) {
	env := newTestEnv(t, nil)
	run := env.calculated(t)
	err := env.svc.DeleteRun(context.Background(), env.scope, run.ID, run.Version)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	draft := env.createDraft(t)
	if err := env.svc.DeleteRun(context.Background(), env.scope, draft.ID, draft.Version); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
	if _, err := env.svc.GetRun(context.Background(), env.scope, draft.ID); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected deleted run to be gone, got %v", err)
	}
}
