package ledger

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

// Chart-of-accounts codes the payroll engine posts against.
const (
	AccountSalaryExpense    = "6100"
	AccountEmployeePayable  = "2100"
	AccountGOSIPayable      = "2200"
	AccountDeductionPayable = "2300"
)

// Execer is the slice of pgx both pools and transactions satisfy, so postings
// can join the caller's transaction.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Posting is one salary slip's worth of general-ledger rows. The engine maps
// a slip into a Posting so this package stays ignorant of payroll types.
type Posting struct {
	SlipID          string
	RunID           string
	FirmID          any
	LawyerID        any
	Memo            string
	Gross           float64
	EmployerGOSI    float64
	EmployeeGOSI    float64
	OtherDeductions float64
	Net             float64
}

type Service struct{}

func New() *Service {
	return &Service{}
}

// PostToGeneralLedger writes the balanced double-entry rows for one slip:
// the employer's full cost is debited to salary expense, offset by what is
// owed to the employee, to GOSI, and to other deduction payees.
// The UNIQUE(slip_id, account) constraint plus ON CONFLICT DO NOTHING makes
// posting idempotent per slip, so a retried payment run cannot double-post.
func (s *Service) PostToGeneralLedger(ctx context.Context, db Execer, posting Posting) error {
	rows := []struct {
		account string
		debit   float64
		credit  float64
	}{
		{AccountSalaryExpense, posting.Gross + posting.EmployerGOSI, 0},
		{AccountEmployeePayable, 0, posting.Net},
		{AccountGOSIPayable, 0, posting.EmployeeGOSI + posting.EmployerGOSI},
		{AccountDeductionPayable, 0, posting.OtherDeductions},
	}
	for _, row := range rows {
		if row.debit == 0 && row.credit == 0 {
			continue
		}
		if _, err := db.Exec(ctx, `
      INSERT INTO gl_entries (slip_id, run_id, firm_id, lawyer_id, account, debit, credit, memo)
      VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
      ON CONFLICT (slip_id, account) DO NOTHING
    `, posting.SlipID, posting.RunID, posting.FirmID, posting.LawyerID,
			row.account, row.debit, row.credit, posting.Memo); err != nil {
			return err
		}
	}
	return nil
}
