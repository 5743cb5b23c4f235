package payroll

import (
	"fmt"
	"math"
	"time"

	"firmpay/internal/domain/employees"
)

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// roundGOSI rounds a contribution to the nearest whole riyal, which is how
// GOSI expects amounts to be reported.
func roundGOSI(v float64) float64 {
	return math.Round(v)
}

// GOSIShares returns the employee and employer contributions for one basic
// salary. Non-Saudi employees carry no employee share.
func GOSIShares(basicSalary float64, isSaudi bool) (employee, employer float64) {
	if isSaudi {
		return roundGOSI(basicSalary * GOSIEmployeeSaudiRate), roundGOSI(basicSalary * GOSIEmployerSaudiRate)
	}
	return 0, roundGOSI(basicSalary * GOSIEmployerNonSaudiRate)
}

func validAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// ComputeEntry builds the pay line for one employee from directory data.
// Loan, advance and absence deductions start at zero; they are entered
// manually and survive recalculation.
func ComputeEntry(emp employees.Employee, cfg Configuration) (EmployeeEntry, error) {
	basic := emp.Compensation.BasicSalary
	if !validAmount(basic) || basic > MaxBasicSalary {
		return EmployeeEntry{}, fmt.Errorf("%w: basic salary %v for employee %s", ErrInvalidAmount, basic, emp.ID)
	}
	var allowances float64
	for _, a := range emp.Compensation.Allowances {
		if !validAmount(a.Amount) {
			return EmployeeEntry{}, fmt.Errorf("%w: allowance %q %v for employee %s", ErrInvalidAmount, a.Name, a.Amount, emp.ID)
		}
		allowances += a.Amount
	}
	allowances = round2(allowances)

	entry := EmployeeEntry{
		EmployeeID:    emp.ID,
		Name:          emp.FullName(),
		IsSaudi:       emp.PersonalInfo.IsSaudi,
		Gender:        emp.PersonalInfo.Gender,
		BasicSalary:   round2(basic),
		Allowances:    allowances,
		PaymentMethod: emp.Compensation.PaymentMethod,
		IBAN:          emp.Compensation.BankDetails.IBAN,
		BankName:      emp.Compensation.BankDetails.BankName,
		PaymentStatus: PaymentStatusPending,
	}
	if cfg.CalculateGOSI {
		entry.GOSIEmployee, entry.GOSIEmployer = GOSIShares(entry.BasicSalary, entry.IsSaudi)
	}
	finishEntry(&entry)
	return entry, nil
}

// finishEntry derives gross, total deductions and net from the entry's
// components. Called after any component changes.
func finishEntry(entry *EmployeeEntry) {
	entry.GrossPay = round2(entry.BasicSalary + entry.Allowances)
	entry.TotalDeductions = round2(entry.GOSIEmployee + entry.ManualDeductions())
	entry.NetPay = round2(entry.GrossPay - entry.TotalDeductions)
}

// Summarize recomputes the financial summary from scratch. Roster mutations
// use addToSummary and subtractFromSummary instead so that a single change
// does not require walking the whole list.
func Summarize(entries []EmployeeEntry) FinancialSummary {
	var s FinancialSummary
	for i := range entries {
		addToSummary(&s, entries[i])
	}
	return s
}

func addToSummary(s *FinancialSummary, e EmployeeEntry) {
	s.TotalBasicSalary = round2(s.TotalBasicSalary + e.BasicSalary)
	s.TotalAllowances = round2(s.TotalAllowances + e.Allowances)
	s.TotalGrossPay = round2(s.TotalGrossPay + e.GrossPay)
	s.TotalGOSIEmployee = round2(s.TotalGOSIEmployee + e.GOSIEmployee)
	s.TotalGOSIEmployer = round2(s.TotalGOSIEmployer + e.GOSIEmployer)
	s.TotalDeductions = round2(s.TotalDeductions + e.TotalDeductions)
	s.TotalNetPay = round2(s.TotalNetPay + e.NetPay)
	s.EmployeeCount++
}

func subtractFromSummary(s *FinancialSummary, e EmployeeEntry) {
	s.TotalBasicSalary = round2(s.TotalBasicSalary - e.BasicSalary)
	s.TotalAllowances = round2(s.TotalAllowances - e.Allowances)
	s.TotalGrossPay = round2(s.TotalGrossPay - e.GrossPay)
	s.TotalGOSIEmployee = round2(s.TotalGOSIEmployee - e.GOSIEmployee)
	s.TotalGOSIEmployer = round2(s.TotalGOSIEmployer - e.GOSIEmployer)
	s.TotalDeductions = round2(s.TotalDeductions - e.TotalDeductions)
	s.TotalNetPay = round2(s.TotalNetPay - e.NetPay)
	s.EmployeeCount--
}

func ComputeStatistics(entries []EmployeeEntry, elapsed time.Duration) Statistics {
	stats := Statistics{DurationMs: elapsed.Milliseconds()}
	if len(entries) == 0 {
		return stats
	}
	var total float64
	stats.MinNetPay = entries[0].NetPay
	stats.MaxNetPay = entries[0].NetPay
	for _, e := range entries {
		if e.IsSaudi {
			stats.SaudiCount++
		} else {
			stats.NonSaudiCount++
		}
		switch e.Gender {
		case "male":
			stats.MaleCount++
		case "female":
			stats.FemaleCount++
		}
		if e.NetPay < stats.MinNetPay {
			stats.MinNetPay = e.NetPay
		}
		if e.NetPay > stats.MaxNetPay {
			stats.MaxNetPay = e.NetPay
		}
		total += e.NetPay
	}
	stats.AverageNetPay = round2(total / float64(len(entries)))
	return stats
}
