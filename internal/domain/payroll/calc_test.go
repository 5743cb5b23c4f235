package payroll

import (
	"math"
	"testing"

	"firmpay/internal/domain/employees"
)

func saudiEmployee(id string, basic float64) employees.Employee {
	return employees.Employee{
		ID: id,
		PersonalInfo: employees.PersonalInfo{
			FirstName: "Ahmed", LastName: "Saleh", IsSaudi: true, Gender: "male",
		},
		Compensation: employees.Compensation{
			BasicSalary:   basic,
			PaymentMethod: "bank_transfer",
			BankDetails:   employees.BankDetails{IBAN: "SA0380000000608010167519"},
		},
		Employment: employees.Employment{Status: "active", Type: "full_time"},
	}
}

func nonSaudiEmployee(id string, basic float64) employees.Employee {
	e := saudiEmployee(id, basic)
	e.PersonalInfo.IsSaudi = false
	e.PersonalInfo.FirstName = "John"
	e.PersonalInfo.LastName = "Smith"
	return e
}

func TestGOSISharesSaudi(t *testing.T) {
	employee, employer := GOSIShares(10000, true)
	if employee != 975 {
		t.Fatalf("expected employee share 975, got %v", employee)
	}
	if employer != 1275 {
		t.Fatalf("expected employer share 1275, got %v", employer)
	}
}

func TestGOSISharesNonSaudi(t *testing.T) {
	employee, employer := GOSIShares(10000, false)
	if employee != 0 {
		t.Fatalf("expected no employee share for non-Saudi, got %v", employee)
	}
	if employer != 200 {
		t.Fatalf("expected employer share 200, got %v", employer)
	}
}

func TestGOSISharesRoundToWholeRiyal(t *testing.T) {
	employee, employer := GOSIShares(5000, true)
	if employee != 488 {
		t.Fatalf("expected employee share 488 (487.5 rounded), got %v", employee)
	}
	if employer != 638 {
		t.Fatalf("expected employer share 638 (637.5 rounded), got %v", employer)
	}
}

func TestComputeEntryDerivesNetPay(t *testing.T) {
	emp := saudiEmployee("e1", 10000)
	emp.Compensation.Allowances = []employees.Allowance{
		{Name: "housing", Amount: 2000},
		{Name: "transport", Amount: 500},
	}
	entry, err := ComputeEntry(emp, Configuration{CalculateGOSI: true})
	if err != nil {
		t.Fatalf("ComputeEntry: %v", err)
	}
	if entry.GrossPay != 12500 {
		t.Fatalf("expected gross 12500, got %v", entry.GrossPay)
	}
	if entry.GOSIEmployee != 975 {
		t.Fatalf("expected GOSI employee 975, got %v", entry.GOSIEmployee)
	}
	if entry.NetPay != 11525 {
		t.Fatalf("expected net 11525, got %v", entry.NetPay)
	}
	if entry.PaymentStatus != PaymentStatusPending {
		t.Fatalf("expected pending payment status, got %q", entry.PaymentStatus)
	}
}

func TestComputeEntryWithoutGOSI(t *testing.T) {
	entry, err := ComputeEntry(saudiEmployee("e1", 10000), Configuration{})
	if err != nil {
		t.Fatalf("ComputeEntry: %v", err)
	}
	if entry.GOSIEmployee != 0 || entry.GOSIEmployer != 0 {
		t.Fatalf("expected no GOSI when disabled, got %v/%v", entry.GOSIEmployee, entry.GOSIEmployer)
	}
	if entry.NetPay != 10000 {
		t.Fatalf("expected net 10000, got %v", entry.NetPay)
	}
}

func TestComputeEntryRejectsInvalidAmounts(t *testing.T) {
	cases := []float64{-100, math.NaN(), math.Inf(1), MaxBasicSalary + 1}
	for _, basic := range cases {
		if _, err := ComputeEntry(saudiEmployee("e1", basic), Configuration{CalculateGOSI: true}); err == nil {
			t.Fatalf("expected error for basic salary %v", basic)
		}
	}

	emp := saudiEmployee("e1", 5000)
	emp.Compensation.Allowances = []employees.Allowance{{Name: "housing", Amount: -1}}
	if _, err := ComputeEntry(emp, Configuration{}); err == nil {
		t.Fatal("expected error for negative allowance")
	}
}

func TestSummarizeThreeEmployeeScenario(t *testing.T) {
	cfg := Configuration{CalculateGOSI: true}
	var entries []EmployeeEntry
	for _, emp := range []employees.Employee{
		saudiEmployee("s1", 5000),
		saudiEmployee("s2", 5000),
		nonSaudiEmployee("n1", 8000),
	} {
		entry, err := ComputeEntry(emp, cfg)
		if err != nil {
			t.Fatalf("ComputeEntry: %v", err)
		}
		entries = append(entries, entry)
	}
	summary := Summarize(entries)
	if summary.TotalBasicSalary != 18000 {
		t.Fatalf("expected total basic 18000, got %v", summary.TotalBasicSalary)
	}
	if summary.TotalGOSIEmployee != 976 {
		t.Fatalf("expected total employee GOSI 976, got %v", summary.TotalGOSIEmployee)
	}
	if summary.TotalGOSIEmployer != 1436 {
		t.Fatalf("expected total employer GOSI 1436, got %v", summary.TotalGOSIEmployer)
	}
	if summary.EmployeeCount != 3 {
		t.Fatalf("expected 3 employees, got %d", summary.EmployeeCount)
	}
	assertSummaryInvariant(t, entries, summary)
}

func TestIncrementalSummaryMatchesFullSummarize(t *testing.T) {
	cfg := Configuration{CalculateGOSI: true}
	e1, _ := ComputeEntry(saudiEmployee("s1", 5000), cfg)
	e2, _ := ComputeEntry(nonSaudiEmployee("n1", 8000), cfg)
	e3, _ := ComputeEntry(saudiEmployee("s3", 12345.67), cfg)

	var incremental FinancialSummary
	addToSummary(&incremental, e1)
	addToSummary(&incremental, e2)
	addToSummary(&incremental, e3)
	subtractFromSummary(&incremental, e2)

	want := Summarize([]EmployeeEntry{e1, e3})
	if incremental != want {
		t.Fatalf("incremental summary %+v differs from full summarize %+v", incremental, want)
	}
}

func TestComputeStatistics(t *testing.T) {
	cfg := Configuration{CalculateGOSI: true}
	e1, _ := ComputeEntry(saudiEmployee("s1", 5000), cfg)
	e2, _ := ComputeEntry(nonSaudiEmployee("n1", 8000), cfg)
	stats := ComputeStatistics([]EmployeeEntry{e1, e2}, 0)
	if stats.SaudiCount != 1 || stats.NonSaudiCount != 1 {
		t.Fatalf("expected 1/1 nationality split, got %d/%d", stats.SaudiCount, stats.NonSaudiCount)
	}
	if stats.MinNetPay != e1.NetPay {
		t.Fatalf("expected min net %v, got %v", e1.NetPay, stats.MinNetPay)
	}
	if stats.MaxNetPay != e2.NetPay {
		t.Fatalf("expected max net %v, got %v", e2.NetPay, stats.MaxNetPay)
	}
}

func assertSummaryInvariant(t *testing.T, entries []EmployeeEntry, summary FinancialSummary) {
	t.Helper()
	var net float64
	for _, e := range entries {
		net += e.NetPay
	}
	if math.Abs(net-summary.TotalNetPay) > 1e-6 {
		t.Fatalf("sum of net pay %v does not match summary total %v", net, summary.TotalNetPay)
	}
	if summary.EmployeeCount != len(entries) {
		t.Fatalf("employee count %d does not match entries %d", summary.EmployeeCount, len(entries))
	}
}
