package payroll

import "testing"

func TestValidateEntriesNegativeNetPayIsCritical(t *testing.T) {
	entries := []EmployeeEntry{{
		EmployeeID:    "e1",
		Name:          "Ahmed Saleh",
		BasicSalary:   1000,
		NetPay:        -250,
		PaymentMethod: "bank_transfer",
		IBAN:          "SA0380000000608010167519",
	}}
	result := ValidateEntries(entries)
	if result.CriticalCount != 1 {
		t.Fatalf("expected 1 critical issue, got %d", result.CriticalCount)
	}
	if result.Issues[0].Code != IssueNegativeNetPay {
		t.Fatalf("expected %s, got %s", IssueNegativeNetPay, result.Issues[0].Code)
	}
	if result.CanProceed {
		t.Fatal("expected canProceed false with a critical issue")
	}
	if !result.HasBlockingErrors {
		t.Fatal("expected blocking errors flag set")
	}
}

func TestValidateEntriesMissingIBAN(t *testing.T) {
	entries := []EmployeeEntry{{
		EmployeeID:    "e1",
		Name:          "Ahmed Saleh",
		BasicSalary:   5000,
		NetPay:        4500,
		PaymentMethod: "bank_transfer",
	}}
	result := ValidateEntries(entries)
	if result.ErrorCount != 1 {
		t.Fatalf("expected 1 error issue, got %d", result.ErrorCount)
	}
	if result.Issues[0].Code != IssueMissingIBAN {
		t.Fatalf("expected %s, got %s", IssueMissingIBAN, result.Issues[0].Code)
	}
	if result.HasBlockingErrors {
		t.Fatal("error-severity issues must not block approval")
	}
	if !result.CanProceed {
		t.Fatal("expected canProceed true with a missing IBAN only")
	}
}

func TestValidateEntriesMissingIBANIgnoredForCash(t *testing.T) {
	entries := []EmployeeEntry{{
		EmployeeID:    "e1",
		Name:          "Ahmed Saleh",
		BasicSalary:   5000,
		NetPay:        4500,
		PaymentMethod: "cash",
	}}
	result := ValidateEntries(entries)
	if len(result.Issues) != 0 {
		t.Fatalf("expected no issues for cash payment, got %+v", result.Issues)
	}
	if !result.CanProceed {
		t.Fatal("expected canProceed true")
	}
}

func TestValidateEntriesZeroSalaryIsWarningOnly(t *testing.T) {
	entries := []EmployeeEntry{{
		EmployeeID:    "e1",
		Name:          "Ahmed Saleh",
		BasicSalary:   0,
		NetPay:        0,
		PaymentMethod: "bank_transfer",
		IBAN:          "SA0380000000608010167519",
	}}
	result := ValidateEntries(entries)
	if result.WarningCount != 1 {
		t.Fatalf("expected 1 warning, got %d", result.WarningCount)
	}
	if result.HasBlockingErrors {
		t.Fatal("warnings must not block")
	}
	if !result.CanProceed {
		t.Fatal("expected canProceed true with warnings only")
	}
}

func TestValidateEntriesHeldEmployeesStillChecked(t *testing.T) {
	entries := []EmployeeEntry{{
		EmployeeID:    "e1",
		Name:          "Ahmed Saleh",
		BasicSalary:   1000,
		NetPay:        -10,
		OnHold:        true,
		PaymentMethod: "cash",
	}}
	result := ValidateEntries(entries)
	if result.CriticalCount != 1 {
		t.Fatalf("expected held employee to still fail validation, got %+v", result)
	}
}
