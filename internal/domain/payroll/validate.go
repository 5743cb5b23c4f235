package payroll

import (
	"fmt"
	"time"
)

// ValidateEntries checks every entry in the run's employee list. Held
// employees are still validated; holding affects payment, not correctness.
func ValidateEntries(entries []EmployeeEntry) ValidationResult {
	result := ValidationResult{ValidatedAt: time.Now().UTC()}
	for _, e := range entries {
		if e.NetPay < 0 {
			result.Issues = append(result.Issues, ValidationIssue{
				Code:       IssueNegativeNetPay,
				Severity:   SeverityCritical,
				EmployeeID: e.EmployeeID,
				Message:    fmt.Sprintf("net pay is negative (%.2f) for %s", e.NetPay, e.Name),
			})
		}
		if e.PaymentMethod == "bank_transfer" && e.IBAN == "" {
			result.Issues = append(result.Issues, ValidationIssue{
				Code:       IssueMissingIBAN,
				Severity:   SeverityError,
				EmployeeID: e.EmployeeID,
				Message:    fmt.Sprintf("bank transfer selected but no IBAN on file for %s", e.Name),
			})
		}
		if e.BasicSalary == 0 {
			result.Issues = append(result.Issues, ValidationIssue{
				Code:       IssueZeroSalary,
				Severity:   SeverityWarning,
				EmployeeID: e.EmployeeID,
				Message:    fmt.Sprintf("basic salary is zero for %s", e.Name),
			})
		}
	}
	for _, issue := range result.Issues {
		switch issue.Severity {
		case SeverityWarning:
			result.WarningCount++
		case SeverityError:
			result.ErrorCount++
		case SeverityCritical:
			result.CriticalCount++
		}
	}
	result.HasBlockingErrors = result.CriticalCount > 0
	result.CanProceed = !result.HasBlockingErrors
	return result
}
