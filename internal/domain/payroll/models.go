package payroll

import (
	"time"

	"github.com/google/uuid"
)

type PayPeriod struct {
	Month       int       `json:"month"`
	Year        int       `json:"year"`
	PeriodStart time.Time `json:"periodStart"`
	PeriodEnd   time.Time `json:"periodEnd"`
	PaymentDate time.Time `json:"paymentDate"`
}

type ExcludedEmployee struct {
	EmployeeID string    `json:"employeeId"`
	Reason     string    `json:"reason,omitempty"`
	ExcludedBy string    `json:"excludedBy"`
	ExcludedAt time.Time `json:"excludedAt"`
}

// Configuration is mutable only while the run is in draft.
type Configuration struct {
	IncludedEmploymentStatuses []string           `json:"includedEmploymentStatuses"`
	IncludedEmployeeTypes      []string           `json:"includedEmployeeTypes"`
	CalculateGOSI              bool               `json:"calculateGosi"`
	ApplyProration             bool               `json:"applyProration"`
	IncludeOvertime            bool               `json:"includeOvertime"`
	IncludeBonuses             bool               `json:"includeBonuses"`
	ExcludedEmployees          []ExcludedEmployee `json:"excludedEmployees"`
}

func (c Configuration) IsExcluded(employeeID string) bool {
	for _, excluded := range c.ExcludedEmployees {
		if excluded.EmployeeID == employeeID {
			return true
		}
	}
	return false
}

// EmployeeEntry is a snapshot of one employee's pay at calculation time, not
// a live reference; only recalculation refreshes it from the directory.
type EmployeeEntry struct {
	EmployeeID       string  `json:"employeeId"`
	Name             string  `json:"name"`
	IsSaudi          bool    `json:"isSaudi"`
	Gender           string  `json:"gender,omitempty"`
	BasicSalary      float64 `json:"basicSalary"`
	Allowances       float64 `json:"allowances"`
	GrossPay         float64 `json:"grossPay"`
	GOSIEmployee     float64 `json:"gosiEmployee"`
	GOSIEmployer     float64 `json:"gosiEmployer"`
	LoanDeduction    float64 `json:"loanDeduction"`
	AdvanceDeduction float64 `json:"advanceDeduction"`
	AbsenceDeduction float64 `json:"absenceDeduction"`
	TotalDeductions  float64 `json:"totalDeductions"`
	NetPay           float64 `json:"netPay"`
	PaymentMethod    string  `json:"paymentMethod"`
	IBAN             string  `json:"iban,omitempty"`
	BankName         string  `json:"bankName,omitempty"`
	OnHold           bool    `json:"onHold"`
	PaymentStatus    string  `json:"paymentStatus"`
	SlipID           string  `json:"slipId,omitempty"`
}

func (e EmployeeEntry) ManualDeductions() float64 {
	return e.LoanDeduction + e.AdvanceDeduction + e.AbsenceDeduction
}

type FinancialSummary struct {
	TotalBasicSalary  float64 `json:"totalBasicSalary"`
	TotalAllowances   float64 `json:"totalAllowances"`
	TotalGrossPay     float64 `json:"totalGrossPay"`
	TotalGOSIEmployee float64 `json:"totalGosiEmployee"`
	TotalGOSIEmployer float64 `json:"totalGosiEmployer"`
	TotalDeductions   float64 `json:"totalDeductions"`
	TotalNetPay       float64 `json:"totalNetPay"`
	EmployeeCount     int     `json:"employeeCount"`
}

type Statistics struct {
	SaudiCount    int     `json:"saudiCount"`
	NonSaudiCount int     `json:"nonSaudiCount"`
	MaleCount     int     `json:"maleCount"`
	FemaleCount   int     `json:"femaleCount"`
	MinNetPay     float64 `json:"minNetPay"`
	MaxNetPay     float64 `json:"maxNetPay"`
	AverageNetPay float64 `json:"averageNetPay"`
	DurationMs    int64   `json:"durationMs"`
}

type ValidationIssue struct {
	Code       string `json:"code"`
	Severity   string `json:"severity"`
	EmployeeID string `json:"employeeId"`
	Message    string `json:"message"`
}

type ValidationResult struct {
	Issues            []ValidationIssue `json:"issues"`
	WarningCount      int               `json:"warningCount"`
	ErrorCount        int               `json:"errorCount"`
	CriticalCount     int               `json:"criticalCount"`
	HasBlockingErrors bool              `json:"hasBlockingErrors"`
	CanProceed        bool              `json:"canProceed"`
	ValidatedAt       time.Time         `json:"validatedAt"`
}

type ApprovalWorkflow struct {
	ApprovedBy string    `json:"approvedBy"`
	ApprovedAt time.Time `json:"approvedAt"`
	Comments   string    `json:"comments,omitempty"`
}

type PaymentProcessing struct {
	PaymentStatus        string    `json:"paymentStatus"`
	PaidEmployees        int       `json:"paidEmployees"`
	TotalPaid            float64   `json:"totalPaid"`
	CompletionPercentage float64   `json:"paymentCompletionPercentage"`
	ProcessedBy          string    `json:"processedBy"`
	ProcessedAt          time.Time `json:"processedAt"`
}

type WPSFile struct {
	FileName    string    `json:"fileName"`
	Reference   string    `json:"reference"`
	RecordCount int       `json:"recordCount"`
	TotalAmount float64   `json:"totalAmount"`
	GeneratedBy string    `json:"generatedBy"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// LogEntry is one row of the append-only processing log. Entries are never
// rewritten; rejected attempts are logged alongside successful ones.
type LogEntry struct {
	LogID             string    `json:"logId"`
	Action            string    `json:"action"`
	ActionType        string    `json:"actionType"`
	PerformedBy       string    `json:"performedBy"`
	Status            string    `json:"status"`
	Timestamp         time.Time `json:"timestamp"`
	AffectedEmployees int       `json:"affectedEmployees,omitempty"`
	AffectedAmount    float64   `json:"affectedAmount,omitempty"`
	Message           string    `json:"message,omitempty"`
}

type PayrollRun struct {
	ID            string             `json:"id"`
	FirmID        string             `json:"firmId,omitempty"`
	LawyerID      string             `json:"lawyerId,omitempty"`
	Name          string             `json:"name"`
	Period        PayPeriod          `json:"payPeriod"`
	Status        string             `json:"status"`
	Notes         string             `json:"notes,omitempty"`
	Configuration Configuration      `json:"configuration"`
	EmployeeList  []EmployeeEntry    `json:"employeeList"`
	Summary       FinancialSummary   `json:"financialSummary"`
	Statistics    Statistics         `json:"statistics"`
	Validation    *ValidationResult  `json:"validation,omitempty"`
	Approval      *ApprovalWorkflow  `json:"approvalWorkflow,omitempty"`
	Payment       *PaymentProcessing `json:"paymentProcessing,omitempty"`
	WPS           *WPSFile           `json:"wps,omitempty"`
	ProcessingLog []LogEntry         `json:"processingLog"`
	Version       int                `json:"version"`
	CreatedBy     string             `json:"createdBy"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

func (r *PayrollRun) Entry(employeeID string) (int, *EmployeeEntry) {
	for i := range r.EmployeeList {
		if r.EmployeeList[i].EmployeeID == employeeID {
			return i, &r.EmployeeList[i]
		}
	}
	return -1, nil
}

func (r *PayrollRun) recordLog(entry LogEntry) {
	entry.LogID = uuid.NewString()
	entry.Timestamp = time.Now().UTC()
	r.ProcessingLog = append(r.ProcessingLog, entry)
}

// SalarySlip is created only during payment processing and is immutable once
// written.
type SalarySlip struct {
	ID              string    `json:"id"`
	RunID           string    `json:"runId"`
	EmployeeID      string    `json:"employeeId"`
	EmployeeName    string    `json:"employeeName"`
	FirmID          string    `json:"firmId,omitempty"`
	LawyerID        string    `json:"lawyerId,omitempty"`
	SlipNumber      string    `json:"slipNumber"`
	PeriodStart     time.Time `json:"periodStart"`
	PeriodEnd       time.Time `json:"periodEnd"`
	BasicSalary     float64   `json:"basicSalary"`
	Allowances      float64   `json:"allowances"`
	GrossPay        float64   `json:"grossPay"`
	GOSIEmployee    float64   `json:"gosiEmployee"`
	GOSIEmployer    float64   `json:"gosiEmployer"`
	OtherDeductions float64   `json:"otherDeductions"`
	TotalDeductions float64   `json:"totalDeductions"`
	NetPay          float64   `json:"netPay"`
	PaymentMethod   string    `json:"paymentMethod"`
	IBAN            string    `json:"iban,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
}
