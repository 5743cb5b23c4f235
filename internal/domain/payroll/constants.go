package payroll

// Run lifecycle statuses. processing_payment is transient and only ever
// observed in memory; the store persists either approved or paid.
const (
	StatusDraft             = "draft"
	StatusCalculating       = "calculating"
	StatusCalculated        = "calculated"
	StatusApproved          = "approved"
	StatusProcessingPayment = "processing_payment"
	StatusPaid              = "paid"
	StatusCancelled         = "cancelled"
)

// GOSI contribution rates. Saudi nationals contribute on both sides,
// non-Saudis carry only the employer occupational-hazards share.
const (
	GOSIEmployeeSaudiRate    = 0.0975
	GOSIEmployerSaudiRate    = 0.1275
	GOSIEmployerNonSaudiRate = 0.02
)

// MaxBasicSalary is a sanity ceiling on a single basic salary, in riyals.
const MaxBasicSalary = 5_000_000

const (
	IssueNegativeNetPay = "NEGATIVE_NET_PAY"
	IssueMissingIBAN    = "MISSING_IBAN"
	IssueZeroSalary     = "ZERO_SALARY"
)

const (
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusPaid      = "paid"
	PaymentStatusOnHold    = "on_hold"
	PaymentStatusCompleted = "completed"
)

// Processing log actions.
const (
	ActionCreate              = "create"
	ActionUpdate              = "update"
	ActionCalculate           = "calculate"
	ActionValidate            = "validate"
	ActionApprove             = "approve"
	ActionProcessPayments     = "process_payments"
	ActionCancel              = "cancel"
	ActionExcludeEmployee     = "exclude_employee"
	ActionIncludeEmployee     = "include_employee"
	ActionRecalculateEmployee = "recalculate_employee"
	ActionHoldEmployee        = "hold_employee"
	ActionUnholdEmployee      = "unhold_employee"
	ActionGenerateWPS         = "generate_wps"
)

const (
	LogStatusSuccess  = "success"
	LogStatusFailed   = "failed"
	LogStatusRejected = "rejected"
)

const (
	ActionTypeLifecycle   = "lifecycle"
	ActionTypeCalculation = "calculation"
	ActionTypeRoster      = "roster"
	ActionTypePayment     = "payment"
	ActionTypeExport      = "export"
)
