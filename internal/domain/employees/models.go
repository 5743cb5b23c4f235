package employees

import "time"

const (
	EmploymentStatusActive     = "active"
	EmploymentStatusOnLeave    = "on_leave"
	EmploymentStatusSuspended  = "suspended"
	EmploymentStatusTerminated = "terminated"

	EmployeeTypeFullTime   = "full_time"
	EmployeeTypePartTime   = "part_time"
	EmployeeTypeContractor = "contractor"

	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodCheque       = "cheque"
	PaymentMethodCash         = "cash"
)

type Allowance struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

type BankDetails struct {
	IBAN     string `json:"iban"`
	BankName string `json:"bankName"`
}

type Compensation struct {
	BasicSalary   float64     `json:"basicSalary"`
	Allowances    []Allowance `json:"allowances"`
	PaymentMethod string      `json:"paymentMethod"`
	BankDetails   BankDetails `json:"bankDetails"`
}

type PersonalInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	IsSaudi   bool   `json:"isSaudi"`
	Gender    string `json:"gender"`
}

type Employment struct {
	Status string `json:"status"`
	Type   string `json:"type"`
}

type Employee struct {
	ID           string       `json:"id"`
	FirmID       string       `json:"firmId,omitempty"`
	LawyerID     string       `json:"lawyerId,omitempty"`
	Email        string       `json:"email"`
	PersonalInfo PersonalInfo `json:"personalInfo"`
	Compensation Compensation `json:"compensation"`
	Employment   Employment   `json:"employment"`
	CreatedAt    time.Time    `json:"createdAt"`
}

func (e Employee) FullName() string {
	if e.PersonalInfo.FirstName == "" {
		return e.PersonalInfo.LastName
	}
	if e.PersonalInfo.LastName == "" {
		return e.PersonalInfo.FirstName
	}
	return e.PersonalInfo.FirstName + " " + e.PersonalInfo.LastName
}

// Filter narrows a directory lookup. Empty slices mean "no restriction".
type Filter struct {
	EmploymentStatuses []string
	EmployeeTypes      []string
	ExcludeIDs         []string
}
