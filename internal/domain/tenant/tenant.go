package tenant

import "errors"

var ErrInvalidScope = errors.New("tenant scope requires exactly one of firm id or lawyer id")

// Scope identifies the owner of a record: a law firm or a solo practitioner,
// never both. Every store call takes a Scope explicitly; nothing reads tenancy
// from ambient state.
type Scope struct {
	FirmID   string `json:"firmId,omitempty"`
	LawyerID string `json:"lawyerId,omitempty"`
}

func FirmScope(firmID string) Scope {
	return Scope{FirmID: firmID}
}

func LawyerScope(lawyerID string) Scope {
	return Scope{LawyerID: lawyerID}
}

func (s Scope) Validate() error {
	if (s.FirmID == "") == (s.LawyerID == "") {
		return ErrInvalidScope
	}
	return nil
}

// Owner returns the tenant column name and its value for SQL predicates.
// Callers interpolate the column name only; the value is always bound.
func (s Scope) Owner() (string, string) {
	if s.FirmID != "" {
		return "firm_id", s.FirmID
	}
	return "lawyer_id", s.LawyerID
}

// FirmValue and LawyerValue yield the nullable column values for inserts.
func (s Scope) FirmValue() any {
	if s.FirmID == "" {
		return nil
	}
	return s.FirmID
}

func (s Scope) LawyerValue() any {
	if s.LawyerID == "" {
		return nil
	}
	return s.LawyerID
}

// Owns reports whether a row carrying the given tenant columns belongs to
// this scope.
func (s Scope) Owns(firmID, lawyerID string) bool {
	if s.FirmID != "" {
		return firmID == s.FirmID
	}
	return lawyerID == s.LawyerID
}
