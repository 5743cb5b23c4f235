package tenant

import (
	"errors"
	"testing"
)

func TestScopeValidate(t *testing.T) {
	cases := []struct {
		name  string
		scope Scope
		valid bool
	}{
		{"firm only", FirmScope("f1"), true},
		{"lawyer only", LawyerScope("l1"), true},
		{"both set", Scope{FirmID: "f1", LawyerID: "l1"}, false},
		{"neither set", Scope{}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.scope.Validate()
			if tc.valid && err != nil {
				t.Fatalf("expected valid scope, got %v", err)
			}
			if !tc.valid && !errors.Is(err, ErrInvalidScope) {
				t.Fatalf("expected ErrInvalidScope, got %v", err)
			}
		})
	}
}

func TestScopeOwner(t *testing.T) {
	column, value := FirmScope("f1").Owner()
	if column != "firm_id" || value != "f1" {
		t.Fatalf("unexpected firm owner %s=%s", column, value)
	}

	column, value = LawyerScope("l1").Owner()
	if column != "lawyer_id" || value != "l1" {
		t.Fatalf("unexpected lawyer owner %s=%s", column, value)
	}
}

func TestScopeOwns(t *testing.T) {
	firm := FirmScope("f1")
	if !firm.Owns("f1", "") {
		t.Fatal("firm scope should own its rows")
	}
	if firm.Owns("f2", "") || firm.Owns("", "l1") {
		t.Fatal("firm scope should not own foreign rows")
	}

	lawyer := LawyerScope("l1")
	if !lawyer.Owns("", "l1") {
		t.Fatal("lawyer scope should own its rows")
	}
	if lawyer.Owns("f1", "") {
		t.Fatal("lawyer scope should not own firm rows")
	}
}

func TestScopeInsertValues(t *testing.T) {
	firm := FirmScope("f1")
	if firm.FirmValue() != "f1" || firm.LawyerValue() != nil {
		t.Fatal("firm scope insert values wrong")
	}

	lawyer := LawyerScope("l1")
	if lawyer.FirmValue() != nil || lawyer.LawyerValue() != "l1" {
		t.Fatal("lawyer scope insert values wrong")
	}
}
