package payroll

import "fmt"

// allowedFrom maps each run operation to the statuses it may start from.
var allowedFrom = map[string][]string{
	ActionCalculate:       {StatusDraft, StatusCalculated},
	ActionApprove:         {StatusCalculated},
	ActionProcessPayments: {StatusApproved},
	// calculating is included so a run stranded mid-calculation by a crash
	// can still be cancelled.
	ActionCancel:      {StatusDraft, StatusCalculating, StatusCalculated, StatusApproved},
	ActionUpdate:      {StatusDraft, StatusCalculated},
	ActionGenerateWPS: {StatusApproved, StatusPaid},
}

// rosterStatuses are the statuses in which the employee list may be edited.
var rosterStatuses = []string{StatusDraft, StatusCalculated}

func statusAllowed(status string, allowed []string) bool {
	for _, s := range allowed {
		if s == status {
			return true
		}
	}
	return false
}

// ensureState guards operations that re-run within the same status family,
// so a violation reads as "wrong state", not a failed transition.
func ensureState(run *PayrollRun, allowed ...string) error {
	if !statusAllowed(run.Status, allowed) {
		return fmt.Errorf("%w: run %s is %s", ErrInvalidState, run.ID, run.Status)
	}
	return nil
}

// ensureTransition guards operations that move the run into a new status.
func ensureTransition(run *PayrollRun, action string) error {
	if !statusAllowed(run.Status, allowedFrom[action]) {
		return fmt.Errorf("%w: cannot %s run %s in status %s", ErrInvalidTransition, action, run.ID, run.Status)
	}
	return nil
}
