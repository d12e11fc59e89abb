package lifecycle

import "fmt"

// RefusedEditError is returned when an edit is blocked by a business rule.
// It is the one lifecycle error meant to be shown to the actor.
type RefusedEditError struct {
	ItemID string
	Reason string
}

func (e *RefusedEditError) Error() string {
	return fmt.Sprintf("edit refused for item %s: %s", e.ItemID, e.Reason)
}

// ReasonRejectedReactivation is the reason given when a rejected, expired
// item is rescheduled into the future.
const ReasonRejectedReactivation = "rejected items cannot be reactivated by rescheduling them"
