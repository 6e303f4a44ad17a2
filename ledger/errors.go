package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// InvalidSplitError reports a split set that does not reconcile with its
// item beyond the configured tolerance, or that is structurally unusable
// (no participants, duplicate participants, non-positive price).
type InvalidSplitError struct {
	BillID uuid.UUID
	ItemID uuid.UUID
	Reason string
	// Got and Want carry the offending sums for amount mismatches, in minor
	// units; both are zero when the failure is structural.
	Got  Money
	Want Money
}

func (e *InvalidSplitError) Error() string {
	if e.Got != 0 || e.Want != 0 {
		return fmt.Sprintf("invalid split on item %s of bill %s: %s (got %d, want %d)",
			e.ItemID, e.BillID, e.Reason, e.Got, e.Want)
	}
	return fmt.Sprintf("invalid split on item %s of bill %s: %s", e.ItemID, e.BillID, e.Reason)
}

// OrphanParticipantError reports a split referencing a user outside the
// group's current member set. It is a warning, not a failure: aggregation
// proceeds on the historical data and the caller decides what to surface.
type OrphanParticipantError struct {
	BillID uuid.UUID
	ItemID uuid.UUID
	UserID uuid.UUID
}

func (e *OrphanParticipantError) Error() string {
	return fmt.Sprintf("participant %s on item %s of bill %s is not a group member",
		e.UserID, e.ItemID, e.BillID)
}

// ScopeMismatchError reports a bill or payment outside the requested
// computation scope. Fatal to that computation; the input snapshot is wrong.
type ScopeMismatchError struct {
	Kind    string // "bill" or "payment"
	ID      uuid.UUID
	GroupID uuid.UUID
	Scope   Scope
}

func (e *ScopeMismatchError) Error() string {
	return fmt.Sprintf("%s %s belongs to group %s, outside scope of group %s",
		e.Kind, e.ID, e.GroupID, e.Scope.GroupID)
}
