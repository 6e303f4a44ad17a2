package ledger

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// Money is an amount in minor currency units (e.g. cents).
// All engine arithmetic is integer arithmetic on Money; conversion to and
// from major units is the display layer's problem.
type Money int64

// SplitMode selects how one item's price is divided among its participants.
type SplitMode int

const (
	SplitEqual SplitMode = iota
	SplitProportional
	SplitCustom
)

func (m SplitMode) String() string {
	switch m {
	case SplitEqual:
		return "equal"
	case SplitProportional:
		return "proportional"
	case SplitCustom:
		return "custom"
	}
	return "unknown"
}

// Tolerance bounds the rounding noise the engine absorbs silently.
// Anything beyond it is a validation error, never a correction.
type Tolerance struct {
	// Amount is the maximum drift, in minor units, between a custom split's
	// declared amounts and the item total.
	Amount Money
	// PercentPoints is the maximum drift between a proportional split's
	// percentage sum and 100.
	PercentPoints float64
}

// DefaultTolerance absorbs representation noise only: one minor unit per
// item, 0.01 percentage points per proportional split.
var DefaultTolerance = Tolerance{Amount: 1, PercentPoints: 0.01}

// Split is one participant's stake in a bill item. Percentage is meaningful
// for SplitProportional, Amount for SplitCustom; SplitEqual ignores both.
type Split struct {
	UserID     uuid.UUID
	Percentage float64
	Amount     Money
}

// BillItem is a single line on a bill with the splits dividing its price.
type BillItem struct {
	ID       uuid.UUID
	Name     string
	Price    Money
	Quantity int
	Mode     SplitMode
	Splits   []Split
}

// Total is the item price times quantity. A quantity below one is treated
// as the default quantity of one.
func (it BillItem) Total() Money {
	q := it.Quantity
	if q < 1 {
		q = 1
	}
	return it.Price * Money(q)
}

// Bill is a snapshot record of one shared expense fronted by a single payer.
type Bill struct {
	ID       uuid.UUID
	GroupID  uuid.UUID
	PayerID  uuid.UUID
	Title    string
	Category int
	BillDate time.Time
	Tax      Money
	Tip      Money
	Items    []BillItem
}

// Subtotal is the pre-tax, pre-tip sum of all item totals.
func (b Bill) Subtotal() Money {
	var sum Money
	for _, it := range b.Items {
		sum += it.Total()
	}
	return sum
}

// Total is subtotal plus tax plus tip.
func (b Bill) Total() Money {
	return b.Subtotal() + b.Tax + b.Tip
}

// Payment is a settlement record: money that changed hands outside the
// system, reducing what FromUserID owes ToUserID. Immutable once recorded;
// corrections are new offsetting payments.
type Payment struct {
	ID         uuid.UUID
	GroupID    uuid.UUID
	FromUserID uuid.UUID
	ToUserID   uuid.UUID
	Amount     Money
	CreatedAt  time.Time
}

// Share is one participant's owed portion of an item or a tax/tip pool.
type Share struct {
	UserID uuid.UUID
	Amount Money
}

// Scope selects which bills and payments a balance computation covers:
// a single group, or every group in the snapshot.
type Scope struct {
	GroupID uuid.UUID
	All     bool
}

// GroupScope restricts a computation to one group's bills and payments.
func GroupScope(groupID uuid.UUID) Scope {
	return Scope{GroupID: groupID}
}

// AllScope covers every group present in the snapshot.
func AllScope() Scope {
	return Scope{All: true}
}

// Snapshot is the consistent point-in-time input to the Balance Ledger.
// Members is optional; when present it enables orphan-participant reporting
// (group id -> member ids as of the snapshot).
type Snapshot struct {
	Bills    []Bill
	Payments []Payment
	Members  map[uuid.UUID][]uuid.UUID
}

// lessID is the engine-wide deterministic ordering of user ids.
func lessID(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}
