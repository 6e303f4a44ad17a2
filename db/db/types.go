package db

import (
	"time"

	"github.com/google/uuid"

	"splitbook/ledger"
)

// GroupInfo is the identity half of a group: what it is, not what it holds.
type GroupInfo struct {
	ID         uuid.UUID
	Name       string
	Emoji      string
	Currency   string // ISO 4217, one per group
	InviteCode string
	CreatedBy  uuid.UUID
}

// Member is one user's membership in a group. Members are ordered by join
// time; JoinedAt is assigned by the store.
type Member struct {
	UserID     uuid.UUID
	Name       string
	ColorIndex int
	JoinedAt   time.Time
}

// GroupData is the content half of a group: members, bills, payments.
type GroupData struct {
	Members  []Member
	Bills    []Bill
	Payments []Payment
}

// Group combines identity and content for callers that want both.
type Group struct {
	GroupInfo
	GroupData
}

// BillInfo is the bill header as stored.
type BillInfo struct {
	ID       uuid.UUID
	GroupID  uuid.UUID
	PayerID  uuid.UUID
	Title    string
	Category int
	BillDate time.Time
	Tax      int64 // minor units
	Tip      int64 // minor units
}

// BillData holds the bill's line items.
type BillData struct {
	Items []BillItem
}

// Bill is a stored bill with its items and splits.
type Bill struct {
	BillInfo
	BillData
}

// BillItem is one stored line item with its split set.
type BillItem struct {
	ID       uuid.UUID
	Name     string
	Price    int64 // minor units
	Quantity int
	Mode     int // ledger.SplitMode value
	Splits   []ItemSplit
}

// ItemSplit is one participant's stake in an item as stored. Percentage is
// used by proportional splits, Amount by custom splits.
type ItemSplit struct {
	UserID     uuid.UUID
	Percentage float64
	Amount     int64 // minor units
}

// Payment is a stored settlement record. Payments are append-only:
// corrections are new offsetting payments, never edits.
type Payment struct {
	ID         uuid.UUID
	GroupID    uuid.UUID
	FromUserID uuid.UUID
	ToUserID   uuid.UUID
	Amount     int64 // minor units
	Note       string
	CreatedAt  time.Time
}

// ToLedger converts a stored bill into the engine's plain record.
func (b Bill) ToLedger() ledger.Bill {
	out := ledger.Bill{
		ID:       b.ID,
		GroupID:  b.GroupID,
		PayerID:  b.PayerID,
		Title:    b.Title,
		Category: b.Category,
		BillDate: b.BillDate,
		Tax:      ledger.Money(b.Tax),
		Tip:      ledger.Money(b.Tip),
	}
	for _, item := range b.Items {
		li := ledger.BillItem{
			ID:       item.ID,
			Name:     item.Name,
			Price:    ledger.Money(item.Price),
			Quantity: item.Quantity,
			Mode:     ledger.SplitMode(item.Mode),
		}
		for _, s := range item.Splits {
			li.Splits = append(li.Splits, ledger.Split{
				UserID:     s.UserID,
				Percentage: s.Percentage,
				Amount:     ledger.Money(s.Amount),
			})
		}
		out.Items = append(out.Items, li)
	}
	return out
}

// ToLedger converts a stored payment into the engine's plain record.
func (p Payment) ToLedger() ledger.Payment {
	return ledger.Payment{
		ID:         p.ID,
		GroupID:    p.GroupID,
		FromUserID: p.FromUserID,
		ToUserID:   p.ToUserID,
		Amount:     ledger.Money(p.Amount),
		CreatedAt:  p.CreatedAt,
	}
}

// LedgerBills converts a stored bill list for the engine.
func LedgerBills(bills []Bill) []ledger.Bill {
	out := make([]ledger.Bill, len(bills))
	for i, b := range bills {
		out[i] = b.ToLedger()
	}
	return out
}

// LedgerPayments converts a stored payment list for the engine.
func LedgerPayments(payments []Payment) []ledger.Payment {
	out := make([]ledger.Payment, len(payments))
	for i, p := range payments {
		out[i] = p.ToLedger()
	}
	return out
}

// FromLedgerPayments converts engine payment records for storage. Notes
// are left empty; the engine does not produce them.
func FromLedgerPayments(payments []ledger.Payment) []Payment {
	out := make([]Payment, len(payments))
	for i, p := range payments {
		out[i] = Payment{
			ID:         p.ID,
			GroupID:    p.GroupID,
			FromUserID: p.FromUserID,
			ToUserID:   p.ToUserID,
			Amount:     int64(p.Amount),
			CreatedAt:  p.CreatedAt,
		}
	}
	return out
}

// MemberIDs extracts the user ids from a member list, preserving order.
func MemberIDs(members []Member) []uuid.UUID {
	out := make([]uuid.UUID, len(members))
	for i, m := range members {
		out[i] = m.UserID
	}
	return out
}
