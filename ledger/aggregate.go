package ledger

import (
	"math"
	"sort"

	"github.com/google/uuid"
)

// Contribution is one participant's signed net position on a single bill.
// The payer is credited the amount they fronted and debited their own share;
// everyone else is debited their share. Contributions always sum to zero.
type Contribution struct {
	UserID uuid.UUID
	Amount Money
}

// BillBreakdown is the Bill Aggregator output for one bill.
type BillBreakdown struct {
	BillID        uuid.UUID
	PayerID       uuid.UUID
	Subtotal      Money
	Total         Money
	Contributions []Contribution
	// ItemShares holds each participant's pre-tax item total.
	ItemShares map[uuid.UUID]Money
	// TaxTipShares holds each participant's slice of tax plus tip.
	TaxTipShares map[uuid.UUID]Money
	// Orphans lists splits that reference users outside the member set the
	// caller supplied. They are warnings: the numbers above include them.
	Orphans []*OrphanParticipantError
}

// Aggregate turns one bill into per-participant net contributions.
// Tax and tip are allocated proportionally to each participant's share of
// the item subtotal, with the same largest-remainder correction the
// allocator uses. members is optional; when non-nil, splits referencing
// users outside it are reported as orphans but still computed.
func Aggregate(bill Bill, members []uuid.UUID, tol Tolerance) (*BillBreakdown, error) {
	if len(bill.Items) == 0 {
		return nil, &InvalidSplitError{BillID: bill.ID, Reason: "bill has no items"}
	}
	if bill.Tax < 0 || bill.Tip < 0 {
		return nil, &InvalidSplitError{BillID: bill.ID, Reason: "tax and tip must not be negative"}
	}

	itemShares := make(map[uuid.UUID]Money)
	for _, item := range bill.Items {
		shares, err := Allocate(bill.ID, item, tol)
		if err != nil {
			return nil, err
		}
		for _, sh := range shares {
			itemShares[sh.UserID] += sh.Amount
		}
	}

	subtotal := bill.Subtotal()
	taxTipShares := allocateTaxTip(bill.Tax+bill.Tip, subtotal, itemShares)

	breakdown := &BillBreakdown{
		BillID:       bill.ID,
		PayerID:      bill.PayerID,
		Subtotal:     subtotal,
		Total:        bill.Total(),
		ItemShares:   itemShares,
		TaxTipShares: taxTipShares,
	}

	for user, share := range itemShares {
		owed := share + taxTipShares[user]
		if user == bill.PayerID {
			breakdown.Contributions = append(breakdown.Contributions, Contribution{
				UserID: user,
				Amount: breakdown.Total - owed,
			})
		} else {
			breakdown.Contributions = append(breakdown.Contributions, Contribution{
				UserID: user,
				Amount: -owed,
			})
		}
	}
	// A payer with no share of any item still fronted the full amount.
	if _, ok := itemShares[bill.PayerID]; !ok {
		breakdown.Contributions = append(breakdown.Contributions, Contribution{
			UserID: bill.PayerID,
			Amount: breakdown.Total,
		})
	}
	sort.Slice(breakdown.Contributions, func(i, j int) bool {
		return lessID(breakdown.Contributions[i].UserID, breakdown.Contributions[j].UserID)
	})

	if members != nil {
		breakdown.Orphans = findOrphans(bill, members)
	}
	return breakdown, nil
}

// allocateTaxTip splits pool across participants in proportion to their item
// shares, largest-remainder corrected so the pool is consumed exactly.
func allocateTaxTip(pool, subtotal Money, itemShares map[uuid.UUID]Money) map[uuid.UUID]Money {
	out := make(map[uuid.UUID]Money, len(itemShares))
	if pool == 0 || subtotal == 0 {
		return out
	}

	type slot struct {
		user uuid.UUID
		base Money
		frac float64
	}
	slots := make([]slot, 0, len(itemShares))
	var floored Money
	for user, share := range itemShares {
		raw := float64(pool) * float64(share) / float64(subtotal)
		base := Money(math.Floor(raw))
		slots = append(slots, slot{user: user, base: base, frac: raw - float64(base)})
		floored += base
	}
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].frac != slots[j].frac {
			return slots[i].frac > slots[j].frac
		}
		return lessID(slots[i].user, slots[j].user)
	})
	for i := Money(0); i < pool-floored; i++ {
		slots[int(i)%len(slots)].base++
	}

	for _, sl := range slots {
		out[sl.user] = sl.base
	}
	return out
}

func findOrphans(bill Bill, members []uuid.UUID) []*OrphanParticipantError {
	memberSet := make(map[uuid.UUID]bool, len(members))
	for _, m := range members {
		memberSet[m] = true
	}
	var orphans []*OrphanParticipantError
	for _, item := range bill.Items {
		for _, s := range item.Splits {
			if !memberSet[s.UserID] {
				orphans = append(orphans, &OrphanParticipantError{
					BillID: bill.ID, ItemID: item.ID, UserID: s.UserID,
				})
			}
		}
	}
	return orphans
}
