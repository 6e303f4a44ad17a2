package ledger

import (
	"math"
	"sort"

	"github.com/google/uuid"
)

// Allocate divides one item's total among its split participants and
// guarantees the shares sum to the item total exactly, in minor units,
// for every split mode. Allocation is deterministic: the same input always
// produces the same shares, with ties broken by ascending user id.
func Allocate(billID uuid.UUID, item BillItem, tol Tolerance) ([]Share, error) {
	if len(item.Splits) == 0 {
		return nil, &InvalidSplitError{BillID: billID, ItemID: item.ID, Reason: "item has no participants"}
	}
	if item.Price <= 0 {
		return nil, &InvalidSplitError{BillID: billID, ItemID: item.ID, Reason: "item price must be positive"}
	}
	seen := make(map[uuid.UUID]bool, len(item.Splits))
	for _, s := range item.Splits {
		if seen[s.UserID] {
			return nil, &InvalidSplitError{BillID: billID, ItemID: item.ID, Reason: "duplicate participant " + s.UserID.String()}
		}
		seen[s.UserID] = true
	}

	switch item.Mode {
	case SplitEqual:
		return allocateEqual(item), nil
	case SplitProportional:
		return allocateProportional(billID, item, tol)
	case SplitCustom:
		return allocateCustom(billID, item, tol)
	}
	return nil, &InvalidSplitError{BillID: billID, ItemID: item.ID, Reason: "unknown split mode"}
}

// allocateEqual gives every participant total/n and hands the leftover minor
// units, one each, to the first participants in ascending id order.
func allocateEqual(item BillItem) []Share {
	total := item.Total()
	n := Money(len(item.Splits))

	shares := make([]Share, len(item.Splits))
	for i, s := range item.Splits {
		shares[i] = Share{UserID: s.UserID, Amount: total / n}
	}
	sortShares(shares)

	for i := Money(0); i < total%n; i++ {
		shares[i].Amount++
	}
	return shares
}

// allocateProportional floors each percentage share and distributes the
// leftover units to the participants with the largest fractional remainders
// (largest-remainder method), so the total reconciles exactly.
func allocateProportional(billID uuid.UUID, item BillItem, tol Tolerance) ([]Share, error) {
	total := item.Total()

	var pctSum float64
	for _, s := range item.Splits {
		if s.Percentage < 0 || s.Percentage > 100 {
			return nil, &InvalidSplitError{BillID: billID, ItemID: item.ID, Reason: "percentage out of range"}
		}
		pctSum += s.Percentage
	}
	if math.Abs(pctSum-100) > tol.PercentPoints {
		return nil, &InvalidSplitError{
			BillID: billID, ItemID: item.ID,
			Reason: "percentages do not sum to 100",
			Got:    Money(math.Round(pctSum * 100)), Want: 10000,
		}
	}

	type slot struct {
		share Share
		frac  float64
	}
	slots := make([]slot, len(item.Splits))
	var floored Money
	for i, s := range item.Splits {
		raw := float64(total) * s.Percentage / 100
		base := Money(math.Floor(raw))
		slots[i] = slot{share: Share{UserID: s.UserID, Amount: base}, frac: raw - float64(base)}
		floored += base
	}

	// Residual units go to the largest fractional remainders first; a
	// negative residual (percentages slightly over 100, within tolerance)
	// comes off the smallest remainders.
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].frac != slots[j].frac {
			return slots[i].frac > slots[j].frac
		}
		return lessID(slots[i].share.UserID, slots[j].share.UserID)
	})
	residual := total - floored
	for i := Money(0); i < residual; i++ {
		slots[int(i)%len(slots)].share.Amount++
	}
	for i := Money(0); i < -residual; i++ {
		slots[len(slots)-1-int(i)%len(slots)].share.Amount--
	}

	shares := make([]Share, len(slots))
	for i, sl := range slots {
		shares[i] = sl.share
	}
	sortShares(shares)
	return shares, nil
}

// allocateCustom takes the declared amounts as-is, absorbing at most
// tol.Amount of drift into the largest split. Larger drift is user error
// and is rejected, never corrected.
func allocateCustom(billID uuid.UUID, item BillItem, tol Tolerance) ([]Share, error) {
	total := item.Total()

	shares := make([]Share, len(item.Splits))
	var sum Money
	for i, s := range item.Splits {
		if s.Amount < 0 {
			return nil, &InvalidSplitError{BillID: billID, ItemID: item.ID, Reason: "negative split amount"}
		}
		shares[i] = Share{UserID: s.UserID, Amount: s.Amount}
		sum += s.Amount
	}

	if diff := total - sum; diff != 0 {
		if diff > tol.Amount || diff < -tol.Amount {
			return nil, &InvalidSplitError{
				BillID: billID, ItemID: item.ID,
				Reason: "amounts do not sum to item total",
				Got:    sum, Want: total,
			}
		}
		largest := 0
		for i := 1; i < len(shares); i++ {
			if shares[i].Amount > shares[largest].Amount ||
				(shares[i].Amount == shares[largest].Amount && lessID(shares[i].UserID, shares[largest].UserID)) {
				largest = i
			}
		}
		shares[largest].Amount += diff
	}

	sortShares(shares)
	return shares, nil
}

// ValidateItemSplits is the entry-time validation boundary: it runs the
// allocator and additionally rejects participants outside the group member
// set, so a bad bill is refused before it is ever persisted.
func ValidateItemSplits(billID uuid.UUID, item BillItem, members []uuid.UUID, tol Tolerance) error {
	if _, err := Allocate(billID, item, tol); err != nil {
		return err
	}
	memberSet := make(map[uuid.UUID]bool, len(members))
	for _, m := range members {
		memberSet[m] = true
	}
	for _, s := range item.Splits {
		if !memberSet[s.UserID] {
			return &InvalidSplitError{
				BillID: billID, ItemID: item.ID,
				Reason: "participant " + s.UserID.String() + " is not a group member",
			}
		}
	}
	return nil
}

func sortShares(shares []Share) {
	sort.Slice(shares, func(i, j int) bool {
		return lessID(shares[i].UserID, shares[j].UserID)
	})
}
