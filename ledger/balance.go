package ledger

import (
	"sort"

	"github.com/google/uuid"
)

// pairKey identifies an unordered user pair canonically: Low sorts before
// High by id, and only the Low-owes-High direction is materialized. The
// opposite direction is the negation, so antisymmetry holds by construction.
type pairKey struct {
	Low  uuid.UUID
	High uuid.UUID
}

// PairBalance is one materialized pairwise debt: From owes To Amount.
// Amount is always positive; zeroed pairs are not listed.
type PairBalance struct {
	From   uuid.UUID
	To     uuid.UUID
	Amount Money
}

// BalanceSheet is the Balance Ledger output: the pairwise debt matrix and
// per-user nets for one scope. It is derived data, recomputed in full from
// the snapshot on every call, never mutated incrementally.
type BalanceSheet struct {
	Scope    Scope
	pairwise map[pairKey]Money
	users    map[uuid.UUID]bool
	// PerUser maps each user to their signed net: positive means the user
	// is owed money overall, negative means they owe.
	PerUser map[uuid.UUID]Money
	// Orphans carries the non-fatal orphan-participant warnings collected
	// while aggregating, when the snapshot included member sets.
	Orphans []*OrphanParticipantError
}

// ComputeBalances derives the pairwise debt matrix and per-user nets from a
// consistent snapshot of bills and payments. Each non-payer's share of a
// bill becomes a debt to that bill's payer; each payment reduces what its
// sender owes its recipient, and may push the pair negative (overpayment).
func ComputeBalances(snap Snapshot, scope Scope, tol Tolerance) (*BalanceSheet, error) {
	sheet := &BalanceSheet{
		Scope:    scope,
		pairwise: make(map[pairKey]Money),
		users:    make(map[uuid.UUID]bool),
		PerUser:  make(map[uuid.UUID]Money),
	}

	for _, bill := range snap.Bills {
		if !scope.All && bill.GroupID != scope.GroupID {
			return nil, &ScopeMismatchError{Kind: "bill", ID: bill.ID, GroupID: bill.GroupID, Scope: scope}
		}
		var members []uuid.UUID
		if snap.Members != nil {
			members = snap.Members[bill.GroupID]
		}
		breakdown, err := Aggregate(bill, members, tol)
		if err != nil {
			return nil, err
		}
		sheet.Orphans = append(sheet.Orphans, breakdown.Orphans...)

		// The payer is the sole creditor for the bill: every negative
		// contribution becomes a debt to the payer directly.
		for _, c := range breakdown.Contributions {
			if c.UserID == bill.PayerID {
				sheet.users[c.UserID] = true
				continue
			}
			sheet.addDebt(c.UserID, bill.PayerID, -c.Amount)
		}
	}

	for _, p := range snap.Payments {
		if !scope.All && p.GroupID != scope.GroupID {
			return nil, &ScopeMismatchError{Kind: "payment", ID: p.ID, GroupID: p.GroupID, Scope: scope}
		}
		sheet.addDebt(p.FromUserID, p.ToUserID, -p.Amount)
	}

	for user := range sheet.users {
		sheet.PerUser[user] = 0
	}
	for key, amount := range sheet.pairwise {
		sheet.PerUser[key.Low] -= amount
		sheet.PerUser[key.High] += amount
	}
	return sheet, nil
}

// addDebt records that from owes to an additional amount (negative amounts
// reduce the debt, as payments do).
func (s *BalanceSheet) addDebt(from, to uuid.UUID, amount Money) {
	s.users[from] = true
	s.users[to] = true
	if lessID(from, to) {
		s.pairwise[pairKey{Low: from, High: to}] += amount
	} else {
		s.pairwise[pairKey{Low: to, High: from}] -= amount
	}
}

// Owes returns the signed amount a owes b. Owes(a, b) == -Owes(b, a).
func (s *BalanceSheet) Owes(a, b uuid.UUID) Money {
	if lessID(a, b) {
		return s.pairwise[pairKey{Low: a, High: b}]
	}
	return -s.pairwise[pairKey{Low: b, High: a}]
}

// Pairs lists the nonzero pairwise debts, debtor first, in a deterministic
// order (ascending debtor id, then creditor id).
func (s *BalanceSheet) Pairs() []PairBalance {
	out := make([]PairBalance, 0, len(s.pairwise))
	for key, amount := range s.pairwise {
		switch {
		case amount > 0:
			out = append(out, PairBalance{From: key.Low, To: key.High, Amount: amount})
		case amount < 0:
			out = append(out, PairBalance{From: key.High, To: key.Low, Amount: -amount})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return lessID(out[i].From, out[j].From)
		}
		return lessID(out[i].To, out[j].To)
	})
	return out
}

// Users lists every user the sheet touched, ascending by id.
func (s *BalanceSheet) Users() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(s.users))
	for u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i], out[j]) })
	return out
}

// Totals returns the gross amounts a user is owed and owes across all
// counterparties in scope, before netting against each other. These feed
// the focus classifier.
func (s *BalanceSheet) Totals(user uuid.UUID) (owed, owing Money) {
	for other := range s.users {
		if other == user {
			continue
		}
		if b := s.Owes(user, other); b > 0 {
			owing += b
		} else {
			owed -= b
		}
	}
	return owed, owing
}
