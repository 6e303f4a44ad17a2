package ledger

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func contributionSum(b *BillBreakdown) Money {
	var sum Money
	for _, c := range b.Contributions {
		sum += c.Amount
	}
	return sum
}

func contributionFor(t *testing.T, b *BillBreakdown, user uuid.UUID) Money {
	t.Helper()
	for _, c := range b.Contributions {
		if c.UserID == user {
			return c.Amount
		}
	}
	t.Fatalf("no contribution for user %s", user)
	return 0
}

func equalSplits(users ...uuid.UUID) []Split {
	splits := make([]Split, len(users))
	for i, u := range users {
		splits[i] = Split{UserID: u}
	}
	return splits
}

func TestAggregateSimpleBill(t *testing.T) {
	// $30 item split equally between the payer and one other: the payer
	// nets +15.00, the other -15.00.
	bill := Bill{
		ID: uuid.New(), GroupID: uuid.New(), PayerID: alice,
		Items: []BillItem{
			{ID: uuid.New(), Price: 3000, Mode: SplitEqual, Splits: equalSplits(alice, bob)},
		},
	}
	breakdown, err := Aggregate(bill, nil, DefaultTolerance)
	if err != nil {
		t.Fatal(err)
	}
	if got := contributionFor(t, breakdown, alice); got != 1500 {
		t.Errorf("payer contribution = %d, want 1500", got)
	}
	if got := contributionFor(t, breakdown, bob); got != -1500 {
		t.Errorf("non-payer contribution = %d, want -1500", got)
	}
	if got := contributionSum(breakdown); got != 0 {
		t.Errorf("contributions sum to %d, want 0", got)
	}
}

func TestAggregateTaxTipProportional(t *testing.T) {
	// Alice eats 75% of the items, so she carries 75% of tax+tip.
	bill := Bill{
		ID: uuid.New(), GroupID: uuid.New(), PayerID: bob,
		Tax: 100, Tip: 300,
		Items: []BillItem{
			{ID: uuid.New(), Price: 3000, Mode: SplitEqual, Splits: equalSplits(alice)},
			{ID: uuid.New(), Price: 1000, Mode: SplitEqual, Splits: equalSplits(bob)},
		},
	}
	breakdown, err := Aggregate(bill, nil, DefaultTolerance)
	if err != nil {
		t.Fatal(err)
	}
	if got := breakdown.TaxTipShares[alice]; got != 300 {
		t.Errorf("alice tax/tip share = %d, want 300", got)
	}
	if got := breakdown.TaxTipShares[bob]; got != 100 {
		t.Errorf("bob tax/tip share = %d, want 100", got)
	}
	// Bob fronted 4400, owes 1000 items + 100 tax/tip.
	if got := contributionFor(t, breakdown, bob); got != 3300 {
		t.Errorf("payer contribution = %d, want 3300", got)
	}
	if got := contributionSum(breakdown); got != 0 {
		t.Errorf("contributions sum to %d, want 0", got)
	}
}

func TestAggregateTaxTipRounding(t *testing.T) {
	// 1000 of tax over three uneven shares cannot divide evenly; the
	// largest-remainder correction must still consume it exactly.
	bill := Bill{
		ID: uuid.New(), GroupID: uuid.New(), PayerID: alice,
		Tax: 1000,
		Items: []BillItem{
			{ID: uuid.New(), Price: 1000, Mode: SplitEqual, Splits: equalSplits(alice, bob, carol)},
		},
	}
	breakdown, err := Aggregate(bill, nil, DefaultTolerance)
	if err != nil {
		t.Fatal(err)
	}
	var taxSum Money
	for _, share := range breakdown.TaxTipShares {
		taxSum += share
	}
	if taxSum != 1000 {
		t.Errorf("tax/tip shares sum to %d, want 1000", taxSum)
	}
	if got := contributionSum(breakdown); got != 0 {
		t.Errorf("contributions sum to %d, want 0", got)
	}
}

func TestAggregatePayerOutsideItems(t *testing.T) {
	// The payer fronted the bill without eating anything: they are owed
	// the full total.
	bill := Bill{
		ID: uuid.New(), GroupID: uuid.New(), PayerID: carol,
		Items: []BillItem{
			{ID: uuid.New(), Price: 2000, Mode: SplitEqual, Splits: equalSplits(alice, bob)},
		},
	}
	breakdown, err := Aggregate(bill, nil, DefaultTolerance)
	if err != nil {
		t.Fatal(err)
	}
	if got := contributionFor(t, breakdown, carol); got != 2000 {
		t.Errorf("payer contribution = %d, want 2000", got)
	}
	if got := contributionSum(breakdown); got != 0 {
		t.Errorf("contributions sum to %d, want 0", got)
	}
}

func TestAggregateConservation(t *testing.T) {
	// Conservation must hold across modes and awkward primes.
	bill := Bill{
		ID: uuid.New(), GroupID: uuid.New(), PayerID: alice,
		Tax: 137, Tip: 291,
		Items: []BillItem{
			{ID: uuid.New(), Price: 997, Mode: SplitEqual, Splits: equalSplits(alice, bob, carol)},
			{ID: uuid.New(), Price: 1499, Quantity: 3, Mode: SplitProportional, Splits: []Split{
				{UserID: alice, Percentage: 33.33},
				{UserID: bob, Percentage: 33.33},
				{UserID: carol, Percentage: 33.34},
			}},
			{ID: uuid.New(), Price: 777, Mode: SplitCustom, Splits: []Split{
				{UserID: bob, Amount: 500},
				{UserID: dave, Amount: 277},
			}},
		},
	}
	breakdown, err := Aggregate(bill, nil, DefaultTolerance)
	if err != nil {
		t.Fatal(err)
	}
	if got := contributionSum(breakdown); got != 0 {
		t.Errorf("contributions sum to %d, want 0", got)
	}
	var owed Money
	for _, share := range breakdown.ItemShares {
		owed += share
	}
	if owed != bill.Subtotal() {
		t.Errorf("item shares sum to %d, want subtotal %d", owed, bill.Subtotal())
	}
}

func TestAggregateOrphanParticipant(t *testing.T) {
	bill := Bill{
		ID: uuid.New(), GroupID: uuid.New(), PayerID: alice,
		Items: []BillItem{
			{ID: uuid.New(), Price: 1000, Mode: SplitEqual, Splits: equalSplits(alice, dave)},
		},
	}
	// Dave left the group; his historical share still computes, but the
	// condition is reported.
	breakdown, err := Aggregate(bill, []uuid.UUID{alice, bob, carol}, DefaultTolerance)
	if err != nil {
		t.Fatal(err)
	}
	if len(breakdown.Orphans) != 1 || breakdown.Orphans[0].UserID != dave {
		t.Fatalf("want one orphan warning for dave, got %v", breakdown.Orphans)
	}
	if got := contributionFor(t, breakdown, dave); got != -500 {
		t.Errorf("orphan contribution = %d, want -500 (historical data kept)", got)
	}
}

func TestAggregateErrors(t *testing.T) {
	var invalid *InvalidSplitError

	_, err := Aggregate(Bill{ID: uuid.New(), PayerID: alice}, nil, DefaultTolerance)
	if !errors.As(err, &invalid) {
		t.Errorf("bill without items: want InvalidSplitError, got %v", err)
	}

	_, err = Aggregate(Bill{
		ID: uuid.New(), PayerID: alice, Tax: -5,
		Items: []BillItem{{ID: uuid.New(), Price: 100, Mode: SplitEqual, Splits: equalSplits(alice)}},
	}, nil, DefaultTolerance)
	if !errors.As(err, &invalid) {
		t.Errorf("negative tax: want InvalidSplitError, got %v", err)
	}
}
