package ledger

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

var (
	testBillID = uuid.MustParse("99999999-9999-9999-9999-999999999999")
	alice      = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	bob        = uuid.MustParse("00000000-0000-0000-0000-000000000002")
	carol      = uuid.MustParse("00000000-0000-0000-0000-000000000003")
	dave       = uuid.MustParse("00000000-0000-0000-0000-000000000004")
)

func shareSum(shares []Share) Money {
	var sum Money
	for _, s := range shares {
		sum += s.Amount
	}
	return sum
}

func shareFor(t *testing.T, shares []Share, user uuid.UUID) Money {
	t.Helper()
	for _, s := range shares {
		if s.UserID == user {
			return s.Amount
		}
	}
	t.Fatalf("no share for user %s", user)
	return 0
}

func TestAllocateEqual(t *testing.T) {
	tests := []struct {
		name     string
		price    Money
		quantity int
		users    []uuid.UUID
		want     map[uuid.UUID]Money
	}{
		{
			name:  "evenly divisible",
			price: 3000, users: []uuid.UUID{alice, bob, carol},
			want: map[uuid.UUID]Money{alice: 1000, bob: 1000, carol: 1000},
		},
		{
			// $10.00 across three people: the leftover cent goes to the
			// first user in id order.
			name:  "remainder to first users by id",
			price: 1000, users: []uuid.UUID{carol, alice, bob},
			want: map[uuid.UUID]Money{alice: 334, bob: 333, carol: 333},
		},
		{
			name:  "two leftover units",
			price: 1001, users: []uuid.UUID{bob, carol, alice},
			want: map[uuid.UUID]Money{alice: 334, bob: 334, carol: 333},
		},
		{
			name:  "single participant takes all",
			price: 999, users: []uuid.UUID{bob},
			want: map[uuid.UUID]Money{bob: 999},
		},
		{
			name:  "quantity multiplies the pool",
			price: 500, quantity: 3, users: []uuid.UUID{alice, bob},
			want: map[uuid.UUID]Money{alice: 750, bob: 750},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := BillItem{ID: uuid.New(), Price: tt.price, Quantity: tt.quantity, Mode: SplitEqual}
			for _, u := range tt.users {
				item.Splits = append(item.Splits, Split{UserID: u})
			}
			shares, err := Allocate(testBillID, item, DefaultTolerance)
			if err != nil {
				t.Fatalf("Allocate returned error: %v", err)
			}
			if got, want := shareSum(shares), item.Total(); got != want {
				t.Errorf("shares sum to %d, want %d", got, want)
			}
			for user, want := range tt.want {
				if got := shareFor(t, shares, user); got != want {
					t.Errorf("share for %s = %d, want %d", user, got, want)
				}
			}
		})
	}
}

func TestAllocateEqualDeterministic(t *testing.T) {
	item := BillItem{
		ID: uuid.New(), Price: 1000, Mode: SplitEqual,
		Splits: []Split{{UserID: carol}, {UserID: alice}, {UserID: bob}},
	}
	first, err := Allocate(testBillID, item, DefaultTolerance)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, err := Allocate(testBillID, item, DefaultTolerance)
		if err != nil {
			t.Fatal(err)
		}
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("allocation not deterministic: run %d differs at %d", i, j)
			}
		}
	}
}

func TestAllocateProportional(t *testing.T) {
	tests := []struct {
		name    string
		price   Money
		splits  []Split
		wantErr bool
	}{
		{
			// $50.00 at 33.33/33.33/33.34 must reconcile exactly.
			name:  "largest remainder corrects drift",
			price: 5000,
			splits: []Split{
				{UserID: alice, Percentage: 33.33},
				{UserID: bob, Percentage: 33.33},
				{UserID: carol, Percentage: 33.34},
			},
		},
		{
			name:  "fifty fifty",
			price: 999,
			splits: []Split{
				{UserID: alice, Percentage: 50},
				{UserID: bob, Percentage: 50},
			},
		},
		{
			name:  "sum inside tolerance",
			price: 10000,
			splits: []Split{
				{UserID: alice, Percentage: 49.995},
				{UserID: bob, Percentage: 50.009},
			},
		},
		{
			name:  "sum beyond tolerance rejected",
			price: 1000,
			splits: []Split{
				{UserID: alice, Percentage: 60},
				{UserID: bob, Percentage: 50},
			},
			wantErr: true,
		},
		{
			name:   "percentage out of range rejected",
			price:  1000,
			splits: []Split{{UserID: alice, Percentage: 120}, {UserID: bob, Percentage: -20}},
			wantErr: true,
		},
		{
			name:  "zero percent participant owes nothing",
			price: 1000,
			splits: []Split{
				{UserID: alice, Percentage: 100},
				{UserID: bob, Percentage: 0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := BillItem{ID: uuid.New(), Price: tt.price, Mode: SplitProportional, Splits: tt.splits}
			shares, err := Allocate(testBillID, item, DefaultTolerance)
			if tt.wantErr {
				var invalid *InvalidSplitError
				if !errors.As(err, &invalid) {
					t.Fatalf("want InvalidSplitError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Allocate returned error: %v", err)
			}
			if got, want := shareSum(shares), item.Total(); got != want {
				t.Errorf("shares sum to %d, want %d", got, want)
			}
		})
	}
}

func TestAllocateCustom(t *testing.T) {
	tests := []struct {
		name    string
		price   Money
		splits  []Split
		want    map[uuid.UUID]Money
		wantErr bool
	}{
		{
			name:  "exact amounts pass through",
			price: 1000,
			splits: []Split{
				{UserID: alice, Amount: 700},
				{UserID: bob, Amount: 300},
			},
			want: map[uuid.UUID]Money{alice: 700, bob: 300},
		},
		{
			// One unit short: the largest split absorbs the difference.
			name:  "one unit drift absorbed by largest split",
			price: 1000,
			splits: []Split{
				{UserID: alice, Amount: 699},
				{UserID: bob, Amount: 300},
			},
			want: map[uuid.UUID]Money{alice: 700, bob: 300},
		},
		{
			name:  "one unit over also absorbed",
			price: 1000,
			splits: []Split{
				{UserID: alice, Amount: 701},
				{UserID: bob, Amount: 300},
			},
			want: map[uuid.UUID]Money{alice: 700, bob: 300},
		},
		{
			name:  "two units off rejected",
			price: 1000,
			splits: []Split{
				{UserID: alice, Amount: 698},
				{UserID: bob, Amount: 300},
			},
			wantErr: true,
		},
		{
			name:    "negative amount rejected",
			price:   1000,
			splits:  []Split{{UserID: alice, Amount: 1100}, {UserID: bob, Amount: -100}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := BillItem{ID: uuid.New(), Price: tt.price, Mode: SplitCustom, Splits: tt.splits}
			shares, err := Allocate(testBillID, item, DefaultTolerance)
			if tt.wantErr {
				var invalid *InvalidSplitError
				if !errors.As(err, &invalid) {
					t.Fatalf("want InvalidSplitError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Allocate returned error: %v", err)
			}
			if got, want := shareSum(shares), item.Total(); got != want {
				t.Errorf("shares sum to %d, want %d", got, want)
			}
			for user, want := range tt.want {
				if got := shareFor(t, shares, user); got != want {
					t.Errorf("share for %s = %d, want %d", user, got, want)
				}
			}
		})
	}
}

func TestAllocateStructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		item BillItem
	}{
		{
			name: "no participants",
			item: BillItem{ID: uuid.New(), Price: 1000, Mode: SplitEqual},
		},
		{
			name: "zero price",
			item: BillItem{ID: uuid.New(), Price: 0, Mode: SplitEqual, Splits: []Split{{UserID: alice}}},
		},
		{
			name: "duplicate participant",
			item: BillItem{ID: uuid.New(), Price: 1000, Mode: SplitEqual,
				Splits: []Split{{UserID: alice}, {UserID: alice}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Allocate(testBillID, tt.item, DefaultTolerance)
			var invalid *InvalidSplitError
			if !errors.As(err, &invalid) {
				t.Fatalf("want InvalidSplitError, got %v", err)
			}
		})
	}
}

func TestValidateItemSplits(t *testing.T) {
	item := BillItem{
		ID: uuid.New(), Price: 1000, Mode: SplitEqual,
		Splits: []Split{{UserID: alice}, {UserID: dave}},
	}

	if err := ValidateItemSplits(testBillID, item, []uuid.UUID{alice, bob, carol, dave}, DefaultTolerance); err != nil {
		t.Errorf("all members valid, got error: %v", err)
	}

	err := ValidateItemSplits(testBillID, item, []uuid.UUID{alice, bob, carol}, DefaultTolerance)
	var invalid *InvalidSplitError
	if !errors.As(err, &invalid) {
		t.Fatalf("non-member participant should be rejected, got %v", err)
	}
}
