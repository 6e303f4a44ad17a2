package ledger

import "testing"

func TestClassifyFocus(t *testing.T) {
	tests := []struct {
		name  string
		owed  Money
		owing Money
		want  FocusState
	}{
		{"all zero is zen", 0, 0, FocusZen},
		{"owing dominates", 0, 5000, FocusDebt},
		{"owed dominates", 5000, 0, FocusLender},
		{"imbalance below threshold is zen", 0, 1999, FocusZen},
		{"owing just over threshold", 0, 2001, FocusDebt},
		{"balanced large amounts are zen", 10000, 10000, FocusZen},
		{"ten percent is not enough", 10000, 11000, FocusZen},
		{"over ten percent tips to debt", 10000, 11001, FocusDebt},
		{"over ten percent tips to lender", 11001, 10000, FocusLender},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyFocus(tt.owed, tt.owing, DefaultFocusThreshold); got != tt.want {
				t.Errorf("ClassifyFocus(%d, %d) = %s, want %s", tt.owed, tt.owing, got, tt.want)
			}
		})
	}
}
