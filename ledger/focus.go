package ledger

// FocusState is a coarse classification of a user's overall balance
// posture, used only as a presentation hint.
type FocusState string

const (
	FocusDebt   FocusState = "debt"
	FocusLender FocusState = "lender"
	FocusZen    FocusState = "zen"
)

// DefaultFocusThreshold is 20 major currency units in minor units: below
// it, an imbalance is not worth surfacing.
const DefaultFocusThreshold Money = 2000

// ClassifyFocus tags a user's posture from their gross owed/owing totals
// across all groups. An imbalance counts only when one side exceeds the
// other by more than 10% and clears the absolute threshold.
func ClassifyFocus(owed, owing, threshold Money) FocusState {
	switch {
	case owing*10 > owed*11 && owing > threshold:
		return FocusDebt
	case owed*10 > owing*11 && owed > threshold:
		return FocusLender
	}
	return FocusZen
}
