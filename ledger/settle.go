package ledger

import (
	"container/heap"

	"github.com/google/uuid"
)

// Transfer is one advisory settlement suggestion: From pays To Amount.
// The planner never records payments itself; acting on a suggestion is a
// separate, explicit user action.
type Transfer struct {
	From   uuid.UUID
	To     uuid.UUID
	Amount Money
}

// stake is a user's outstanding magnitude on one side of the netting.
type stake struct {
	user   uuid.UUID
	amount Money
}

// stakeHeap orders stakes by descending magnitude, ascending user id on
// ties, so planning is deterministic.
type stakeHeap []stake

func (h stakeHeap) Len() int { return len(h) }
func (h stakeHeap) Less(i, j int) bool {
	if h[i].amount != h[j].amount {
		return h[i].amount > h[j].amount
	}
	return lessID(h[i].user, h[j].user)
}
func (h stakeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *stakeHeap) Push(x any)        { *h = append(*h, x.(stake)) }
func (h *stakeHeap) Pop() any {
	old := *h
	n := len(old)
	s := old[n-1]
	*h = old[:n-1]
	return s
}

// PlanSettlement reduces a group's balance sheet to the transfer list that
// zeroes every balance with the fewest transactions: each user collapses to
// a single signed net, then the largest debtor repeatedly pays the largest
// creditor the smaller of the two magnitudes until nothing is outstanding.
func PlanSettlement(sheet *BalanceSheet) []Transfer {
	debtors := &stakeHeap{}
	creditors := &stakeHeap{}
	for user, net := range sheet.PerUser {
		switch {
		case net < 0:
			*debtors = append(*debtors, stake{user: user, amount: -net})
		case net > 0:
			*creditors = append(*creditors, stake{user: user, amount: net})
		}
	}
	heap.Init(debtors)
	heap.Init(creditors)

	var plan []Transfer
	for debtors.Len() > 0 && creditors.Len() > 0 {
		debtor := heap.Pop(debtors).(stake)
		creditor := heap.Pop(creditors).(stake)

		amount := debtor.amount
		if creditor.amount < amount {
			amount = creditor.amount
		}
		plan = append(plan, Transfer{From: debtor.user, To: creditor.user, Amount: amount})

		if rest := debtor.amount - amount; rest > 0 {
			heap.Push(debtors, stake{user: debtor.user, amount: rest})
		}
		if rest := creditor.amount - amount; rest > 0 {
			heap.Push(creditors, stake{user: creditor.user, amount: rest})
		}
	}
	return plan
}

// ApplyPlan converts a transfer list into payment records for a group.
// The planner itself stays advisory; recording the plan is a separate,
// explicit action by the caller.
func ApplyPlan(groupID uuid.UUID, plan []Transfer) []Payment {
	payments := make([]Payment, len(plan))
	for i, t := range plan {
		payments[i] = Payment{
			ID:         uuid.New(),
			GroupID:    groupID,
			FromUserID: t.From,
			ToUserID:   t.To,
			Amount:     t.Amount,
		}
	}
	return payments
}
