package web

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	dbt "splitbook/db/db"
	"splitbook/ledger"
)

// --- Request bodies ---

type GroupRequest struct {
	Name       string `json:"name" binding:"required"`
	Emoji      string `json:"emoji"`
	Currency   string `json:"currency" binding:"required"`
	InviteCode string `json:"inviteCode"`
	CreatedBy  string `json:"createdBy"`
}

type MemberRequest struct {
	UserID     string `json:"userId" binding:"required"`
	Name       string `json:"name"`
	ColorIndex int    `json:"colorIndex"`
}

type SplitRequest struct {
	UserID     string  `json:"userId" binding:"required"`
	Percentage float64 `json:"percentage"`
	Amount     int64   `json:"amount"`
}

type ItemRequest struct {
	Name     string         `json:"name" binding:"required"`
	Price    int64          `json:"price"`
	Quantity int            `json:"quantity"`
	Mode     string         `json:"mode"`
	Splits   []SplitRequest `json:"splits" binding:"required"`
}

type BillRequest struct {
	PayerID  string        `json:"payerId" binding:"required"`
	Title    string        `json:"title" binding:"required"`
	Category int           `json:"category"`
	BillDate int64         `json:"billDate"` // milliseconds since epoch
	Tax      int64         `json:"tax"`
	Tip      int64         `json:"tip"`
	Items    []ItemRequest `json:"items" binding:"required"`
}

type PaymentRequest struct {
	FromUserID string `json:"fromUserId" binding:"required"`
	ToUserID   string `json:"toUserId" binding:"required"`
	Amount     int64  `json:"amount"`
	Note       string `json:"note"`
}

// --- Response bodies ---

type GroupResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Emoji      string `json:"emoji"`
	Currency   string `json:"currency"`
	InviteCode string `json:"inviteCode"`
	CreatedBy  string `json:"createdBy"`
}

type MemberResponse struct {
	UserID     string `json:"userId"`
	Name       string `json:"name"`
	ColorIndex int    `json:"colorIndex"`
	JoinedAt   int64  `json:"joinedAt"`
}

type SplitResponse struct {
	UserID     string  `json:"userId"`
	Percentage float64 `json:"percentage"`
	Amount     int64   `json:"amount"`
}

type ItemResponse struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    int64           `json:"price"`
	Quantity int             `json:"quantity"`
	Mode     string          `json:"mode"`
	Splits   []SplitResponse `json:"splits"`
}

type BillResponse struct {
	ID       string         `json:"id"`
	GroupID  string         `json:"groupId"`
	PayerID  string         `json:"payerId"`
	Title    string         `json:"title"`
	Category int            `json:"category"`
	BillDate int64          `json:"billDate"`
	Tax      int64          `json:"tax"`
	Tip      int64          `json:"tip"`
	Total    int64          `json:"total"`
	Items    []ItemResponse `json:"items"`
}

type PaymentResponse struct {
	ID         string `json:"id"`
	GroupID    string `json:"groupId"`
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
	Amount     int64  `json:"amount"`
	Note       string `json:"note"`
	CreatedAt  int64  `json:"createdAt"`
}

type PairResponse struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

type BalancesResponse struct {
	GroupID  string           `json:"groupId"`
	Pairs    []PairResponse   `json:"pairs"`
	PerUser  map[string]int64 `json:"perUser"`
	Warnings []string         `json:"warnings,omitempty"`
}

type SettlePlanResponse struct {
	GroupID   string         `json:"groupId"`
	Transfers []PairResponse `json:"transfers"`
}

type FocusResponse struct {
	UserID string `json:"userId"`
	State  string `json:"state"`
	Owed   int64  `json:"owed"`
	Owing  int64  `json:"owing"`
}

// --- Converters ---

func parseSplitMode(s string) (ledger.SplitMode, error) {
	switch s {
	case "", "equal":
		return ledger.SplitEqual, nil
	case "proportional":
		return ledger.SplitProportional, nil
	case "custom":
		return ledger.SplitCustom, nil
	}
	return 0, fmt.Errorf("unknown split mode %q", s)
}

func groupInfoToResponse(info *dbt.GroupInfo) GroupResponse {
	return GroupResponse{
		ID:         info.ID.String(),
		Name:       info.Name,
		Emoji:      info.Emoji,
		Currency:   info.Currency,
		InviteCode: info.InviteCode,
		CreatedBy:  info.CreatedBy.String(),
	}
}

func memberToResponse(m dbt.Member) MemberResponse {
	return MemberResponse{
		UserID:     m.UserID.String(),
		Name:       m.Name,
		ColorIndex: m.ColorIndex,
		JoinedAt:   m.JoinedAt.UnixMilli(),
	}
}

// billRequestToRecord validates ids and modes and builds the stored bill.
// New ids are minted for the bill and every item.
func billRequestToRecord(req BillRequest) (*dbt.Bill, error) {
	payerID, err := uuid.Parse(req.PayerID)
	if err != nil {
		return nil, fmt.Errorf("invalid payer id: %w", err)
	}

	bill := &dbt.Bill{
		BillInfo: dbt.BillInfo{
			ID:       uuid.New(),
			PayerID:  payerID,
			Title:    req.Title,
			Category: req.Category,
			BillDate: time.UnixMilli(req.BillDate),
			Tax:      req.Tax,
			Tip:      req.Tip,
		},
	}
	if req.BillDate == 0 {
		bill.BillDate = time.Now()
	}

	for _, item := range req.Items {
		mode, err := parseSplitMode(item.Mode)
		if err != nil {
			return nil, err
		}
		di := dbt.BillItem{
			ID:       uuid.New(),
			Name:     item.Name,
			Price:    item.Price,
			Quantity: item.Quantity,
			Mode:     int(mode),
		}
		for _, s := range item.Splits {
			userID, err := uuid.Parse(s.UserID)
			if err != nil {
				return nil, fmt.Errorf("invalid split user id: %w", err)
			}
			di.Splits = append(di.Splits, dbt.ItemSplit{
				UserID:     userID,
				Percentage: s.Percentage,
				Amount:     s.Amount,
			})
		}
		bill.Items = append(bill.Items, di)
	}
	return bill, nil
}

func billToResponse(b dbt.Bill) BillResponse {
	resp := BillResponse{
		ID:       b.ID.String(),
		GroupID:  b.GroupID.String(),
		PayerID:  b.PayerID.String(),
		Title:    b.Title,
		Category: b.Category,
		BillDate: b.BillDate.UnixMilli(),
		Tax:      b.Tax,
		Tip:      b.Tip,
		Total:    int64(b.ToLedger().Total()),
		Items:    []ItemResponse{},
	}
	for _, item := range b.Items {
		ir := ItemResponse{
			ID:       item.ID.String(),
			Name:     item.Name,
			Price:    item.Price,
			Quantity: item.Quantity,
			Mode:     ledger.SplitMode(item.Mode).String(),
			Splits:   []SplitResponse{},
		}
		for _, s := range item.Splits {
			ir.Splits = append(ir.Splits, SplitResponse{
				UserID:     s.UserID.String(),
				Percentage: s.Percentage,
				Amount:     s.Amount,
			})
		}
		resp.Items = append(resp.Items, ir)
	}
	return resp
}

func paymentToResponse(p dbt.Payment) PaymentResponse {
	return PaymentResponse{
		ID:         p.ID.String(),
		GroupID:    p.GroupID.String(),
		FromUserID: p.FromUserID.String(),
		ToUserID:   p.ToUserID.String(),
		Amount:     p.Amount,
		Note:       p.Note,
		CreatedAt:  p.CreatedAt.UnixMilli(),
	}
}

func sheetToResponse(groupID uuid.UUID, sheet *ledger.BalanceSheet) BalancesResponse {
	resp := BalancesResponse{
		GroupID: groupID.String(),
		Pairs:   []PairResponse{},
		PerUser: make(map[string]int64),
	}
	for _, pair := range sheet.Pairs() {
		resp.Pairs = append(resp.Pairs, PairResponse{
			From:   pair.From.String(),
			To:     pair.To.String(),
			Amount: int64(pair.Amount),
		})
	}
	for user, net := range sheet.PerUser {
		resp.PerUser[user.String()] = int64(net)
	}
	for _, orphan := range sheet.Orphans {
		resp.Warnings = append(resp.Warnings, orphan.Error())
	}
	return resp
}
