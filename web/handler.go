package web

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	dbt "splitbook/db/db"
	"splitbook/ledger"
	"splitbook/libs/diff"
	"splitbook/mq/mq"
)

// GroupHandler serves the REST surface over the storage layer and the
// ledger engine, publishing change events to the message queue.
type GroupHandler struct {
	db dbt.GroupDBWrapper
	mq mq.GroupMessageQueueWrapper
}

func NewGroupHandler(db dbt.GroupDBWrapper, queue mq.GroupMessageQueueWrapper) *GroupHandler {
	return &GroupHandler{db: db, mq: queue}
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// --- Groups ---

func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req GroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !VerifyStringRequest(req.Name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group name"})
		return
	}

	info := &dbt.GroupInfo{
		ID:         uuid.New(),
		Name:       req.Name,
		Emoji:      req.Emoji,
		Currency:   req.Currency,
		InviteCode: req.InviteCode,
	}
	if req.CreatedBy != "" {
		createdBy, err := uuid.Parse(req.CreatedBy)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid createdBy"})
			return
		}
		info.CreatedBy = createdBy
	}

	if err := h.db.CreateGroup(info); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, groupInfoToResponse(info))
}

func (h *GroupHandler) GetGroup(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	info, err := h.db.GetGroupInfo(groupID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, groupInfoToResponse(info))
}

func (h *GroupHandler) UpdateGroup(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req GroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !VerifyStringRequest(req.Name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group name"})
		return
	}

	existing, err := h.db.GetGroupInfo(groupID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	existing.Name = req.Name
	existing.Emoji = req.Emoji
	existing.Currency = req.Currency
	existing.InviteCode = req.InviteCode
	if err := h.db.UpdateGroupInfo(existing); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, groupInfoToResponse(existing))
}

func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.db.DeleteGroup(groupID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// JoinGroupByInviteCode resolves an invite code and adds the caller to the
// group in one step.
func (h *GroupHandler) JoinGroupByInviteCode(c *gin.Context) {
	code := c.Param("code")
	var req MemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid userId"})
		return
	}

	info, err := h.db.GetGroupByInviteCode(code)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	member := dbt.Member{UserID: userID, Name: req.Name, ColorIndex: req.ColorIndex}
	if err := h.db.GroupMemberAdd(info.ID, member); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, groupInfoToResponse(info))
}

// --- Members ---

func (h *GroupHandler) ListMembers(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	members, err := h.db.GetGroupMembers(groupID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	resp := make([]MemberResponse, len(members))
	for i, m := range members {
		resp[i] = memberToResponse(m)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *GroupHandler) AddMember(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req MemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid userId"})
		return
	}
	member := dbt.Member{UserID: userID, Name: req.Name, ColorIndex: req.ColorIndex}
	if err := h.db.GroupMemberAdd(groupID, member); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "added"})
}

func (h *GroupHandler) RemoveMember(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := parseIDParam(c, "userId")
	if !ok {
		return
	}
	if err := h.db.GroupMemberRemove(groupID, userID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// --- Bills ---

// CreateBill validates every item's splits against the engine before
// anything is persisted: a bill that fails validation is rejected whole.
func (h *GroupHandler) CreateBill(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req BillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !VerifyStringRequest(req.Title) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bill title"})
		return
	}

	bill, err := billRequestToRecord(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	bill.GroupID = groupID

	members, err := h.db.GetGroupMembers(groupID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	memberIDs := dbt.MemberIDs(members)
	ledgerBill := bill.ToLedger()
	for _, item := range ledgerBill.Items {
		if err := ledger.ValidateItemSplits(ledgerBill.ID, item, memberIDs, ledger.DefaultTolerance); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
	}

	if err := h.db.CreateGroupBills(groupID, []dbt.Bill{*bill}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.publishBillEvent(mq.ActionCreate, *bill)
	c.JSON(http.StatusCreated, billToResponse(*bill))
}

func (h *GroupHandler) ListBills(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	bills, err := h.db.GetGroupBills(groupID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	resp := make([]BillResponse, len(bills))
	for i, b := range bills {
		resp[i] = billToResponse(b)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *GroupHandler) GetBill(c *gin.Context) {
	billID, ok := parseIDParam(c, "billId")
	if !ok {
		return
	}
	bill, err := h.db.GetGroupBill(billID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, billToResponse(*bill))
}

// UpdateBill replaces a bill wholesale after revalidation and logs a
// field-level changelog of what moved.
func (h *GroupHandler) UpdateBill(c *gin.Context) {
	billID, ok := parseIDParam(c, "billId")
	if !ok {
		return
	}
	var req BillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !VerifyStringRequest(req.Title) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bill title"})
		return
	}

	old, err := h.db.GetGroupBill(billID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	bill, err := billRequestToRecord(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	bill.ID = billID
	bill.GroupID = old.GroupID

	members, err := h.db.GetGroupMembers(old.GroupID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	memberIDs := dbt.MemberIDs(members)
	ledgerBill := bill.ToLedger()
	for _, item := range ledgerBill.Items {
		if err := ledger.ValidateItemSplits(ledgerBill.ID, item, memberIDs, ledger.DefaultTolerance); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
	}

	if changelog, err := diff.GetCustomDiffer().Diff(*old, *bill); err == nil && len(changelog) > 0 {
		log.Printf("Bill %s changelog: %d field(s) changed", billID, len(changelog))
		for _, change := range changelog {
			log.Printf("  %v: %v -> %v", change.Path, change.From, change.To)
		}
	}

	groupID, err := h.db.UpdateGroupBill(bill)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	bill.GroupID = groupID
	h.publishBillEvent(mq.ActionUpdate, *bill)
	c.JSON(http.StatusOK, billToResponse(*bill))
}

func (h *GroupHandler) DeleteBill(c *gin.Context) {
	billID, ok := parseIDParam(c, "billId")
	if !ok {
		return
	}
	bill, err := h.db.GetGroupBill(billID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	groupID, err := h.db.DeleteGroupBill(billID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	bill.GroupID = groupID
	h.publishBillEvent(mq.ActionDelete, *bill)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// --- Payments ---

func (h *GroupHandler) CreatePayment(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fromID, err := uuid.Parse(req.FromUserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fromUserId"})
		return
	}
	toID, err := uuid.Parse(req.ToUserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid toUserId"})
		return
	}
	if req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payment amount must be positive"})
		return
	}
	if fromID == toID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payer and payee must differ"})
		return
	}

	payment := dbt.Payment{
		ID:         uuid.New(),
		GroupID:    groupID,
		FromUserID: fromID,
		ToUserID:   toID,
		Amount:     req.Amount,
		Note:       req.Note,
	}
	if err := h.db.CreatePayments(groupID, []dbt.Payment{payment}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.publishPaymentEvent(payment)
	c.JSON(http.StatusCreated, paymentToResponse(payment))
}

func (h *GroupHandler) ListPayments(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	payments, err := h.db.GetGroupPayments(groupID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	resp := make([]PaymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = paymentToResponse(p)
	}
	c.JSON(http.StatusOK, resp)
}

// --- Balances, settlement, focus ---

// groupSnapshot loads one group's bills, payments and member set as a
// consistent engine input.
func (h *GroupHandler) groupSnapshot(groupID uuid.UUID) (ledger.Snapshot, error) {
	bills, err := h.db.GetGroupBills(groupID)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	payments, err := h.db.GetGroupPayments(groupID)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	members, err := h.db.GetGroupMembers(groupID)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	return ledger.Snapshot{
		Bills:    dbt.LedgerBills(bills),
		Payments: dbt.LedgerPayments(payments),
		Members:  map[uuid.UUID][]uuid.UUID{groupID: dbt.MemberIDs(members)},
	}, nil
}

func (h *GroupHandler) GetBalances(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	snap, err := h.groupSnapshot(groupID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	sheet, err := ledger.ComputeBalances(snap, ledger.GroupScope(groupID), ledger.DefaultTolerance)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sheetToResponse(groupID, sheet))
}

func (h *GroupHandler) GetSettlePlan(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	snap, err := h.groupSnapshot(groupID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	sheet, err := ledger.ComputeBalances(snap, ledger.GroupScope(groupID), ledger.DefaultTolerance)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	plan := ledger.PlanSettlement(sheet)
	resp := SettlePlanResponse{GroupID: groupID.String(), Transfers: []PairResponse{}}
	for _, t := range plan {
		resp.Transfers = append(resp.Transfers, PairResponse{
			From:   t.From.String(),
			To:     t.To.String(),
			Amount: int64(t.Amount),
		})
	}
	c.JSON(http.StatusOK, resp)
}

// ApplySettlePlan records the current settlement plan as payments, zeroing
// the group's balances in one step.
func (h *GroupHandler) ApplySettlePlan(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	snap, err := h.groupSnapshot(groupID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	sheet, err := ledger.ComputeBalances(snap, ledger.GroupScope(groupID), ledger.DefaultTolerance)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	payments := dbt.FromLedgerPayments(ledger.ApplyPlan(groupID, ledger.PlanSettlement(sheet)))
	if len(payments) > 0 {
		if err := h.db.CreatePayments(groupID, payments); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		for _, p := range payments {
			h.publishPaymentEvent(p)
		}
	}

	resp := make([]PaymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = paymentToResponse(p)
	}
	c.JSON(http.StatusCreated, resp)
}

// GetUserFocus classifies a user's posture across every group they belong
// to, batching the per-group reads through the request's data loader.
func (h *GroupHandler) GetUserFocus(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	groups, err := h.db.ListGroupsForMember(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	snap := ledger.Snapshot{Members: make(map[uuid.UUID][]uuid.UUID)}
	if len(groups) > 0 {
		loaderVal, exists := c.Get(string(dbt.DataLoaderKeyGroupData))
		if !exists {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "data loader missing"})
			return
		}
		loader := loaderVal.(*dbt.GroupDataLoader)

		groupIDs := make([]uuid.UUID, len(groups))
		for i, g := range groups {
			groupIDs[i] = g.ID
		}
		ctx := c.Request.Context()
		billLists, err := loader.GetBillList.LoadAll(ctx, groupIDs)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		paymentLists, err := loader.GetPaymentList.LoadAll(ctx, groupIDs)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		memberLists, err := loader.GetMemberList.LoadAll(ctx, groupIDs)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		for i, groupID := range groupIDs {
			snap.Bills = append(snap.Bills, dbt.LedgerBills(billLists[i])...)
			snap.Payments = append(snap.Payments, dbt.LedgerPayments(paymentLists[i])...)
			snap.Members[groupID] = dbt.MemberIDs(memberLists[i])
		}
	}

	sheet, err := ledger.ComputeBalances(snap, ledger.AllScope(), ledger.DefaultTolerance)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	owed, owing := sheet.Totals(userID)
	state := ledger.ClassifyFocus(owed, owing, ledger.DefaultFocusThreshold)
	c.JSON(http.StatusOK, FocusResponse{
		UserID: userID.String(),
		State:  string(state),
		Owed:   int64(owed),
		Owing:  int64(owing),
	})
}

// --- Event publishing ---

func (h *GroupHandler) publishBillEvent(action mq.Action, bill dbt.Bill) {
	if h.mq == nil {
		return
	}
	queue := h.mq.GetBillMessageQueue(action)
	if queue == nil {
		return
	}
	msg := mq.BillMessage{
		ID:      bill.ID,
		GroupID: bill.GroupID,
		PayerID: bill.PayerID,
		Title:   bill.Title,
		Total:   int64(bill.ToLedger().Total()),
	}
	if err := queue.Publish(msg); err != nil {
		log.Printf("Failed to publish bill %s event for %s: %v", action, bill.ID, err)
	}
}

func (h *GroupHandler) publishPaymentEvent(payment dbt.Payment) {
	if h.mq == nil {
		return
	}
	queue := h.mq.GetPaymentMessageQueue(mq.ActionCreate)
	if queue == nil {
		return
	}
	msg := mq.PaymentMessage{
		ID:         payment.ID,
		GroupID:    payment.GroupID,
		FromUserID: payment.FromUserID,
		ToUserID:   payment.ToUserID,
		Amount:     payment.Amount,
	}
	if err := queue.Publish(msg); err != nil {
		log.Printf("Failed to publish payment event for %s: %v", payment.ID, err)
	}
}
