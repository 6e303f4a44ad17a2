package mem

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	dbt "splitbook/db/db"
)

// inMemoryGroupDBWrapper is an in-memory implementation of
// dbt.GroupDBWrapper, used by tests and the dev server. It keeps identity
// and content separate so reads can copy only what they need.
type inMemoryGroupDBWrapper struct {
	groupsInfo map[uuid.UUID]*dbt.GroupInfo
	groupsData map[uuid.UUID]*dbt.GroupData
	inviteIdx  map[string]uuid.UUID

	mu sync.RWMutex
}

// NewInMemoryGroupDBWrapper creates an empty in-memory store.
func NewInMemoryGroupDBWrapper() dbt.GroupDBWrapper {
	return &inMemoryGroupDBWrapper{
		groupsInfo: make(map[uuid.UUID]*dbt.GroupInfo),
		groupsData: make(map[uuid.UUID]*dbt.GroupData),
		inviteIdx:  make(map[string]uuid.UUID),
	}
}

func (db *inMemoryGroupDBWrapper) CreateGroup(info *dbt.GroupInfo) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.groupsInfo[info.ID]; exists {
		return fmt.Errorf("group with ID %s already exists", info.ID)
	}
	if other, exists := db.inviteIdx[info.InviteCode]; exists && info.InviteCode != "" {
		return fmt.Errorf("invite code %q already used by group %s", info.InviteCode, other)
	}

	infoCopy := *info
	db.groupsInfo[info.ID] = &infoCopy
	db.groupsData[info.ID] = &dbt.GroupData{}
	if info.InviteCode != "" {
		db.inviteIdx[info.InviteCode] = info.ID
	}

	// The creator joins immediately as the first member.
	if info.CreatedBy != uuid.Nil {
		db.groupsData[info.ID].Members = append(db.groupsData[info.ID].Members, dbt.Member{
			UserID:   info.CreatedBy,
			JoinedAt: time.Now(),
		})
	}
	return nil
}

func (db *inMemoryGroupDBWrapper) GetGroupInfo(id uuid.UUID) (*dbt.GroupInfo, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	info, exists := db.groupsInfo[id]
	if !exists {
		return nil, fmt.Errorf("group info with ID %s not found", id)
	}
	infoCopy := *info
	return &infoCopy, nil
}

func (db *inMemoryGroupDBWrapper) GetGroupByInviteCode(code string) (*dbt.GroupInfo, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	id, exists := db.inviteIdx[code]
	if !exists {
		return nil, fmt.Errorf("no group with invite code %q", code)
	}
	infoCopy := *db.groupsInfo[id]
	return &infoCopy, nil
}

func (db *inMemoryGroupDBWrapper) UpdateGroupInfo(info *dbt.GroupInfo) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	prev, exists := db.groupsInfo[info.ID]
	if !exists {
		return fmt.Errorf("group with ID %s not found for update", info.ID)
	}
	if prev.InviteCode != info.InviteCode {
		if other, used := db.inviteIdx[info.InviteCode]; used && other != info.ID {
			return fmt.Errorf("invite code %q already used by group %s", info.InviteCode, other)
		}
		delete(db.inviteIdx, prev.InviteCode)
		if info.InviteCode != "" {
			db.inviteIdx[info.InviteCode] = info.ID
		}
	}
	infoCopy := *info
	db.groupsInfo[info.ID] = &infoCopy
	return nil
}

func (db *inMemoryGroupDBWrapper) DeleteGroup(id uuid.UUID) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	info, exists := db.groupsInfo[id]
	if !exists {
		return fmt.Errorf("group with ID %s not found for deletion", id)
	}
	delete(db.inviteIdx, info.InviteCode)
	delete(db.groupsInfo, id)
	delete(db.groupsData, id) // cascades to bills and payments
	return nil
}

func (db *inMemoryGroupDBWrapper) GroupMemberAdd(id uuid.UUID, member dbt.Member) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	data, exists := db.groupsData[id]
	if !exists {
		return fmt.Errorf("group with ID %s not found", id)
	}
	for _, m := range data.Members {
		if m.UserID == member.UserID {
			return fmt.Errorf("user %s is already a member of group %s", member.UserID, id)
		}
	}
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now()
	}
	data.Members = append(data.Members, member)
	return nil
}

func (db *inMemoryGroupDBWrapper) GroupMemberRemove(id uuid.UUID, userID uuid.UUID) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	data, exists := db.groupsData[id]
	if !exists {
		return fmt.Errorf("group with ID %s not found", id)
	}
	foundIdx := -1
	for i, m := range data.Members {
		if m.UserID == userID {
			foundIdx = i
			break
		}
	}
	if foundIdx == -1 {
		return fmt.Errorf("user %s is not a member of group %s", userID, id)
	}
	data.Members = append(data.Members[:foundIdx], data.Members[foundIdx+1:]...)
	return nil
}

func (db *inMemoryGroupDBWrapper) GetGroupMembers(id uuid.UUID) ([]dbt.Member, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	data, exists := db.groupsData[id]
	if !exists {
		return nil, fmt.Errorf("group with ID %s not found", id)
	}
	membersCopy := make([]dbt.Member, len(data.Members))
	copy(membersCopy, data.Members)
	return membersCopy, nil
}

func (db *inMemoryGroupDBWrapper) CreateGroupBills(id uuid.UUID, bills []dbt.Bill) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	data, exists := db.groupsData[id]
	if !exists {
		return fmt.Errorf("group with ID %s not found", id)
	}
	for i := range bills {
		bills[i].GroupID = id
	}
	data.Bills = append(data.Bills, bills...)
	return nil
}

func (db *inMemoryGroupDBWrapper) GetGroupBills(id uuid.UUID) ([]dbt.Bill, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	data, exists := db.groupsData[id]
	if !exists {
		return nil, fmt.Errorf("group with ID %s not found", id)
	}
	billsCopy := make([]dbt.Bill, len(data.Bills))
	copy(billsCopy, data.Bills)
	return billsCopy, nil
}

func (db *inMemoryGroupDBWrapper) GetGroupBill(billID uuid.UUID) (*dbt.Bill, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, data := range db.groupsData {
		for _, b := range data.Bills {
			if b.ID == billID {
				billCopy := b
				return &billCopy, nil
			}
		}
	}
	return nil, fmt.Errorf("bill with ID %s not found", billID)
}

// UpdateGroupBill replaces a bill wholesale and returns the group it
// belongs to, so callers can publish a scoped event.
func (db *inMemoryGroupDBWrapper) UpdateGroupBill(bill *dbt.Bill) (uuid.UUID, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for groupID, data := range db.groupsData {
		for i, b := range data.Bills {
			if b.ID == bill.ID {
				bill.GroupID = groupID
				data.Bills[i] = *bill
				return groupID, nil
			}
		}
	}
	return uuid.Nil, fmt.Errorf("bill with ID %s not found for update", bill.ID)
}

func (db *inMemoryGroupDBWrapper) DeleteGroupBill(billID uuid.UUID) (uuid.UUID, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for groupID, data := range db.groupsData {
		for i, b := range data.Bills {
			if b.ID == billID {
				data.Bills = append(data.Bills[:i], data.Bills[i+1:]...)
				return groupID, nil
			}
		}
	}
	return uuid.Nil, fmt.Errorf("bill with ID %s not found for deletion", billID)
}

func (db *inMemoryGroupDBWrapper) CreatePayments(id uuid.UUID, payments []dbt.Payment) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	data, exists := db.groupsData[id]
	if !exists {
		return fmt.Errorf("group with ID %s not found", id)
	}
	now := time.Now()
	for i := range payments {
		if payments[i].Amount <= 0 {
			return fmt.Errorf("payment amount must be positive, got %d", payments[i].Amount)
		}
		payments[i].GroupID = id
		if payments[i].CreatedAt.IsZero() {
			payments[i].CreatedAt = now
		}
	}
	data.Payments = append(data.Payments, payments...)
	return nil
}

func (db *inMemoryGroupDBWrapper) GetGroupPayments(id uuid.UUID) ([]dbt.Payment, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	data, exists := db.groupsData[id]
	if !exists {
		return nil, fmt.Errorf("group with ID %s not found", id)
	}
	paymentsCopy := make([]dbt.Payment, len(data.Payments))
	copy(paymentsCopy, data.Payments)
	return paymentsCopy, nil
}

func (db *inMemoryGroupDBWrapper) ListGroupsForMember(userID uuid.UUID) ([]dbt.GroupInfo, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var out []dbt.GroupInfo
	for id, data := range db.groupsData {
		for _, m := range data.Members {
			if m.UserID == userID {
				out = append(out, *db.groupsInfo[id])
				break
			}
		}
	}
	return out, nil
}

func (db *inMemoryGroupDBWrapper) DataLoaderGetGroupInfoList(_ context.Context, groupIDs []uuid.UUID) (map[uuid.UUID]*dbt.GroupInfo, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make(map[uuid.UUID]*dbt.GroupInfo, len(groupIDs))
	for _, id := range groupIDs {
		if info, exists := db.groupsInfo[id]; exists {
			infoCopy := *info
			out[id] = &infoCopy
		}
	}
	return out, nil
}

func (db *inMemoryGroupDBWrapper) DataLoaderGetMemberList(_ context.Context, groupIDs []uuid.UUID) (map[uuid.UUID][]dbt.Member, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make(map[uuid.UUID][]dbt.Member, len(groupIDs))
	for _, id := range groupIDs {
		if data, exists := db.groupsData[id]; exists {
			membersCopy := make([]dbt.Member, len(data.Members))
			copy(membersCopy, data.Members)
			out[id] = membersCopy
		}
	}
	return out, nil
}

func (db *inMemoryGroupDBWrapper) DataLoaderGetBillList(_ context.Context, groupIDs []uuid.UUID) (map[uuid.UUID][]dbt.Bill, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make(map[uuid.UUID][]dbt.Bill, len(groupIDs))
	for _, id := range groupIDs {
		if data, exists := db.groupsData[id]; exists {
			billsCopy := make([]dbt.Bill, len(data.Bills))
			copy(billsCopy, data.Bills)
			out[id] = billsCopy
		}
	}
	return out, nil
}

func (db *inMemoryGroupDBWrapper) DataLoaderGetPaymentList(_ context.Context, groupIDs []uuid.UUID) (map[uuid.UUID][]dbt.Payment, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make(map[uuid.UUID][]dbt.Payment, len(groupIDs))
	for _, id := range groupIDs {
		if data, exists := db.groupsData[id]; exists {
			paymentsCopy := make([]dbt.Payment, len(data.Payments))
			copy(paymentsCopy, data.Payments)
			out[id] = paymentsCopy
		}
	}
	return out, nil
}
