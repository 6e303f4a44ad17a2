package pg

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbt "splitbook/db/db"
)

// GORMGroupDBWrapper is a GORM-based PostgreSQL implementation of dbt.GroupDBWrapper.
type GORMGroupDBWrapper struct {
	db *gorm.DB
}

// NewGORMGroupDBWrapper creates and returns a new instance of GORMGroupDBWrapper.
func NewGORMGroupDBWrapper(db *gorm.DB) dbt.GroupDBWrapper {
	return &GORMGroupDBWrapper{
		db: db,
	}
}

// CreateGroup creates a new group entry using GORM. The creator is added as
// the first member in the same transaction.
func (pgdb *GORMGroupDBWrapper) CreateGroup(info *dbt.GroupInfo) error {
	groupModel := GroupModel{
		ID:         info.ID,
		Name:       info.Name,
		Emoji:      info.Emoji,
		Currency:   info.Currency,
		InviteCode: info.InviteCode,
		CreatedBy:  info.CreatedBy,
	}
	err := pgdb.db.Transaction(func(tx *gorm.DB) error {
		if result := tx.Create(&groupModel); result.Error != nil {
			return result.Error
		}
		if info.CreatedBy != uuid.Nil {
			member := GroupMemberModel{
				GroupID:  info.ID,
				UserID:   info.CreatedBy,
				JoinedAt: time.Now(),
			}
			if result := tx.Create(&member); result.Error != nil {
				return result.Error
			}
		}
		return nil
	})
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
			return fmt.Errorf("group with ID %s already exists: %w", info.ID, err)
		}
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

// GetGroupInfo retrieves group information by ID using GORM.
func (pgdb *GORMGroupDBWrapper) GetGroupInfo(id uuid.UUID) (*dbt.GroupInfo, error) {
	var groupModel GroupModel
	result := pgdb.db.First(&groupModel, "id = ?", id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("group info with ID %s not found", id)
		}
		return nil, fmt.Errorf("failed to get group info for ID %s: %w", id, result.Error)
	}
	return groupInfoFromModel(groupModel), nil
}

// GetGroupByInviteCode resolves a join code to its group using GORM.
func (pgdb *GORMGroupDBWrapper) GetGroupByInviteCode(code string) (*dbt.GroupInfo, error) {
	var groupModel GroupModel
	result := pgdb.db.First(&groupModel, "invite_code = ?", code)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("no group with invite code %q", code)
		}
		return nil, fmt.Errorf("failed to get group by invite code: %w", result.Error)
	}
	return groupInfoFromModel(groupModel), nil
}

// UpdateGroupInfo updates the information of an existing group using GORM.
func (pgdb *GORMGroupDBWrapper) UpdateGroupInfo(info *dbt.GroupInfo) error {
	updates := map[string]interface{}{
		"name":        info.Name,
		"emoji":       info.Emoji,
		"currency":    info.Currency,
		"invite_code": info.InviteCode,
	}
	result := pgdb.db.Model(&GroupModel{}).Where("id = ?", info.ID).Updates(updates)
	if result.Error != nil {
		if strings.Contains(result.Error.Error(), "duplicate key value violates unique constraint") {
			return fmt.Errorf("invite code %q already used: %w", info.InviteCode, result.Error)
		}
		return fmt.Errorf("failed to update group info for ID %s: %w", info.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("group with ID %s not found for update", info.ID)
	}
	return nil
}

// DeleteGroup deletes a group and all its associated data using GORM.
// Members, bills, items, splits and payments go in the same transaction;
// the schema also carries ON DELETE CASCADE as a backstop.
func (pgdb *GORMGroupDBWrapper) DeleteGroup(id uuid.UUID) error {
	err := pgdb.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&GroupModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if result := tx.Delete(&GroupMemberModel{}, "group_id = ?", id); result.Error != nil {
			return result.Error
		}
		if result := tx.Delete(&ItemSplitModel{}, "bill_id IN (?)", tx.Model(&BillModel{}).Select("id").Where("group_id = ?", id)); result.Error != nil {
			return result.Error
		}
		if result := tx.Delete(&BillItemModel{}, "group_id = ?", id); result.Error != nil {
			return result.Error
		}
		if result := tx.Delete(&BillModel{}, "group_id = ?", id); result.Error != nil {
			return result.Error
		}
		if result := tx.Delete(&PaymentModel{}, "group_id = ?", id); result.Error != nil {
			return result.Error
		}
		return nil
	})
	if err == gorm.ErrRecordNotFound {
		return fmt.Errorf("group with ID %s not found for deletion", id)
	}
	if err != nil {
		return fmt.Errorf("failed to delete group with ID %s: %w", id, err)
	}
	return nil
}

// GroupMemberAdd adds a member to a group using GORM.
func (pgdb *GORMGroupDBWrapper) GroupMemberAdd(id uuid.UUID, member dbt.Member) error {
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now()
	}
	memberModel := GroupMemberModel{
		GroupID:    id,
		UserID:     member.UserID,
		Name:       member.Name,
		ColorIndex: member.ColorIndex,
		JoinedAt:   member.JoinedAt,
	}
	result := pgdb.db.Create(&memberModel)
	if result.Error != nil {
		if strings.Contains(result.Error.Error(), "duplicate key value violates unique constraint") {
			return fmt.Errorf("user %s is already a member of group %s", member.UserID, id)
		}
		if strings.Contains(result.Error.Error(), "violates foreign key constraint") {
			return fmt.Errorf("group with ID %s not found: %w", id, result.Error)
		}
		return fmt.Errorf("failed to add member %s to group %s: %w", member.UserID, id, result.Error)
	}
	return nil
}

// GroupMemberRemove removes a member from a group using GORM.
func (pgdb *GORMGroupDBWrapper) GroupMemberRemove(id uuid.UUID, userID uuid.UUID) error {
	result := pgdb.db.Where("group_id = ? AND user_id = ?", id, userID).Delete(&GroupMemberModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove member %s from group %s: %w", userID, id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("user %s is not a member of group %s", userID, id)
	}
	return nil
}

// GetGroupMembers retrieves a group's members ordered by join time using GORM.
func (pgdb *GORMGroupDBWrapper) GetGroupMembers(id uuid.UUID) ([]dbt.Member, error) {
	var memberModels []GroupMemberModel
	result := pgdb.db.Where("group_id = ?", id).Order("joined_at ASC").Find(&memberModels)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get members for group ID %s: %w", id, result.Error)
	}

	members := make([]dbt.Member, len(memberModels))
	for i, mm := range memberModels {
		members[i] = dbt.Member{
			UserID:     mm.UserID,
			Name:       mm.Name,
			ColorIndex: mm.ColorIndex,
			JoinedAt:   mm.JoinedAt,
		}
	}
	return members, nil
}

// CreateGroupBills adds a slice of bills to an existing group using GORM.
// Each bill's header, items and splits are written in one transaction.
func (pgdb *GORMGroupDBWrapper) CreateGroupBills(groupID uuid.UUID, bills []dbt.Bill) error {
	if len(bills) == 0 {
		return nil
	}

	err := pgdb.db.Transaction(func(tx *gorm.DB) error {
		for i := range bills {
			bills[i].GroupID = groupID
			billModel, itemModels, splitModels := billToModels(bills[i])
			if result := tx.Create(&billModel); result.Error != nil {
				return result.Error
			}
			if len(itemModels) > 0 {
				if result := tx.Create(&itemModels); result.Error != nil {
					return result.Error
				}
			}
			if len(splitModels) > 0 {
				if result := tx.Create(&splitModels); result.Error != nil {
					return result.Error
				}
			}
		}
		return nil
	})
	if err != nil {
		if strings.Contains(err.Error(), "violates foreign key constraint") {
			return fmt.Errorf("group with ID %s not found for creating bills: %w", groupID, err)
		}
		return fmt.Errorf("failed to create bills for group %s: %w", groupID, err)
	}
	return nil
}

// GetGroupBills retrieves all bills for a given group ID using GORM.
func (pgdb *GORMGroupDBWrapper) GetGroupBills(id uuid.UUID) ([]dbt.Bill, error) {
	var billModels []BillModel
	result := pgdb.db.Where("group_id = ?", id).Order("bill_date ASC, created_at ASC").Find(&billModels)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get bills for group ID %s: %w", id, result.Error)
	}
	return pgdb.assembleBills(pgdb.db, billModels)
}

// GetGroupBill retrieves a single bill with its items and splits using GORM.
func (pgdb *GORMGroupDBWrapper) GetGroupBill(billID uuid.UUID) (*dbt.Bill, error) {
	var billModel BillModel
	result := pgdb.db.First(&billModel, "id = ?", billID)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("bill with ID %s not found", billID)
		}
		return nil, fmt.Errorf("failed to get bill with ID %s: %w", billID, result.Error)
	}
	bills, err := pgdb.assembleBills(pgdb.db, []BillModel{billModel})
	if err != nil {
		return nil, err
	}
	return &bills[0], nil
}

// UpdateGroupBill replaces a bill wholesale using GORM and returns the group
// it belongs to, so callers can publish a scoped event. Items and splits are
// rewritten rather than diffed.
func (pgdb *GORMGroupDBWrapper) UpdateGroupBill(bill *dbt.Bill) (uuid.UUID, error) {
	var groupID uuid.UUID
	err := pgdb.db.Transaction(func(tx *gorm.DB) error {
		var existing BillModel
		if result := tx.First(&existing, "id = ?", bill.ID); result.Error != nil {
			return result.Error
		}
		groupID = existing.GroupID
		bill.GroupID = groupID

		billModel, itemModels, splitModels := billToModels(*bill)
		result := tx.Model(&BillModel{}).Where("id = ?", bill.ID).Updates(map[string]interface{}{
			"payer_id":  billModel.PayerID,
			"title":     billModel.Title,
			"category":  billModel.Category,
			"bill_date": billModel.BillDate,
			"tax":       billModel.Tax,
			"tip":       billModel.Tip,
		})
		if result.Error != nil {
			return result.Error
		}
		if result := tx.Delete(&ItemSplitModel{}, "bill_id = ?", bill.ID); result.Error != nil {
			return result.Error
		}
		if result := tx.Delete(&BillItemModel{}, "bill_id = ?", bill.ID); result.Error != nil {
			return result.Error
		}
		if len(itemModels) > 0 {
			if result := tx.Create(&itemModels); result.Error != nil {
				return result.Error
			}
		}
		if len(splitModels) > 0 {
			if result := tx.Create(&splitModels); result.Error != nil {
				return result.Error
			}
		}
		return nil
	})
	if err == gorm.ErrRecordNotFound {
		return uuid.Nil, fmt.Errorf("bill with ID %s not found for update", bill.ID)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to update bill with ID %s: %w", bill.ID, err)
	}
	return groupID, nil
}

// DeleteGroupBill deletes a bill with its items and splits using GORM,
// returning the owning group id.
func (pgdb *GORMGroupDBWrapper) DeleteGroupBill(billID uuid.UUID) (uuid.UUID, error) {
	var groupID uuid.UUID
	err := pgdb.db.Transaction(func(tx *gorm.DB) error {
		var existing BillModel
		if result := tx.First(&existing, "id = ?", billID); result.Error != nil {
			return result.Error
		}
		groupID = existing.GroupID

		if result := tx.Delete(&ItemSplitModel{}, "bill_id = ?", billID); result.Error != nil {
			return result.Error
		}
		if result := tx.Delete(&BillItemModel{}, "bill_id = ?", billID); result.Error != nil {
			return result.Error
		}
		if result := tx.Delete(&BillModel{}, "id = ?", billID); result.Error != nil {
			return result.Error
		}
		return nil
	})
	if err == gorm.ErrRecordNotFound {
		return uuid.Nil, fmt.Errorf("bill with ID %s not found for deletion", billID)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to delete bill with ID %s: %w", billID, err)
	}
	return groupID, nil
}

// CreatePayments appends settlement records using GORM. There is no update
// or delete path for payments.
func (pgdb *GORMGroupDBWrapper) CreatePayments(groupID uuid.UUID, payments []dbt.Payment) error {
	if len(payments) == 0 {
		return nil
	}

	paymentModels := make([]PaymentModel, len(payments))
	for i, p := range payments {
		if p.Amount <= 0 {
			return fmt.Errorf("payment amount must be positive, got %d", p.Amount)
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now()
		}
		paymentModels[i] = PaymentModel{
			ID:         p.ID,
			GroupID:    groupID,
			FromUserID: p.FromUserID,
			ToUserID:   p.ToUserID,
			Amount:     p.Amount,
			Note:       p.Note,
			CreatedAt:  p.CreatedAt,
		}
	}

	result := pgdb.db.Create(&paymentModels)
	if result.Error != nil {
		if strings.Contains(result.Error.Error(), "violates foreign key constraint") {
			return fmt.Errorf("group with ID %s not found for creating payments: %w", groupID, result.Error)
		}
		return fmt.Errorf("failed to create payments for group %s: %w", groupID, result.Error)
	}
	return nil
}

// GetGroupPayments retrieves all payments for a group in creation order using GORM.
func (pgdb *GORMGroupDBWrapper) GetGroupPayments(id uuid.UUID) ([]dbt.Payment, error) {
	var paymentModels []PaymentModel
	result := pgdb.db.Where("group_id = ?", id).Order("created_at ASC").Find(&paymentModels)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get payments for group ID %s: %w", id, result.Error)
	}

	payments := make([]dbt.Payment, len(paymentModels))
	for i, pm := range paymentModels {
		payments[i] = paymentFromModel(pm)
	}
	return payments, nil
}

// ListGroupsForMember retrieves every group a user belongs to using GORM.
func (pgdb *GORMGroupDBWrapper) ListGroupsForMember(userID uuid.UUID) ([]dbt.GroupInfo, error) {
	var groupModels []GroupModel
	result := pgdb.db.
		Joins("JOIN group_members ON group_members.group_id = groups.id").
		Where("group_members.user_id = ?", userID).
		Order("group_members.joined_at ASC").
		Find(&groupModels)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list groups for user %s: %w", userID, result.Error)
	}

	groups := make([]dbt.GroupInfo, len(groupModels))
	for i, gm := range groupModels {
		groups[i] = *groupInfoFromModel(gm)
	}
	return groups, nil
}

// DataLoaderGetGroupInfoList retrieves group infos for a set of group IDs using GORM.
// This method is designed to be used with a DataLoader for batching queries.
func (pgdb *GORMGroupDBWrapper) DataLoaderGetGroupInfoList(ctx context.Context, groupIDs []uuid.UUID) (map[uuid.UUID]*dbt.GroupInfo, error) {
	var groupModels []GroupModel
	result := pgdb.db.WithContext(ctx).Where("id IN ?", groupIDs).Find(&groupModels)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to retrieve group infos: %w", result.Error)
	}

	out := make(map[uuid.UUID]*dbt.GroupInfo, len(groupModels))
	for _, gm := range groupModels {
		out[gm.ID] = groupInfoFromModel(gm)
	}
	return out, nil
}

// DataLoaderGetMemberList retrieves member lists for a set of group IDs using GORM.
func (pgdb *GORMGroupDBWrapper) DataLoaderGetMemberList(ctx context.Context, groupIDs []uuid.UUID) (map[uuid.UUID][]dbt.Member, error) {
	var memberModels []GroupMemberModel
	result := pgdb.db.WithContext(ctx).Where("group_id IN ?", groupIDs).Order("joined_at ASC").Find(&memberModels)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to retrieve member lists: %w", result.Error)
	}

	out := make(map[uuid.UUID][]dbt.Member, len(groupIDs))
	for _, mm := range memberModels {
		out[mm.GroupID] = append(out[mm.GroupID], dbt.Member{
			UserID:     mm.UserID,
			Name:       mm.Name,
			ColorIndex: mm.ColorIndex,
			JoinedAt:   mm.JoinedAt,
		})
	}
	return out, nil
}

// DataLoaderGetBillList retrieves full bill lists for a set of group IDs using GORM.
func (pgdb *GORMGroupDBWrapper) DataLoaderGetBillList(ctx context.Context, groupIDs []uuid.UUID) (map[uuid.UUID][]dbt.Bill, error) {
	var billModels []BillModel
	result := pgdb.db.WithContext(ctx).Where("group_id IN ?", groupIDs).Order("bill_date ASC, created_at ASC").Find(&billModels)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to retrieve bill lists: %w", result.Error)
	}

	bills, err := pgdb.assembleBills(pgdb.db.WithContext(ctx), billModels)
	if err != nil {
		return nil, err
	}

	out := make(map[uuid.UUID][]dbt.Bill, len(groupIDs))
	for _, b := range bills {
		out[b.GroupID] = append(out[b.GroupID], b)
	}
	return out, nil
}

// DataLoaderGetPaymentList retrieves payment lists for a set of group IDs using GORM.
func (pgdb *GORMGroupDBWrapper) DataLoaderGetPaymentList(ctx context.Context, groupIDs []uuid.UUID) (map[uuid.UUID][]dbt.Payment, error) {
	var paymentModels []PaymentModel
	result := pgdb.db.WithContext(ctx).Where("group_id IN ?", groupIDs).Order("created_at ASC").Find(&paymentModels)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to retrieve payment lists: %w", result.Error)
	}

	out := make(map[uuid.UUID][]dbt.Payment, len(groupIDs))
	for _, pm := range paymentModels {
		out[pm.GroupID] = append(out[pm.GroupID], paymentFromModel(pm))
	}
	return out, nil
}

// assembleBills loads items and splits for a set of bill headers and stitches
// them back into full bills, preserving stored positions.
func (pgdb *GORMGroupDBWrapper) assembleBills(tx *gorm.DB, billModels []BillModel) ([]dbt.Bill, error) {
	if len(billModels) == 0 {
		return []dbt.Bill{}, nil
	}

	billIDs := make([]uuid.UUID, len(billModels))
	for i, bm := range billModels {
		billIDs[i] = bm.ID
	}

	var itemModels []BillItemModel
	if result := tx.Where("bill_id IN ?", billIDs).Find(&itemModels); result.Error != nil {
		return nil, fmt.Errorf("failed to get bill items: %w", result.Error)
	}
	var splitModels []ItemSplitModel
	if result := tx.Where("bill_id IN ?", billIDs).Find(&splitModels); result.Error != nil {
		return nil, fmt.Errorf("failed to get item splits: %w", result.Error)
	}

	splitsByItem := make(map[uuid.UUID][]ItemSplitModel)
	for _, sm := range splitModels {
		splitsByItem[sm.ItemID] = append(splitsByItem[sm.ItemID], sm)
	}
	itemsByBill := make(map[uuid.UUID][]BillItemModel)
	for _, im := range itemModels {
		itemsByBill[im.BillID] = append(itemsByBill[im.BillID], im)
	}

	bills := make([]dbt.Bill, len(billModels))
	for i, bm := range billModels {
		bill := dbt.Bill{
			BillInfo: dbt.BillInfo{
				ID:       bm.ID,
				GroupID:  bm.GroupID,
				PayerID:  bm.PayerID,
				Title:    bm.Title,
				Category: bm.Category,
				BillDate: bm.BillDate,
				Tax:      bm.Tax,
				Tip:      bm.Tip,
			},
		}
		items := itemsByBill[bm.ID]
		sort.Slice(items, func(a, b int) bool { return items[a].Position < items[b].Position })
		for _, im := range items {
			item := dbt.BillItem{
				ID:       im.ID,
				Name:     im.Name,
				Price:    im.Price,
				Quantity: im.Quantity,
				Mode:     im.Mode,
			}
			splits := splitsByItem[im.ID]
			sort.Slice(splits, func(a, b int) bool { return splits[a].Position < splits[b].Position })
			for _, sm := range splits {
				item.Splits = append(item.Splits, dbt.ItemSplit{
					UserID:     sm.UserID,
					Percentage: sm.Percentage,
					Amount:     sm.Amount,
				})
			}
			bill.Items = append(bill.Items, item)
		}
		bills[i] = bill
	}
	return bills, nil
}

func billToModels(bill dbt.Bill) (BillModel, []BillItemModel, []ItemSplitModel) {
	billModel := BillModel{
		ID:       bill.ID,
		GroupID:  bill.GroupID,
		PayerID:  bill.PayerID,
		Title:    bill.Title,
		Category: bill.Category,
		BillDate: bill.BillDate,
		Tax:      bill.Tax,
		Tip:      bill.Tip,
	}
	var itemModels []BillItemModel
	var splitModels []ItemSplitModel
	for pos, item := range bill.Items {
		itemModels = append(itemModels, BillItemModel{
			ID:       item.ID,
			BillID:   bill.ID,
			GroupID:  bill.GroupID,
			Name:     item.Name,
			Price:    item.Price,
			Quantity: item.Quantity,
			Mode:     item.Mode,
			Position: pos,
		})
		for spos, s := range item.Splits {
			splitModels = append(splitModels, ItemSplitModel{
				ItemID:     item.ID,
				UserID:     s.UserID,
				BillID:     bill.ID,
				Percentage: s.Percentage,
				Amount:     s.Amount,
				Position:   spos,
			})
		}
	}
	return billModel, itemModels, splitModels
}

func groupInfoFromModel(gm GroupModel) *dbt.GroupInfo {
	return &dbt.GroupInfo{
		ID:         gm.ID,
		Name:       gm.Name,
		Emoji:      gm.Emoji,
		Currency:   gm.Currency,
		InviteCode: gm.InviteCode,
		CreatedBy:  gm.CreatedBy,
	}
}

func paymentFromModel(pm PaymentModel) dbt.Payment {
	return dbt.Payment{
		ID:         pm.ID,
		GroupID:    pm.GroupID,
		FromUserID: pm.FromUserID,
		ToUserID:   pm.ToUserID,
		Amount:     pm.Amount,
		Note:       pm.Note,
		CreatedAt:  pm.CreatedAt,
	}
}
