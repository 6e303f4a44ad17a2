package mem_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	dbt "splitbook/db/db"
	"splitbook/db/mem"
)

// setupTest creates a fresh in-memory store for each test.
func setupTest() dbt.GroupDBWrapper {
	return mem.NewInMemoryGroupDBWrapper()
}

func TestCreateGroup(t *testing.T) {
	db := setupTest()

	groupID := uuid.New()
	creator := uuid.New()
	info := &dbt.GroupInfo{
		ID:         groupID,
		Name:       "Ski Weekend",
		Emoji:      "⛷️",
		Currency:   "USD",
		InviteCode: "SKI123",
		CreatedBy:  creator,
	}
	err := db.CreateGroup(info)
	assert.NoError(t, err, "CreateGroup should not return an error for a new group")

	retrieved, err := db.GetGroupInfo(groupID)
	assert.NoError(t, err)
	assert.NotNil(t, retrieved)
	assert.Equal(t, info.Name, retrieved.Name)
	assert.Equal(t, info.Currency, retrieved.Currency)

	// The creator joins automatically.
	members, err := db.GetGroupMembers(groupID)
	assert.NoError(t, err)
	assert.Len(t, members, 1)
	assert.Equal(t, creator, members[0].UserID)

	// Duplicate ID should fail.
	err = db.CreateGroup(info)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	// Duplicate invite code should fail too.
	err = db.CreateGroup(&dbt.GroupInfo{ID: uuid.New(), Name: "Other", InviteCode: "SKI123"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already used")
}

func TestGetGroupByInviteCode(t *testing.T) {
	db := setupTest()

	groupID := uuid.New()
	db.CreateGroup(&dbt.GroupInfo{ID: groupID, Name: "Roadtrip", InviteCode: "ROAD42"})

	retrieved, err := db.GetGroupByInviteCode("ROAD42")
	assert.NoError(t, err)
	assert.Equal(t, groupID, retrieved.ID)

	retrieved, err = db.GetGroupByInviteCode("NOPE")
	assert.Error(t, err)
	assert.Nil(t, retrieved)
}

func TestUpdateGroupInfo(t *testing.T) {
	db := setupTest()

	groupID := uuid.New()
	db.CreateGroup(&dbt.GroupInfo{ID: groupID, Name: "Original", InviteCode: "AAA111"})

	err := db.UpdateGroupInfo(&dbt.GroupInfo{ID: groupID, Name: "Renamed", InviteCode: "BBB222"})
	assert.NoError(t, err)

	retrieved, err := db.GetGroupInfo(groupID)
	assert.NoError(t, err)
	assert.Equal(t, "Renamed", retrieved.Name)

	// Old invite code is released, new one resolves.
	_, err = db.GetGroupByInviteCode("AAA111")
	assert.Error(t, err)
	byCode, err := db.GetGroupByInviteCode("BBB222")
	assert.NoError(t, err)
	assert.Equal(t, groupID, byCode.ID)

	// Updating a missing group fails.
	err = db.UpdateGroupInfo(&dbt.GroupInfo{ID: uuid.New(), Name: "Ghost"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDeleteGroup(t *testing.T) {
	db := setupTest()

	groupID := uuid.New()
	db.CreateGroup(&dbt.GroupInfo{ID: groupID, Name: "Doomed", InviteCode: "DOOM99"})
	db.CreateGroupBills(groupID, []dbt.Bill{{BillInfo: dbt.BillInfo{ID: uuid.New(), Title: "Dinner"}}})

	err := db.DeleteGroup(groupID)
	assert.NoError(t, err)

	_, err = db.GetGroupInfo(groupID)
	assert.Error(t, err)
	_, err = db.GetGroupBills(groupID)
	assert.Error(t, err, "bills should be gone with the group")
	_, err = db.GetGroupByInviteCode("DOOM99")
	assert.Error(t, err)

	err = db.DeleteGroup(groupID)
	assert.Error(t, err, "double delete should fail")
}

func TestGroupMembers(t *testing.T) {
	db := setupTest()

	groupID := uuid.New()
	db.CreateGroup(&dbt.GroupInfo{ID: groupID, Name: "Flatmates"})

	alice := uuid.New()
	bob := uuid.New()
	assert.NoError(t, db.GroupMemberAdd(groupID, dbt.Member{UserID: alice, Name: "Alice"}))
	assert.NoError(t, db.GroupMemberAdd(groupID, dbt.Member{UserID: bob, Name: "Bob"}))

	// Duplicate membership is rejected.
	err := db.GroupMemberAdd(groupID, dbt.Member{UserID: alice, Name: "Alice"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already a member")

	// Join order is preserved.
	members, err := db.GetGroupMembers(groupID)
	assert.NoError(t, err)
	assert.Len(t, members, 2)
	assert.Equal(t, alice, members[0].UserID)
	assert.Equal(t, bob, members[1].UserID)
	assert.False(t, members[0].JoinedAt.IsZero())

	assert.NoError(t, db.GroupMemberRemove(groupID, alice))
	members, _ = db.GetGroupMembers(groupID)
	assert.Len(t, members, 1)
	assert.Equal(t, bob, members[0].UserID)

	err = db.GroupMemberRemove(groupID, alice)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not a member")
}

func TestGroupBills(t *testing.T) {
	db := setupTest()

	groupID := uuid.New()
	db.CreateGroup(&dbt.GroupInfo{ID: groupID, Name: "Dinner Club"})

	billID := uuid.New()
	bill := dbt.Bill{
		BillInfo: dbt.BillInfo{ID: billID, Title: "Sushi", Tax: 250},
		BillData: dbt.BillData{Items: []dbt.BillItem{
			{ID: uuid.New(), Name: "Set A", Price: 3000, Quantity: 1, Splits: []dbt.ItemSplit{{UserID: uuid.New()}}},
		}},
	}
	assert.NoError(t, db.CreateGroupBills(groupID, []dbt.Bill{bill}))
	assert.Error(t, db.CreateGroupBills(uuid.New(), []dbt.Bill{bill}), "unknown group should fail")

	bills, err := db.GetGroupBills(groupID)
	assert.NoError(t, err)
	assert.Len(t, bills, 1)
	assert.Equal(t, groupID, bills[0].GroupID, "group id is stamped on insert")
	assert.Equal(t, "Sushi", bills[0].Title)

	single, err := db.GetGroupBill(billID)
	assert.NoError(t, err)
	assert.Equal(t, "Sushi", single.Title)

	// Update returns the owning group id.
	single.Title = "Sushi (corrected)"
	owner, err := db.UpdateGroupBill(single)
	assert.NoError(t, err)
	assert.Equal(t, groupID, owner)
	updated, _ := db.GetGroupBill(billID)
	assert.Equal(t, "Sushi (corrected)", updated.Title)

	_, err = db.UpdateGroupBill(&dbt.Bill{BillInfo: dbt.BillInfo{ID: uuid.New()}})
	assert.Error(t, err)

	owner, err = db.DeleteGroupBill(billID)
	assert.NoError(t, err)
	assert.Equal(t, groupID, owner)
	bills, _ = db.GetGroupBills(groupID)
	assert.Len(t, bills, 0)

	_, err = db.DeleteGroupBill(billID)
	assert.Error(t, err, "double delete should fail")
}

func TestPaymentsAppendOnly(t *testing.T) {
	db := setupTest()

	groupID := uuid.New()
	db.CreateGroup(&dbt.GroupInfo{ID: groupID, Name: "Settle Up"})

	from := uuid.New()
	to := uuid.New()
	p := dbt.Payment{ID: uuid.New(), FromUserID: from, ToUserID: to, Amount: 1500}
	assert.NoError(t, db.CreatePayments(groupID, []dbt.Payment{p}))

	payments, err := db.GetGroupPayments(groupID)
	assert.NoError(t, err)
	assert.Len(t, payments, 1)
	assert.Equal(t, groupID, payments[0].GroupID)
	assert.False(t, payments[0].CreatedAt.IsZero(), "store assigns creation time")

	// Non-positive amounts are rejected.
	bad := dbt.Payment{ID: uuid.New(), FromUserID: from, ToUserID: to, Amount: 0}
	assert.Error(t, db.CreatePayments(groupID, []dbt.Payment{bad}))

	// A second payment appends; the first is untouched.
	p2 := dbt.Payment{ID: uuid.New(), FromUserID: to, ToUserID: from, Amount: 500, CreatedAt: time.Now()}
	assert.NoError(t, db.CreatePayments(groupID, []dbt.Payment{p2}))
	payments, _ = db.GetGroupPayments(groupID)
	assert.Len(t, payments, 2)
	assert.Equal(t, int64(1500), payments[0].Amount)
}

func TestListGroupsForMember(t *testing.T) {
	db := setupTest()

	alice := uuid.New()
	g1 := uuid.New()
	g2 := uuid.New()
	g3 := uuid.New()
	db.CreateGroup(&dbt.GroupInfo{ID: g1, Name: "One", CreatedBy: alice})
	db.CreateGroup(&dbt.GroupInfo{ID: g2, Name: "Two"})
	db.CreateGroup(&dbt.GroupInfo{ID: g3, Name: "Three"})
	db.GroupMemberAdd(g2, dbt.Member{UserID: alice})

	groups, err := db.ListGroupsForMember(alice)
	assert.NoError(t, err)
	assert.Len(t, groups, 2)
	names := map[string]bool{}
	for _, g := range groups {
		names[g.Name] = true
	}
	assert.True(t, names["One"])
	assert.True(t, names["Two"])
	assert.False(t, names["Three"])
}

func TestDataLoaderBatches(t *testing.T) {
	db := setupTest()
	ctx := context.Background()

	g1 := uuid.New()
	g2 := uuid.New()
	db.CreateGroup(&dbt.GroupInfo{ID: g1, Name: "First"})
	db.CreateGroup(&dbt.GroupInfo{ID: g2, Name: "Second"})
	db.GroupMemberAdd(g1, dbt.Member{UserID: uuid.New()})
	db.CreateGroupBills(g2, []dbt.Bill{{BillInfo: dbt.BillInfo{ID: uuid.New(), Title: "Gas"}}})
	db.CreatePayments(g2, []dbt.Payment{{ID: uuid.New(), FromUserID: uuid.New(), ToUserID: uuid.New(), Amount: 100}})

	missing := uuid.New()
	infos, err := db.DataLoaderGetGroupInfoList(ctx, []uuid.UUID{g1, g2, missing})
	assert.NoError(t, err)
	assert.Len(t, infos, 2)
	assert.Equal(t, "First", infos[g1].Name)
	assert.NotContains(t, infos, missing)

	members, err := db.DataLoaderGetMemberList(ctx, []uuid.UUID{g1, g2})
	assert.NoError(t, err)
	assert.Len(t, members[g1], 1)
	assert.Len(t, members[g2], 0)

	bills, err := db.DataLoaderGetBillList(ctx, []uuid.UUID{g1, g2})
	assert.NoError(t, err)
	assert.Len(t, bills[g2], 1)

	payments, err := db.DataLoaderGetPaymentList(ctx, []uuid.UUID{g2})
	assert.NoError(t, err)
	assert.Len(t, payments[g2], 1)
}

func TestReadsReturnCopies(t *testing.T) {
	db := setupTest()

	groupID := uuid.New()
	db.CreateGroup(&dbt.GroupInfo{ID: groupID, Name: "Immutable"})
	db.CreateGroupBills(groupID, []dbt.Bill{{BillInfo: dbt.BillInfo{ID: uuid.New(), Title: "Original"}}})

	bills, _ := db.GetGroupBills(groupID)
	bills[0].Title = "Mutated"

	again, _ := db.GetGroupBills(groupID)
	assert.Equal(t, "Original", again[0].Title, "mutating a read result must not touch the store")

	info, _ := db.GetGroupInfo(groupID)
	info.Name = "Mutated"
	again2, _ := db.GetGroupInfo(groupID)
	assert.Equal(t, "Immutable", again2.Name)
}
