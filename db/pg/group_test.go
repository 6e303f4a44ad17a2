package pg

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	dbt "splitbook/db/db"
)

var testDB *gorm.DB
var groupDB dbt.GroupDBWrapper

func initTest(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" && os.Getenv("DATABASE_PASSWORD") == "" {
		t.Skip("no test database configured")
	}
	var err error
	testDB, err = InitPostgresGORM(CreateDSN())
	if err != nil {
		log.Fatalf("Failed to initialize test database: %v", err)
	}

	groupDB = NewGORMGroupDBWrapper(testDB)
}

func cleanupTest() {
	log.Println("Cleaning up test database...")
	testDB.Exec("DELETE FROM payments;")
	testDB.Exec("DELETE FROM item_splits;")
	testDB.Exec("DELETE FROM bill_items;")
	testDB.Exec("DELETE FROM bills;")
	testDB.Exec("DELETE FROM group_members;")
	testDB.Exec("DELETE FROM groups;")
	log.Println("Test database cleaned.")
	CloseGORM(testDB)
}

func TestCreateGroupPG(t *testing.T) {
	initTest(t)
	defer cleanupTest()

	groupID := uuid.New()
	creator := uuid.New()
	info := &dbt.GroupInfo{
		ID:         groupID,
		Name:       "PG Group",
		Currency:   "USD",
		InviteCode: "PGTEST1",
		CreatedBy:  creator,
	}

	err := groupDB.CreateGroup(info)
	require.NoError(t, err, "CreateGroup should not return an error")

	retrieved, err := groupDB.GetGroupInfo(groupID)
	require.NoError(t, err)
	assert.Equal(t, info.Name, retrieved.Name)
	assert.Equal(t, info.InviteCode, retrieved.InviteCode)

	members, err := groupDB.GetGroupMembers(groupID)
	require.NoError(t, err)
	assert.Len(t, members, 1)
	assert.Equal(t, creator, members[0].UserID)

	err = groupDB.CreateGroup(info)
	assert.Error(t, err, "duplicate group ID should fail")
	assert.Contains(t, err.Error(), "already exists")

	byCode, err := groupDB.GetGroupByInviteCode("PGTEST1")
	require.NoError(t, err)
	assert.Equal(t, groupID, byCode.ID)
}

func TestGroupBillRoundTripPG(t *testing.T) {
	initTest(t)
	defer cleanupTest()

	groupID := uuid.New()
	require.NoError(t, groupDB.CreateGroup(&dbt.GroupInfo{ID: groupID, Name: "Bills", Currency: "USD"}))

	alice := uuid.New()
	bob := uuid.New()
	billID := uuid.New()
	bill := dbt.Bill{
		BillInfo: dbt.BillInfo{
			ID:       billID,
			PayerID:  alice,
			Title:    "Groceries",
			BillDate: time.Now(),
			Tax:      150,
		},
		BillData: dbt.BillData{Items: []dbt.BillItem{
			{
				ID: uuid.New(), Name: "Produce", Price: 2400, Quantity: 1,
				Splits: []dbt.ItemSplit{{UserID: alice}, {UserID: bob}},
			},
			{
				ID: uuid.New(), Name: "Snacks", Price: 800, Quantity: 2,
				Splits: []dbt.ItemSplit{{UserID: bob}},
			},
		}},
	}
	require.NoError(t, groupDB.CreateGroupBills(groupID, []dbt.Bill{bill}))

	bills, err := groupDB.GetGroupBills(groupID)
	require.NoError(t, err)
	require.Len(t, bills, 1)
	assert.Equal(t, groupID, bills[0].GroupID)
	require.Len(t, bills[0].Items, 2)
	assert.Equal(t, "Produce", bills[0].Items[0].Name, "item order survives the round trip")
	assert.Len(t, bills[0].Items[0].Splits, 2)
	assert.Equal(t, alice, bills[0].Items[0].Splits[0].UserID, "split order survives the round trip")

	// Wholesale update drops an item.
	updated := bills[0]
	updated.Title = "Groceries (fixed)"
	updated.Items = updated.Items[:1]
	owner, err := groupDB.UpdateGroupBill(&updated)
	require.NoError(t, err)
	assert.Equal(t, groupID, owner)

	single, err := groupDB.GetGroupBill(billID)
	require.NoError(t, err)
	assert.Equal(t, "Groceries (fixed)", single.Title)
	assert.Len(t, single.Items, 1)

	owner, err = groupDB.DeleteGroupBill(billID)
	require.NoError(t, err)
	assert.Equal(t, groupID, owner)
	_, err = groupDB.GetGroupBill(billID)
	assert.Error(t, err)
}

func TestPaymentsPG(t *testing.T) {
	initTest(t)
	defer cleanupTest()

	groupID := uuid.New()
	require.NoError(t, groupDB.CreateGroup(&dbt.GroupInfo{ID: groupID, Name: "Payments", Currency: "USD"}))

	from := uuid.New()
	to := uuid.New()
	err := groupDB.CreatePayments(groupID, []dbt.Payment{
		{ID: uuid.New(), FromUserID: from, ToUserID: to, Amount: 1500},
		{ID: uuid.New(), FromUserID: to, ToUserID: from, Amount: 200},
	})
	require.NoError(t, err)

	payments, err := groupDB.GetGroupPayments(groupID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, int64(1500), payments[0].Amount)
	assert.False(t, payments[0].CreatedAt.IsZero())

	err = groupDB.CreatePayments(groupID, []dbt.Payment{
		{ID: uuid.New(), FromUserID: from, ToUserID: to, Amount: -5},
	})
	assert.Error(t, err, "negative payment should be rejected")
}

func TestDataLoaderBatchesPG(t *testing.T) {
	initTest(t)
	defer cleanupTest()

	ctx := context.Background()
	g1 := uuid.New()
	g2 := uuid.New()
	require.NoError(t, groupDB.CreateGroup(&dbt.GroupInfo{ID: g1, Name: "Batch One", Currency: "USD"}))
	require.NoError(t, groupDB.CreateGroup(&dbt.GroupInfo{ID: g2, Name: "Batch Two", Currency: "EUR"}))
	require.NoError(t, groupDB.GroupMemberAdd(g1, dbt.Member{UserID: uuid.New()}))

	infos, err := groupDB.DataLoaderGetGroupInfoList(ctx, []uuid.UUID{g1, g2, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, infos, 2)
	assert.Equal(t, "Batch One", infos[g1].Name)

	members, err := groupDB.DataLoaderGetMemberList(ctx, []uuid.UUID{g1, g2})
	require.NoError(t, err)
	assert.Len(t, members[g1], 1)
	assert.Len(t, members[g2], 0)
}
