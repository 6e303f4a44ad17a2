package db

import (
	"context"

	"github.com/google/uuid"
)

// GroupDBWrapper is the storage interface for groups, bills and payments.
// Implementations must enforce member uniqueness, join ordering, and the
// append-only payment rule; there is deliberately no UpdatePayment or
// DeletePayment.
type GroupDBWrapper interface {
	// Create
	CreateGroup(info *GroupInfo) error
	CreateGroupBills(id uuid.UUID, bills []Bill) error
	CreatePayments(id uuid.UUID, payments []Payment) error
	// Read
	GetGroupInfo(id uuid.UUID) (*GroupInfo, error)
	GetGroupByInviteCode(code string) (*GroupInfo, error)
	GetGroupMembers(id uuid.UUID) ([]Member, error)
	GetGroupBills(id uuid.UUID) ([]Bill, error)
	GetGroupBill(billID uuid.UUID) (*Bill, error)
	GetGroupPayments(id uuid.UUID) ([]Payment, error)
	ListGroupsForMember(userID uuid.UUID) ([]GroupInfo, error)
	// Update
	UpdateGroupInfo(info *GroupInfo) error
	UpdateGroupBill(bill *Bill) (uuid.UUID, error)
	GroupMemberAdd(id uuid.UUID, member Member) error
	GroupMemberRemove(id uuid.UUID, userID uuid.UUID) error
	// Delete
	DeleteGroup(id uuid.UUID) error
	DeleteGroupBill(billID uuid.UUID) (uuid.UUID, error)
	// Data Loader
	DataLoaderGetGroupInfoList(ctx context.Context, groupIDs []uuid.UUID) (map[uuid.UUID]*GroupInfo, error)
	DataLoaderGetMemberList(ctx context.Context, groupIDs []uuid.UUID) (map[uuid.UUID][]Member, error)
	DataLoaderGetBillList(ctx context.Context, groupIDs []uuid.UUID) (map[uuid.UUID][]Bill, error)
	DataLoaderGetPaymentList(ctx context.Context, groupIDs []uuid.UUID) (map[uuid.UUID][]Payment, error)
}
