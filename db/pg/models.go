package pg

import (
	"time"

	"github.com/google/uuid"
)

type GroupModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name       string    `gorm:"size:255;not null"`
	Emoji      string    `gorm:"size:16"`
	Currency   string    `gorm:"size:3;not null"`
	InviteCode string    `gorm:"size:32;uniqueIndex"`
	CreatedBy  uuid.UUID `gorm:"type:uuid"`
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for GroupModel.
func (GroupModel) TableName() string {
	return "groups"
}

type GroupMemberModel struct {
	GroupID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name       string    `gorm:"size:255;not null"`
	ColorIndex int       `gorm:"not null"`
	JoinedAt   time.Time `gorm:"not null"`
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for GroupMemberModel.
func (GroupMemberModel) TableName() string {
	return "group_members"
}

type BillModel struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	GroupID  uuid.UUID `gorm:"type:uuid;not null;index"`
	PayerID  uuid.UUID `gorm:"type:uuid;not null"`
	Title    string    `gorm:"size:255;not null"`
	Category int       `gorm:"not null"`
	BillDate time.Time `gorm:"not null"`
	Tax      int64     `gorm:"not null"` // minor units
	Tip      int64     `gorm:"not null"` // minor units
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for BillModel.
func (BillModel) TableName() string {
	return "bills"
}

type BillItemModel struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	BillID   uuid.UUID `gorm:"type:uuid;not null;index"`
	GroupID  uuid.UUID `gorm:"type:uuid;not null"`
	Name     string    `gorm:"size:255;not null"`
	Price    int64     `gorm:"not null"` // minor units
	Quantity int       `gorm:"not null"`
	Mode     int       `gorm:"not null"`
	Position int       `gorm:"not null"` // order within the bill
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for BillItemModel.
func (BillItemModel) TableName() string {
	return "bill_items"
}

type ItemSplitModel struct {
	ItemID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	BillID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Percentage float64   `gorm:"type:numeric(7,4)"`
	Amount     int64     // minor units
	Position   int       `gorm:"not null"` // order within the item
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for ItemSplitModel.
func (ItemSplitModel) TableName() string {
	return "item_splits"
}

type PaymentModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	GroupID    uuid.UUID `gorm:"type:uuid;not null;index"`
	FromUserID uuid.UUID `gorm:"type:uuid;not null"`
	ToUserID   uuid.UUID `gorm:"type:uuid;not null"`
	Amount     int64     `gorm:"not null"` // minor units
	Note       string    `gorm:"size:255"`
	// meta data; payments are never updated so there is no UpdatedAt
	CreatedAt time.Time
}

// TableName returns the table name for PaymentModel.
func (PaymentModel) TableName() string {
	return "payments"
}
