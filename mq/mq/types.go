package mq

import (
	"github.com/google/uuid"
)

// Mode selects the message queue backend at startup.
type Mode string

const (
	ModeGoChan    Mode = "go_chan"
	ModeRabbitMQ  Mode = "rabbitmq"
	ModeGCPPubSub Mode = "gcp_pub_sub"
)

type Action int

const (
	ActionCreate Action = iota
	ActionUpdate
	ActionDelete
	ActionCnt
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	}
	return "unknown"
}

// BillMessage is the event body for bill changes. Total carries the bill
// total in minor units so subscribers can render without a DB read.
type BillMessage struct {
	ID      uuid.UUID
	GroupID uuid.UUID
	PayerID uuid.UUID
	Title   string
	Total   int64
}

func (m BillMessage) GetTopic() uuid.UUID {
	return m.GroupID
}

// PaymentMessage is the event body for recorded settlements.
type PaymentMessage struct {
	ID         uuid.UUID
	GroupID    uuid.UUID
	FromUserID uuid.UUID
	ToUserID   uuid.UUID
	Amount     int64
}

func (m PaymentMessage) GetTopic() uuid.UUID {
	return m.GroupID
}
