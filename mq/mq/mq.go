package mq

import "github.com/google/uuid"

// TopicProvider is implemented by any message that can name its topic.
// Group events use the group id as the topic.
type TopicProvider interface {
	GetTopic() uuid.UUID
}

type GroupMessageQueueWrapper interface {
	GetBillMessageQueue(action Action) BillMessageQueue
	GetPaymentMessageQueue(action Action) PaymentMessageQueue
}

type GroupMessageQueue interface {
	GetAction() Action
	Publish(msg interface{}) error
	Subscribe(groupId uuid.UUID) (uuid.UUID, <-chan interface{}, error)
	DeSubscribe(id uuid.UUID) error
}

type BillMessageQueue interface {
	GetAction() Action
	Publish(msg BillMessage) error
	Subscribe(groupId uuid.UUID) (uuid.UUID, <-chan BillMessage, error)
	DeSubscribe(id uuid.UUID) error
}

type PaymentMessageQueue interface {
	GetAction() Action
	Publish(msg PaymentMessage) error
	Subscribe(groupId uuid.UUID) (uuid.UUID, <-chan PaymentMessage, error)
	DeSubscribe(id uuid.UUID) error
}
