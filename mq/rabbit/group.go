package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"splitbook/mq/mq"
)

const (
	exchangeName = "group_events_exchange" // All group-related events go through this exchange
)

// Define routing keys for different actions and message types
const (
	billCreateRoutingKey    = "bill.create"
	billUpdateRoutingKey    = "bill.update"
	billDeleteRoutingKey    = "bill.delete"
	paymentCreateRoutingKey = "payment.create"
)

// Helper to get routing key based on action and message type
func getRoutingKey(action mq.Action, msgType string) string {
	switch msgType {
	case "bill":
		switch action {
		case mq.ActionCreate:
			return billCreateRoutingKey
		case mq.ActionUpdate:
			return billUpdateRoutingKey
		case mq.ActionDelete:
			return billDeleteRoutingKey
		}
	case "payment":
		if action == mq.ActionCreate {
			return paymentCreateRoutingKey
		}
	}
	return "" // Should not happen with valid inputs
}

// rabbitBillMessageQueue implements mq.BillMessageQueue for RabbitMQ
type rabbitBillMessageQueue struct {
	action     mq.Action
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	queueName  string
	routingKey string
	mu         sync.RWMutex // Protects the consumers map
	consumers  map[uuid.UUID]chan mq.BillMessage
}

// NewRabbitBillMessageQueue creates a new RabbitMQ message queue for BillMessages.
func NewRabbitBillMessageQueue(action mq.Action, conn *amqp091.Connection) (mq.BillMessageQueue, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	queueName := fmt.Sprintf("group_bill_%d_queue", action)
	routingKey := getRoutingKey(action, "bill")

	err = DeclareQueueAndExchange(ch, queueName, exchangeName, routingKey)
	if err != nil {
		ch.Close()
		return nil, err
	}

	return &rabbitBillMessageQueue{
		action:     action,
		conn:       conn,
		channel:    ch,
		queueName:  queueName,
		routingKey: routingKey,
		consumers:  make(map[uuid.UUID]chan mq.BillMessage),
	}, nil
}

// GetAction returns the action associated with this queue.
func (q *rabbitBillMessageQueue) GetAction() mq.Action {
	return q.action
}

// Publish sends a BillMessage to the RabbitMQ exchange.
func (q *rabbitBillMessageQueue) Publish(msg mq.BillMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = q.channel.PublishWithContext(ctx,
		exchangeName, // exchange
		q.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Subscribe starts a consumer for the given group's bill events. A Nil
// group id subscribes to every group.
func (q *rabbitBillMessageQueue) Subscribe(groupId uuid.UUID) (uuid.UUID, <-chan mq.BillMessage, error) {
	msgs, err := q.channel.Consume(
		q.queueName, // queue
		"",          // consumer
		true,        // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("failed to register a consumer: %w", err)
	}

	subscriberID := uuid.New()
	outputChan := make(chan mq.BillMessage)

	q.mu.Lock()
	q.consumers[subscriberID] = outputChan
	q.mu.Unlock()

	go func() {
		defer func() {
			q.mu.Lock()
			if ch, ok := q.consumers[subscriberID]; ok {
				close(ch)
				delete(q.consumers, subscriberID)
			}
			q.mu.Unlock()
		}()

		for d := range msgs {
			var msg mq.BillMessage
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				log.Printf("Failed to unmarshal BillMessage: %v", err)
				continue
			}
			if groupId != uuid.Nil && msg.GetTopic() != groupId {
				continue
			}

			q.mu.RLock()
			ch, ok := q.consumers[subscriberID]
			q.mu.RUnlock()
			if !ok {
				// Consumer was unsubscribed while message was in flight
				log.Printf("BillMessage consumer %s no longer active. Skipping message.", subscriberID)
				return
			}
			select {
			case ch <- msg:
			case <-time.After(1 * time.Second): // Prevent blocking indefinitely
				log.Printf("Timeout sending message to BillMessage consumer %s. Skipping.", subscriberID)
			}
		}
	}()

	return subscriberID, outputChan, nil
}

// DeSubscribe removes a subscriber by its ID.
func (q *rabbitBillMessageQueue) DeSubscribe(subscriberID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if ch, ok := q.consumers[subscriberID]; ok {
		delete(q.consumers, subscriberID)
		close(ch)
		return nil
	}
	return fmt.Errorf("consumer with ID %s not found for queue %s", subscriberID, q.queueName)
}

// rabbitPaymentMessageQueue implements mq.PaymentMessageQueue for RabbitMQ
type rabbitPaymentMessageQueue struct {
	action     mq.Action
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	queueName  string
	routingKey string
	mu         sync.RWMutex // Protects the consumers map
	consumers  map[uuid.UUID]chan mq.PaymentMessage
}

// NewRabbitPaymentMessageQueue creates a new RabbitMQ message queue for PaymentMessages.
func NewRabbitPaymentMessageQueue(action mq.Action, conn *amqp091.Connection) (mq.PaymentMessageQueue, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	queueName := fmt.Sprintf("group_payment_%d_queue", action)
	routingKey := getRoutingKey(action, "payment")

	err = DeclareQueueAndExchange(ch, queueName, exchangeName, routingKey)
	if err != nil {
		ch.Close()
		return nil, err
	}

	return &rabbitPaymentMessageQueue{
		action:     action,
		conn:       conn,
		channel:    ch,
		queueName:  queueName,
		routingKey: routingKey,
		consumers:  make(map[uuid.UUID]chan mq.PaymentMessage),
	}, nil
}

// GetAction returns the action associated with this queue.
func (q *rabbitPaymentMessageQueue) GetAction() mq.Action {
	return q.action
}

// Publish sends a PaymentMessage to the RabbitMQ exchange.
func (q *rabbitPaymentMessageQueue) Publish(msg mq.PaymentMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = q.channel.PublishWithContext(ctx,
		exchangeName, // exchange
		q.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Subscribe starts a consumer for the given group's payment events. A Nil
// group id subscribes to every group.
func (q *rabbitPaymentMessageQueue) Subscribe(groupId uuid.UUID) (uuid.UUID, <-chan mq.PaymentMessage, error) {
	msgs, err := q.channel.Consume(
		q.queueName, // queue
		"",          // consumer
		true,        // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("failed to register a consumer: %w", err)
	}

	subscriberID := uuid.New()
	outputChan := make(chan mq.PaymentMessage)

	q.mu.Lock()
	q.consumers[subscriberID] = outputChan
	q.mu.Unlock()

	go func() {
		defer func() {
			q.mu.Lock()
			if ch, ok := q.consumers[subscriberID]; ok {
				close(ch)
				delete(q.consumers, subscriberID)
			}
			q.mu.Unlock()
		}()

		for d := range msgs {
			var msg mq.PaymentMessage
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				log.Printf("Failed to unmarshal PaymentMessage: %v", err)
				continue
			}
			if groupId != uuid.Nil && msg.GetTopic() != groupId {
				continue
			}

			q.mu.RLock()
			ch, ok := q.consumers[subscriberID]
			q.mu.RUnlock()
			if !ok {
				log.Printf("PaymentMessage consumer %s no longer active. Skipping message.", subscriberID)
				return
			}
			select {
			case ch <- msg:
			case <-time.After(1 * time.Second): // Prevent blocking indefinitely
				log.Printf("Timeout sending message to PaymentMessage consumer %s. Skipping.", subscriberID)
			}
		}
	}()

	return subscriberID, outputChan, nil
}

// DeSubscribe removes a subscriber by its ID.
func (q *rabbitPaymentMessageQueue) DeSubscribe(subscriberID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if ch, ok := q.consumers[subscriberID]; ok {
		delete(q.consumers, subscriberID)
		close(ch)
		return nil
	}
	return fmt.Errorf("consumer with ID %s not found for queue %s", subscriberID, q.queueName)
}

// RabbitGroupMessageQueueWrapper implements GroupMessageQueueWrapper over a
// shared RabbitMQ connection.
type RabbitGroupMessageQueueWrapper struct {
	BillMQArray    [mq.ActionCnt]mq.BillMessageQueue
	PaymentMQArray [mq.ActionCnt]mq.PaymentMessageQueue
}

func (wrapper *RabbitGroupMessageQueueWrapper) GetBillMessageQueue(action mq.Action) mq.BillMessageQueue {
	if action < 0 || action >= mq.ActionCnt {
		return nil
	}
	return wrapper.BillMQArray[action]
}

func (wrapper *RabbitGroupMessageQueueWrapper) GetPaymentMessageQueue(action mq.Action) mq.PaymentMessageQueue {
	if action < 0 || action >= mq.ActionCnt {
		return nil
	}
	return wrapper.PaymentMQArray[action]
}

// NewRabbitGroupMessageQueueWrapper declares every queue the app publishes to.
func NewRabbitGroupMessageQueueWrapper(conn *amqp091.Connection) (mq.GroupMessageQueueWrapper, error) {
	wrapper := RabbitGroupMessageQueueWrapper{}

	for _, action := range []mq.Action{mq.ActionCreate, mq.ActionUpdate, mq.ActionDelete} {
		q, err := NewRabbitBillMessageQueue(action, conn)
		if err != nil {
			return nil, fmt.Errorf("failed to create bill queue for %s: %w", action, err)
		}
		wrapper.BillMQArray[action] = q
	}

	// payments are append-only, only create flows
	pq, err := NewRabbitPaymentMessageQueue(mq.ActionCreate, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment queue: %w", err)
	}
	wrapper.PaymentMQArray[mq.ActionCreate] = pq

	return &wrapper, nil
}
