package gcppubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"reflect"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"

	"splitbook/mq/mq"
)

const (
	groupIDAttribute = "groupId"
)

// subscriptionInfo holds details about an active Pub/Sub subscription.
type subscriptionInfo struct {
	gcpSubscription *pubsub.Subscription
	cancel          context.CancelFunc
}

// GenericPubSubService provides a generic implementation for GCP Pub/Sub operations.
type GenericPubSubService[M any] struct {
	client              *pubsub.Client
	topic               *pubsub.Topic
	activeSubscriptions map[uuid.UUID]*subscriptionInfo
	subscriptionsMutex  sync.Mutex
	ctx                 context.Context
}

// NewGenericPubSubService creates and initializes a generic service for a specific message type.
// It ensures the underlying Pub/Sub topic exists, creating it if necessary.
func NewGenericPubSubService[M any](ctx context.Context, client *pubsub.Client, topicID string) (*GenericPubSubService[M], error) {
	if client == nil {
		return nil, fmt.Errorf("GCP Pub/Sub client is nil")
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existence of topic %s: %w", topicID, err)
	}
	if !exists {
		topic, err = client.CreateTopic(ctx, topicID)
		if err != nil {
			return nil, fmt.Errorf("failed to create topic %s: %w", topicID, err)
		}
		log.Printf("Created Pub/Sub topic: %s", topicID)
	}

	return &GenericPubSubService[M]{
		client:              client,
		topic:               topic,
		activeSubscriptions: make(map[uuid.UUID]*subscriptionInfo),
		ctx:                 ctx,
	}, nil
}

// Publish sends a message to the configured Pub/Sub topic with the groupId as an attribute.
func (s *GenericPubSubService[M]) Publish(msg mq.TopicProvider) error {
	typeName := reflect.TypeOf(msg).Name()
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", typeName, err)
	}

	routingKey := msg.GetTopic().String()
	pubsubMsg := &pubsub.Message{
		Data: body,
		Attributes: map[string]string{
			groupIDAttribute: routingKey,
		},
	}

	// Publish is non-blocking. The client library handles batching and sending.
	result := s.topic.Publish(s.ctx, pubsubMsg)
	_, err = result.Get(s.ctx)
	if err != nil {
		return fmt.Errorf("failed to publish %s to topic %s: %w", typeName, s.topic.ID(), err)
	}
	return nil
}

// Subscribe creates a new filtered subscription on GCP and starts listening for messages.
func (s *GenericPubSubService[M]) Subscribe(groupId uuid.UUID) (uuid.UUID, <-chan M, error) {
	subscriptionID := uuid.New() // Internal ID for tracking
	typeName := reflect.TypeOf(*new(M)).Name()

	// Create a unique, descriptive subscription name for GCP.
	gcpSubName := fmt.Sprintf("sub-%s-%s-%s", typeName, groupId.String(), subscriptionID.String())

	config := pubsub.SubscriptionConfig{
		Topic:            s.topic,
		Filter:           fmt.Sprintf("attributes.%s = \"%s\"", groupIDAttribute, groupId.String()),
		ExpirationPolicy: 24 * time.Hour,
		AckDeadline:      10 * time.Second,
	}

	gcpSub, err := s.client.CreateSubscription(s.ctx, gcpSubName, config)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("failed to create GCP subscription %s for %s: %w", gcpSubName, typeName, err)
	}

	msgChan := make(chan M, 5)
	receiveCtx, cancel := context.WithCancel(s.ctx)

	s.subscriptionsMutex.Lock()
	s.activeSubscriptions[subscriptionID] = &subscriptionInfo{
		gcpSubscription: gcpSub,
		cancel:          cancel,
	}
	s.subscriptionsMutex.Unlock()

	go func() {
		// Automatically clean up when the goroutine exits.
		defer func() {
			s.subscriptionsMutex.Lock()
			delete(s.activeSubscriptions, subscriptionID)
			s.subscriptionsMutex.Unlock()

			// Delete the subscription from GCP to prevent resource leaks.
			if deleteErr := gcpSub.Delete(context.Background()); deleteErr != nil {
				log.Printf("Error deleting GCP subscription %s: %v", gcpSub.ID(), deleteErr)
			}
			close(msgChan)
		}()

		// Receive blocks until the context is cancelled.
		err := gcpSub.Receive(receiveCtx, func(ctx context.Context, pubsubMsg *pubsub.Message) {
			pubsubMsg.Ack()

			var msg M
			if err := json.Unmarshal(pubsubMsg.Data, &msg); err != nil {
				log.Printf("Error unmarshaling %s for %s: %v. Body: %s", typeName, subscriptionID, err, string(pubsubMsg.Data))
				return
			}

			select {
			case msgChan <- msg:
			case <-time.After(2 * time.Second):
				log.Printf("Timeout sending %s to msgChan for %s.", typeName, subscriptionID)
			case <-receiveCtx.Done():
				return
			}
		})

		if err != nil && err != context.Canceled {
			log.Printf("Error in Receive loop for %s subscription %s: %v", typeName, subscriptionID, err)
		}
	}()

	return subscriptionID, msgChan, nil
}

// DeSubscribe stops the message receiver and deletes the subscription from GCP.
func (s *GenericPubSubService[M]) DeSubscribe(id uuid.UUID) error {
	s.subscriptionsMutex.Lock()
	info, ok := s.activeSubscriptions[id]
	if ok {
		// It's removed from the map inside the goroutine's defer block.
		// Here we just trigger the cancellation.
		info.cancel()
	}
	s.subscriptionsMutex.Unlock()

	if !ok {
		return fmt.Errorf("subscription ID %s not found for %s service", id, reflect.TypeOf(*new(M)).Name())
	}
	return nil
}

// Close gracefully shuts down all active subscriptions for this service.
func (s *GenericPubSubService[M]) Close() {
	s.subscriptionsMutex.Lock()
	defer s.subscriptionsMutex.Unlock()

	for _, info := range s.activeSubscriptions {
		info.cancel()
	}
}

// --- billMQ implementation ---
type billMQ struct {
	genericService *GenericPubSubService[mq.BillMessage]
	action         mq.Action
}

func NewBillMessageQueue(ctx context.Context, client *pubsub.Client, action mq.Action) (*billMQ, error) {
	topicID := fmt.Sprintf("group-bill-%s", action.String())
	gs, err := NewGenericPubSubService[mq.BillMessage](ctx, client, topicID)
	if err != nil {
		return nil, fmt.Errorf("failed to create generic service for Bill: %w", err)
	}
	return &billMQ{genericService: gs, action: action}, nil
}
func (q *billMQ) GetAction() mq.Action { return q.action }
func (q *billMQ) Publish(msg mq.BillMessage) error { return q.genericService.Publish(msg) }
func (q *billMQ) Subscribe(groupId uuid.UUID) (uuid.UUID, <-chan mq.BillMessage, error) {
	return q.genericService.Subscribe(groupId)
}
func (q *billMQ) DeSubscribe(id uuid.UUID) error { return q.genericService.DeSubscribe(id) }

// --- paymentMQ implementation ---
type paymentMQ struct {
	genericService *GenericPubSubService[mq.PaymentMessage]
	action         mq.Action
}

func NewPaymentMessageQueue(ctx context.Context, client *pubsub.Client, action mq.Action) (*paymentMQ, error) {
	topicID := fmt.Sprintf("group-payment-%s", action.String())
	gs, err := NewGenericPubSubService[mq.PaymentMessage](ctx, client, topicID)
	if err != nil {
		return nil, fmt.Errorf("failed to create generic service for Payment: %w", err)
	}
	return &paymentMQ{genericService: gs, action: action}, nil
}
func (q *paymentMQ) GetAction() mq.Action { return q.action }
func (q *paymentMQ) Publish(msg mq.PaymentMessage) error { return q.genericService.Publish(msg) }
func (q *paymentMQ) Subscribe(groupId uuid.UUID) (uuid.UUID, <-chan mq.PaymentMessage, error) {
	return q.genericService.Subscribe(groupId)
}
func (q *paymentMQ) DeSubscribe(id uuid.UUID) error { return q.genericService.DeSubscribe(id) }

// GCPGroupMessageQueueWrapper implements GroupMessageQueueWrapper over GCP Pub/Sub.
type GCPGroupMessageQueueWrapper struct {
	BillMQArray    [mq.ActionCnt]mq.BillMessageQueue
	PaymentMQArray [mq.ActionCnt]mq.PaymentMessageQueue
}

func (wrapper *GCPGroupMessageQueueWrapper) GetBillMessageQueue(action mq.Action) mq.BillMessageQueue {
	if action < 0 || action >= mq.ActionCnt {
		return nil
	}
	return wrapper.BillMQArray[action]
}

func (wrapper *GCPGroupMessageQueueWrapper) GetPaymentMessageQueue(action mq.Action) mq.PaymentMessageQueue {
	if action < 0 || action >= mq.ActionCnt {
		return nil
	}
	return wrapper.PaymentMQArray[action]
}

// NewGCPGroupMessageQueueWrapper creates every topic the app publishes to.
func NewGCPGroupMessageQueueWrapper(ctx context.Context, client *pubsub.Client) (mq.GroupMessageQueueWrapper, error) {
	wrapper := GCPGroupMessageQueueWrapper{}

	for _, action := range []mq.Action{mq.ActionCreate, mq.ActionUpdate, mq.ActionDelete} {
		q, err := NewBillMessageQueue(ctx, client, action)
		if err != nil {
			return nil, err
		}
		wrapper.BillMQArray[action] = q
	}

	// payments are append-only, only create flows
	pq, err := NewPaymentMessageQueue(ctx, client, mq.ActionCreate)
	if err != nil {
		return nil, err
	}
	wrapper.PaymentMQArray[mq.ActionCreate] = pq

	return &wrapper, nil
}
