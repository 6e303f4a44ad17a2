package goch

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"splitbook/mq/mq"
)

// fanOutSubscriber is one registered consumer of a fan-out core.
type fanOutSubscriber[M mq.TopicProvider] struct {
	topic   uuid.UUID
	channel chan M
}

// fanOutQueueCore dispatches published messages to every subscriber whose
// topic matches. A subscriber registered with uuid.Nil receives everything.
type fanOutQueueCore[M mq.TopicProvider] struct {
	publishChan chan M
	subscribers map[uuid.UUID]*fanOutSubscriber[M]
	quit        chan struct{}
	bufferSize  int

	mu      sync.RWMutex
	stopped bool
}

// newFanOutQueueCore creates a core and starts its dispatch loop.
// bufferSize determines the capacity of the publish channel and of each
// subscriber channel. A bufferSize of 0 means unbuffered.
func newFanOutQueueCore[M mq.TopicProvider](bufferSize int) *fanOutQueueCore[M] {
	core := &fanOutQueueCore[M]{
		publishChan: make(chan M, bufferSize),
		subscribers: make(map[uuid.UUID]*fanOutSubscriber[M]),
		quit:        make(chan struct{}),
		bufferSize:  bufferSize,
	}
	go core.run()
	return core
}

func (c *fanOutQueueCore[M]) run() {
	for {
		select {
		case msg := <-c.publishChan:
			c.dispatch(msg)
		case <-c.quit:
			c.mu.Lock()
			for id, sub := range c.subscribers {
				close(sub.channel)
				delete(c.subscribers, id)
			}
			c.mu.Unlock()
			return
		}
	}
}

func (c *fanOutQueueCore[M]) dispatch(msg M) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	topic := msg.GetTopic()
	for id, sub := range c.subscribers {
		if sub.topic != uuid.Nil && sub.topic != topic {
			continue
		}
		select {
		case sub.channel <- msg:
		case <-time.After(1 * time.Second):
			// Slow consumer, drop the message for this subscriber.
			fmt.Printf("Timeout sending message to subscriber %s. Skipping.\n", id)
		case <-c.quit:
			return
		}
	}
}

// Publish enqueues a message for dispatch. Non-blocking: a full publish
// channel returns ErrQueueFull instead of stalling the caller.
func (c *fanOutQueueCore[M]) Publish(msg M) error {
	c.mu.RLock()
	if c.stopped {
		c.mu.RUnlock()
		return ErrQueueStopped
	}
	c.mu.RUnlock()

	select {
	case c.publishChan <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe registers a consumer for the given topic and returns its id and
// receive channel.
func (c *fanOutQueueCore[M]) Subscribe(topic uuid.UUID) (uuid.UUID, <-chan M, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return uuid.Nil, nil, ErrQueueStopped
	}

	id := uuid.New()
	sub := &fanOutSubscriber[M]{
		topic:   topic,
		channel: make(chan M, c.bufferSize),
	}
	c.subscribers[id] = sub
	return id, sub.channel, nil
}

// DeSubscribe removes a subscriber and closes its channel.
func (c *fanOutQueueCore[M]) DeSubscribe(id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, ok := c.subscribers[id]
	if !ok {
		return fmt.Errorf("subscriber with ID %s not found", id)
	}
	delete(c.subscribers, id)
	close(sub.channel)
	return nil
}

// Stop shuts down the dispatch loop and closes all subscriber channels.
func (c *fanOutQueueCore[M]) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.mu.Unlock()
	close(c.quit)
}

// ChannelBillMessageQueue implements BillMessageQueue using a fan-out core.
type ChannelBillMessageQueue struct {
	action mq.Action
	core   *fanOutQueueCore[mq.BillMessage]
}

// NewChannelBillMessageQueue creates a new instance of ChannelBillMessageQueue.
func NewChannelBillMessageQueue(action mq.Action, bufferSize int) *ChannelBillMessageQueue {
	return &ChannelBillMessageQueue{
		action: action,
		core:   newFanOutQueueCore[mq.BillMessage](bufferSize),
	}
}

// GetAction returns the action associated with this queue.
func (q *ChannelBillMessageQueue) GetAction() mq.Action {
	return q.action
}

// Publish sends a BillMessage to the queue.
func (q *ChannelBillMessageQueue) Publish(msg mq.BillMessage) error {
	return q.core.Publish(msg)
}

// Subscribe registers a consumer for the given group's bill events.
func (q *ChannelBillMessageQueue) Subscribe(groupId uuid.UUID) (uuid.UUID, <-chan mq.BillMessage, error) {
	return q.core.Subscribe(groupId)
}

// DeSubscribe removes a subscriber by its ID.
func (q *ChannelBillMessageQueue) DeSubscribe(id uuid.UUID) error {
	return q.core.DeSubscribe(id)
}

// ChannelPaymentMessageQueue implements PaymentMessageQueue using a fan-out core.
type ChannelPaymentMessageQueue struct {
	action mq.Action
	core   *fanOutQueueCore[mq.PaymentMessage]
}

// NewChannelPaymentMessageQueue creates a new instance of ChannelPaymentMessageQueue.
func NewChannelPaymentMessageQueue(action mq.Action, bufferSize int) *ChannelPaymentMessageQueue {
	return &ChannelPaymentMessageQueue{
		action: action,
		core:   newFanOutQueueCore[mq.PaymentMessage](bufferSize),
	}
}

// GetAction returns the action associated with this queue.
func (q *ChannelPaymentMessageQueue) GetAction() mq.Action {
	return q.action
}

// Publish sends a PaymentMessage to the queue.
func (q *ChannelPaymentMessageQueue) Publish(msg mq.PaymentMessage) error {
	return q.core.Publish(msg)
}

// Subscribe registers a consumer for the given group's payment events.
func (q *ChannelPaymentMessageQueue) Subscribe(groupId uuid.UUID) (uuid.UUID, <-chan mq.PaymentMessage, error) {
	return q.core.Subscribe(groupId)
}

// DeSubscribe removes a subscriber by its ID.
func (q *ChannelPaymentMessageQueue) DeSubscribe(id uuid.UUID) error {
	return q.core.DeSubscribe(id)
}

// GoChanGroupMessageQueueWrapper implements GroupMessageQueueWrapper with
// in-process channels.
type GoChanGroupMessageQueueWrapper struct {
	BillMQArray    [mq.ActionCnt]mq.BillMessageQueue
	PaymentMQArray [mq.ActionCnt]mq.PaymentMessageQueue
}

func (wrapper *GoChanGroupMessageQueueWrapper) GetBillMessageQueue(action mq.Action) mq.BillMessageQueue {
	if action < 0 || action >= mq.ActionCnt {
		return nil
	}
	return wrapper.BillMQArray[action]
}

func (wrapper *GoChanGroupMessageQueueWrapper) GetPaymentMessageQueue(action mq.Action) mq.PaymentMessageQueue {
	if action < 0 || action >= mq.ActionCnt {
		return nil
	}
	return wrapper.PaymentMQArray[action]
}

// NewGoChanGroupMessageQueueWrapper creates a new instance of GoChanGroupMessageQueueWrapper.
func NewGoChanGroupMessageQueueWrapper() mq.GroupMessageQueueWrapper {
	wrapper := GoChanGroupMessageQueueWrapper{}
	// buffered so a publish never races the dispatch loop
	const bufferSize = 16
	// bills need create, update and delete
	wrapper.BillMQArray[mq.ActionCreate] = NewChannelBillMessageQueue(mq.ActionCreate, bufferSize)
	wrapper.BillMQArray[mq.ActionUpdate] = NewChannelBillMessageQueue(mq.ActionUpdate, bufferSize)
	wrapper.BillMQArray[mq.ActionDelete] = NewChannelBillMessageQueue(mq.ActionDelete, bufferSize)
	// payments are append-only, only create flows
	wrapper.PaymentMQArray[mq.ActionCreate] = NewChannelPaymentMessageQueue(mq.ActionCreate, bufferSize)

	return &wrapper
}

// --- Error Definitions ---
type QueueError string

func (e QueueError) Error() string {
	return string(e)
}

const (
	ErrQueueFull    QueueError = "message queue is full"
	ErrQueueStopped QueueError = "message queue is stopped"
)
