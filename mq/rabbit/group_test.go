package rabbit_test

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"splitbook/mq/mq"
	rabbitMQ "splitbook/mq/rabbit"
)

// getTestConnection establishes a real AMQP connection for tests, skipping
// when no broker is reachable.
func getTestConnection(t *testing.T) *amqp.Connection {
	t.Helper()
	if os.Getenv("RABBITMQ_URL") == "" {
		t.Skip("Skipping test: RABBITMQ_URL environment variable not set.")
	}
	url := rabbitMQ.CreateAmqpURL()
	conn, err := amqp.Dial(url)
	if err != nil {
		t.Fatalf("Could not connect to RabbitMQ at %s for testing: %v", url, err)
	}
	return conn
}

func receiveMsgWithTimeout[T any](tb testing.TB, ch <-chan T, timeout time.Duration) (T, bool) {
	tb.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			var zero T
			return zero, false
		}
		return msg, true
	case <-time.After(timeout):
		var zero T
		return zero, false
	}
}

func TestRabbitBillQueueRoundTrip(t *testing.T) {
	conn := getTestConnection(t)
	defer conn.Close()

	q, err := rabbitMQ.NewRabbitBillMessageQueue(mq.ActionCreate, conn)
	if err != nil {
		t.Fatalf("NewRabbitBillMessageQueue failed: %v", err)
	}
	if q.GetAction() != mq.ActionCreate {
		t.Errorf("GetAction() = %v, want %v", q.GetAction(), mq.ActionCreate)
	}

	groupID := uuid.New()
	subID, ch, err := q.Subscribe(groupID)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer q.DeSubscribe(subID)

	msg := mq.BillMessage{
		ID:      uuid.New(),
		GroupID: groupID,
		PayerID: uuid.New(),
		Title:   "Brunch",
		Total:   3650,
	}
	if err := q.Publish(msg); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	got, ok := receiveMsgWithTimeout(t, ch, 5*time.Second)
	if !ok {
		t.Fatal("did not receive published bill message")
	}
	if got.ID != msg.ID || got.Total != msg.Total {
		t.Errorf("received %+v, want %+v", got, msg)
	}
}

func TestRabbitGroupFiltering(t *testing.T) {
	conn := getTestConnection(t)
	defer conn.Close()

	q, err := rabbitMQ.NewRabbitPaymentMessageQueue(mq.ActionCreate, conn)
	if err != nil {
		t.Fatalf("NewRabbitPaymentMessageQueue failed: %v", err)
	}

	groupA := uuid.New()
	groupB := uuid.New()
	subID, ch, err := q.Subscribe(groupA)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer q.DeSubscribe(subID)

	// A message for another group should be filtered out.
	if err := q.Publish(mq.PaymentMessage{ID: uuid.New(), GroupID: groupB, Amount: 100}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if _, ok := receiveMsgWithTimeout(t, ch, 500*time.Millisecond); ok {
		t.Error("subscriber for group A should not receive group B payments")
	}

	want := mq.PaymentMessage{ID: uuid.New(), GroupID: groupA, FromUserID: uuid.New(), ToUserID: uuid.New(), Amount: 250}
	if err := q.Publish(want); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	got, ok := receiveMsgWithTimeout(t, ch, 5*time.Second)
	if !ok {
		t.Fatal("did not receive group A payment message")
	}
	if got.ID != want.ID || got.Amount != want.Amount {
		t.Errorf("received %+v, want %+v", got, want)
	}
}

func TestRabbitDeSubscribe(t *testing.T) {
	conn := getTestConnection(t)
	defer conn.Close()

	q, err := rabbitMQ.NewRabbitBillMessageQueue(mq.ActionDelete, conn)
	if err != nil {
		t.Fatalf("NewRabbitBillMessageQueue failed: %v", err)
	}

	subID, ch, err := q.Subscribe(uuid.New())
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := q.DeSubscribe(subID); err != nil {
		t.Fatalf("DeSubscribe failed: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after DeSubscribe")
	}
	if err := q.DeSubscribe(subID); err == nil {
		t.Error("second DeSubscribe should fail")
	}
}
