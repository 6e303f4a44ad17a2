package web

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"splitbook/mq/mq"
)

const wsKeepAlivePingInterval = 10 * time.Second

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// allow all origins for WebSocket connections
		// should only in dev
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// GroupEvent is the envelope pushed to websocket clients for every bill and
// payment change in the group they watch.
type GroupEvent struct {
	Kind    string      `json:"kind"` // "bill" or "payment"
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
}

func billEventTransform(action mq.Action) func(msg mq.BillMessage) (GroupEvent, bool, error) {
	return func(msg mq.BillMessage) (GroupEvent, bool, error) {
		return GroupEvent{Kind: "bill", Action: action.String(), Payload: msg}, false, nil
	}
}

func paymentEventTransform(msg mq.PaymentMessage) (GroupEvent, bool, error) {
	return GroupEvent{Kind: "payment", Action: mq.ActionCreate.String(), Payload: msg}, false, nil
}

// WatchGroup upgrades the request to a websocket and streams the group's
// bill and payment events until the client goes away. Each subscription
// gets its own stream since the processor closes it on exit.
func (h *GroupHandler) WatchGroup(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if h.mq == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream unavailable"})
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	billStreams := make([]chan GroupEvent, 0, 3)
	for _, action := range []mq.Action{mq.ActionCreate, mq.ActionUpdate, mq.ActionDelete} {
		queue := h.mq.GetBillMessageQueue(action)
		if queue == nil {
			continue
		}
		stream := make(chan GroupEvent, 16)
		mq.SubscribeProcessor(groupID, ctx, queue, billEventTransform(action), stream)
		billStreams = append(billStreams, stream)
	}

	var paymentStream chan GroupEvent
	if queue := h.mq.GetPaymentMessageQueue(mq.ActionCreate); queue != nil {
		paymentStream = make(chan GroupEvent, 16)
		mq.SubscribeProcessor(groupID, ctx, queue, paymentEventTransform, paymentStream)
	}

	events := make(chan GroupEvent, 16)
	merged := make(chan struct{})
	mergeCnt := 0
	for _, stream := range billStreams {
		mergeCnt++
		go forwardEvents(ctx, stream, events, merged)
	}
	if paymentStream != nil {
		mergeCnt++
		go forwardEvents(ctx, paymentStream, events, merged)
	}
	go func() {
		for i := 0; i < mergeCnt; i++ {
			<-merged
		}
		close(events)
	}()

	// read pump: detect client close
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsKeepAlivePingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				log.Printf("Failed to write event to websocket for group %s: %v", groupID, err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func forwardEvents(ctx context.Context, in <-chan GroupEvent, out chan<- GroupEvent, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()
	for event := range in {
		select {
		case out <- event:
		case <-ctx.Done():
			return
		}
	}
}
