package eventbus

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/planwright/planwright/internal/domain/service"
	"go.uber.org/zap"
)

// Transport delivers serialized event envelopes to connected clients.
// The websocket hub is the usual implementation.
type Transport interface {
	Broadcast(message []byte)
}

// Envelope is the wire shape every outbound event is wrapped in.
type Envelope struct {
	Event     string    `json:"event"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// BusNotifier implements service.Notifier on top of the in-memory bus.
// Events fan out to every attached transport; a missing transport is a
// warning, never an error, so lifecycle outcomes do not depend on
// anyone listening.
type BusNotifier struct {
	bus    Bus
	logger *zap.Logger

	mu         sync.RWMutex
	transports []Transport
}

var _ service.Notifier = (*BusNotifier)(nil)

// NewBusNotifier creates a notifier and wires its fan-out handler.
func NewBusNotifier(bus Bus, logger *zap.Logger) *BusNotifier {
	n := &BusNotifier{
		bus:    bus,
		logger: logger.With(zap.String("component", "notifier")),
	}
	bus.Subscribe("*", n.forward)
	return n
}

// Attach adds a delivery transport.
func (n *BusNotifier) Attach(t Transport) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transports = append(n.transports, t)
}

// Emit implements service.Notifier.
func (n *BusNotifier) Emit(ctx context.Context, event string, payload any) {
	n.bus.Publish(ctx, NewEvent(event, payload))
}

func (n *BusNotifier) forward(ctx context.Context, event Event) {
	n.mu.RLock()
	transports := make([]Transport, len(n.transports))
	copy(transports, n.transports)
	n.mu.RUnlock()

	if len(transports) == 0 {
		n.logger.Warn("No transport attached, event not delivered",
			zap.String("event", event.Type()),
		)
		return
	}

	data, err := json.Marshal(Envelope{
		Event:     event.Type(),
		Payload:   event.Payload(),
		Timestamp: event.Timestamp(),
	})
	if err != nil {
		n.logger.Error("Failed to serialize event",
			zap.String("event", event.Type()),
			zap.Error(err),
		)
		return
	}

	for _, t := range transports {
		t.Broadcast(data)
	}
}
