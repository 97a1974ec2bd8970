package events

import "context"

// Event types
const (
	EventDealStateChanged = "deal_state_changed"
	EventPaymentReceived  = "payment_received"
	EventFundsReleased    = "funds_released"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
