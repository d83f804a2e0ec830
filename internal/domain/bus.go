package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication between the
// scoring API and the alert notifier. Supports Go channels (Community) or
// NATS (Pro). All methods require tenantID for multi-tenancy isolation.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, tenantID string, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, tenantID string, topic string, handler MessageHandler) (Subscription, error)

	// Request sends a message and waits for a response (request-reply pattern).
	Request(ctx context.Context, tenantID string, topic string, payload []byte) ([]byte, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenantId"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings (Community tier)
	ChannelBufferSize int

	// NATS settings (Pro tier)
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Standard topic names for the scoring pipeline.
const (
	TopicBookingScored    = "cormorant.booking.scored"
	TopicAlert            = "cormorant.alert"
	TopicNotificationSent = "cormorant.notification.sent"
)

// AlertEvent is the payload published on TopicAlert (and, without the booking
// detail, on TopicBookingScored) when a booking scores as fraudulent.
type AlertEvent struct {
	EvaluationID     string    `json:"evaluationId"`
	TenantID         string    `json:"tenantId"`
	BookingID        string    `json:"bookingId,omitempty"`
	GuestID          string    `json:"guestId,omitempty"`
	OwnerEmail       string    `json:"ownerEmail,omitempty"`
	FraudProbability float64   `json:"fraudProbability"`
	RiskLevel        RiskLevel `json:"riskLevel"`
	Indicators       []string  `json:"indicators"`

	StartDate   string  `json:"startDate,omitempty"`
	EndDate     string  `json:"endDate,omitempty"`
	Adults      int     `json:"adults,omitempty"`
	Children    int     `json:"children,omitempty"`
	TotalAmount float64 `json:"totalAmount,omitempty"`
}
