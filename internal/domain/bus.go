package domain

import (
	"context"
	"time"
)

// EventBus carries risk evaluation requests to whichever process serves them and
// brings the reply back. Every call is scoped to an establishment.
type EventBus interface {
	// Serve answers requests on a topic. Handlers serving the same establishment and
	// topic share the load: each request reaches exactly one of them.
	Serve(ctx context.Context, prisonID, topic string, handler RequestHandler) (Subscription, error)

	// Request sends payload and blocks until a handler replies or ctx ends.
	Request(ctx context.Context, prisonID, topic string, payload []byte) ([]byte, error)

	Ping(ctx context.Context) error
	Close() error
}

// RequestHandler answers one request. The returned payload is the reply; a returned
// error reaches the requester in its place.
type RequestHandler func(ctx context.Context, env *Envelope) ([]byte, error)

// Envelope is a request as delivered to a handler.
type Envelope struct {
	ID       string
	PrisonID string
	Topic    string
	Payload  []byte
	SentAt   time.Time
}

// Subscription is a registered handler.
type Subscription interface {
	Unsubscribe() error
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string `json:"type" yaml:"type"`

	// RequestTimeout bounds a request whose context has no deadline, in seconds.
	RequestTimeout int `json:"requestTimeout" yaml:"requestTimeout"`

	// Channel settings
	ChannelBufferSize int `json:"channelBufferSize" yaml:"channelBufferSize"`

	// NATS settings
	NATSUrl           string `json:"natsUrl" yaml:"natsUrl"`
	NATSToken         string `json:"-" yaml:"natsToken"`
	NATSQueueGroup    string `json:"natsQueueGroup" yaml:"natsQueueGroup"`
	NATSMaxReconnects int    `json:"natsMaxReconnects" yaml:"natsMaxReconnects"`
	NATSReconnectWait int    `json:"natsReconnectWait" yaml:"natsReconnectWait"` // seconds
}

// TopicRisksRequested carries consider-risks requests.
const TopicRisksRequested = "cellmove.risks.requested"
