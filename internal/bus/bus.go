// Package bus carries risk evaluation requests between processes: in memory for a
// single process, over NATS when requesters and evaluators run apart.
package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/domain"
)

var (
	// ErrNoResponders means nothing serves the establishment and topic.
	ErrNoResponders = errors.New("no responders")
	// ErrHandlerFailed wraps an error returned by the serving handler.
	ErrHandlerFailed = errors.New("handler failed")
	// ErrClosed is returned by a closed bus.
	ErrClosed = errors.New("bus is closed")
)

const defaultRequestTimeout = 30 * time.Second

// New creates a new event bus based on configuration.
// "channel" returns an in-process ChannelBus, "nats" a NATSBus.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}

func requestTimeout(cfg domain.EventBusConfig) time.Duration {
	if cfg.RequestTimeout <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(cfg.RequestTimeout) * time.Second
}

// withDeadline applies the bus timeout to a context that has no deadline of its own.
func withDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func validate(prisonID, topic string) error {
	if prisonID == "" {
		return fmt.Errorf("%w: prison id is required", domain.ErrInvalidInput)
	}
	if topic == "" {
		return fmt.Errorf("%w: topic is required", domain.ErrInvalidInput)
	}
	return nil
}
