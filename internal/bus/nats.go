package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/domain"
)

// Headers carried on every request and reply. Payloads travel as the raw message data.
const (
	HeaderRequestID = "Cellmove-Request-Id"
	HeaderPrisonID  = "Cellmove-Prison-Id"
	HeaderSentAt    = "Cellmove-Sent-At"
	HeaderError     = "Cellmove-Error"
)

// NATSBus serves requests over NATS. Handlers join a queue group, so replicas
// serving the same subject share requests.
type NATSBus struct {
	conn    *nats.Conn
	queue   string
	timeout time.Duration

	mu   sync.Mutex
	subs map[string]*natsSubscription
}

type natsSubscription struct {
	bus   *NATSBus
	id    string
	topic string
	sub   *nats.Subscription
}

// NewNATSBus connects to NATS, retrying up to NATSMaxReconnects times.
func NewNATSBus(cfg domain.EventBusConfig) (*NATSBus, error) {
	if cfg.NATSUrl == "" {
		cfg.NATSUrl = nats.DefaultURL
	}
	if cfg.NATSMaxReconnects == 0 {
		cfg.NATSMaxReconnects = 10
	}
	if cfg.NATSReconnectWait == 0 {
		cfg.NATSReconnectWait = 5
	}
	if cfg.NATSQueueGroup == "" {
		cfg.NATSQueueGroup = "cellmove"
	}
	wait := time.Duration(cfg.NATSReconnectWait) * time.Second

	opts := []nats.Option{
		nats.Name("cellmove"),
		nats.MaxReconnects(cfg.NATSMaxReconnects),
		nats.ReconnectWait(wait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err, "will_reconnect", !nc.IsClosed())
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			slog.Error("NATS error", "subject", subject, "error", err)
		}),
	}
	if cfg.NATSToken != "" {
		opts = append(opts, nats.Token(cfg.NATSToken))
	}

	var conn *nats.Conn
	var err error
	for attempt := 1; attempt <= cfg.NATSMaxReconnects; attempt++ {
		if conn, err = nats.Connect(cfg.NATSUrl, opts...); err == nil {
			break
		}
		slog.Warn("NATS connection attempt failed",
			"attempt", attempt,
			"max_attempts", cfg.NATSMaxReconnects,
			"error", err,
		)
		if attempt < cfg.NATSMaxReconnects {
			time.Sleep(wait)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS after %d attempts: %w", cfg.NATSMaxReconnects, err)
	}

	slog.Info("NATS connected", "url", conn.ConnectedUrl(), "queue_group", cfg.NATSQueueGroup)
	return &NATSBus{
		conn:    conn,
		queue:   cfg.NATSQueueGroup,
		timeout: requestTimeout(cfg),
		subs:    make(map[string]*natsSubscription),
	}, nil
}

// Subject returns the NATS subject for an establishment's topic, e.g.
// "cellmove.risks.requested.MDI".
func Subject(prisonID, topic string) string {
	return topic + "." + prisonID
}

// Serve joins the queue group on the establishment's subject.
func (b *NATSBus) Serve(ctx context.Context, prisonID, topic string, handler domain.RequestHandler) (domain.Subscription, error) {
	if err := validate(prisonID, topic); err != nil {
		return nil, err
	}

	sub, err := b.conn.QueueSubscribe(Subject(prisonID, topic), b.queue, func(m *nats.Msg) {
		if m.Reply == "" {
			slog.Warn("dropping NATS message without reply subject", "subject", m.Subject)
			return
		}
		if err := m.RespondMsg(answer(ctx, topic, handler, m)); err != nil {
			slog.Error("failed to respond", "subject", m.Subject, "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	s := &natsSubscription{bus: b, id: uuid.New().String(), topic: topic, sub: sub}
	b.mu.Lock()
	b.subs[s.id] = s
	b.mu.Unlock()
	return s, nil
}

// Request sends payload to one member of the queue group and waits for the reply.
func (b *NATSBus) Request(ctx context.Context, prisonID, topic string, payload []byte) ([]byte, error) {
	if err := validate(prisonID, topic); err != nil {
		return nil, err
	}

	ctx, cancel := withDeadline(ctx, b.timeout)
	defer cancel()

	resp, err := b.conn.RequestMsgWithContext(ctx, encodeRequest(prisonID, topic, payload, time.Now()))
	if errors.Is(err, nats.ErrNoResponders) {
		return nil, ErrNoResponders
	}
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return decodeReply(resp)
}

// encodeRequest builds the NATS message for a request.
func encodeRequest(prisonID, topic string, payload []byte, now time.Time) *nats.Msg {
	m := nats.NewMsg(Subject(prisonID, topic))
	m.Header.Set(HeaderRequestID, uuid.New().String())
	m.Header.Set(HeaderPrisonID, prisonID)
	m.Header.Set(HeaderSentAt, now.UTC().Format(time.RFC3339Nano))
	m.Data = payload
	return m
}

// decodeRequest recovers the envelope from a received request.
func decodeRequest(topic string, m *nats.Msg) (*domain.Envelope, error) {
	prisonID := m.Header.Get(HeaderPrisonID)
	if prisonID == "" {
		return nil, fmt.Errorf("%w: message on %s has no %s header", domain.ErrInvalidInput, m.Subject, HeaderPrisonID)
	}
	if m.Subject != "" && m.Subject != Subject(prisonID, topic) {
		return nil, fmt.Errorf("%w: message for %s arrived on %s", domain.ErrInvalidInput, prisonID, m.Subject)
	}

	env := &domain.Envelope{
		ID:       m.Header.Get(HeaderRequestID),
		PrisonID: prisonID,
		Topic:    topic,
		Payload:  m.Data,
	}
	if sent := m.Header.Get(HeaderSentAt); sent != "" {
		if t, err := time.Parse(time.RFC3339Nano, sent); err == nil {
			env.SentAt = t
		}
	}
	return env, nil
}

// answer runs handler for a received request and builds the reply message.
func answer(ctx context.Context, topic string, handler domain.RequestHandler, m *nats.Msg) *nats.Msg {
	env, err := decodeRequest(topic, m)
	if err != nil {
		return encodeReply(nil, err)
	}
	return encodeReply(handler(ctx, env))
}

func encodeReply(payload []byte, err error) *nats.Msg {
	reply := nats.NewMsg("")
	if err != nil {
		reply.Header.Set(HeaderError, err.Error())
		return reply
	}
	reply.Data = payload
	return reply
}

func decodeReply(m *nats.Msg) ([]byte, error) {
	if m.Header != nil {
		if msg := m.Header.Get(HeaderError); msg != "" {
			return nil, fmt.Errorf("%w: %s", ErrHandlerFailed, msg)
		}
	}
	return m.Data, nil
}

// Ping flushes the connection to confirm the server is reachable.
func (b *NATSBus) Ping(ctx context.Context) error {
	if !b.conn.IsConnected() {
		return fmt.Errorf("NATS not connected")
	}
	return b.conn.FlushWithContext(ctx)
}

// Close drains subscriptions and closes the connection.
func (b *NATSBus) Close() error {
	b.mu.Lock()
	b.subs = make(map[string]*natsSubscription)
	b.mu.Unlock()

	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return err
	}
	return nil
}

// Unsubscribe leaves the queue group.
func (s *natsSubscription) Unsubscribe() error {
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()
	return s.sub.Unsubscribe()
}

// Topic returns the served topic.
func (s *natsSubscription) Topic() string {
	return s.topic
}
