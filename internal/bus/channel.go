package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/domain"
)

// ChannelBus serves requests inside one process. Handlers on the same establishment
// and topic take requests in turn.
type ChannelBus struct {
	mu      sync.Mutex
	servers map[string][]*channelServer
	next    map[string]int
	closed  bool

	queueLen int
	timeout  time.Duration
}

type channelServer struct {
	bus     *ChannelBus
	id      string
	key     string
	topic   string
	handler domain.RequestHandler
	calls   chan *channelCall
	ctx     context.Context
	cancel  context.CancelFunc
}

type channelCall struct {
	env   *domain.Envelope
	reply chan channelReply
}

type channelReply struct {
	payload []byte
	err     error
}

// NewChannelBus creates an in-process bus.
func NewChannelBus(cfg domain.EventBusConfig) *ChannelBus {
	queueLen := cfg.ChannelBufferSize
	if queueLen <= 0 {
		queueLen = 100
	}
	return &ChannelBus{
		servers:  make(map[string][]*channelServer),
		next:     make(map[string]int),
		queueLen: queueLen,
		timeout:  requestTimeout(cfg),
	}
}

// Serve registers handler for the establishment and topic.
func (b *ChannelBus) Serve(ctx context.Context, prisonID, topic string, handler domain.RequestHandler) (domain.Subscription, error) {
	if err := validate(prisonID, topic); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	srvCtx, cancel := context.WithCancel(ctx)
	srv := &channelServer{
		bus:     b,
		id:      uuid.New().String(),
		key:     routeKey(prisonID, topic),
		topic:   topic,
		handler: handler,
		calls:   make(chan *channelCall, b.queueLen),
		ctx:     srvCtx,
		cancel:  cancel,
	}
	b.servers[srv.key] = append(b.servers[srv.key], srv)

	go srv.run()
	return srv, nil
}

func (s *channelServer) run() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case call := <-s.calls:
			payload, err := s.handler(s.ctx, call.env)
			call.reply <- channelReply{payload: payload, err: err}
		}
	}
}

// Request hands payload to the next server in turn and waits for its reply.
func (b *ChannelBus) Request(ctx context.Context, prisonID, topic string, payload []byte) ([]byte, error) {
	if err := validate(prisonID, topic); err != nil {
		return nil, err
	}

	srv, err := b.pick(routeKey(prisonID, topic))
	if err != nil {
		return nil, err
	}

	ctx, cancel := withDeadline(ctx, b.timeout)
	defer cancel()

	call := &channelCall{
		env: &domain.Envelope{
			ID:       uuid.New().String(),
			PrisonID: prisonID,
			Topic:    topic,
			Payload:  payload,
			SentAt:   time.Now(),
		},
		reply: make(chan channelReply, 1),
	}

	select {
	case srv.calls <- call:
	case <-srv.ctx.Done():
		return nil, ErrNoResponders
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-call.reply:
		if r.err != nil {
			return nil, fmt.Errorf("%w: %s", ErrHandlerFailed, r.err.Error())
		}
		return r.payload, nil
	case <-srv.ctx.Done():
		return nil, ErrNoResponders
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *ChannelBus) pick(key string) (*channelServer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	servers := b.servers[key]
	if len(servers) == 0 {
		return nil, ErrNoResponders
	}
	i := b.next[key] % len(servers)
	b.next[key] = i + 1
	return servers[i], nil
}

// remove stops a server and drops it from routing.
func (b *ChannelBus) remove(srv *channelServer) {
	srv.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	servers := b.servers[srv.key]
	for i, s := range servers {
		if s.id == srv.id {
			b.servers[srv.key] = append(servers[:i:i], servers[i+1:]...)
			break
		}
	}
	if len(b.servers[srv.key]) == 0 {
		delete(b.servers, srv.key)
		delete(b.next, srv.key)
	}
}

// ServerCount reports how many handlers serve the establishment and topic.
func (b *ChannelBus) ServerCount(prisonID, topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.servers[routeKey(prisonID, topic)])
}

// Ping checks bus health.
func (b *ChannelBus) Ping(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Close stops every server. Later calls fail with ErrClosed.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, servers := range b.servers {
		for _, srv := range servers {
			srv.cancel()
		}
	}
	b.servers = make(map[string][]*channelServer)
	b.next = make(map[string]int)
	return nil
}

func routeKey(prisonID, topic string) string {
	return prisonID + ":" + topic
}

// Unsubscribe stops the server and removes it from routing.
func (s *channelServer) Unsubscribe() error {
	s.bus.remove(s)
	return nil
}

// Topic returns the served topic.
func (s *channelServer) Topic() string {
	return s.topic
}
