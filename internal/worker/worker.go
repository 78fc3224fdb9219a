// Package worker exposes the risk evaluation over the event bus. It is an optional
// transport adapter: each request is answered synchronously by the same engine the
// HTTP API uses, and nothing is queued or stored between requests.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/cellmove"
	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/domain"
)

// Evaluator runs one risk evaluation.
type Evaluator interface {
	ConsiderRisks(ctx context.Context, req cellmove.RiskRequest) (*domain.Verdict, error)
}

// Worker answers risk requests sent over the bus. It stores nothing.
type Worker struct {
	bus       domain.EventBus
	evaluator Evaluator

	mu            sync.Mutex
	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// PrisonIDs are the establishments to answer for.
	PrisonIDs []string
}

// NewWorker creates a worker that answers with evaluator.
func NewWorker(bus domain.EventBus, evaluator Evaluator) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		evaluator: evaluator,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start serves risk requests for each establishment.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.PrisonIDs) == 0 {
		return fmt.Errorf("%w: at least one prison id is required", domain.ErrInvalidInput)
	}

	for _, prisonID := range cfg.PrisonIDs {
		if err := w.startPrisonWorker(prisonID); err != nil {
			slog.Error("failed to start worker for prison",
				"prison_id", prisonID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"prison_count", len(cfg.PrisonIDs),
	)
	return nil
}

func (w *Worker) startPrisonWorker(prisonID string) error {
	sub, err := w.bus.Serve(w.ctx, prisonID, domain.TopicRisksRequested, w.considerRisks)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.subscriptions = append(w.subscriptions, sub)
	w.mu.Unlock()

	slog.Info("prison worker started",
		"prison_id", prisonID,
		"topic", domain.TopicRisksRequested,
	)
	return nil
}

// RiskRequestMessage is the payload of a risk request.
type RiskRequestMessage struct {
	RequestID      string `json:"requestId,omitempty"`
	PrisonerNumber string `json:"prisonerNumber"`
	CellID         string `json:"cellId"`
}

// Error kinds carried in a RiskResult.
const (
	ErrorKindInvalidInput = "invalidInput"
	ErrorKindNotFound     = "notFound"
	ErrorKindInternal     = "internal"
)

// RiskResult is the payload of a reply.
type RiskResult struct {
	RequestID      string          `json:"requestId"`
	PrisonID       string          `json:"prisonId"`
	PrisonerNumber string          `json:"prisonerNumber"`
	CellID         string          `json:"cellId"`
	Verdict        *domain.Verdict `json:"verdict,omitempty"`
	Error          string          `json:"error,omitempty"`
	ErrorKind      string          `json:"errorKind,omitempty"`
	DurationMs     int64           `json:"durationMs"`
}

// Err converts a failed result back into the error taxonomy.
func (r *RiskResult) Err() error {
	if r.Error == "" {
		return nil
	}
	switch r.ErrorKind {
	case ErrorKindInvalidInput:
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, r.Error)
	case ErrorKindNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, r.Error)
	default:
		return errors.New(r.Error)
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return ErrorKindInvalidInput
	case errors.Is(err, domain.ErrNotFound):
		return ErrorKindNotFound
	default:
		return ErrorKindInternal
	}
}

// considerRisks answers one request. Evaluation failures travel back inside the
// RiskResult; only an unreadable result is a transport error.
func (w *Worker) considerRisks(ctx context.Context, env *domain.Envelope) ([]byte, error) {
	start := time.Now()

	var req RiskRequestMessage
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		slog.Error("failed to parse risk request",
			"message_id", env.ID,
			"error", err,
		)
		return json.Marshal(&RiskResult{
			RequestID: env.ID,
			PrisonID:  env.PrisonID,
			Error:     "malformed risk request",
			ErrorKind: ErrorKindInvalidInput,
		})
	}
	if req.RequestID == "" {
		req.RequestID = env.ID
	}

	result := &RiskResult{
		RequestID:      req.RequestID,
		PrisonID:       env.PrisonID,
		PrisonerNumber: req.PrisonerNumber,
		CellID:         req.CellID,
	}

	verdict, err := w.evaluator.ConsiderRisks(ctx, cellmove.RiskRequest{
		PrisonID:       env.PrisonID,
		PrisonerNumber: req.PrisonerNumber,
		CellKey:        req.CellID,
	})
	result.DurationMs = time.Since(start).Milliseconds()

	if err != nil {
		result.Error = err.Error()
		result.ErrorKind = errorKind(err)
		slog.Error("risk evaluation failed",
			"request_id", req.RequestID,
			"prison_id", env.PrisonID,
			"prisoner_number", req.PrisonerNumber,
			"error", err,
		)
		return json.Marshal(result)
	}
	result.Verdict = verdict

	slog.Info("risks evaluated",
		"request_id", req.RequestID,
		"prison_id", env.PrisonID,
		"prisoner_number", req.PrisonerNumber,
		"cell_id", req.CellID,
		"proceed", verdict.Proceed,
		"warning_count", len(verdict.Warnings),
		"duration_ms", result.DurationMs,
	)
	return json.Marshal(result)
}

// Stop stops serving every establishment.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}

// RequestRisks asks a worker over the bus to evaluate a move and waits for the result.
func RequestRisks(ctx context.Context, bus domain.EventBus, req cellmove.RiskRequest) (*RiskResult, error) {
	payload, err := json.Marshal(RiskRequestMessage{
		RequestID:      uuid.New().String(),
		PrisonerNumber: req.PrisonerNumber,
		CellID:         req.CellKey,
	})
	if err != nil {
		return nil, err
	}

	reply, err := bus.Request(ctx, req.PrisonID, domain.TopicRisksRequested, payload)
	if err != nil {
		return nil, fmt.Errorf("risk request failed: %w", err)
	}

	var result RiskResult
	if err := json.Unmarshal(reply, &result); err != nil {
		return nil, fmt.Errorf("failed to parse risk result: %w", err)
	}
	return &result, result.Err()
}
