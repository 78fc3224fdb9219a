package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/bus"
	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/cellmove"
	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/domain"
)

type fakeEvaluator struct {
	calls atomic.Int32
}

func (f *fakeEvaluator) ConsiderRisks(ctx context.Context, req cellmove.RiskRequest) (*domain.Verdict, error) {
	f.calls.Add(1)
	switch req.PrisonerNumber {
	case "MISSING":
		return nil, domain.ErrNotFound
	}
	if req.CellKey == domain.CellSwapKey {
		return &domain.Verdict{Proceed: true}, nil
	}
	return &domain.Verdict{
		Warnings:             []domain.RiskWarning{{Kind: domain.WarningCsra, Title: "High CSRA"}},
		ConfirmationQuestion: "Are you sure you want to select this cell?",
	}, nil
}

func TestWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(domain.EventBusConfig{Type: "channel"})
	defer eventBus.Close()

	t.Run("StartAndStop", func(t *testing.T) {
		w := NewWorker(eventBus, &fakeEvaluator{})

		if err := w.Start(Config{PrisonIDs: []string{"MDI"}}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := w.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
		}
		if stats.Topics[0] != domain.TopicRisksRequested {
			t.Errorf("expected topic %s, got %s", domain.TopicRisksRequested, stats.Topics[0])
		}

		if err := w.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}
		if stats := w.GetStats(); stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("NoPrisons", func(t *testing.T) {
		w := NewWorker(eventBus, &fakeEvaluator{})
		if err := w.Start(Config{}); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("MalformedRequest", func(t *testing.T) {
		w := NewWorker(eventBus, &fakeEvaluator{})
		w.Start(Config{PrisonIDs: []string{"LEI"}})
		defer w.Stop()

		reply, err := eventBus.Request(context.Background(), "LEI", domain.TopicRisksRequested, []byte("not json"))
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		var result RiskResult
		if err := json.Unmarshal(reply, &result); err != nil {
			t.Fatalf("failed to parse result: %v", err)
		}
		if !errors.Is(result.Err(), domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", result.Err())
		}
		if result.PrisonID != "LEI" {
			t.Errorf("expected prisonID 'LEI', got '%s'", result.PrisonID)
		}
	})

	t.Run("RequestIDCarried", func(t *testing.T) {
		w := NewWorker(eventBus, &fakeEvaluator{})
		w.Start(Config{PrisonIDs: []string{"LEI"}})
		defer w.Stop()

		req, _ := json.Marshal(RiskRequestMessage{RequestID: "req-001", PrisonerNumber: "G4881UP", CellID: "LEI-A-1-001"})
		reply, err := eventBus.Request(context.Background(), "LEI", domain.TopicRisksRequested, req)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		var result RiskResult
		if err := json.Unmarshal(reply, &result); err != nil {
			t.Fatalf("failed to parse result: %v", err)
		}
		if result.RequestID != "req-001" {
			t.Errorf("expected requestID 'req-001', got '%s'", result.RequestID)
		}
		if result.Verdict == nil || result.Verdict.Proceed {
			t.Errorf("expected verdict with warnings, got %+v", result.Verdict)
		}
	})

	t.Run("RequestReply", func(t *testing.T) {
		w := NewWorker(eventBus, &fakeEvaluator{})
		w.Start(Config{PrisonIDs: []string{"BXI"}})
		defer w.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		result, err := RequestRisks(ctx, eventBus, cellmove.RiskRequest{PrisonID: "BXI", PrisonerNumber: "G4881UP", CellKey: domain.CellSwapKey})
		if err != nil {
			t.Fatalf("RequestRisks failed: %v", err)
		}
		if !result.Verdict.Proceed {
			t.Error("expected proceed to be true")
		}
		if result.CellID != domain.CellSwapKey {
			t.Errorf("expected cellId %s, got %s", domain.CellSwapKey, result.CellID)
		}
	})

	t.Run("RequestReplyError", func(t *testing.T) {
		w := NewWorker(eventBus, &fakeEvaluator{})
		w.Start(Config{PrisonIDs: []string{"WWI"}})
		defer w.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		_, err := RequestRisks(ctx, eventBus, cellmove.RiskRequest{PrisonID: "WWI", PrisonerNumber: "MISSING", CellKey: "WWI-1"})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("NoAnswerAfterStop", func(t *testing.T) {
		evaluator := &fakeEvaluator{}
		w := NewWorker(eventBus, evaluator)
		w.Start(Config{PrisonIDs: []string{"HMI"}})
		w.Stop()

		_, err := RequestRisks(context.Background(), eventBus, cellmove.RiskRequest{PrisonID: "HMI", PrisonerNumber: "G4881UP", CellKey: "HMI-1"})
		if !errors.Is(err, bus.ErrNoResponders) {
			t.Errorf("expected ErrNoResponders, got %v", err)
		}
		if n := evaluator.calls.Load(); n != 0 {
			t.Errorf("expected no evaluations, got %d", n)
		}
		if n := eventBus.ServerCount("HMI", domain.TopicRisksRequested); n != 0 {
			t.Errorf("expected 0 servers, got %d", n)
		}
	})

	t.Run("MultiPrison", func(t *testing.T) {
		w := NewWorker(eventBus, &fakeEvaluator{})
		w.Start(Config{PrisonIDs: []string{"MDI", "LEI"}})
		defer w.Stop()

		if stats := w.GetStats(); stats.SubscriptionCount != 2 {
			t.Errorf("expected 2 subscriptions for 2 prisons, got %d", stats.SubscriptionCount)
		}
	})
}

func TestRiskResultErr(t *testing.T) {
	tests := []struct {
		kind     string
		expected error
	}{
		{ErrorKindInvalidInput, domain.ErrInvalidInput},
		{ErrorKindNotFound, domain.ErrNotFound},
	}
	for _, tt := range tests {
		r := &RiskResult{Error: "boom", ErrorKind: tt.kind}
		if err := r.Err(); !errors.Is(err, tt.expected) {
			t.Errorf("kind %s: expected %v, got %v", tt.kind, tt.expected, err)
		}
	}

	if err := (&RiskResult{}).Err(); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if errorKind(errors.New("network")) != ErrorKindInternal {
		t.Error("expected unknown errors to be internal")
	}
	if err := (&RiskResult{Error: "network", ErrorKind: ErrorKindInternal}).Err(); err == nil || err.Error() != "network" {
		t.Errorf("expected plain error 'network', got %v", err)
	}
}
