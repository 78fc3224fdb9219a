// Package cellmove orchestrates the upstream lookups behind a cell move and feeds
// the results to the cell, non-association and risk components.
package cellmove

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/cells"
	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/domain"
	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/nonassoc"
	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/risk"
)

var tracer = otel.Tracer("cellmove")

// unitLevels is how far above a cell the residential unit sits.
const unitLevels = 2

// RiskRequest identifies a proposed move.
type RiskRequest struct {
	PrisonID       string `json:"prisonId"`
	PrisonerNumber string `json:"prisonerNumber"`
	// CellKey is the location key of the target cell, or C-SWAP.
	CellKey string `json:"cellId"`
}

func (r RiskRequest) validate() error {
	if r.PrisonID == "" {
		return fmt.Errorf("%w: prison id is required", domain.ErrInvalidInput)
	}
	if r.PrisonerNumber == "" {
		return fmt.Errorf("%w: prisoner number is required", domain.ErrInvalidInput)
	}
	if r.CellKey == "" {
		return fmt.Errorf("%w: cell id is required", domain.ErrInvalidInput)
	}
	return nil
}

// Service runs cell move evaluations. It holds no per-request state.
type Service struct {
	upstream   domain.Upstream
	cells      *cells.Resolver
	aggregator *risk.Aggregator
}

// NewService creates a service over the upstream queries.
func NewService(upstream domain.Upstream, filters *cells.Filters) *Service {
	return &Service{
		upstream:   upstream,
		cells:      cells.NewResolver(upstream, filters),
		aggregator: risk.NewAggregator(),
	}
}

// ConsiderRisks fetches the prisoner, the target cell's occupants and the prisoner's
// non-associations and evaluates the move. Upstream failures are returned unchanged
// apart from wrapping; nothing is retried.
func (s *Service) ConsiderRisks(ctx context.Context, req RiskRequest) (*domain.Verdict, error) {
	start := time.Now()
	if err := req.validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "cellmove.ConsiderRisks", trace.WithAttributes(
		attribute.String("prison.id", req.PrisonID),
		attribute.String("prisoner.number", req.PrisonerNumber),
		attribute.String("cell.key", req.CellKey),
	))
	defer span.End()

	verdict, err := s.considerRisks(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Bool("verdict.proceed", verdict.Proceed),
		attribute.Int("verdict.warnings", len(verdict.Warnings)),
	)
	slog.DebugContext(ctx, "risks considered",
		"prison_id", req.PrisonID,
		"prisoner_number", req.PrisonerNumber,
		"cell_id", req.CellKey,
		"proceed", verdict.Proceed,
		"warning_count", len(verdict.Warnings),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return verdict, nil
}

func (s *Service) considerRisks(ctx context.Context, req RiskRequest) (*domain.Verdict, error) {
	if req.CellKey == domain.CellSwapKey {
		if _, err := s.upstream.PrisonerDetail(ctx, req.PrisonerNumber, false); err != nil {
			return nil, fmt.Errorf("failed to fetch prisoner %s: %w", req.PrisonerNumber, err)
		}
		return &domain.Verdict{Proceed: true}, nil
	}

	var (
		prisoner  *domain.Prisoner
		location  *domain.Location
		occupants []domain.Prisoner
		records   *domain.NonAssociationDetails
	)

	fetchCtx, fetchSpan := tracer.Start(ctx, "cellmove.fetch")
	g, gctx := errgroup.WithContext(fetchCtx)
	g.Go(func() error {
		p, err := s.upstream.PrisonerDetail(gctx, req.PrisonerNumber, true)
		if err != nil {
			return fmt.Errorf("failed to fetch prisoner %s: %w", req.PrisonerNumber, err)
		}
		prisoner = p
		return nil
	})
	g.Go(func() error {
		l, err := s.upstream.Location(gctx, req.CellKey)
		if err != nil {
			return fmt.Errorf("failed to fetch location %s: %w", req.CellKey, err)
		}
		location = l
		return nil
	})
	g.Go(func() error {
		o, err := s.upstream.OccupantsAt(gctx, req.PrisonID, []string{req.CellKey})
		if err != nil {
			return fmt.Errorf("failed to fetch occupants of %s: %w", req.CellKey, err)
		}
		occupants = o
		return nil
	})
	g.Go(func() error {
		r, err := s.upstream.NonAssociations(gctx, req.PrisonerNumber)
		if err := domain.IgnoreNotFound(err); err != nil {
			return fmt.Errorf("failed to fetch non-associations for %s: %w", req.PrisonerNumber, err)
		}
		records = r
		return nil
	})
	err := g.Wait()
	fetchSpan.End()
	if err != nil {
		return nil, err
	}

	var (
		details    []domain.Prisoner
		unitPrefix string
	)

	detailCtx, detailSpan := tracer.Start(ctx, "cellmove.occupantDetail")
	g, gctx = errgroup.WithContext(detailCtx)
	g.Go(func() error {
		d, err := s.occupantDetails(gctx, req.PrisonerNumber, occupants)
		if err != nil {
			return err
		}
		details = d
		return nil
	})
	g.Go(func() error {
		p, err := s.unitPrefix(gctx, location)
		if err != nil {
			return err
		}
		unitPrefix = p
		return nil
	})
	err = g.Wait()
	detailSpan.End()
	if err != nil {
		return nil, err
	}

	verdict := s.aggregator.Evaluate(&risk.Input{
		Prisoner:        prisoner,
		Occupants:       details,
		NonAssociations: records,
		UnitPrefix:      unitPrefix,
	})
	return &verdict, nil
}

// occupantDetails fetches full details of every occupant except the prisoner being moved,
// preserving occupant order.
func (s *Service) occupantDetails(ctx context.Context, moving string, occupants []domain.Prisoner) ([]domain.Prisoner, error) {
	var numbers []string
	for _, o := range occupants {
		if o.PrisonerNumber != moving {
			numbers = append(numbers, o.PrisonerNumber)
		}
	}
	if len(numbers) == 0 {
		return nil, nil
	}

	details := make([]domain.Prisoner, len(numbers))
	g, gctx := errgroup.WithContext(ctx)
	for i, number := range numbers {
		i, number := i, number
		g.Go(func() error {
			p, err := s.upstream.PrisonerDetail(gctx, number, true)
			if err != nil {
				return fmt.Errorf("failed to fetch occupant %s: %w", number, err)
			}
			details[i] = *p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return details, nil
}

// unitPrefix walks up the location hierarchy from the cell and returns the prefix of
// the residential unit. A shorter chain stops at the topmost reachable location.
func (s *Service) unitPrefix(ctx context.Context, cell *domain.Location) (string, error) {
	current := cell
	for level := 0; level < unitLevels && current.ParentKey != ""; level++ {
		parent, err := s.upstream.Location(ctx, current.ParentKey)
		if err != nil {
			if domain.IgnoreNotFound(err) == nil {
				break
			}
			return "", fmt.Errorf("failed to fetch location %s: %w", current.ParentKey, err)
		}
		current = parent
	}

	if current.Prefix != "" {
		return current.Prefix, nil
	}
	return current.Key, nil
}

// Cells resolves candidate cells.
func (s *Service) Cells(ctx context.Context, q cells.Query) ([]domain.Cell, error) {
	ctx, span := tracer.Start(ctx, "cellmove.Cells", trace.WithAttributes(
		attribute.String("prison.id", q.PrisonID),
		attribute.String("group", q.GroupKey()),
	))
	defer span.End()

	found, err := s.cells.ResolveCells(ctx, q)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return found, nil
}

// Occupancy resolves candidate cells with their occupants. When prisonerNumber is set,
// occupants non-associated with that prisoner anywhere in the establishment are flagged.
func (s *Service) Occupancy(ctx context.Context, q cells.Query, prisonerNumber string) ([]domain.CellOccupancy, error) {
	ctx, span := tracer.Start(ctx, "cellmove.Occupancy", trace.WithAttributes(
		attribute.String("prison.id", q.PrisonID),
		attribute.String("group", q.GroupKey()),
		attribute.String("prisoner.number", prisonerNumber),
	))
	defer span.End()

	var (
		found   []domain.Cell
		flagged map[string]bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.cells.ResolveCells(gctx, q)
		if err != nil {
			return err
		}
		found = c
		return nil
	})
	if prisonerNumber != "" {
		g.Go(func() error {
			records, err := s.upstream.NonAssociations(gctx, prisonerNumber)
			if err := domain.IgnoreNotFound(err); err != nil {
				return fmt.Errorf("failed to fetch non-associations for %s: %w", prisonerNumber, err)
			}
			flagged = nonassoc.PrisonerNumbers(nonassoc.InEstablishment(records))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	occupancy, err := s.cells.ResolveOccupants(ctx, found, q.PrisonID, flagged)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return occupancy, nil
}

// Ping checks the upstream.
func (s *Service) Ping(ctx context.Context) error {
	return s.upstream.Ping(ctx)
}
