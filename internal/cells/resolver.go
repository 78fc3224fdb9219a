// Package cells resolves candidate cells for a move and the prisoners currently in them.
package cells

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/alerts"
	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/csra"
	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/domain"
)

// Upstream is the subset of upstream queries the resolver needs.
type Upstream interface {
	domain.CellLookup
	domain.OccupantLookup
	domain.AlertLookup
	domain.CsraLookup
}

// Query selects candidate cells.
type Query struct {
	PrisonID  string
	Group     string
	SubGroup  string
	CellType  string
	Attribute string
}

// GroupKey returns the key of the grouped capacity query: group, or group_subGroup.
func (q Query) GroupKey() string {
	if q.SubGroup == "" {
		return q.Group
	}
	return q.Group + "_" + q.SubGroup
}

// Resolver resolves cells and their occupants.
type Resolver struct {
	upstream Upstream
	csra     *csra.Resolver
	filters  *Filters
}

// NewResolver creates a resolver.
func NewResolver(upstream Upstream, filters *Filters) *Resolver {
	return &Resolver{
		upstream: upstream,
		csra:     csra.NewResolver(upstream),
		filters:  filters,
	}
}

// ResolveCells returns the cells matching the query, sorted by description with each
// cell's attributes sorted by description. No cells is an empty result.
func (r *Resolver) ResolveCells(ctx context.Context, q Query) ([]domain.Cell, error) {
	if q.PrisonID == "" {
		return nil, fmt.Errorf("%w: prison id is required", domain.ErrInvalidInput)
	}
	if q.Group == "" {
		return nil, fmt.Errorf("%w: location group is required", domain.ErrInvalidInput)
	}

	// Reject bad filter names before any upstream call.
	if _, err := r.filters.Lookup(q.CellType); err != nil {
		return nil, err
	}

	var (
		found []domain.Cell
		err   error
	)
	if strings.EqualFold(q.Group, domain.GroupAll) {
		found, err = r.upstream.CellsWithCapacity(ctx, q.PrisonID, q.Attribute)
	} else {
		found, err = r.upstream.CellsWithCapacityInGroup(ctx, q.PrisonID, q.GroupKey(), q.Attribute)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cells for %s: %w", q.PrisonID, err)
	}

	filtered, err := r.filters.Apply(found, q.CellType)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Cell, len(filtered))
	for i, c := range filtered {
		c.Attributes = sortedAttributes(c.Attributes)
		out[i] = c
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Description < out[j].Description
	})
	return out, nil
}

func sortedAttributes(attrs []domain.CellAttribute) []domain.CellAttribute {
	out := make([]domain.CellAttribute, len(attrs))
	copy(out, attrs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Description < out[j].Description
	})
	return out
}

// ResolveOccupants attaches the current occupants to each cell. Occupants are fetched in
// one batched call; alerts and CSRA are fetched only when there is at least one occupant.
// Occupants whose number is in nonAssociated are flagged.
func (r *Resolver) ResolveOccupants(ctx context.Context, cells []domain.Cell, prisonID string, nonAssociated map[string]bool) ([]domain.CellOccupancy, error) {
	result := make([]domain.CellOccupancy, len(cells))
	for i, c := range cells {
		result[i] = domain.CellOccupancy{Cell: c, Spaces: c.Spaces(), Occupants: []domain.Occupant{}}
	}
	if len(cells) == 0 {
		return result, nil
	}

	keys := make([]string, len(cells))
	for i, c := range cells {
		keys[i] = c.Key
	}

	prisoners, err := r.upstream.OccupantsAt(ctx, prisonID, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch occupants: %w", err)
	}
	if len(prisoners) == 0 {
		return result, nil
	}

	numbers := make([]string, 0, len(prisoners))
	for _, p := range prisoners {
		numbers = append(numbers, p.PrisonerNumber)
	}

	var (
		occupantAlerts []domain.Alert
		assessments    map[string]*domain.CsraAssessment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := r.upstream.Alerts(gctx, prisonID, numbers)
		if err != nil {
			return fmt.Errorf("failed to fetch occupant alerts: %w", err)
		}
		occupantAlerts = a
		return nil
	})
	g.Go(func() error {
		a, err := r.csra.LatestFor(gctx, numbers)
		if err != nil {
			return err
		}
		assessments = a
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byPrisoner := groupAlerts(prisoners, occupantAlerts)

	index := make(map[string]int, len(cells))
	for i, c := range cells {
		index[c.Key] = i
	}

	for _, p := range prisoners {
		i, ok := cellFor(cells, index, p.LivingUnitKey)
		if !ok {
			continue
		}

		occ := domain.Occupant{
			PrisonerNumber: p.PrisonerNumber,
			Name:           p.FullName(),
			CellKey:        cells[i].Key,
			Csra:           csra.NotEntered,
			Alerts:         alerts.Classify(byPrisoner[p.PrisonerNumber], alerts.ForBadges),
			NonAssociation: nonAssociated[p.PrisonerNumber],
		}
		if a := assessments[p.PrisonerNumber]; a != nil {
			occ.CsraCode = a.ClassificationCode
			occ.Csra = csra.Rating(a.ClassificationCode)
		}
		result[i].Occupants = append(result[i].Occupants, occ)
	}
	return result, nil
}

// cellFor finds the cell holding a living unit key. Keys match exactly or the living
// unit sits below the cell in the hierarchy, in which case the deepest enclosing cell
// wins and ties go to the earlier cell.
func cellFor(cells []domain.Cell, index map[string]int, livingUnitKey string) (int, bool) {
	if i, ok := index[livingUnitKey]; ok {
		return i, true
	}
	best, found := 0, false
	for i, c := range cells {
		if !strings.HasPrefix(livingUnitKey, c.Key+"-") {
			continue
		}
		if !found || len(c.Key) > len(cells[best].Key) {
			best, found = i, true
		}
	}
	return best, found
}

// groupAlerts groups alerts by prisoner number. Alerts that only carry a booking id
// are matched to the occupant with that booking.
func groupAlerts(prisoners []domain.Prisoner, all []domain.Alert) map[string][]domain.Alert {
	byBooking := make(map[int64]string, len(prisoners))
	for _, p := range prisoners {
		if p.BookingID != 0 {
			byBooking[p.BookingID] = p.PrisonerNumber
		}
	}

	grouped := make(map[string][]domain.Alert)
	for _, a := range all {
		number := a.PrisonerNumber
		if number == "" {
			number = byBooking[a.BookingID]
		}
		if number == "" {
			continue
		}
		grouped[number] = append(grouped[number], a)
	}
	return grouped
}
