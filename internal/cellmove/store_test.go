package cellmove

import (
	"context"
	"testing"

	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/cells"
	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/domain"
	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/sqlstore"
)

// newStoreService runs the service over the SQL store loaded with the MDI fixtures.
func newStoreService(t *testing.T) *Service {
	t.Helper()

	store, err := sqlstore.New(domain.UpstreamConfig{Driver: "sqlite", SQLitePath: sqlstore.MemoryPath})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.LoadFixturesFile(context.Background(), "../sqlstore/testdata/mdi.yaml"); err != nil {
		t.Fatalf("failed to load fixtures: %v", err)
	}

	filters, err := cells.NewFilters()
	if err != nil {
		t.Fatalf("NewFilters failed: %v", err)
	}
	return NewService(store, filters)
}

// The MDI fixtures store one non-association, recorded against G4881UP with A111111
// as the other party. Both prisoners must see it.
func TestNonAssociationBothSides(t *testing.T) {
	ctx := context.Background()
	svc := newStoreService(t)

	t.Run("RecordedSide", func(t *testing.T) {
		verdict, err := svc.ConsiderRisks(ctx, RiskRequest{PrisonID: "MDI", PrisonerNumber: "G4881UP", CellKey: "MDI-1-3-027"})
		if err != nil {
			t.Fatalf("ConsiderRisks failed: %v", err)
		}
		warnings := verdict.ByKind(domain.WarningNonAssociation)
		if len(warnings) != 1 || warnings[0].NonAssociation.PrisonerNumber != "A111111" {
			t.Errorf("expected a non-association warning about A111111, got %+v", warnings)
		}
	})

	t.Run("OtherSide", func(t *testing.T) {
		verdict, err := svc.ConsiderRisks(ctx, RiskRequest{PrisonID: "MDI", PrisonerNumber: "A111111", CellKey: "MDI-2-1-001"})
		if err != nil {
			t.Fatalf("ConsiderRisks failed: %v", err)
		}
		if verdict.Proceed {
			t.Fatal("expected proceed to be false")
		}
		warnings := verdict.ByKind(domain.WarningNonAssociation)
		if len(warnings) != 1 {
			t.Fatalf("expected 1 non-association warning, got %d", len(warnings))
		}
		na := warnings[0].NonAssociation
		if na.PrisonerNumber != "G4881UP" {
			t.Errorf("expected counter-party G4881UP, got %s", na.PrisonerNumber)
		}
		if na.Location != "MDI-2-1-001" {
			t.Errorf("expected location MDI-2-1-001, got %s", na.Location)
		}
	})

	t.Run("OccupancyFlagsOtherSide", func(t *testing.T) {
		occupancy, err := svc.Occupancy(ctx, cells.Query{PrisonID: "MDI", Group: "ALL"}, "A111111")
		if err != nil {
			t.Fatalf("Occupancy failed: %v", err)
		}

		flagged := 0
		for _, cell := range occupancy {
			for _, o := range cell.Occupants {
				if o.NonAssociation {
					flagged++
					if o.PrisonerNumber != "G4881UP" {
						t.Errorf("expected only G4881UP flagged, got %s", o.PrisonerNumber)
					}
				}
			}
		}
		if flagged != 1 {
			t.Errorf("expected 1 flagged occupant, got %d", flagged)
		}
	})
}
