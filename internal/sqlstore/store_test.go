package sqlstore

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "cellmove-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	store, err := New(domain.UpstreamConfig{Driver: "sqlite", SQLitePath: tmpPath})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.LoadFixturesFile(context.Background(), "testdata/mdi.yaml"); err != nil {
		t.Fatalf("failed to load fixtures: %v", err)
	}
	return store
}

func TestStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		if err := store.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("PrisonerSummary", func(t *testing.T) {
		p, err := store.PrisonerDetail(ctx, "G4881UP", false)
		if err != nil {
			t.Fatalf("PrisonerDetail failed: %v", err)
		}
		if p.BookingID != 1001 || p.CategoryCode != "A" || p.LivingUnitKey != "MDI-2-1-001" {
			t.Errorf("unexpected prisoner %+v", p)
		}
		if len(p.Alerts) != 0 || len(p.Profile) != 0 {
			t.Error("expected summary lookup without alerts or profile")
		}
	})

	t.Run("PrisonerFull", func(t *testing.T) {
		p, err := store.PrisonerDetail(ctx, "G4881UP", true)
		if err != nil {
			t.Fatalf("PrisonerDetail failed: %v", err)
		}
		if len(p.Alerts) != 2 {
			t.Fatalf("expected 2 alerts, got %d", len(p.Alerts))
		}
		if !p.Alerts[0].Active || p.Alerts[0].Code != "XGANG" {
			t.Errorf("expected active XGANG first, got %+v", p.Alerts[0])
		}
		if p.Alerts[1].Active {
			t.Error("expected HA to be inactive")
		}
		if p.SexualOrientation() != "Heterosexual" {
			t.Errorf("expected 'Heterosexual', got '%s'", p.SexualOrientation())
		}
	})

	t.Run("PrisonerNotFound", func(t *testing.T) {
		_, err := store.PrisonerDetail(ctx, "Z999999", false)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("CsraAssessments", func(t *testing.T) {
		got, err := store.CsraAssessments(ctx, []string{"G4881UP", "G3878UK"})
		if err != nil {
			t.Fatalf("CsraAssessments failed: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected 2 assessments, got %d", len(got))
		}
	})

	t.Run("AlertsScopedToPrison", func(t *testing.T) {
		got, err := store.Alerts(ctx, "MDI", []string{"G4881UP", "G3878UK"})
		if err != nil {
			t.Fatalf("Alerts failed: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected 2 alerts, got %d", len(got))
		}

		got, err = store.Alerts(ctx, "LEI", []string{"G4881UP"})
		if err != nil {
			t.Fatalf("Alerts failed: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no alerts in LEI, got %d", len(got))
		}
	})

	t.Run("NonAssociations", func(t *testing.T) {
		got, err := store.NonAssociations(ctx, "G4881UP")
		if err != nil {
			t.Fatalf("NonAssociations failed: %v", err)
		}
		if got.OpenCount != 1 || got.ClosedCount != 1 {
			t.Errorf("expected 1 open and 1 closed, got %d and %d", got.OpenCount, got.ClosedCount)
		}
		other := got.NonAssociations[0].OtherPrisoner
		if other.PrisonerNumber != "A111111" || other.LocationDescription != "MDI-1-3-026" {
			t.Errorf("unexpected counter-party %+v", other)
		}
		if got.NonAssociations[0].EffectiveDate.Year() != 2020 {
			t.Errorf("expected effective date in 2020, got %v", got.NonAssociations[0].EffectiveDate)
		}

		empty, err := store.NonAssociations(ctx, "B222222")
		if err != nil {
			t.Fatalf("NonAssociations failed: %v", err)
		}
		if len(empty.NonAssociations) != 0 || empty.ClosedCount != 1 {
			t.Errorf("expected only the expired record, got %d open and %d closed", len(empty.NonAssociations), empty.ClosedCount)
		}

		none, err := store.NonAssociations(ctx, "G3878UK")
		if err != nil {
			t.Fatalf("NonAssociations failed: %v", err)
		}
		if none.OpenCount != 0 || none.ClosedCount != 0 {
			t.Errorf("expected no records, got %d open and %d closed", none.OpenCount, none.ClosedCount)
		}

		if _, err := store.NonAssociations(ctx, "Z999999"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("NonAssociationsFromOtherSide", func(t *testing.T) {
		got, err := store.NonAssociations(ctx, "A111111")
		if err != nil {
			t.Fatalf("NonAssociations failed: %v", err)
		}
		if got.OpenCount != 1 || len(got.NonAssociations) != 1 {
			t.Fatalf("expected 1 open record, got %d", got.OpenCount)
		}

		r := got.NonAssociations[0]
		if r.ID != 1 {
			t.Errorf("expected record 1, got %d", r.ID)
		}
		other := r.OtherPrisoner
		if other.PrisonerNumber != "G4881UP" {
			t.Errorf("expected counter-party G4881UP, got %s", other.PrisonerNumber)
		}
		if other.FirstName != "PETER" || other.LastName != "PARKER" {
			t.Errorf("expected PETER PARKER, got %s %s", other.FirstName, other.LastName)
		}
		if other.LocationDescription != "MDI-2-1-001" {
			t.Errorf("expected location MDI-2-1-001, got %s", other.LocationDescription)
		}
	})

	t.Run("CellsWithCapacity", func(t *testing.T) {
		got, err := store.CellsWithCapacity(ctx, "MDI", "")
		if err != nil {
			t.Fatalf("CellsWithCapacity failed: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 cells, got %d", len(got))
		}
		if got[0].Key != "MDI-1-3-026" || got[0].NoOfOccupants != 2 || len(got[0].Attributes) != 2 {
			t.Errorf("unexpected first cell %+v", got[0])
		}
		if got[0].Spaces() != 0 {
			t.Errorf("expected 0 spaces, got %d", got[0].Spaces())
		}
	})

	t.Run("CellsWithCapacityInGroup", func(t *testing.T) {
		got, err := store.CellsWithCapacityInGroup(ctx, "MDI", "1_3", "")
		if err != nil {
			t.Fatalf("CellsWithCapacityInGroup failed: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected 2 cells, got %d", len(got))
		}

		got, err = store.CellsWithCapacityInGroup(ctx, "MDI", "1", "LC")
		if err != nil {
			t.Fatalf("CellsWithCapacityInGroup failed: %v", err)
		}
		if len(got) != 1 || got[0].Key != "MDI-1-3-026" {
			t.Errorf("expected only the listener cell, got %+v", got)
		}
	})

	t.Run("OccupantsAt", func(t *testing.T) {
		got, err := store.OccupantsAt(ctx, "MDI", []string{"MDI-1-3-026", "MDI-1-3-027"})
		if err != nil {
			t.Fatalf("OccupantsAt failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 occupants, got %d", len(got))
		}
		if got[0].PrisonerNumber != "A111111" {
			t.Errorf("expected A111111 first, got %s", got[0].PrisonerNumber)
		}
	})

	t.Run("Location", func(t *testing.T) {
		l, err := store.Location(ctx, "MDI-1-3-026")
		if err != nil {
			t.Fatalf("Location failed: %v", err)
		}
		if l.ParentKey != "MDI-1-3" || l.Prefix != "MDI-1-3-026" {
			t.Errorf("unexpected location %+v", l)
		}

		top, err := store.Location(ctx, "MDI-1")
		if err != nil {
			t.Fatalf("Location failed: %v", err)
		}
		if top.ParentKey != "" {
			t.Errorf("expected no parent, got %s", top.ParentKey)
		}

		if _, err := store.Location(ctx, "MDI-9"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestNewUnsupportedDriver(t *testing.T) {
	if _, err := New(domain.UpstreamConfig{Driver: "oracle"}); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	s := &Store{driver: "postgres"}
	got := s.rebind("SELECT * FROM t WHERE a = ? AND b IN (?, ?)")
	expected := "SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)"
	if got != expected {
		t.Errorf("expected %s, got %s", expected, got)
	}

	s.driver = "sqlite"
	if got := s.rebind("a = ?"); got != "a = ?" {
		t.Errorf("expected sqlite query unchanged, got %s", got)
	}
}

func TestParseFixtures(t *testing.T) {
	f, err := ParseFixtures([]byte("prisoners:\n  - number: A1\n    agencyId: MDI\n"))
	if err != nil {
		t.Fatalf("ParseFixtures failed: %v", err)
	}
	if len(f.Prisoners) != 1 || f.Prisoners[0].AgencyID != "MDI" {
		t.Errorf("unexpected fixtures %+v", f)
	}

	if _, err := ParseFixtures([]byte("prisoners: [")); err == nil {
		t.Error("expected parse error")
	}
}

func TestMemoryStore(t *testing.T) {
	store, err := New(domain.UpstreamConfig{Driver: "sqlite", SQLitePath: MemoryPath})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	if _, err := store.Location(context.Background(), "MDI-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound on empty store, got %v", err)
	}
}
