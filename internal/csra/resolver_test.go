package csra

import (
	"context"
	"errors"
	"testing"

	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/domain"
)

type fakeLookup struct {
	assessments []domain.CsraAssessment
	err         error
	calls       int
}

func (f *fakeLookup) CsraAssessments(ctx context.Context, numbers []string) ([]domain.CsraAssessment, error) {
	f.calls++
	return f.assessments, f.err
}

func TestLatestFor(t *testing.T) {
	ctx := context.Background()

	t.Run("PicksLatestDate", func(t *testing.T) {
		lookup := &fakeLookup{assessments: []domain.CsraAssessment{
			{PrisonerNumber: "A111111", ClassificationCode: "STANDARD", AssessmentDate: "2020-01-01"},
			{PrisonerNumber: "A111111", ClassificationCode: "HI", AssessmentDate: "1980-01-01"},
		}}

		got, err := NewResolver(lookup).LatestFor(ctx, []string{"A111111"})
		if err != nil {
			t.Fatalf("LatestFor failed: %v", err)
		}
		a := got["A111111"]
		if a == nil {
			t.Fatal("expected an assessment")
		}
		if a.ClassificationCode != "STANDARD" {
			t.Errorf("expected STANDARD, got %s", a.ClassificationCode)
		}
		if Rating(a.ClassificationCode) != "Standard" {
			t.Errorf("expected 'Standard', got '%s'", Rating(a.ClassificationCode))
		}
	})

	t.Run("MissingIsNil", func(t *testing.T) {
		lookup := &fakeLookup{assessments: []domain.CsraAssessment{
			{PrisonerNumber: "A111111", ClassificationCode: "LOW", AssessmentDate: "2021-05-01"},
		}}

		got, err := NewResolver(lookup).LatestFor(ctx, []string{"A111111", "B222222"})
		if err != nil {
			t.Fatalf("LatestFor failed: %v", err)
		}
		v, ok := got["B222222"]
		if !ok {
			t.Fatal("expected B222222 to be present in result")
		}
		if v != nil {
			t.Errorf("expected nil assessment, got %+v", v)
		}
	})

	t.Run("EmptyListSkipsUpstream", func(t *testing.T) {
		lookup := &fakeLookup{}
		got, err := NewResolver(lookup).LatestFor(ctx, nil)
		if err != nil {
			t.Fatalf("LatestFor failed: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected empty result, got %d entries", len(got))
		}
		if lookup.calls != 0 {
			t.Errorf("expected no upstream calls, got %d", lookup.calls)
		}
	})

	t.Run("PropagatesError", func(t *testing.T) {
		lookup := &fakeLookup{err: domain.ErrNotFound}
		_, err := NewResolver(lookup).LatestFor(ctx, []string{"A111111"})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestLatest(t *testing.T) {
	t.Run("SingleRoundTrip", func(t *testing.T) {
		in := domain.CsraAssessment{PrisonerNumber: "G123", ClassificationCode: "MED", AssessmentDate: "2019-03-04", Comment: "ok"}
		got := Latest([]domain.CsraAssessment{in})
		if *got["G123"] != in {
			t.Errorf("expected %+v, got %+v", in, *got["G123"])
		}
	})

	t.Run("TieLastEntryWins", func(t *testing.T) {
		got := Latest([]domain.CsraAssessment{
			{PrisonerNumber: "G123", ClassificationCode: "LOW", AssessmentDate: "2019-03-04"},
			{PrisonerNumber: "G123", ClassificationCode: "HI", AssessmentDate: "2019-03-04"},
			{PrisonerNumber: "G123", ClassificationCode: "STANDARD", AssessmentDate: "2001-01-01"},
		})
		if got["G123"].ClassificationCode != "HI" {
			t.Errorf("expected HI, got %s", got["G123"].ClassificationCode)
		}
	})

	t.Run("DoesNotMutateInput", func(t *testing.T) {
		in := []domain.CsraAssessment{
			{PrisonerNumber: "G1", AssessmentDate: "2020-01-01"},
			{PrisonerNumber: "G1", AssessmentDate: "2010-01-01"},
		}
		Latest(in)
		if in[0].AssessmentDate != "2020-01-01" {
			t.Error("expected input order to be preserved")
		}
	})
}

func TestRating(t *testing.T) {
	tests := map[string]string{
		"HI":       "High",
		"STANDARD": "Standard",
		"MED":      "Medium",
		"LOW":      "Low",
		"":         NotEntered,
		"XYZ":      NotEntered,
	}
	for code, expected := range tests {
		if got := Rating(code); got != expected {
			t.Errorf("Rating(%q): expected %s, got %s", code, expected, got)
		}
	}
}
