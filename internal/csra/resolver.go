// Package csra picks the latest cell sharing risk assessment for each prisoner.
package csra

import (
	"context"
	"fmt"
	"sort"

	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/domain"
)

// NotEntered is shown when a prisoner has no usable classification.
const NotEntered = "not entered"

var ratings = map[string]string{
	"HI":       "High",
	"STANDARD": "Standard",
	"MED":      "Medium",
	"LOW":      "Low",
}

// Rating translates a classification code into its display text.
func Rating(code string) string {
	if r, ok := ratings[code]; ok {
		return r
	}
	return NotEntered
}

// IsHigh reports whether a classification code is HI.
func IsHigh(code string) bool {
	return code == "HI"
}

// Resolver fetches assessments in one batched call and keeps the latest per prisoner.
type Resolver struct {
	lookup domain.CsraLookup
}

// NewResolver creates a resolver over the upstream assessment lookup.
func NewResolver(lookup domain.CsraLookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// LatestFor returns the latest assessment for every requested prisoner. Prisoners
// without an assessment map to nil. An empty list makes no upstream call.
func (r *Resolver) LatestFor(ctx context.Context, prisonerNumbers []string) (map[string]*domain.CsraAssessment, error) {
	result := make(map[string]*domain.CsraAssessment, len(prisonerNumbers))
	if len(prisonerNumbers) == 0 {
		return result, nil
	}

	assessments, err := r.lookup.CsraAssessments(ctx, prisonerNumbers)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch csra assessments: %w", err)
	}

	for _, number := range prisonerNumbers {
		result[number] = nil
	}
	for number, a := range Latest(assessments) {
		result[number] = a
	}
	return result, nil
}

// Latest groups assessments by prisoner and picks the one with the greatest date.
// Assessments are stable-sorted by date string, and the last entry wins on equal dates.
func Latest(assessments []domain.CsraAssessment) map[string]*domain.CsraAssessment {
	sorted := make([]domain.CsraAssessment, len(assessments))
	copy(sorted, assessments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AssessmentDate < sorted[j].AssessmentDate
	})

	latest := make(map[string]*domain.CsraAssessment)
	for i := range sorted {
		latest[sorted[i].PrisonerNumber] = &sorted[i]
	}
	return latest
}
