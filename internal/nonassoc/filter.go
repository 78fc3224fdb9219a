// Package nonassoc narrows a prisoner's non-associations to those that matter for a move.
package nonassoc

import (
	"strings"

	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/domain"
)

// InEstablishment keeps records whose counter-party currently has a living unit.
func InEstablishment(details *domain.NonAssociationDetails) []domain.NonAssociationRecord {
	if details == nil {
		return nil
	}

	var out []domain.NonAssociationRecord
	for _, r := range details.NonAssociations {
		if r.OtherPrisoner.LocationDescription != "" {
			out = append(out, r)
		}
	}
	return out
}

// InResidentialUnit keeps in-establishment records whose counter-party is located
// within the residential unit identified by unitPrefix. The prefix must cover whole
// dash-separated segments of the location, so "MDI-1" does not match "MDI-11-2-003".
func InResidentialUnit(details *domain.NonAssociationDetails, unitPrefix string) []domain.NonAssociationRecord {
	if unitPrefix == "" {
		return nil
	}

	var out []domain.NonAssociationRecord
	for _, r := range InEstablishment(details) {
		if containsSegments(r.OtherPrisoner.LocationDescription, unitPrefix) {
			out = append(out, r)
		}
	}
	return out
}

func containsSegments(location, prefix string) bool {
	for from := 0; from <= len(location)-len(prefix); {
		i := strings.Index(location[from:], prefix)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(prefix)
		if (start == 0 || location[start-1] == '-') && (end == len(location) || location[end] == '-') {
			return true
		}
		from = start + 1
	}
	return false
}

// PrisonerNumbers returns the counter-party numbers of the records as a set.
func PrisonerNumbers(records []domain.NonAssociationRecord) map[string]bool {
	set := make(map[string]bool, len(records))
	for _, r := range records {
		set[r.OtherPrisoner.PrisonerNumber] = true
	}
	return set
}
