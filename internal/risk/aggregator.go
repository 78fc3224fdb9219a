// Package risk decides whether a move needs a warning screen and builds the warnings.
package risk

import (
	"fmt"

	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/domain"
)

// Input is everything fetched for one evaluation.
type Input struct {
	// Prisoner is the person being moved, with full details.
	Prisoner *domain.Prisoner
	// Occupants are the current occupants of the target cell, with full details.
	Occupants []domain.Prisoner
	// NonAssociations may be nil when the prisoner has none.
	NonAssociations *domain.NonAssociationDetails
	// UnitPrefix identifies the residential unit of the target cell.
	UnitPrefix string
}

// Constructor builds the warnings of one kind. A nil result means no warning.
type Constructor struct {
	Kind domain.WarningKind
	// NeedsOccupants constructors are skipped for an empty cell.
	NeedsOccupants bool
	Build          func(in *Input) []domain.RiskWarning
}

// DefaultConstructors run in presentation order.
var DefaultConstructors = []Constructor{
	{Kind: domain.WarningCategory, NeedsOccupants: true, Build: CategoryWarning},
	{Kind: domain.WarningCsra, NeedsOccupants: true, Build: CsraWarning},
	{Kind: domain.WarningPrisonerAlert, NeedsOccupants: true, Build: PrisonerAlertWarnings},
	{Kind: domain.WarningOccupantAlert, NeedsOccupants: true, Build: OccupantAlertWarnings},
	{Kind: domain.WarningNonAssociation, Build: NonAssociationWarnings},
}

// Aggregator evaluates the constructors and produces a verdict.
type Aggregator struct {
	constructors []Constructor
}

// NewAggregator creates an aggregator with the default constructors.
func NewAggregator() *Aggregator {
	return &Aggregator{constructors: DefaultConstructors}
}

// Evaluate runs every constructor in order and flattens the results. With no warnings
// the verdict says to proceed straight to move confirmation.
func (a *Aggregator) Evaluate(in *Input) domain.Verdict {
	occupied := len(in.Occupants) > 0

	var warnings []domain.RiskWarning
	for _, c := range a.constructors {
		if c.NeedsOccupants && !occupied {
			continue
		}
		warnings = append(warnings, c.Build(in)...)
	}

	if len(warnings) == 0 {
		return domain.Verdict{Proceed: true}
	}

	return domain.Verdict{
		Warnings:             warnings,
		ConfirmationQuestion: confirmationQuestion(in),
	}
}

func confirmationQuestion(in *Input) string {
	if len(in.Occupants) == 0 {
		return "Are you sure you want to select this cell?"
	}

	names := make([]string, len(in.Occupants))
	for i := range in.Occupants {
		names[i] = in.Occupants[i].FullName()
	}
	return fmt.Sprintf("Are you sure you want to move %s into a cell with %s?", in.Prisoner.FullName(), joinAnd(names))
}
