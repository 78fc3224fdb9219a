package risk

import (
	"fmt"
	"strings"

	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/alerts"
	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/csra"
	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/domain"
	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/nonassoc"
)

// NotEntered is shown for missing category and profile values.
const NotEntered = "not entered"

// CategoryWarning fires when a category A prisoner would share with anyone.
func CategoryWarning(in *Input) []domain.RiskWarning {
	if !in.Prisoner.IsCategoryA() || len(in.Occupants) == 0 {
		return nil
	}

	labels := make([]string, len(in.Occupants))
	for i := range in.Occupants {
		labels[i] = categoryLabel(in.Occupants[i].CategoryCode)
	}

	return []domain.RiskWarning{{
		Kind:          domain.WarningCategory,
		SubjectNumber: in.Prisoner.PrisonerNumber,
		SubjectName:   in.Prisoner.FullName(),
		Title:         "Category A prisoner",
		Message: fmt.Sprintf("%s is %s. The current occupants are %s.",
			in.Prisoner.FullName(), categoryLabel(in.Prisoner.CategoryCode), joinAnd(labels)),
	}}
}

// CsraWarning fires when anyone involved has a high CSRA and the cell is shared.
func CsraWarning(in *Input) []domain.RiskWarning {
	if len(in.Occupants) == 0 {
		return nil
	}

	people := append([]domain.Prisoner{*in.Prisoner}, in.Occupants...)
	high := false
	ratings := make([]string, len(people))
	for i := range people {
		code := people[i].CsraClassificationCode
		if csra.IsHigh(code) {
			high = true
		}
		ratings[i] = fmt.Sprintf("%s has a CSRA of %s", people[i].FullName(), csra.Rating(code))
	}
	if !high {
		return nil
	}

	return []domain.RiskWarning{{
		Kind:    domain.WarningCsra,
		Title:   "High CSRA",
		Message: joinAnd(ratings) + ".",
	}}
}

// PrisonerAlertWarnings lists the moving prisoner's relevant alerts. Risk to LGB alerts
// are kept only when an occupant is non-heterosexual.
func PrisonerAlertWarnings(in *Input) []domain.RiskWarning {
	if len(in.Occupants) == 0 {
		return nil
	}

	var counterparts []domain.Prisoner
	for _, o := range in.Occupants {
		if o.IsNonHeterosexual() {
			counterparts = append(counterparts, o)
		}
	}
	return alertWarnings(domain.WarningPrisonerAlert, in.Prisoner, counterparts)
}

// OccupantAlertWarnings lists each occupant's relevant alerts. Risk to LGB alerts are
// kept only when the moving prisoner is non-heterosexual.
func OccupantAlertWarnings(in *Input) []domain.RiskWarning {
	var counterparts []domain.Prisoner
	if in.Prisoner.IsNonHeterosexual() {
		counterparts = []domain.Prisoner{*in.Prisoner}
	}

	var out []domain.RiskWarning
	for i := range in.Occupants {
		out = append(out, alertWarnings(domain.WarningOccupantAlert, &in.Occupants[i], counterparts)...)
	}
	return out
}

func alertWarnings(kind domain.WarningKind, subject *domain.Prisoner, nonHeterosexual []domain.Prisoner) []domain.RiskWarning {
	var out []domain.RiskWarning
	for _, a := range alerts.Filter(subject.Alerts, alerts.ForRisk) {
		label, _ := alerts.Label(a.Code)
		message := fmt.Sprintf("%s has a %s alert.", subject.FullName(), label)

		if alerts.IsRiskToLGB(a.Code) {
			if len(nonHeterosexual) == 0 {
				continue
			}
			named := make([]string, len(nonHeterosexual))
			for i := range nonHeterosexual {
				named[i] = fmt.Sprintf("%s: %s", nonHeterosexual[i].FullName(), orientation(&nonHeterosexual[i]))
			}
			message += " Sexual orientation of " + joinAnd(named) + "."
		}

		out = append(out, domain.RiskWarning{
			Kind:          kind,
			SubjectNumber: subject.PrisonerNumber,
			SubjectName:   subject.FullName(),
			Title:         label,
			Message:       message,
			Alert: &domain.AlertDetail{
				Code:        a.Code,
				Label:       label,
				Description: a.CodeDescription,
				Comment:     a.Comment,
				DateAdded:   isoDate(a.DateCreated),
			},
		})
	}
	return out
}

// NonAssociationWarnings lists non-associations located in the target residential unit.
func NonAssociationWarnings(in *Input) []domain.RiskWarning {
	records := nonassoc.InResidentialUnit(in.NonAssociations, in.UnitPrefix)

	var out []domain.RiskWarning
	for _, r := range records {
		other := r.OtherPrisoner
		name := domain.DisplayName(other.FirstName, other.LastName)
		out = append(out, domain.RiskWarning{
			Kind:          domain.WarningNonAssociation,
			SubjectNumber: other.PrisonerNumber,
			SubjectName:   name,
			Title:         "Non-association",
			Message: fmt.Sprintf("%s (%s) is in %s. Reason: %s. Type: %s.",
				name, other.PrisonerNumber, other.LocationDescription, r.ReasonDescription, r.RestrictionTypeDescription),
			NonAssociation: &domain.NonAssociationDetail{
				PrisonerNumber: other.PrisonerNumber,
				Name:           name,
				Location:       other.LocationDescription,
				Reason:         r.ReasonDescription,
				Restriction:    r.RestrictionTypeDescription,
				Comment:        r.Comment,
			},
		})
	}
	return out
}

func categoryLabel(code string) string {
	if code == "" {
		return NotEntered
	}
	return "Cat " + code
}

func orientation(p *domain.Prisoner) string {
	if v := p.SexualOrientation(); v != "" {
		return v
	}
	return NotEntered
}

func isoDate(s string) string {
	if len(s) >= 10 {
		return s[:10]
	}
	return s
}

func joinAnd(items []string) string {
	return strings.Join(items, " and ")
}
