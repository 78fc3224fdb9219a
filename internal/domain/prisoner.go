// Package domain defines the core types and upstream interfaces for the cell move service.
package domain

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Profile attribute types read from a prisoner's profile information.
const (
	ProfileSexualOrientation = "SEXO"
)

// OrientationHeterosexual is the only profile value treated as heterosexual.
const OrientationHeterosexual = "Heterosexual"

// Prisoner is a read-only snapshot of a prisoner fetched for one request.
type Prisoner struct {
	PrisonerNumber string `json:"prisonerNumber"`
	BookingID      int64  `json:"bookingId"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	DateOfBirth    string `json:"dateOfBirth,omitempty"`

	// AgencyID is the establishment the prisoner is currently in.
	AgencyID string `json:"agencyId"`

	// LivingUnitKey is the location key of the current cell (e.g. "MDI-1-3-026").
	LivingUnitKey string `json:"livingUnitKey,omitempty"`
	// LivingUnitDesc is the human cell label (e.g. "1-3-026").
	LivingUnitDesc string `json:"livingUnitDesc,omitempty"`

	CategoryCode           string `json:"categoryCode,omitempty"`
	CsraClassificationCode string `json:"csraClassificationCode,omitempty"`

	// Alerts and Profile are only populated by full detail lookups.
	Alerts  []Alert              `json:"alerts,omitempty"`
	Profile []ProfileInformation `json:"profileInformation,omitempty"`
}

// ProfileInformation is a single typed profile attribute.
type ProfileInformation struct {
	Type        string `json:"type"`
	Question    string `json:"question,omitempty"`
	ResultValue string `json:"resultValue"`
}

// FullName returns "First Last" in title case, whatever case the record holds.
func (p *Prisoner) FullName() string {
	return DisplayName(p.FirstName, p.LastName)
}

// DisplayName formats a first and last name in title case.
func DisplayName(first, last string) string {
	name := strings.Join(strings.Fields(first+" "+last), " ")
	return cases.Title(language.English).String(name)
}

// ProfileValue returns the value recorded for a profile type, or "" when absent.
func (p *Prisoner) ProfileValue(profileType string) string {
	for _, info := range p.Profile {
		if info.Type == profileType {
			return info.ResultValue
		}
	}
	return ""
}

// SexualOrientation returns the recorded sexual orientation, or "" when absent.
func (p *Prisoner) SexualOrientation() string {
	return p.ProfileValue(ProfileSexualOrientation)
}

// IsNonHeterosexual reports whether the recorded orientation is anything other than
// "Heterosexual". An absent value counts.
func (p *Prisoner) IsNonHeterosexual() bool {
	return p.SexualOrientation() != OrientationHeterosexual
}

// IsCategoryA reports whether the prisoner's category code is exactly "A".
func (p *Prisoner) IsCategoryA() bool {
	return p.CategoryCode == "A"
}

// Alert is a single alert recorded against a prisoner.
type Alert struct {
	AlertID        int64  `json:"alertId,omitempty"`
	PrisonerNumber string `json:"prisonerNumber,omitempty"`
	BookingID      int64  `json:"bookingId,omitempty"`

	Code            string `json:"alertCode"`
	CodeDescription string `json:"alertCodeDescription,omitempty"`
	Type            string `json:"alertType,omitempty"`
	TypeDescription string `json:"alertTypeDescription,omitempty"`

	Active      bool   `json:"active"`
	Expired     bool   `json:"expired"`
	DateCreated string `json:"dateCreated,omitempty"`
	DateExpires string `json:"dateExpires,omitempty"`
	Comment     string `json:"comment,omitempty"`

	AddedBy   string `json:"addedByName,omitempty"`
	ExpiredBy string `json:"expiredByName,omitempty"`
}

// Current reports whether the alert is currently relevant.
func (a Alert) Current() bool {
	return a.Active && !a.Expired
}

// LabeledAlert is a de-duplicated alert badge. Codes holds every source code
// that mapped to the label.
type LabeledAlert struct {
	Label string   `json:"label"`
	Class string   `json:"class"`
	Codes []string `json:"codes"`
}

// HasCode reports whether the badge was produced by the given alert code.
func (l LabeledAlert) HasCode(code string) bool {
	for _, c := range l.Codes {
		if c == code {
			return true
		}
	}
	return false
}
