package domain

import "time"

// CsraAssessment is a cell sharing risk assessment.
type CsraAssessment struct {
	PrisonerNumber     string `json:"prisonerNumber"`
	BookingID          int64  `json:"bookingId,omitempty"`
	ClassificationCode string `json:"classificationCode"`
	// AssessmentDate is an ISO date (YYYY-MM-DD); ordering is by string.
	AssessmentDate string `json:"assessmentDate"`
	Comment        string `json:"assessmentComment,omitempty"`
}

// NonAssociationDetails is the full non-association record of one prisoner.
type NonAssociationDetails struct {
	PrisonerNumber  string                 `json:"prisonerNumber"`
	OpenCount       int                    `json:"openCount"`
	ClosedCount     int                    `json:"closedCount"`
	NonAssociations []NonAssociationRecord `json:"nonAssociations"`
}

// NonAssociationRecord links the prisoner to one counter-party.
type NonAssociationRecord struct {
	ID int64 `json:"id"`

	ReasonCode                 string `json:"reasonCode"`
	ReasonDescription          string `json:"reasonDescription"`
	RestrictionTypeCode        string `json:"restrictionTypeCode"`
	RestrictionTypeDescription string `json:"restrictionTypeDescription"`

	EffectiveDate time.Time  `json:"effectiveDate"`
	ExpiryDate    *time.Time `json:"expiryDate,omitempty"`
	Comment       string     `json:"comment,omitempty"`

	OtherPrisoner NonAssociationParty `json:"otherPrisonerDetails"`
}

// NonAssociationParty is the counter-party of a non-association and where they are now.
type NonAssociationParty struct {
	PrisonerNumber string `json:"prisonerNumber"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	AgencyID       string `json:"agencyId,omitempty"`

	// LocationDescription is empty when the counter-party has no assigned living unit.
	LocationDescription string `json:"locationDescription,omitempty"`
}
