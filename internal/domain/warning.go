package domain

// WarningKind identifies which check produced a warning.
type WarningKind string

// Warning kinds in the order they are presented.
const (
	WarningCategory       WarningKind = "category"
	WarningCsra           WarningKind = "csra"
	WarningPrisonerAlert  WarningKind = "prisonerAlert"
	WarningOccupantAlert  WarningKind = "occupantAlert"
	WarningNonAssociation WarningKind = "nonAssociation"
)

// RiskWarning is one reason a human should confirm the move.
type RiskWarning struct {
	Kind WarningKind `json:"kind"`

	// SubjectNumber and SubjectName identify who the warning is about, when it is about one person.
	SubjectNumber string `json:"subjectNumber,omitempty"`
	SubjectName   string `json:"subjectName,omitempty"`

	Title   string `json:"title"`
	Message string `json:"message"`

	Alert          *AlertDetail          `json:"alert,omitempty"`
	NonAssociation *NonAssociationDetail `json:"nonAssociation,omitempty"`
}

// AlertDetail carries the source alert behind an alert warning.
type AlertDetail struct {
	Code        string `json:"code"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Comment     string `json:"comment,omitempty"`
	DateAdded   string `json:"dateAdded,omitempty"`
}

// NonAssociationDetail carries the counter-party behind a non-association warning.
type NonAssociationDetail struct {
	PrisonerNumber string `json:"prisonerNumber"`
	Name           string `json:"name"`
	Location       string `json:"location"`
	Reason         string `json:"reason"`
	Restriction    string `json:"restriction"`
	Comment        string `json:"comment,omitempty"`
}

// Verdict is the outcome of a risk evaluation. When Proceed is true the caller skips
// the warning screen and goes straight to move confirmation.
type Verdict struct {
	Proceed              bool          `json:"proceed"`
	Warnings             []RiskWarning `json:"warnings,omitempty"`
	ConfirmationQuestion string        `json:"confirmationQuestion,omitempty"`
}

// ByKind returns the warnings of one kind, preserving order.
func (v Verdict) ByKind(kind WarningKind) []RiskWarning {
	var out []RiskWarning
	for _, w := range v.Warnings {
		if w.Kind == kind {
			out = append(out, w)
		}
	}
	return out
}

// Has reports whether any warning of the kind is present.
func (v Verdict) Has(kind WarningKind) bool {
	return len(v.ByKind(kind)) > 0
}
