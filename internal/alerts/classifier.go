// Package alerts maps raw alert codes to the labelled badges and risk alerts used by cell moves.
package alerts

import (
	"fmt"

	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/domain"
)

// Use selects the call site a classification is made for.
type Use int

const (
	// ForRisk classifies alerts for risk warnings. PEEP is excluded.
	ForRisk Use = iota
	// ForBadges classifies alerts for informational badges. PEEP is included.
	ForBadges
)

// Alert codes with special handling.
const (
	CodePEEP = "PEEP"
	CodeRTP  = "RTP"
	CodeRLG  = "RLG"
)

// Badge classes.
const (
	ClassSelfHarm        = "self-harm"
	ClassSecurity        = "security"
	ClassMedical         = "medical"
	ClassRisk            = "risk"
	ClassOther           = "other"
	ClassVeteran         = "veteran"
	ClassCareExperienced = "care-experienced"
)

type flag struct {
	codes []string
	label string
	class string
}

// flags is the closed code -> label table, in display order.
var flags = []flag{
	{codes: []string{"HA"}, label: "ACCT open", class: ClassSelfHarm},
	{codes: []string{"HA1"}, label: "ACCT post closure", class: ClassSelfHarm},
	{codes: []string{"XSA"}, label: "Staff assaulter", class: ClassSecurity},
	{codes: []string{"XA"}, label: "Arsonist", class: ClassSecurity},
	{codes: []string{CodePEEP}, label: "PEEP", class: ClassMedical},
	{codes: []string{"XEL"}, label: "E-list", class: ClassSecurity},
	{codes: []string{"XRF"}, label: "Risk to females", class: ClassSecurity},
	{codes: []string{"XTACT"}, label: "TACT", class: ClassSecurity},
	{codes: []string{"XCO"}, label: "Corruptor", class: ClassSecurity},
	{codes: []string{"XCA"}, label: "Chemical attacker", class: ClassSecurity},
	{codes: []string{"XCI"}, label: "Concerted indiscipline", class: ClassSecurity},
	{codes: []string{"XR"}, label: "Racist", class: ClassSecurity},
	{codes: []string{CodeRTP, CodeRLG}, label: "Risk to LGB", class: ClassRisk},
	{codes: []string{"XHT"}, label: "Hostage taker", class: ClassSecurity},
	{codes: []string{"XCU"}, label: "Controlled unlock", class: ClassSecurity},
	{codes: []string{"XGANG"}, label: "Gang member", class: ClassSecurity},
	{codes: []string{"CSIP"}, label: "CSIP", class: ClassOther},
	{codes: []string{"F1"}, label: "Veteran", class: ClassVeteran},
	{codes: []string{"LCE"}, label: "Care experienced", class: ClassCareExperienced},
	{codes: []string{"RNO121"}, label: "No one-to-one", class: ClassRisk},
	{codes: []string{"RCON"}, label: "Conflict", class: ClassRisk},
	{codes: []string{"RCDR"}, label: "Quarantined", class: ClassRisk},
	{codes: []string{"URCU"}, label: "Reverse Cohorting Unit", class: ClassRisk},
	{codes: []string{"UPIU"}, label: "Protective Isolation Unit", class: ClassRisk},
	{codes: []string{"USU"}, label: "Shielding Unit", class: ClassRisk},
	{codes: []string{"URS"}, label: "Refusing to shield", class: ClassRisk},
	{codes: []string{"RVR"}, label: "Visor required", class: ClassRisk},
}

// cellMoveCodes are the alert codes relevant to a cell move.
var cellMoveCodes = []string{
	"XEL", "XGANG", "XTACT", "XCO", "XCA", "XCI", "XR", CodeRTP, CodeRLG, "XHT",
	"XCU", "XSA", "XA", "XRF", "HA", "HA1", "RNO121", "RCON", "CSIP", CodePEEP,
}

var (
	flagIndex map[string]int
	cellMove  map[string]bool
)

func init() {
	if err := Validate(); err != nil {
		panic(err)
	}
}

// Validate checks the code tables: no code maps to two labels and every cell-move code has a label.
// It builds the lookup indexes as a side effect and is safe to call more than once.
func Validate() error {
	index := make(map[string]int)
	for i, f := range flags {
		if f.label == "" || f.class == "" || len(f.codes) == 0 {
			return fmt.Errorf("alert flag %d is incomplete", i)
		}
		for _, code := range f.codes {
			if prev, ok := index[code]; ok {
				return fmt.Errorf("alert code %s maps to both %q and %q", code, flags[prev].label, f.label)
			}
			index[code] = i
		}
	}

	relevant := make(map[string]bool, len(cellMoveCodes))
	for _, code := range cellMoveCodes {
		if _, ok := index[code]; !ok {
			return fmt.Errorf("cell move alert code %s has no label", code)
		}
		relevant[code] = true
	}

	flagIndex = index
	cellMove = relevant
	return nil
}

// Label returns the display label for an alert code.
func Label(code string) (string, bool) {
	i, ok := flagIndex[code]
	if !ok {
		return "", false
	}
	return flags[i].label, true
}

// Relevant reports whether a current alert counts for the given use.
func Relevant(alert domain.Alert, use Use) bool {
	if !alert.Current() || !cellMove[alert.Code] {
		return false
	}
	return !(use == ForRisk && alert.Code == CodePEEP)
}

// Filter returns the source alerts that count for the given use, preserving input order.
func Filter(alerts []domain.Alert, use Use) []domain.Alert {
	var out []domain.Alert
	for _, a := range alerts {
		if Relevant(a, use) {
			out = append(out, a)
		}
	}
	return out
}

// Classify turns alerts into de-duplicated badges in table order. Alerts sharing a label
// collapse into one badge whose Codes hold every contributing code.
func Classify(alerts []domain.Alert, use Use) []domain.LabeledAlert {
	seen := make(map[string]bool)
	for _, a := range alerts {
		if Relevant(a, use) {
			seen[a.Code] = true
		}
	}

	badges := make([]domain.LabeledAlert, 0, len(seen))
	for _, f := range flags {
		var codes []string
		for _, code := range f.codes {
			if seen[code] {
				codes = append(codes, code)
			}
		}
		if len(codes) > 0 {
			badges = append(badges, domain.LabeledAlert{Label: f.label, Class: f.class, Codes: codes})
		}
	}
	return badges
}

// Expand turns badges back into one current alert per underlying code, so a badge set
// can be filtered or classified again.
func Expand(badges []domain.LabeledAlert) []domain.Alert {
	var out []domain.Alert
	for _, b := range badges {
		for _, code := range b.Codes {
			out = append(out, domain.Alert{Code: code, Active: true})
		}
	}
	return out
}

// IsRiskToLGB reports whether the code is one of the risk to LGB alerts.
func IsRiskToLGB(code string) bool {
	return code == CodeRTP || code == CodeRLG
}
