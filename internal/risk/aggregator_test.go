package risk

import (
	"strings"
	"testing"

	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/domain"
)

func orientationProfile(value string) []domain.ProfileInformation {
	return []domain.ProfileInformation{{Type: domain.ProfileSexualOrientation, ResultValue: value}}
}

func prisonerP() *domain.Prisoner {
	return &domain.Prisoner{
		PrisonerNumber:         "G4881UP",
		FirstName:              "PETER",
		LastName:               "PARKER",
		CategoryCode:           "A",
		CsraClassificationCode: "HI",
		Alerts: []domain.Alert{
			{Code: "XGANG", CodeDescription: "Gang member", Active: true, DateCreated: "2020-08-20T10:00:00", Comment: "Known member"},
		},
		Profile: orientationProfile("Heterosexual"),
	}
}

func occupantQ() domain.Prisoner {
	return domain.Prisoner{
		PrisonerNumber:         "G3878UK",
		FirstName:              "QUENTIN",
		LastName:               "QUIRE",
		CategoryCode:           "B",
		CsraClassificationCode: "HI",
		Profile:                orientationProfile("Heterosexual"),
	}
}

func TestEvaluateScenarioCategoryCsraAlert(t *testing.T) {
	verdict := NewAggregator().Evaluate(&Input{
		Prisoner:  prisonerP(),
		Occupants: []domain.Prisoner{occupantQ()},
	})

	if verdict.Proceed {
		t.Fatal("expected proceed to be false")
	}

	category := verdict.ByKind(domain.WarningCategory)
	if len(category) != 1 {
		t.Fatalf("expected 1 category warning, got %d", len(category))
	}
	if !strings.Contains(category[0].Message, "Cat A") || !strings.Contains(category[0].Message, "Cat B") {
		t.Errorf("expected message to mention Cat A and Cat B, got '%s'", category[0].Message)
	}

	if !verdict.Has(domain.WarningCsra) {
		t.Error("expected a csra warning")
	}

	prisonerAlerts := verdict.ByKind(domain.WarningPrisonerAlert)
	if len(prisonerAlerts) != 1 {
		t.Fatalf("expected 1 prisoner alert warning, got %d", len(prisonerAlerts))
	}
	if prisonerAlerts[0].Alert.Label != "Gang member" {
		t.Errorf("expected 'Gang member', got '%s'", prisonerAlerts[0].Alert.Label)
	}
	if prisonerAlerts[0].Alert.DateAdded != "2020-08-20" {
		t.Errorf("expected date '2020-08-20', got '%s'", prisonerAlerts[0].Alert.DateAdded)
	}

	expected := "Are you sure you want to move Peter Parker into a cell with Quentin Quire?"
	if verdict.ConfirmationQuestion != expected {
		t.Errorf("expected '%s', got '%s'", expected, verdict.ConfirmationQuestion)
	}

	order := []domain.WarningKind{domain.WarningCategory, domain.WarningCsra, domain.WarningPrisonerAlert}
	for i, kind := range order {
		if verdict.Warnings[i].Kind != kind {
			t.Errorf("warning %d: expected %s, got %s", i, kind, verdict.Warnings[i].Kind)
		}
	}
}

func TestEvaluateEmptyCell(t *testing.T) {
	t.Run("PlainPrisoner", func(t *testing.T) {
		p := &domain.Prisoner{PrisonerNumber: "G1", CategoryCode: "C", CsraClassificationCode: "STANDARD"}
		verdict := NewAggregator().Evaluate(&Input{Prisoner: p})

		if !verdict.Proceed {
			t.Error("expected proceed to be true")
		}
		if len(verdict.Warnings) != 0 || verdict.ConfirmationQuestion != "" {
			t.Errorf("expected empty verdict, got %+v", verdict)
		}
	})

	t.Run("RiskyPrisoner", func(t *testing.T) {
		verdict := NewAggregator().Evaluate(&Input{Prisoner: prisonerP()})
		if !verdict.Proceed {
			t.Errorf("expected proceed to be true, got warnings %+v", verdict.Warnings)
		}
	})

	t.Run("NonAssociationStillChecked", func(t *testing.T) {
		verdict := NewAggregator().Evaluate(&Input{
			Prisoner:        prisonerP(),
			NonAssociations: nonAssociations("MDI-1-3-026"),
			UnitPrefix:      "MDI-1-3",
		})
		if verdict.Proceed {
			t.Fatal("expected proceed to be false")
		}
		if verdict.ConfirmationQuestion != "Are you sure you want to select this cell?" {
			t.Errorf("unexpected question '%s'", verdict.ConfirmationQuestion)
		}
	})
}

func TestRiskToLGB(t *testing.T) {
	lgb := func(p *domain.Prisoner) {
		p.CategoryCode = "C"
		p.CsraClassificationCode = "STANDARD"
		p.Alerts = []domain.Alert{{Code: "RTP", Active: true}}
	}

	t.Run("SuppressedForHeterosexualOccupants", func(t *testing.T) {
		p := prisonerP()
		lgb(p)
		q := occupantQ()
		q.CsraClassificationCode = "STANDARD"

		verdict := NewAggregator().Evaluate(&Input{Prisoner: p, Occupants: []domain.Prisoner{q}})
		if verdict.Has(domain.WarningPrisonerAlert) {
			t.Error("expected risk to LGB alert to be excluded")
		}
		if !verdict.Proceed {
			t.Errorf("expected proceed to be true, got %+v", verdict.Warnings)
		}
	})

	t.Run("ShownForNonHeterosexualOccupant", func(t *testing.T) {
		p := prisonerP()
		lgb(p)
		q := occupantQ()
		q.Profile = orientationProfile("Homosexual")
		r := occupantQ()
		r.PrisonerNumber = "G9999ZZ"
		r.FirstName, r.LastName = "ROB", "ROE"
		r.Profile = nil

		warnings := PrisonerAlertWarnings(&Input{Prisoner: p, Occupants: []domain.Prisoner{q, r}})
		if len(warnings) != 1 {
			t.Fatalf("expected 1 warning, got %d", len(warnings))
		}
		msg := warnings[0].Message
		if !strings.Contains(msg, "Quentin Quire: Homosexual") || !strings.Contains(msg, "Rob Roe: not entered") {
			t.Errorf("expected occupants' orientations in message, got '%s'", msg)
		}
	})

	t.Run("OccupantMirrorsPrisonerOrientation", func(t *testing.T) {
		p := prisonerP()
		q := occupantQ()
		q.Alerts = []domain.Alert{{Code: "RLG", Active: true}}

		if w := OccupantAlertWarnings(&Input{Prisoner: p, Occupants: []domain.Prisoner{q}}); len(w) != 0 {
			t.Errorf("expected no warnings for heterosexual prisoner, got %d", len(w))
		}

		p.Profile = orientationProfile("Bisexual")
		w := OccupantAlertWarnings(&Input{Prisoner: p, Occupants: []domain.Prisoner{q}})
		if len(w) != 1 {
			t.Fatalf("expected 1 warning, got %d", len(w))
		}
		if w[0].SubjectNumber != q.PrisonerNumber {
			t.Errorf("expected subject %s, got %s", q.PrisonerNumber, w[0].SubjectNumber)
		}
		if !strings.Contains(w[0].Message, "Peter Parker: Bisexual") {
			t.Errorf("expected prisoner orientation in message, got '%s'", w[0].Message)
		}
	})
}

func TestCategoryWarning(t *testing.T) {
	t.Run("NotCategoryA", func(t *testing.T) {
		p := prisonerP()
		p.CategoryCode = "B"
		if w := CategoryWarning(&Input{Prisoner: p, Occupants: []domain.Prisoner{occupantQ()}}); w != nil {
			t.Errorf("expected no warning, got %+v", w)
		}
	})

	t.Run("MissingOccupantCategory", func(t *testing.T) {
		q := occupantQ()
		q.CategoryCode = ""
		w := CategoryWarning(&Input{Prisoner: prisonerP(), Occupants: []domain.Prisoner{occupantQ(), q}})
		if len(w) != 1 {
			t.Fatalf("expected 1 warning, got %d", len(w))
		}
		if !strings.Contains(w[0].Message, "Cat B and not entered") {
			t.Errorf("expected joined labels, got '%s'", w[0].Message)
		}
	})
}

func TestCsraWarning(t *testing.T) {
	p := prisonerP()
	p.CsraClassificationCode = "LOW"
	q := occupantQ()
	q.CsraClassificationCode = "STANDARD"

	if w := CsraWarning(&Input{Prisoner: p, Occupants: []domain.Prisoner{q}}); w != nil {
		t.Errorf("expected no warning without HI, got %+v", w)
	}

	q.CsraClassificationCode = "HI"
	w := CsraWarning(&Input{Prisoner: p, Occupants: []domain.Prisoner{q}})
	if len(w) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(w))
	}
	if !strings.Contains(w[0].Message, "Peter Parker has a CSRA of Low") || !strings.Contains(w[0].Message, "Quentin Quire has a CSRA of High") {
		t.Errorf("unexpected message '%s'", w[0].Message)
	}
}

func TestPEEPNotARisk(t *testing.T) {
	p := prisonerP()
	p.CategoryCode = "C"
	p.CsraClassificationCode = "STANDARD"
	p.Alerts = []domain.Alert{{Code: "PEEP", Active: true}}
	q := occupantQ()
	q.CsraClassificationCode = "STANDARD"

	verdict := NewAggregator().Evaluate(&Input{Prisoner: p, Occupants: []domain.Prisoner{q}})
	if !verdict.Proceed {
		t.Errorf("expected proceed to be true, got %+v", verdict.Warnings)
	}
}

func nonAssociations(location string) *domain.NonAssociationDetails {
	return &domain.NonAssociationDetails{
		PrisonerNumber: "G4881UP",
		OpenCount:      1,
		NonAssociations: []domain.NonAssociationRecord{{
			ReasonDescription:          "Victim",
			RestrictionTypeDescription: "Do Not Locate on Same Wing",
			Comment:                    "Fight on landing",
			OtherPrisoner: domain.NonAssociationParty{
				PrisonerNumber:      "A111111",
				FirstName:           "ALAN",
				LastName:            "ADAMS",
				LocationDescription: location,
			},
		}},
	}
}

func TestNonAssociationWarnings(t *testing.T) {
	w := NonAssociationWarnings(&Input{
		Prisoner:        prisonerP(),
		NonAssociations: nonAssociations("MDI-1-3-026"),
		UnitPrefix:      "1-3",
	})
	if len(w) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(w))
	}
	na := w[0].NonAssociation
	if na.Name != "Alan Adams" || na.Reason != "Victim" || na.Restriction != "Do Not Locate on Same Wing" {
		t.Errorf("unexpected detail %+v", na)
	}

	w = NonAssociationWarnings(&Input{
		Prisoner:        prisonerP(),
		NonAssociations: nonAssociations("MDI-1-3-026"),
		UnitPrefix:      "2-1",
	})
	if len(w) != 0 {
		t.Errorf("expected no warnings for another unit, got %d", len(w))
	}
}
