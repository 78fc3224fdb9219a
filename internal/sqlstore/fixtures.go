package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Fixtures is a reference dataset, loaded from YAML for local development and tests.
type Fixtures struct {
	Prisoners       []PrisonerFixture       `yaml:"prisoners"`
	Locations       []LocationFixture       `yaml:"locations"`
	NonAssociations []NonAssociationFixture `yaml:"nonAssociations"`
}

// PrisonerFixture is one prisoner with alerts, profile and CSRA history.
type PrisonerFixture struct {
	Number         string              `yaml:"number"`
	BookingID      int64               `yaml:"bookingId"`
	FirstName      string              `yaml:"firstName"`
	LastName       string              `yaml:"lastName"`
	DateOfBirth    string              `yaml:"dateOfBirth"`
	AgencyID       string              `yaml:"agencyId"`
	LivingUnitKey  string              `yaml:"livingUnitKey"`
	LivingUnitDesc string              `yaml:"livingUnitDesc"`
	Category       string              `yaml:"category"`
	Csra           string              `yaml:"csra"`
	Alerts         []AlertFixture      `yaml:"alerts"`
	Profile        map[string]string   `yaml:"profile"`
	Assessments    []AssessmentFixture `yaml:"assessments"`
}

// AlertFixture is one alert. Active defaults to true.
type AlertFixture struct {
	ID          int64  `yaml:"id"`
	Code        string `yaml:"code"`
	Description string `yaml:"description"`
	Type        string `yaml:"type"`
	Active      *bool  `yaml:"active"`
	Expired     bool   `yaml:"expired"`
	DateCreated string `yaml:"dateCreated"`
	Comment     string `yaml:"comment"`
	AddedBy     string `yaml:"addedBy"`
}

// AssessmentFixture is one CSRA assessment.
type AssessmentFixture struct {
	Code    string `yaml:"code"`
	Date    string `yaml:"date"`
	Comment string `yaml:"comment"`
}

// LocationFixture is a location. Locations with a capacity are cells.
type LocationFixture struct {
	ID              int64              `yaml:"id"`
	Key             string             `yaml:"key"`
	Prefix          string             `yaml:"prefix"`
	Description     string             `yaml:"description"`
	UserDescription string             `yaml:"userDescription"`
	Type            string             `yaml:"type"`
	AgencyID        string             `yaml:"agencyId"`
	Parent          string             `yaml:"parent"`
	Capacity        int                `yaml:"capacity"`
	Groups          []string           `yaml:"groups"`
	Attributes      []AttributeFixture `yaml:"attributes"`
}

// AttributeFixture is a cell attribute.
type AttributeFixture struct {
	Code        string `yaml:"code"`
	Description string `yaml:"description"`
}

// NonAssociationFixture links two prisoners. Effective and Expiry are YYYY-MM-DD.
type NonAssociationFixture struct {
	ID              int64  `yaml:"id"`
	Prisoner        string `yaml:"prisoner"`
	Other           string `yaml:"other"`
	ReasonCode      string `yaml:"reasonCode"`
	Reason          string `yaml:"reason"`
	RestrictionCode string `yaml:"restrictionCode"`
	Restriction     string `yaml:"restriction"`
	Effective       string `yaml:"effective"`
	Expiry          string `yaml:"expiry"`
	Comment         string `yaml:"comment"`
}

// ParseFixtures decodes a YAML dataset.
func ParseFixtures(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}
	return &f, nil
}

// LoadFixturesFile reads a YAML dataset from disk and loads it.
func (s *Store) LoadFixturesFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read fixtures: %w", err)
	}
	f, err := ParseFixtures(data)
	if err != nil {
		return err
	}
	return s.LoadFixtures(ctx, f)
}

// LoadFixtures inserts a dataset in one transaction.
func (s *Store) LoadFixtures(ctx context.Context, f *Fixtures) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	exec := func(query string, values ...any) error {
		_, err := tx.ExecContext(ctx, s.rebind(query), values...)
		return err
	}

	for _, p := range f.Prisoners {
		if err := exec(`
			INSERT INTO prisoners (
				prisoner_number, booking_id, first_name, last_name, date_of_birth,
				agency_id, living_unit_key, living_unit_desc, category_code, csra_code
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.Number, p.BookingID, p.FirstName, p.LastName, nullable(p.DateOfBirth),
			p.AgencyID, nullable(p.LivingUnitKey), nullable(p.LivingUnitDesc), nullable(p.Category), nullable(p.Csra),
		); err != nil {
			return fmt.Errorf("prisoner %s: %w", p.Number, err)
		}

		for i, a := range p.Alerts {
			id := a.ID
			if id == 0 {
				id = int64(i + 1)
			}
			active := a.Active == nil || *a.Active
			if err := exec(`
				INSERT INTO alerts (
					alert_id, prisoner_number, booking_id, code, code_description, type,
					active, expired, date_created, comment, added_by
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				id, p.Number, p.BookingID, a.Code, nullable(a.Description), nullable(a.Type),
				boolInt(active), boolInt(a.Expired), nullable(a.DateCreated), nullable(a.Comment), nullable(a.AddedBy),
			); err != nil {
				return fmt.Errorf("alert %s for %s: %w", a.Code, p.Number, err)
			}
		}

		for typ, value := range p.Profile {
			if err := exec(`INSERT INTO profile_information (prisoner_number, type, result_value) VALUES (?, ?, ?)`,
				p.Number, typ, value); err != nil {
				return fmt.Errorf("profile %s for %s: %w", typ, p.Number, err)
			}
		}

		for _, a := range p.Assessments {
			if err := exec(`
				INSERT INTO csra_assessments (prisoner_number, booking_id, classification_code, assessment_date, comment)
				VALUES (?, ?, ?, ?, ?)`,
				p.Number, p.BookingID, a.Code, a.Date, nullable(a.Comment),
			); err != nil {
				return fmt.Errorf("assessment for %s: %w", p.Number, err)
			}
		}
	}

	for _, l := range f.Locations {
		prefix := l.Prefix
		if prefix == "" {
			prefix = l.Key
		}
		if err := exec(`
			INSERT INTO locations (
				location_key, location_id, prefix, description, user_description,
				location_type, agency_id, parent_key, capacity
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.Key, l.ID, prefix, l.Description, nullable(l.UserDescription),
			l.Type, l.AgencyID, nullable(l.Parent), l.Capacity,
		); err != nil {
			return fmt.Errorf("location %s: %w", l.Key, err)
		}

		for _, g := range l.Groups {
			if err := exec(`INSERT INTO location_groups (agency_id, group_key, location_key) VALUES (?, ?, ?)`,
				l.AgencyID, g, l.Key); err != nil {
				return fmt.Errorf("group %s for %s: %w", g, l.Key, err)
			}
		}
		for _, a := range l.Attributes {
			if err := exec(`INSERT INTO cell_attributes (location_key, code, description) VALUES (?, ?, ?)`,
				l.Key, a.Code, a.Description); err != nil {
				return fmt.Errorf("attribute %s for %s: %w", a.Code, l.Key, err)
			}
		}
	}

	for _, n := range f.NonAssociations {
		effective, err := parseDate(n.Effective)
		if err != nil {
			return fmt.Errorf("non-association %d: %w", n.ID, err)
		}
		var expiry any
		if n.Expiry != "" {
			e, err := parseDate(n.Expiry)
			if err != nil {
				return fmt.Errorf("non-association %d: %w", n.ID, err)
			}
			expiry = e
		}
		if err := exec(`
			INSERT INTO non_associations (
				id, prisoner_number, other_prisoner_number, reason_code, reason_description,
				restriction_type_code, restriction_type_description, effective_date, expiry_date, comment
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			n.ID, n.Prisoner, n.Other, n.ReasonCode, n.Reason,
			n.RestrictionCode, n.Restriction, effective, expiry, nullable(n.Comment),
		); err != nil {
			return fmt.Errorf("non-association %d: %w", n.ID, err)
		}
	}

	return tx.Commit()
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	return time.Parse("2006-01-02", s)
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
