// Package sqlstore answers the upstream queries from a read-only SQL reference dataset.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/domain"
)

// Store implements domain.Upstream using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

var _ domain.Upstream = (*Store)(nil)

// New opens the store configured by cfg and ensures the schema exists.
func New(cfg domain.UpstreamConfig) (*Store, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 && cfg.SQLitePath != MemoryPath {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := &Store{db: db, driver: cfg.Driver, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := s.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// PrisonerDetail returns one prisoner. Full lookups include alerts and profile information.
func (s *Store) PrisonerDetail(ctx context.Context, prisonerNumber string, full bool) (*domain.Prisoner, error) {
	if prisonerNumber == "" {
		return nil, fmt.Errorf("%w: prisoner number is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT prisoner_number, booking_id, first_name, last_name, date_of_birth,
			   agency_id, living_unit_key, living_unit_desc, category_code, csra_code
		FROM prisoners
		WHERE prisoner_number = ?
	`
	rows, err := s.db.QueryContext(ctx, s.rebind(query), prisonerNumber)
	if err != nil {
		return nil, err
	}
	prisoners, err := scanPrisoners(rows)
	if err != nil {
		return nil, err
	}
	if len(prisoners) == 0 {
		return nil, fmt.Errorf("prisoner %s: %w", prisonerNumber, domain.ErrNotFound)
	}
	p := &prisoners[0]

	if !full {
		return p, nil
	}

	if p.Alerts, err = s.alertsFor(ctx, "", []string{prisonerNumber}); err != nil {
		return nil, err
	}
	if p.Profile, err = s.profileFor(ctx, prisonerNumber); err != nil {
		return nil, err
	}
	return p, nil
}

func scanPrisoners(rows *sql.Rows) ([]domain.Prisoner, error) {
	defer rows.Close()

	var out []domain.Prisoner
	for rows.Next() {
		var p domain.Prisoner
		var dob, unitKey, unitDesc, category, csra sql.NullString
		if err := rows.Scan(
			&p.PrisonerNumber, &p.BookingID, &p.FirstName, &p.LastName, &dob,
			&p.AgencyID, &unitKey, &unitDesc, &category, &csra,
		); err != nil {
			return nil, err
		}
		p.DateOfBirth = dob.String
		p.LivingUnitKey = unitKey.String
		p.LivingUnitDesc = unitDesc.String
		p.CategoryCode = category.String
		p.CsraClassificationCode = csra.String
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) profileFor(ctx context.Context, prisonerNumber string) ([]domain.ProfileInformation, error) {
	query := `
		SELECT type, question, result_value
		FROM profile_information
		WHERE prisoner_number = ?
		ORDER BY type
	`
	rows, err := s.db.QueryContext(ctx, s.rebind(query), prisonerNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ProfileInformation
	for rows.Next() {
		var info domain.ProfileInformation
		var question sql.NullString
		if err := rows.Scan(&info.Type, &question, &info.ResultValue); err != nil {
			return nil, err
		}
		info.Question = question.String
		out = append(out, info)
	}
	return out, rows.Err()
}

// CsraAssessments returns every assessment for the prisoners, in storage order.
func (s *Store) CsraAssessments(ctx context.Context, prisonerNumbers []string) ([]domain.CsraAssessment, error) {
	if len(prisonerNumbers) == 0 {
		return nil, nil
	}

	query := `
		SELECT prisoner_number, booking_id, classification_code, assessment_date, comment
		FROM csra_assessments
		WHERE prisoner_number IN (` + placeholders(len(prisonerNumbers)) + `)
	`
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args(prisonerNumbers)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CsraAssessment
	for rows.Next() {
		var a domain.CsraAssessment
		var comment sql.NullString
		if err := rows.Scan(&a.PrisonerNumber, &a.BookingID, &a.ClassificationCode, &a.AssessmentDate, &comment); err != nil {
			return nil, err
		}
		a.Comment = comment.String
		out = append(out, a)
	}
	return out, rows.Err()
}

// Alerts returns the alerts of prisoners currently in the establishment.
func (s *Store) Alerts(ctx context.Context, prisonID string, prisonerNumbers []string) ([]domain.Alert, error) {
	if prisonID == "" {
		return nil, fmt.Errorf("%w: prison id is required", domain.ErrInvalidInput)
	}
	return s.alertsFor(ctx, prisonID, prisonerNumbers)
}

func (s *Store) alertsFor(ctx context.Context, prisonID string, prisonerNumbers []string) ([]domain.Alert, error) {
	if len(prisonerNumbers) == 0 {
		return nil, nil
	}

	query := `
		SELECT a.alert_id, a.prisoner_number, a.booking_id, a.code, a.code_description,
			   a.type, a.type_description, a.active, a.expired, a.date_created,
			   a.date_expires, a.comment, a.added_by, a.expired_by
		FROM alerts a
		JOIN prisoners p ON p.prisoner_number = a.prisoner_number
		WHERE a.prisoner_number IN (` + placeholders(len(prisonerNumbers)) + `)
	`
	queryArgs := args(prisonerNumbers)
	if prisonID != "" {
		query += " AND p.agency_id = ?"
		queryArgs = append(queryArgs, prisonID)
	}
	query += " ORDER BY a.prisoner_number, a.alert_id"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), queryArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		var a domain.Alert
		var codeDesc, typ, typDesc, created, expires, comment, addedBy, expiredBy sql.NullString
		if err := rows.Scan(
			&a.AlertID, &a.PrisonerNumber, &a.BookingID, &a.Code, &codeDesc,
			&typ, &typDesc, &a.Active, &a.Expired, &created,
			&expires, &comment, &addedBy, &expiredBy,
		); err != nil {
			return nil, err
		}
		a.CodeDescription = codeDesc.String
		a.Type = typ.String
		a.TypeDescription = typDesc.String
		a.DateCreated = created.String
		a.DateExpires = expires.String
		a.Comment = comment.String
		a.AddedBy = addedBy.String
		a.ExpiredBy = expiredBy.String
		out = append(out, a)
	}
	return out, rows.Err()
}

// NonAssociations returns the prisoner's open non-associations with each counter-party's
// current location. A record links two prisoners and is found from either side; when a
// pair is stored both ways only the earlier record is kept. Unknown prisoners are not found.
func (s *Store) NonAssociations(ctx context.Context, prisonerNumber string) (*domain.NonAssociationDetails, error) {
	if _, err := s.PrisonerDetail(ctx, prisonerNumber, false); err != nil {
		return nil, err
	}

	query := `
		SELECT n.id, n.reason_code, n.reason_description, n.restriction_type_code,
			   n.restriction_type_description, n.effective_date, n.expiry_date, n.comment,
			   p.other_number, o.first_name, o.last_name, o.agency_id, o.living_unit_key
		FROM (
			SELECT id, other_prisoner_number AS other_number FROM non_associations WHERE prisoner_number = ?
			UNION ALL
			SELECT id, prisoner_number AS other_number FROM non_associations WHERE other_prisoner_number = ?
		) p
		JOIN non_associations n ON n.id = p.id
		LEFT JOIN prisoners o ON o.prisoner_number = p.other_number
		WHERE p.other_number <> ?
		ORDER BY n.effective_date, n.id
	`
	rows, err := s.db.QueryContext(ctx, s.rebind(query), prisonerNumber, prisonerNumber, prisonerNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	details := &domain.NonAssociationDetails{PrisonerNumber: prisonerNumber}
	seen := make(map[string]bool)
	now := s.now()
	for rows.Next() {
		var r domain.NonAssociationRecord
		var expiry sql.NullTime
		var comment, first, last, agency, location sql.NullString
		if err := rows.Scan(
			&r.ID, &r.ReasonCode, &r.ReasonDescription, &r.RestrictionTypeCode,
			&r.RestrictionTypeDescription, &r.EffectiveDate, &expiry, &comment,
			&r.OtherPrisoner.PrisonerNumber, &first, &last, &agency, &location,
		); err != nil {
			return nil, err
		}

		if expiry.Valid {
			e := expiry.Time
			r.ExpiryDate = &e
			if !e.After(now) {
				details.ClosedCount++
				continue
			}
		}
		if seen[r.OtherPrisoner.PrisonerNumber] {
			continue
		}
		seen[r.OtherPrisoner.PrisonerNumber] = true

		r.Comment = comment.String
		r.OtherPrisoner.FirstName = first.String
		r.OtherPrisoner.LastName = last.String
		r.OtherPrisoner.AgencyID = agency.String
		r.OtherPrisoner.LocationDescription = location.String
		details.NonAssociations = append(details.NonAssociations, r)
		details.OpenCount++
	}
	return details, rows.Err()
}

// CellsWithCapacity returns every cell in the establishment.
func (s *Store) CellsWithCapacity(ctx context.Context, prisonID, attribute string) ([]domain.Cell, error) {
	query := `
		SELECT l.location_id, l.location_key, l.description, l.user_description, l.agency_id, l.capacity
		FROM locations l
		WHERE l.agency_id = ? AND l.location_type = 'CELL' AND l.capacity > 0
	`
	return s.cells(ctx, query, []any{prisonID}, attribute)
}

// CellsWithCapacityInGroup returns the cells belonging to a location group.
func (s *Store) CellsWithCapacityInGroup(ctx context.Context, prisonID, groupKey, attribute string) ([]domain.Cell, error) {
	query := `
		SELECT l.location_id, l.location_key, l.description, l.user_description, l.agency_id, l.capacity
		FROM locations l
		JOIN location_groups g ON g.location_key = l.location_key AND g.agency_id = l.agency_id
		WHERE l.agency_id = ? AND g.group_key = ? AND l.location_type = 'CELL' AND l.capacity > 0
	`
	return s.cells(ctx, query, []any{prisonID, groupKey}, attribute)
}

func (s *Store) cells(ctx context.Context, query string, queryArgs []any, attribute string) ([]domain.Cell, error) {
	if queryArgs[0] == "" {
		return nil, fmt.Errorf("%w: prison id is required", domain.ErrInvalidInput)
	}
	if attribute != "" {
		query += " AND EXISTS (SELECT 1 FROM cell_attributes a WHERE a.location_key = l.location_key AND a.code = ?)"
		queryArgs = append(queryArgs, attribute)
	}
	query += " ORDER BY l.location_key"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), queryArgs...)
	if err != nil {
		return nil, err
	}

	var out []domain.Cell
	for rows.Next() {
		var c domain.Cell
		var userDesc sql.NullString
		if err := rows.Scan(&c.ID, &c.Key, &c.Description, &userDesc, &c.PrisonID, &c.Capacity); err != nil {
			rows.Close()
			return nil, err
		}
		c.UserDescription = userDesc.String
		out = append(out, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	keys := make([]string, len(out))
	for i, c := range out {
		keys[i] = c.Key
	}
	occupancy, err := s.occupancy(ctx, keys)
	if err != nil {
		return nil, err
	}
	attrs, err := s.attributes(ctx, keys)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].NoOfOccupants = occupancy[out[i].Key]
		out[i].Attributes = attrs[out[i].Key]
	}
	return out, nil
}

func (s *Store) occupancy(ctx context.Context, keys []string) (map[string]int, error) {
	query := `
		SELECT living_unit_key, COUNT(*)
		FROM prisoners
		WHERE living_unit_key IN (` + placeholders(len(keys)) + `)
		GROUP BY living_unit_key
	`
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args(keys)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int, len(keys))
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

func (s *Store) attributes(ctx context.Context, keys []string) (map[string][]domain.CellAttribute, error) {
	query := `
		SELECT location_key, code, description
		FROM cell_attributes
		WHERE location_key IN (` + placeholders(len(keys)) + `)
		ORDER BY location_key, code
	`
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args(keys)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]domain.CellAttribute)
	for rows.Next() {
		var key string
		var a domain.CellAttribute
		if err := rows.Scan(&key, &a.Code, &a.Description); err != nil {
			return nil, err
		}
		out[key] = append(out[key], a)
	}
	return out, rows.Err()
}

// OccupantsAt returns the prisoners assigned to the locations, in summary form.
func (s *Store) OccupantsAt(ctx context.Context, prisonID string, locationKeys []string) ([]domain.Prisoner, error) {
	if prisonID == "" {
		return nil, fmt.Errorf("%w: prison id is required", domain.ErrInvalidInput)
	}
	if len(locationKeys) == 0 {
		return nil, nil
	}

	query := `
		SELECT prisoner_number, booking_id, first_name, last_name, date_of_birth,
			   agency_id, living_unit_key, living_unit_desc, category_code, csra_code
		FROM prisoners
		WHERE agency_id = ? AND living_unit_key IN (` + placeholders(len(locationKeys)) + `)
		ORDER BY living_unit_key, prisoner_number
	`
	rows, err := s.db.QueryContext(ctx, s.rebind(query), append([]any{prisonID}, args(locationKeys)...)...)
	if err != nil {
		return nil, err
	}
	return scanPrisoners(rows)
}

// Location returns one node of the location hierarchy.
func (s *Store) Location(ctx context.Context, key string) (*domain.Location, error) {
	query := `
		SELECT location_id, location_key, prefix, description, location_type, agency_id, parent_key
		FROM locations
		WHERE location_key = ?
	`
	var l domain.Location
	var parent sql.NullString
	err := s.db.QueryRowContext(ctx, s.rebind(query), key).Scan(
		&l.ID, &l.Key, &l.Prefix, &l.Description, &l.Type, &l.AgencyID, &parent,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("location %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	l.ParentKey = parent.String
	return &l, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func args(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}

	var b strings.Builder
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
