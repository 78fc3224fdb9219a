package sqlstore

// Reference dataset tables. Compatible with SQLite and PostgreSQL.

const schemaPrisoners = `
CREATE TABLE IF NOT EXISTS prisoners (
    prisoner_number TEXT PRIMARY KEY,
    booking_id BIGINT NOT NULL,
    first_name TEXT NOT NULL,
    last_name TEXT NOT NULL,
    date_of_birth TEXT,
    agency_id TEXT NOT NULL,
    living_unit_key TEXT,
    living_unit_desc TEXT,
    category_code TEXT,
    csra_code TEXT
);

CREATE INDEX IF NOT EXISTS idx_prisoners_location ON prisoners(agency_id, living_unit_key);
CREATE INDEX IF NOT EXISTS idx_prisoners_booking ON prisoners(booking_id);
`

const schemaAlerts = `
CREATE TABLE IF NOT EXISTS alerts (
    alert_id BIGINT NOT NULL,
    prisoner_number TEXT NOT NULL,
    booking_id BIGINT NOT NULL,
    code TEXT NOT NULL,
    code_description TEXT,
    type TEXT,
    type_description TEXT,
    active INTEGER NOT NULL DEFAULT 1,
    expired INTEGER NOT NULL DEFAULT 0,
    date_created TEXT,
    date_expires TEXT,
    comment TEXT,
    added_by TEXT,
    expired_by TEXT,
    PRIMARY KEY (prisoner_number, alert_id)
);
`

const schemaProfile = `
CREATE TABLE IF NOT EXISTS profile_information (
    prisoner_number TEXT NOT NULL,
    type TEXT NOT NULL,
    question TEXT,
    result_value TEXT NOT NULL,
    PRIMARY KEY (prisoner_number, type)
);
`

// csra_assessments has no uniqueness on date: several assessments may share one.
const schemaCsra = `
CREATE TABLE IF NOT EXISTS csra_assessments (
    prisoner_number TEXT NOT NULL,
    booking_id BIGINT NOT NULL,
    classification_code TEXT NOT NULL,
    assessment_date TEXT NOT NULL,
    comment TEXT
);

CREATE INDEX IF NOT EXISTS idx_csra_prisoner ON csra_assessments(prisoner_number);
`

const schemaNonAssociations = `
CREATE TABLE IF NOT EXISTS non_associations (
    id BIGINT PRIMARY KEY,
    prisoner_number TEXT NOT NULL,
    other_prisoner_number TEXT NOT NULL,
    reason_code TEXT NOT NULL,
    reason_description TEXT NOT NULL,
    restriction_type_code TEXT NOT NULL,
    restriction_type_description TEXT NOT NULL,
    effective_date TIMESTAMP NOT NULL,
    expiry_date TIMESTAMP,
    comment TEXT
);

CREATE INDEX IF NOT EXISTS idx_non_associations_prisoner ON non_associations(prisoner_number);
CREATE INDEX IF NOT EXISTS idx_non_associations_other ON non_associations(other_prisoner_number);
`

const schemaLocations = `
CREATE TABLE IF NOT EXISTS locations (
    location_key TEXT PRIMARY KEY,
    location_id BIGINT NOT NULL,
    prefix TEXT NOT NULL,
    description TEXT NOT NULL,
    user_description TEXT,
    location_type TEXT NOT NULL,
    agency_id TEXT NOT NULL,
    parent_key TEXT,
    capacity INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_locations_agency ON locations(agency_id, location_type);

CREATE TABLE IF NOT EXISTS location_groups (
    agency_id TEXT NOT NULL,
    group_key TEXT NOT NULL,
    location_key TEXT NOT NULL,
    PRIMARY KEY (agency_id, group_key, location_key)
);

CREATE TABLE IF NOT EXISTS cell_attributes (
    location_key TEXT NOT NULL,
    code TEXT NOT NULL,
    description TEXT NOT NULL,
    PRIMARY KEY (location_key, code)
);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaPrisoners,
		schemaAlerts,
		schemaProfile,
		schemaCsra,
		schemaNonAssociations,
		schemaLocations,
	}
}
