package domain

import "context"

// PrisonerLookup fetches prisoner detail. Full lookups include alerts and profile information.
type PrisonerLookup interface {
	PrisonerDetail(ctx context.Context, prisonerNumber string, full bool) (*Prisoner, error)
}

// CsraLookup fetches every CSRA assessment for a batch of prisoners, in no particular order.
type CsraLookup interface {
	CsraAssessments(ctx context.Context, prisonerNumbers []string) ([]CsraAssessment, error)
}

// AlertLookup fetches alerts for a batch of prisoners in an establishment.
type AlertLookup interface {
	Alerts(ctx context.Context, prisonID string, prisonerNumbers []string) ([]Alert, error)
}

// NonAssociationLookup fetches a prisoner's non-association record.
type NonAssociationLookup interface {
	NonAssociations(ctx context.Context, prisonerNumber string) (*NonAssociationDetails, error)
}

// CellLookup fetches cells with their capacity. Attribute is an optional cell attribute code.
type CellLookup interface {
	CellsWithCapacity(ctx context.Context, prisonID, attribute string) ([]Cell, error)
	CellsWithCapacityInGroup(ctx context.Context, prisonID, groupKey, attribute string) ([]Cell, error)
}

// OccupantLookup fetches the prisoners currently assigned to a batch of location keys.
type OccupantLookup interface {
	OccupantsAt(ctx context.Context, prisonID string, locationKeys []string) ([]Prisoner, error)
}

// LocationLookup fetches one node of the location hierarchy by key.
type LocationLookup interface {
	Location(ctx context.Context, key string) (*Location, error)
}

// Upstream bundles every read-only query the service depends on.
type Upstream interface {
	PrisonerLookup
	CsraLookup
	AlertLookup
	NonAssociationLookup
	CellLookup
	OccupantLookup
	LocationLookup

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}
