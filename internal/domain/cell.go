package domain

// CellSwapKey is the placeholder location for a prisoner removed from any cell.
const CellSwapKey = "C-SWAP"

// GroupAll selects every cell in an establishment.
const GroupAll = "ALL"

// Cell is a candidate destination with its current capacity.
type Cell struct {
	ID int64 `json:"id"`
	// Key is the location prefix used by occupancy lookups (e.g. "MDI-1-3-026").
	Key string `json:"key"`
	// Description is the human cell label (e.g. "1-3-026").
	Description     string `json:"description"`
	UserDescription string `json:"userDescription,omitempty"`
	PrisonID        string `json:"prisonId"`

	Capacity      int `json:"capacity"`
	NoOfOccupants int `json:"noOfOccupants"`

	Attributes []CellAttribute `json:"attributes"`
}

// Spaces returns how many more prisoners the cell can hold.
func (c Cell) Spaces() int {
	return c.Capacity - c.NoOfOccupants
}

// CellAttribute is a cell type such as single occupancy or listener cell.
type CellAttribute struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Location is one node of the establishment location hierarchy.
type Location struct {
	ID          int64  `json:"locationId"`
	Key         string `json:"key"`
	Prefix      string `json:"locationPrefix"`
	Description string `json:"description"`
	Type        string `json:"locationType"`
	AgencyID    string `json:"agencyId"`
	// ParentKey is empty at the top of the hierarchy.
	ParentKey string `json:"parentKey,omitempty"`
}

// Occupant is a prisoner projected into a cell-occupancy context.
type Occupant struct {
	PrisonerNumber string         `json:"prisonerNumber"`
	Name           string         `json:"name"`
	CellKey        string         `json:"cellKey"`
	CsraCode       string         `json:"csraCode,omitempty"`
	Csra           string         `json:"csra"`
	Alerts         []LabeledAlert `json:"alerts"`
	// NonAssociation is set when the occupant is non-associated with the prisoner being moved.
	NonAssociation bool `json:"nonAssociation"`
}

// CellOccupancy is a cell together with its resolved occupants.
type CellOccupancy struct {
	Cell
	Spaces    int        `json:"spaces"`
	Occupants []Occupant `json:"occupants"`
}
