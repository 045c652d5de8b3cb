package domain

// Venue is one entry returned by the nearby-places search.
//
// Index is the ordinal position in the provider result list and serves as
// marker identity for the rest of the session.
type Venue struct {
	Index      int            `json:"index" yaml:"index"`
	Coordinate Coordinate     `json:"coordinate" yaml:"coordinate"`
	Name       string         `json:"name,omitempty" yaml:"name,omitempty"`
	PlaceID    string         `json:"place_id,omitempty" yaml:"place_id,omitempty"`
	Details    map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
}
