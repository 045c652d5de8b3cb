package domain

// Profile stores per-user map screen settings.
type Profile struct {
	Name          string   `json:"name"`
	IsDefault     bool     `json:"is_default"`
	Platform      Platform `json:"platform,omitempty"`
	AndroidSDK    int      `json:"android_sdk,omitempty"`
	PlacesAPIKey  string   `json:"places_api_key,omitempty"`
	DefaultRegion *Region  `json:"default_region,omitempty"`
	SearchRadius  int      `json:"search_radius,omitempty"`
	Category      string   `json:"category,omitempty"`
}

// Config stores all local profiles.
type Config struct {
	Profiles []Profile `json:"profiles"`
}
