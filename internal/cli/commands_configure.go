package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mekedron/nearby/internal/config"
	"github.com/mekedron/nearby/internal/domain"
	"github.com/mekedron/nearby/internal/service/profile"
	"github.com/spf13/cobra"
)

func newConfigureCommand(deps Dependencies) *cobra.Command {
	var profileName string
	var platform string
	var androidSDK int
	var apiKey string
	var lat float64
	var lon float64
	var radius int
	var category string
	var makeDefault bool
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Create or update a local profile with map defaults.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if deps.Config == nil {
				return fmt.Errorf("config store is not available")
			}
			name := strings.TrimSpace(profileName)
			if name == "" {
				return fmt.Errorf("%s", requiredArg("--profile-name"))
			}

			existingCfg, err := deps.Config.Load(cmd.Context())
			hasExisting := err == nil
			if err != nil && !errors.Is(err, config.ErrConfigNotFound) && !overwrite {
				return fmt.Errorf("%w (use --overwrite to replace it)", err)
			}
			if overwrite {
				existingCfg = domain.Config{}
				hasExisting = false
			}

			entry := domain.Profile{Name: name}
			if index := findProfileIndex(existingCfg, name); index >= 0 {
				entry = existingCfg.Profiles[index]
			}

			if cmd.Flags().Changed("platform") {
				parsed, err := domain.ParsePlatform(platform)
				if err != nil {
					return err
				}
				entry.Platform = parsed
			}
			if cmd.Flags().Changed("android-sdk") {
				if androidSDK < 0 {
					return fmt.Errorf("--android-sdk must be >= 0")
				}
				entry.AndroidSDK = androidSDK
			}
			if cmd.Flags().Changed("places-api-key") {
				entry.PlacesAPIKey = strings.TrimSpace(apiKey)
			}
			latSet := cmd.Flags().Changed("lat")
			lonSet := cmd.Flags().Changed("lon")
			if latSet != lonSet {
				return fmt.Errorf("both --lat and --lon must be provided together")
			}
			if latSet {
				coordinate := domain.Coordinate{Latitude: lat, Longitude: lon}
				if !coordinate.Valid() {
					return fmt.Errorf("coordinate out of range: %g, %g", lat, lon)
				}
				region := resolveMapConfig(entry).DefaultRegion.WithCenter(coordinate)
				entry.DefaultRegion = &region
			}
			if cmd.Flags().Changed("radius") {
				if radius <= 0 {
					return fmt.Errorf("--radius must be > 0")
				}
				entry.SearchRadius = radius
			}
			if cmd.Flags().Changed("category") {
				entry.Category = strings.TrimSpace(category)
			}

			cfg := profile.Upsert(existingCfg, entry, makeDefault)
			if err := deps.Config.Save(cmd.Context(), cfg); err != nil {
				return err
			}
			if hasExisting {
				return writeTable(cmd, fmt.Sprintf("🏁 Profile %q saved to %s", name, deps.Config.Path()), "")
			}
			return writeTable(cmd, fmt.Sprintf("🏁 Config was created successfully at %s", deps.Config.Path()), "")
		},
	}

	cmd.Flags().StringVar(&profileName, "profile-name", "default", "Profile name")
	cmd.Flags().StringVar(&platform, "platform", "", "Permission flow: ios or android")
	cmd.Flags().IntVar(&androidSDK, "android-sdk", 0, "Android API level used to pick the permission flow")
	cmd.Flags().StringVar(&apiKey, "places-api-key", "", "Places API key stored with the profile")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Default region latitude shown before a fix arrives")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Default region longitude shown before a fix arrives")
	cmd.Flags().IntVar(&radius, "radius", 0, "Search radius in meters")
	cmd.Flags().StringVar(&category, "category", "", "Place type to search for")
	cmd.Flags().BoolVar(&makeDefault, "default", false, "Make this the default profile")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Discard the existing config and start over")
	return cmd
}

func findProfileIndex(cfg domain.Config, profileName string) int {
	trimmed := strings.TrimSpace(profileName)
	if trimmed == "" {
		return -1
	}
	for i, profile := range cfg.Profiles {
		if strings.EqualFold(strings.TrimSpace(profile.Name), trimmed) {
			return i
		}
	}
	return -1
}

func requiredArg(name string) string {
	return fmt.Sprintf("%s is required", name)
}
