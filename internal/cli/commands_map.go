package cli

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mekedron/nearby/internal/config"
	"github.com/mekedron/nearby/internal/domain"
	"github.com/mekedron/nearby/internal/locator"
	"github.com/mekedron/nearby/internal/mapview"
	"github.com/mekedron/nearby/internal/service/output"
	"github.com/spf13/cobra"
)

const permissionDeniedWarning = "location permission not granted; showing default region"

func newMapCommand(deps Dependencies) *cobra.Command {
	var flags globalFlags
	var radius int
	var category string
	var selectIndex int
	var selectSet bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "map",
		Short: "Locate the device, center the map on it, and list nearby places.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := resolveSession(cmd, deps, flags)
			if err != nil {
				return err
			}
			if deps.Places == nil {
				return s.emit(cmd, "NEARBY_CONFIG_ERROR", "Places client is not available.")
			}
			apiKey := resolvePlacesAPIKey(deps.Settings, s.profile)
			if apiKey == "" {
				return s.emit(cmd, "NEARBY_CONFIG_ERROR", "Places API key is not configured. Set NEARBY_PLACES_API_KEY or run configure --places-api-key.")
			}
			if setter, ok := deps.Places.(apiKeySetter); ok {
				setter.SetAPIKey(apiKey)
			}

			mapConfig := resolveMapConfig(s.profile)
			if cmd.Flags().Changed("radius") {
				if radius <= 0 {
					return s.emit(cmd, "NEARBY_INVALID_ARGUMENT", "--radius must be > 0")
				}
				mapConfig.SearchRadius = radius
			}
			if cmd.Flags().Changed("category") {
				mapConfig.Category = strings.TrimSpace(category)
			}

			gate, err := newPermissionGate(cmd, deps, s)
			if err != nil {
				return err
			}
			source, sourceName, err := newPositionSource(cmd, deps, s)
			if err != nil {
				return err
			}
			fetcher := locator.NewFetcher(gate, source, locator.WithTimeout(timeout))

			logger := deps.Logger
			if logger == nil {
				logger = slog.Default()
			}
			controller := mapview.NewController(mapConfig, fetcher, deps.Places, mapview.WithLogger(logger))
			defer controller.Unmount()

			outcome := controller.Mount(cmd.Context())
			state := controller.State()

			data := map[string]any{
				"outcome":  string(outcome.Kind),
				"region":   state.Region,
				"venues":   state.Venues,
				"loading":  state.Loading,
				"phase":    string(state.Phase),
				"radius":   mapConfig.SearchRadius,
				"category": mapConfig.Category,
			}
			if state.Failure != nil {
				data["failure"] = state.Failure
			}

			var selected *markerSelection
			if selectSet {
				offset, err := controller.OnMarkerPress(selectIndex)
				if err != nil && !outcome.Kind.Failed() {
					return s.emit(cmd, "NEARBY_INVALID_ARGUMENT", err.Error())
				}
				if err == nil {
					selected = &markerSelection{Index: selectIndex, CardOffset: offset}
					data["selected"] = map[string]any{"index": selectIndex, "card_offset": offset}
				}
			}

			warnings := []string{}
			if outcome.Kind == mapview.OutcomePermissionDenied {
				warnings = append(warnings, permissionDeniedWarning)
			}
			failure := outcomeFailure(outcome, flags.Verbose)

			if s.format == output.FormatTable {
				text := buildMapTable(state, outcome, sourceName, selected, warnings, failure)
				if err := writeTable(cmd, text, flags.Output); err != nil {
					return err
				}
			} else {
				meta := s.meta()
				meta.SessionID = state.SessionID
				meta.Source = sourceName
				env := output.BuildEnvelope(meta, data, warnings, failure)
				if err := writeMachinePayload(cmd, env, s.format, flags.Output); err != nil {
					return err
				}
			}
			if failure != nil {
				return &exitError{code: 1}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&radius, "radius", 0, "Search radius in meters (default from profile, else 3000)")
	cmd.Flags().StringVar(&category, "category", "", "Place type to search for (default from profile, else restaurant)")
	cmd.Flags().IntVar(&selectIndex, "select", 0, "Press the marker with this index and report the card carousel offset")
	cmd.Flags().DurationVar(&timeout, "location-timeout", 20*time.Second, "Maximum wait for a location fix")
	addGlobalFlags(cmd, &flags)
	cmd.PreRun = func(cmd *cobra.Command, _ []string) {
		selectSet = cmd.Flags().Changed("select")
	}

	return cmd
}

type markerSelection struct {
	Index      int
	CardOffset float64
}

// resolvePlacesAPIKey prefers the selected profile's key over settings.
func resolvePlacesAPIKey(settings config.Settings, profile domain.Profile) string {
	if key := strings.TrimSpace(profile.PlacesAPIKey); key != "" {
		return key
	}
	return strings.TrimSpace(settings.PlacesAPIKey)
}

func resolveMapConfig(profile domain.Profile) mapview.Config {
	cfg := mapview.DefaultConfig()
	if profile.DefaultRegion != nil {
		region := *profile.DefaultRegion
		if region.LatitudeDelta <= 0 {
			region.LatitudeDelta = cfg.DefaultRegion.LatitudeDelta
		}
		if region.LongitudeDelta <= 0 {
			region.LongitudeDelta = cfg.DefaultRegion.LongitudeDelta
		}
		cfg.DefaultRegion = region
	}
	if profile.SearchRadius > 0 {
		cfg.SearchRadius = profile.SearchRadius
	}
	if trimmed := strings.TrimSpace(profile.Category); trimmed != "" {
		cfg.Category = trimmed
	}
	return cfg
}

// outcomeFailure maps failed mount outcomes to a coded failure. Denied
// permission is not an error: the default region is the expected result.
func outcomeFailure(outcome mapview.Outcome, verbose bool) *output.Failure {
	message := ""
	if outcome.Err != nil {
		message = outcome.Err.Error()
	}
	var code string
	switch outcome.Kind {
	case mapview.OutcomeLocationTimeout:
		code = "NEARBY_LOCATION_TIMEOUT"
	case mapview.OutcomeLocationUnavailable:
		code = "NEARBY_LOCATION_UNAVAILABLE"
	case mapview.OutcomeNetworkError:
		code = "NEARBY_UPSTREAM_ERROR"
		message = placesErrorMessage(outcome.Err, verbose)
	case mapview.OutcomeCanceled:
		code = "NEARBY_CANCELED"
		message = "interrupted before nearby places were loaded"
	default:
		return nil
	}
	return &output.Failure{Code: code, Message: message}
}

func buildMapTable(
	state mapview.State,
	outcome mapview.Outcome,
	sourceName string,
	selected *markerSelection,
	warnings []string,
	failure *output.Failure,
) string {
	var b strings.Builder
	_, _ = fmt.Fprintf(
		&b,
		"Region: %s, %s (span %s x %s)\n",
		formatDegrees(state.Region.Latitude),
		formatDegrees(state.Region.Longitude),
		formatDegrees(state.Region.LatitudeDelta),
		formatDegrees(state.Region.LongitudeDelta),
	)
	_, _ = fmt.Fprintf(&b, "Outcome: %s (source: %s)\n", outcome.Kind, sourceName)

	rows := make([][]string, 0, len(state.Venues))
	for _, venue := range state.Venues {
		rows = append(rows, []string{
			strconv.Itoa(venue.Index),
			fallback(venue.Name, "-"),
			formatDegrees(venue.Coordinate.Latitude),
			formatDegrees(venue.Coordinate.Longitude),
			fallback(venue.PlaceID, "-"),
		})
	}
	title := fmt.Sprintf("Nearby places (%d)", len(state.Venues))
	if len(rows) == 0 {
		b.WriteString(title)
		b.WriteString("\nNo places to show.")
	} else {
		b.WriteString(output.RenderTable(title, []string{"#", "Name", "Latitude", "Longitude", "Place ID"}, rows))
	}

	if selected != nil {
		_, _ = fmt.Fprintf(&b, "\nSelected marker %d: card offset %s", selected.Index, formatDegrees(selected.CardOffset))
	}
	for _, warning := range warnings {
		_, _ = fmt.Fprintf(&b, "\nwarning: %s", warning)
	}
	if failure != nil {
		_, _ = fmt.Fprintf(&b, "\nerror: %s", failure.Message)
	}
	return b.String()
}

func formatDegrees(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func fallback(value, alt string) string {
	if strings.TrimSpace(value) == "" {
		return alt
	}
	return value
}
