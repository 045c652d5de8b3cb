package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mekedron/nearby/internal/locator"
	"github.com/mekedron/nearby/internal/service/output"
	"github.com/spf13/cobra"
)

func newLocateCommand(deps Dependencies) *cobra.Command {
	var flags globalFlags
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "locate",
		Short: "Request location permission and take one position fix.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := resolveSession(cmd, deps, flags)
			if err != nil {
				return err
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

			coordinate, ok, err := fetcher.CurrentPosition(cmd.Context())
			if err != nil {
				return s.emit(cmd, locationErrorCode(err), err.Error())
			}
			if !ok {
				return s.emit(cmd, "NEARBY_PERMISSION_DENIED", "Location permission was not granted.")
			}

			if s.format == output.FormatTable {
				text := fmt.Sprintf(
					"Location: %s, %s (source: %s)",
					formatDegrees(coordinate.Latitude),
					formatDegrees(coordinate.Longitude),
					sourceName,
				)
				return writeTable(cmd, text, flags.Output)
			}
			opts := fetcher.Options()
			data := map[string]any{
				"coordinate":     coordinate,
				"high_accuracy":  opts.HighAccuracy,
				"timeout_ms":     opts.Timeout.Milliseconds(),
				"maximum_age_ms": opts.MaximumAge.Milliseconds(),
			}
			meta := s.meta()
			meta.Source = sourceName
			env := output.BuildEnvelope(meta, data, nil, nil)
			return writeMachinePayload(cmd, env, s.format, flags.Output)
		},
	}

	cmd.Flags().DurationVar(&timeout, "location-timeout", 20*time.Second, "Maximum wait for a location fix")
	addGlobalFlags(cmd, &flags)
	return cmd
}

func locationErrorCode(err error) string {
	switch {
	case errors.Is(err, locator.ErrLocationTimeout):
		return "NEARBY_LOCATION_TIMEOUT"
	case errors.Is(err, context.Canceled):
		return "NEARBY_CANCELED"
	default:
		return "NEARBY_LOCATION_UNAVAILABLE"
	}
}
