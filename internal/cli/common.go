package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mekedron/nearby/internal/config"
	"github.com/mekedron/nearby/internal/domain"
	"github.com/mekedron/nearby/internal/gateway/places"
	"github.com/mekedron/nearby/internal/locator"
	"github.com/mekedron/nearby/internal/permission"
	"github.com/mekedron/nearby/internal/platform/console"
	"github.com/mekedron/nearby/internal/service/output"
	"github.com/mekedron/nearby/internal/service/profile"
	"github.com/spf13/cobra"
)

const appName = "nearby"

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return ""
}

type globalFlags struct {
	Format           string
	Profile          string
	Platform         string
	AndroidSDK       int
	Lat              float64
	Lon              float64
	Address          string
	PermissionAnswer string
	AlertChoice      string
	Granted          bool
	Output           string
	Verbose          bool
}

const sharedGlobalFlagAnnotation = "nearby_cli_shared_global"

func addGlobalFlags(cmd *cobra.Command, flags *globalFlags) {
	addSharedGlobalFlag(cmd, "format", func() {
		cmd.Flags().StringVar(&flags.Format, "format", "table", "Output format: table, json, or yaml.")
	})
	addSharedGlobalFlag(cmd, "profile", func() {
		cmd.Flags().StringVar(&flags.Profile, "profile", "", "Profile name for saved local defaults.")
	})
	addSharedGlobalFlag(cmd, "platform", func() {
		cmd.Flags().StringVar(&flags.Platform, "platform", "", "Permission flow to emulate: ios or android (default from profile, else android).")
	})
	addSharedGlobalFlag(cmd, "android-sdk", func() {
		cmd.Flags().IntVar(&flags.AndroidSDK, "android-sdk", 0, "Android API level; below 23 permissions are granted at install time.")
	})
	addSharedGlobalFlag(cmd, "lat", func() {
		cmd.Flags().Float64Var(&flags.Lat, "lat", 0, "Fixed device latitude. Requires --lon.")
	})
	addSharedGlobalFlag(cmd, "lon", func() {
		cmd.Flags().Float64Var(&flags.Lon, "lon", 0, "Fixed device longitude. Requires --lat.")
	})
	addSharedGlobalFlag(cmd, "address", func() {
		cmd.Flags().StringVar(&flags.Address, "address", "", "Device position from a geocoded address. Cannot be combined with --lat/--lon.")
	})
	addSharedGlobalFlag(cmd, "permission-answer", func() {
		cmd.Flags().StringVar(&flags.PermissionAnswer, "permission-answer", "", "Answer permission prompts without asking: allow, deny, never, disabled, or restricted.")
	})
	addSharedGlobalFlag(cmd, "alert-choice", func() {
		cmd.Flags().StringVar(&flags.AlertChoice, "alert-choice", "", "Button picked on permission alerts, by text or 1-based position.")
	})
	addSharedGlobalFlag(cmd, "granted", func() {
		cmd.Flags().BoolVar(&flags.Granted, "granted", false, "Treat the Android runtime permission as already granted.")
	})
	addSharedGlobalFlag(cmd, "output", func() {
		cmd.Flags().StringVar(&flags.Output, "output", "", "Also write rendered output to this file.")
	})
	addSharedGlobalFlag(cmd, "verbose", func() {
		cmd.Flags().BoolVar(&flags.Verbose, "verbose", false, "Enable verbose output (prints upstream request trace and detailed error diagnostics).")
	})
}

func addSharedGlobalFlag(cmd *cobra.Command, name string, register func()) {
	if cmd.Flags().Lookup(name) != nil {
		return
	}
	register()
	flag := cmd.Flags().Lookup(name)
	if flag == nil {
		return
	}
	if flag.Annotations == nil {
		flag.Annotations = map[string][]string{}
	}
	flag.Annotations[sharedGlobalFlagAnnotation] = []string{"true"}
}

func resolveProfileLabel(profileName string) string {
	profile := strings.TrimSpace(profileName)
	if profile == "" {
		return "anonymous"
	}
	return profile
}

func parseOutputFormat(format string) (output.Format, error) {
	return output.ParseFormat(format)
}

func writeTable(cmd *cobra.Command, text string, outputPath string) error {
	if err := output.WriteOutput(cmd.OutOrStdout(), text, outputPath); err != nil {
		return err
	}
	return nil
}

func writeMachinePayload(cmd *cobra.Command, env output.Envelope, format output.Format, outputPath string) error {
	rendered, err := output.RenderPayload(env, format)
	if err != nil {
		return err
	}
	if err := output.WriteOutput(cmd.OutOrStdout(), rendered, outputPath); err != nil {
		return err
	}
	return nil
}

func emitError(
	cmd *cobra.Command,
	format output.Format,
	meta output.Meta,
	outputPath string,
	code string,
	message string,
) error {
	if format == output.FormatTable {
		if err := output.WriteOutput(cmd.OutOrStdout(), message, outputPath); err != nil {
			return err
		}
		return &exitError{code: 1}
	}
	env := output.BuildEnvelope(meta, nil, nil, &output.Failure{Code: code, Message: message})
	if err := writeMachinePayload(cmd, env, format, outputPath); err != nil {
		return err
	}
	return &exitError{code: 1}
}

// session is the per-invocation context shared by the map commands.
type session struct {
	flags    globalFlags
	format   output.Format
	profile  domain.Profile
	label    string
	platform domain.Platform
	sdk      int
	latSet   bool
	lonSet   bool
}

func (s session) meta() output.Meta {
	return output.Meta{Profile: s.label, Platform: string(s.platform)}
}

func (s session) emit(cmd *cobra.Command, code string, message string) error {
	return emitError(cmd, s.format, s.meta(), s.flags.Output, code, message)
}

func resolveSession(cmd *cobra.Command, deps Dependencies, flags globalFlags) (session, error) {
	format, err := parseOutputFormat(flags.Format)
	if err != nil {
		return session{}, err
	}
	s := session{
		flags:  flags,
		format: format,
		label:  resolveProfileLabel(flags.Profile),
		latSet: cmd.Flags().Changed("lat"),
		lonSet: cmd.Flags().Changed("lon"),
	}

	if deps.Profiles != nil {
		selected, err := deps.Profiles.Find(cmd.Context(), flags.Profile)
		switch {
		case err == nil:
			s.profile = selected
			s.label = selected.Name
		case strings.TrimSpace(flags.Profile) == "" && (errors.Is(err, config.ErrConfigNotFound) || errors.Is(err, profile.ErrDefaultProfileNotFound)):
		default:
			return session{}, emitError(cmd, format, output.Meta{Profile: defaultProfileName(flags.Profile)}, flags.Output, "NEARBY_PROFILE_ERROR", err.Error())
		}
	}

	platformValue := strings.TrimSpace(flags.Platform)
	if platformValue == "" {
		platformValue = string(s.profile.Platform)
	}
	if platformValue == "" {
		platformValue = string(domain.PlatformAndroid)
	}
	platform, err := domain.ParsePlatform(platformValue)
	if err != nil {
		return session{}, emitError(cmd, format, output.Meta{Profile: s.label}, flags.Output, "NEARBY_INVALID_ARGUMENT", err.Error())
	}
	s.platform = platform

	s.sdk = s.profile.AndroidSDK
	if cmd.Flags().Changed("android-sdk") {
		s.sdk = flags.AndroidSDK
	}
	if s.sdk < 0 {
		return session{}, s.emit(cmd, "NEARBY_INVALID_ARGUMENT", "--android-sdk must be >= 0")
	}
	return s, nil
}

func defaultProfileName(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "default"
	}
	return trimmed
}

func newPermissionGate(cmd *cobra.Command, deps Dependencies, s session) (permission.Provider, error) {
	in := deps.Stdin
	if in == nil {
		in = cmd.InOrStdin()
	}
	terminal := console.New(
		in,
		cmd.ErrOrStderr(),
		console.WithAppName(appName),
		console.WithAnswer(s.flags.PermissionAnswer),
		console.WithAlertChoice(s.flags.AlertChoice),
		console.WithRuntimeGranted(s.flags.Granted),
		console.WithSettingsCommand(deps.Settings.SettingsCommand),
	)
	gate, err := permission.New(permission.Selection{
		Platform:   s.platform,
		AndroidSDK: s.sdk,
		AppName:    appName,
	}, terminal.Bridges())
	if err != nil {
		return nil, s.emit(cmd, "NEARBY_PERMISSION_ERROR", err.Error())
	}
	return gate, nil
}

// newPositionSource picks fixed coordinates, a geocoded address, or IP
// geolocation, in that order of precedence.
func newPositionSource(cmd *cobra.Command, deps Dependencies, s session) (locator.Source, string, error) {
	address := strings.TrimSpace(s.flags.Address)
	if address != "" {
		if s.latSet || s.lonSet {
			return nil, "", s.emit(cmd, "NEARBY_INVALID_ARGUMENT", "Do not combine --address with --lat/--lon. Use either --address or both --lat and --lon.")
		}
		if deps.Geocoder == nil {
			return nil, "", s.emit(cmd, "NEARBY_LOCATION_RESOLVE_ERROR", "Address geocoder is not available.")
		}
		return locator.NewAddressSource(deps.Geocoder, address), "address", nil
	}
	if s.latSet != s.lonSet {
		return nil, "", s.emit(cmd, "NEARBY_INVALID_ARGUMENT", "Both --lat and --lon must be provided together, or omit both to locate by IP.")
	}
	if s.latSet {
		coordinate := domain.Coordinate{Latitude: s.flags.Lat, Longitude: s.flags.Lon}
		if !coordinate.Valid() {
			return nil, "", s.emit(cmd, "NEARBY_INVALID_ARGUMENT", fmt.Sprintf("coordinate out of range: %g, %g", coordinate.Latitude, coordinate.Longitude))
		}
		return locator.StaticSource{Coordinate: coordinate}, "fixed", nil
	}
	if deps.GeoIP == nil {
		return nil, "", s.emit(cmd, "NEARBY_LOCATION_RESOLVE_ERROR", "IP geolocation is not available; use --lat/--lon or --address.")
	}
	return locator.NewIPSource(deps.GeoIP), "ip", nil
}

// placesErrorMessage keeps non-verbose output short; the full error carries
// the redacted URL and a body preview.
func placesErrorMessage(err error, verbose bool) string {
	if err == nil {
		err = places.ErrNetwork
	}
	if verbose {
		return err.Error()
	}

	var upstreamErr *places.UpstreamRequestError
	var statusErr *places.ProviderStatusError
	switch {
	case errors.As(err, &statusErr):
		return fmt.Sprintf("%s (provider status %s, use --verbose for details)", places.ErrNetwork.Error(), statusErr.Status)
	case errors.As(err, &upstreamErr) && upstreamErr.StatusCode > 0:
		return fmt.Sprintf("%s (status %d, use --verbose for details)", places.ErrNetwork.Error(), upstreamErr.StatusCode)
	default:
		return places.ErrNetwork.Error() + " (use --verbose for details)"
	}
}

type verboseHTTPTraceSetter interface {
	SetVerboseOutput(out io.Writer)
}

type apiKeySetter interface {
	SetAPIKey(key string)
}
