package permission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mekedron/nearby/internal/domain"
)

// Android API level that introduced runtime permission requests.
const runtimePermissionsSDK = 23

// FineLocation is the Android permission name requested by the runtime gate.
const FineLocation = "android.permission.ACCESS_FINE_LOCATION"

// ErrMissingBridge is returned when a variant lacks a required platform API.
var ErrMissingBridge = errors.New("platform bridge is not configured")

// Provider checks location access, requesting it interactively when needed.
type Provider interface {
	CheckOrRequest(ctx context.Context) (domain.PermissionState, error)
}

// AuthorizationLevel is the iOS authorization scope being requested.
type AuthorizationLevel string

const (
	AuthorizationWhenInUse AuthorizationLevel = "whenInUse"
	AuthorizationAlways    AuthorizationLevel = "always"
)

// AuthorizationStatus is the raw iOS authorization response.
type AuthorizationStatus string

const (
	AuthorizationGranted    AuthorizationStatus = "granted"
	AuthorizationDenied     AuthorizationStatus = "denied"
	AuthorizationDisabled   AuthorizationStatus = "disabled"
	AuthorizationRestricted AuthorizationStatus = "restricted"
)

// Authorizer requests location authorization on the prompt-based platform family.
type Authorizer interface {
	RequestAuthorization(ctx context.Context, level AuthorizationLevel) (AuthorizationStatus, error)
}

// RequestResult is the raw Android runtime permission response.
type RequestResult string

const (
	RequestGranted       RequestResult = "granted"
	RequestDenied        RequestResult = "denied"
	RequestNeverAskAgain RequestResult = "never_ask_again"
)

// RuntimePermissions is the Android capability check/request pair.
type RuntimePermissions interface {
	Check(ctx context.Context, permission string) (bool, error)
	Request(ctx context.Context, permission string) (RequestResult, error)
}

// AlertButton is one choice offered by a blocking alert.
type AlertButton struct {
	Text    string
	OnPress func(ctx context.Context)
}

// Alert is a blocking dialog.
type Alert struct {
	Title   string
	Message string
	Buttons []AlertButton
}

// Notifier surfaces user-visible feedback.
type Notifier interface {
	// Alert blocks until the alert is dismissed and the chosen button handler ran.
	Alert(ctx context.Context, alert Alert)
	// Toast shows a transient non-blocking notice.
	Toast(message string, duration time.Duration)
}

// SettingsOpener deep-links into the system settings.
type SettingsOpener interface {
	OpenSettings(ctx context.Context) error
}

// Toast durations mirror the Android SHORT/LONG constants.
const (
	ToastShort = 2 * time.Second
	ToastLong  = 3500 * time.Millisecond
)

// Selection picks the provider variant once at startup.
type Selection struct {
	Platform   domain.Platform
	AndroidSDK int
	AppName    string
}

// Bridges holds the platform APIs the variants are built on.
type Bridges struct {
	Authorizer Authorizer
	Runtime    RuntimePermissions
	Notifier   Notifier
	Settings   SettingsOpener
}

// New returns the provider variant matching the selection.
func New(selection Selection, bridges Bridges) (Provider, error) {
	notifier := bridges.Notifier
	if notifier == nil {
		notifier = silentNotifier{}
	}
	switch selection.Platform {
	case domain.PlatformIOS:
		if bridges.Authorizer == nil {
			return nil, fmt.Errorf("%w: ios authorizer", ErrMissingBridge)
		}
		return &IOS{
			authorizer: bridges.Authorizer,
			notifier:   notifier,
			settings:   bridges.Settings,
			appName:    selection.AppName,
		}, nil
	case domain.PlatformAndroid:
		if selection.AndroidSDK > 0 && selection.AndroidSDK < runtimePermissionsSDK {
			return AndroidLegacy{}, nil
		}
		if bridges.Runtime == nil {
			return nil, fmt.Errorf("%w: android runtime permissions", ErrMissingBridge)
		}
		return &AndroidRuntime{runtime: bridges.Runtime, notifier: notifier}, nil
	default:
		return nil, fmt.Errorf("unsupported platform %q", selection.Platform)
	}
}

type silentNotifier struct{}

func (silentNotifier) Alert(context.Context, Alert) {}

func (silentNotifier) Toast(string, time.Duration) {}
