package domain

import (
	"fmt"
	"strings"
)

// PermissionState is the normalized outcome of a location permission check.
type PermissionState string

const (
	PermissionGranted         PermissionState = "granted"
	PermissionDenied          PermissionState = "denied"
	PermissionDisabledService PermissionState = "disabled-service"
	PermissionUnavailable     PermissionState = "unavailable"
)

// Granted reports whether location access may be used.
func (s PermissionState) Granted() bool {
	return s == PermissionGranted
}

// Platform names a device platform family.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// ParsePlatform validates platform names.
func ParsePlatform(v string) (Platform, error) {
	switch Platform(strings.ToLower(strings.TrimSpace(v))) {
	case PlatformIOS:
		return PlatformIOS, nil
	case PlatformAndroid:
		return PlatformAndroid, nil
	default:
		return "", fmt.Errorf("unsupported platform %q", v)
	}
}
