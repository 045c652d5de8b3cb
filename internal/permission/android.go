package permission

import (
	"context"
	"fmt"

	"github.com/mekedron/nearby/internal/domain"
)

// AndroidLegacy serves devices predating runtime permissions, where access
// is granted at install time.
type AndroidLegacy struct{}

// CheckOrRequest implements Provider.
func (AndroidLegacy) CheckOrRequest(context.Context) (domain.PermissionState, error) {
	return domain.PermissionGranted, nil
}

// AndroidRuntime checks the fine location permission and requests it when missing.
type AndroidRuntime struct {
	runtime  RuntimePermissions
	notifier Notifier
}

// CheckOrRequest implements Provider.
func (p *AndroidRuntime) CheckOrRequest(ctx context.Context) (domain.PermissionState, error) {
	granted, err := p.runtime.Check(ctx, FineLocation)
	if err != nil {
		return domain.PermissionUnavailable, fmt.Errorf("check permission: %w", err)
	}
	if granted {
		return domain.PermissionGranted, nil
	}

	result, err := p.runtime.Request(ctx, FineLocation)
	if err != nil {
		return domain.PermissionUnavailable, fmt.Errorf("request permission: %w", err)
	}
	switch result {
	case RequestGranted:
		return domain.PermissionGranted, nil
	case RequestDenied:
		p.notifier.Toast("Location permission denied by user.", ToastLong)
		return domain.PermissionDenied, nil
	case RequestNeverAskAgain:
		p.notifier.Toast("Location permission revoked by user.", ToastLong)
		return domain.PermissionDenied, nil
	default:
		return domain.PermissionUnavailable, nil
	}
}
