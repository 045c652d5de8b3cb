package permission

import (
	"context"
	"fmt"
	"strings"

	"github.com/mekedron/nearby/internal/domain"
)

const defaultAppName = "nearby"

// IOS requests while-in-use authorization on every check.
type IOS struct {
	authorizer Authorizer
	notifier   Notifier
	settings   SettingsOpener
	appName    string
}

// CheckOrRequest implements Provider.
func (p *IOS) CheckOrRequest(ctx context.Context) (domain.PermissionState, error) {
	status, err := p.authorizer.RequestAuthorization(ctx, AuthorizationWhenInUse)
	if err != nil {
		return domain.PermissionUnavailable, fmt.Errorf("request authorization: %w", err)
	}

	switch status {
	case AuthorizationGranted:
		return domain.PermissionGranted, nil
	case AuthorizationDenied:
		p.notifier.Alert(ctx, Alert{Title: "Location permission denied"})
		return domain.PermissionDenied, nil
	case AuthorizationDisabled:
		p.notifier.Alert(ctx, p.servicesDisabledAlert())
		return domain.PermissionDisabledService, nil
	default:
		return domain.PermissionUnavailable, nil
	}
}

func (p *IOS) servicesDisabledAlert() Alert {
	name := strings.TrimSpace(p.appName)
	if name == "" {
		name = defaultAppName
	}
	return Alert{
		Title: fmt.Sprintf("Turn on Location Services to allow %q to determine your location.", name),
		Buttons: []AlertButton{
			{Text: "Go to Settings", OnPress: p.openSettings},
			{Text: "Don't Use Location"},
		},
	}
}

// openSettings runs after the services alert was dismissed, so the failure
// alert never overlaps it.
func (p *IOS) openSettings(ctx context.Context) {
	if p.settings != nil {
		if err := p.settings.OpenSettings(ctx); err == nil {
			return
		}
	}
	p.notifier.Alert(ctx, Alert{Title: "Unable to open settings"})
}
