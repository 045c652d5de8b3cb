package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mekedron/nearby/internal/domain"
)

var (
	// ErrDefaultProfileNotFound indicates config has no default profile.
	ErrDefaultProfileNotFound = errors.New("no default profile found")
	// ErrProfileNotFound indicates requested profile does not exist.
	ErrProfileNotFound = errors.New("profile not found")
)

// Loader provides config payloads.
type Loader interface {
	Load(ctx context.Context) (domain.Config, error)
}

// Resolver resolves profile names.
type Resolver struct {
	loader Loader
}

// NewResolver creates a profile resolver.
func NewResolver(loader Loader) *Resolver {
	return &Resolver{loader: loader}
}

// Find resolves explicit profile names or defaults.
func (r *Resolver) Find(ctx context.Context, profileName string) (domain.Profile, error) {
	cfg, err := r.loader.Load(ctx)
	if err != nil {
		return domain.Profile{}, err
	}
	if strings.TrimSpace(profileName) == "" {
		for _, profile := range cfg.Profiles {
			if profile.IsDefault {
				return profile, nil
			}
		}
		return domain.Profile{}, ErrDefaultProfileNotFound
	}

	want := strings.ToLower(strings.TrimSpace(profileName))
	for _, profile := range cfg.Profiles {
		if strings.ToLower(profile.Name) == want {
			return profile, nil
		}
	}
	available := make([]string, 0, len(cfg.Profiles))
	for _, profile := range cfg.Profiles {
		available = append(available, profile.Name)
	}
	return domain.Profile{}, fmt.Errorf("%w: %s (available: %s)", ErrProfileNotFound, want, strings.Join(available, ", "))
}

// Upsert replaces the profile with the same name, case-insensitively, or
// appends it. The first profile, or one saved with makeDefault, becomes the
// only default.
func Upsert(cfg domain.Config, profile domain.Profile, makeDefault bool) domain.Config {
	out := domain.Config{Profiles: make([]domain.Profile, 0, len(cfg.Profiles)+1)}
	want := strings.ToLower(strings.TrimSpace(profile.Name))
	replaced := false
	for _, existing := range cfg.Profiles {
		if strings.ToLower(strings.TrimSpace(existing.Name)) == want {
			profile.IsDefault = existing.IsDefault
			out.Profiles = append(out.Profiles, profile)
			replaced = true
			continue
		}
		out.Profiles = append(out.Profiles, existing)
	}
	if !replaced {
		profile.IsDefault = false
		out.Profiles = append(out.Profiles, profile)
	}
	if makeDefault || len(out.Profiles) == 1 {
		for i := range out.Profiles {
			out.Profiles[i].IsDefault = strings.ToLower(strings.TrimSpace(out.Profiles[i].Name)) == want
		}
	}
	return out
}
