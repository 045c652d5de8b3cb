package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mekedron/nearby/internal/cache"
	"github.com/mekedron/nearby/internal/cli"
	"github.com/mekedron/nearby/internal/config"
	"github.com/mekedron/nearby/internal/gateway/geoip"
	locationgateway "github.com/mekedron/nearby/internal/gateway/location"
	"github.com/mekedron/nearby/internal/gateway/places"
	"github.com/mekedron/nearby/internal/logging"
	"github.com/mekedron/nearby/internal/service/profile"
)

var version = "dev"

const redisDialTimeout = 2 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = os.Stderr.WriteString("load .env: " + err.Error() + "\n")
	}

	searchPaths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".nearby"))
	}
	settings, err := config.LoadSettings(os.Getenv("NEARBY_SETTINGS_FILE"), searchPaths...)
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		return 1
	}
	logger := logging.Setup(os.Stderr, settings.LogLevel, settings.LogFormat)

	store, err := config.NewStore()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	placesOpts := []places.Option{
		places.WithEndpoint(settings.PlacesEndpoint),
		places.WithAPIKey(settings.PlacesAPIKey),
		places.WithRequestMinInterval(settings.HTTPMinInterval()),
		places.WithLogger(logger),
	}
	if settings.RedisAddr != "" {
		dialCtx, cancel := context.WithTimeout(ctx, redisDialTimeout)
		responses, err := cache.Dial(dialCtx, settings.RedisAddr, settings.RedisDB)
		cancel()
		if err != nil {
			logger.Warn("response cache disabled", slog.String("error", err.Error()))
		} else {
			defer func() { _ = responses.Close() }()
			placesOpts = append(placesOpts, places.WithCache(responses, settings.CacheTTL))
		}
	}

	geocoder := locationgateway.NewClient(
		locationgateway.WithBaseURL(settings.NominatimEndpoint),
		locationgateway.WithUserAgent("nearby-cli/"+version),
	)

	deps := cli.Dependencies{
		Places:   places.NewClient(placesOpts...),
		Geocoder: geocoder,
		GeoIP:    geoip.NewClient(geoip.WithLookupURL(settings.GeoIPEndpoint)),
		Profiles: profile.NewResolver(store),
		Config:   store,
		Settings: settings,
		Logger:   logger,
		Stdin:    os.Stdin,
		Version:  version,
	}

	return cli.Execute(ctx, os.Args[1:], deps, os.Stdout, os.Stderr)
}
