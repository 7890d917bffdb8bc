// Package config assembles the run configuration from the environment.
// Each integration runs as an independent batch invocation; everything it
// needs arrives as environment variables injected by the scheduler, and
// the loaded values are passed down explicitly so the deeper layers never
// read ambient state themselves.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config is the full run configuration. Only the fields for the invoked
// source need to be populated; Validate checks per source.
type Config struct {
	// Sink identifiers.
	SheetID   string
	Worksheet string // optional override of the source's default

	LogLevel string

	// WindowDays is how many recent days a run rescans for the
	// day-keyed sources and how far back the workout fetch reaches.
	WindowDays int

	Strava struct {
		ClientID     string
		ClientSecret string
		RefreshToken string
	}
	OuraToken string
	MyAir     struct {
		Email    string
		Password string
	}
	HeartCloud struct {
		Email    string
		Password string
	}
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		SheetID:    os.Getenv("SHEET_ID"),
		Worksheet:  os.Getenv("WORKSHEET_NAME"),
		LogLevel:   os.Getenv("LOG_LEVEL"),
		WindowDays: 7,
	}
	if raw := os.Getenv("SYNC_WINDOW_DAYS"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 1 {
			return nil, fmt.Errorf("invalid SYNC_WINDOW_DAYS %q", raw)
		}
		cfg.WindowDays = days
	}

	cfg.Strava.ClientID = os.Getenv("STRAVA_CLIENT_ID")
	cfg.Strava.ClientSecret = os.Getenv("STRAVA_CLIENT_SECRET")
	cfg.Strava.RefreshToken = os.Getenv("STRAVA_REFRESH_TOKEN")
	cfg.OuraToken = os.Getenv("OURA_TOKEN")
	cfg.MyAir.Email = os.Getenv("MYAIR_EMAIL")
	cfg.MyAir.Password = os.Getenv("MYAIR_PASSWORD")
	cfg.HeartCloud.Email = os.Getenv("HEARTCLOUD_EMAIL")
	cfg.HeartCloud.Password = os.Getenv("HEARTCLOUD_PASSWORD")

	return cfg, nil
}

// Validate checks that everything the named source needs is present.
func (c *Config) Validate(sourceName string) error {
	if c.SheetID == "" {
		return fmt.Errorf("SHEET_ID must be set")
	}
	switch sourceName {
	case "strava":
		if c.Strava.ClientID == "" || c.Strava.ClientSecret == "" || c.Strava.RefreshToken == "" {
			return fmt.Errorf("STRAVA_CLIENT_ID, STRAVA_CLIENT_SECRET and STRAVA_REFRESH_TOKEN must be set")
		}
	case "oura":
		if c.OuraToken == "" {
			return fmt.Errorf("OURA_TOKEN must be set")
		}
	case "myair":
		if c.MyAir.Email == "" || c.MyAir.Password == "" {
			return fmt.Errorf("MYAIR_EMAIL and MYAIR_PASSWORD must be set")
		}
	case "heartcloud":
		if c.HeartCloud.Email == "" || c.HeartCloud.Password == "" {
			return fmt.Errorf("HEARTCLOUD_EMAIL and HEARTCLOUD_PASSWORD must be set")
		}
	default:
		return fmt.Errorf("unknown source %q", sourceName)
	}
	return nil
}
