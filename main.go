// vitalsync pulls dated health and activity metrics from upstream
// services and reconciles them into a shared Google Sheet, one worksheet
// per source, one row per natural key. Each invocation syncs exactly one
// source and reports the outcome through its exit status, so an external
// scheduler (cron, Render jobs) can run and retry the integrations
// independently.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/ewhitmore/vitalsync/pkg/auth"
	"github.com/ewhitmore/vitalsync/pkg/config"
	"github.com/ewhitmore/vitalsync/pkg/driver"
	"github.com/ewhitmore/vitalsync/pkg/logging"
	"github.com/ewhitmore/vitalsync/pkg/sheets"
	"github.com/ewhitmore/vitalsync/pkg/sink"
	"github.com/ewhitmore/vitalsync/pkg/source"
	"github.com/ewhitmore/vitalsync/pkg/source/heartcloud"
	"github.com/ewhitmore/vitalsync/pkg/source/myair"
	"github.com/ewhitmore/vitalsync/pkg/source/oura"
	"github.com/ewhitmore/vitalsync/pkg/source/strava"
)

func main() {
	sourceName := flag.String("source", "", "Source to sync: strava, oura, myair or heartcloud")
	dateOverride := flag.String("date", "", "Sync a single day (YYYY-MM-DD) instead of the recent window")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	log := logging.Setup(cfg.LogLevel)

	if *sourceName == "" {
		fmt.Fprintln(os.Stderr, "Usage: vitalsync -source <strava|oura|myair|heartcloud> [-date YYYY-MM-DD]")
		os.Exit(1)
	}
	if err := cfg.Validate(*sourceName); err != nil {
		log.Error().Err(err).Msg("configuration invalid")
		os.Exit(1)
	}

	now := time.Now()
	src, window := buildSource(*sourceName, cfg, log, now)

	if *dateOverride != "" {
		day, err := time.Parse("2006-01-02", *dateOverride)
		if err != nil {
			log.Error().Str("date", *dateOverride).Msg("invalid -date, want YYYY-MM-DD")
			os.Exit(1)
		}
		window = source.Day(day, now)
	}

	ctx := context.Background()
	report := driver.Run(ctx, src, sheetsOpener(cfg), window, log)
	if !report.OK() {
		os.Exit(1)
	}
}

// buildSource constructs the adapter for the named source together with
// its default fetch window. The daily sources trail one day behind the
// clock because the upstreams finalize a day's data overnight.
func buildSource(name string, cfg *config.Config, log zerolog.Logger, now time.Time) (source.Source, source.Range) {
	yesterday := now.AddDate(0, 0, -1)
	switch name {
	case "strava":
		return strava.New(strava.Config{
			ClientID:     cfg.Strava.ClientID,
			ClientSecret: cfg.Strava.ClientSecret,
			RefreshToken: cfg.Strava.RefreshToken,
		}, log), source.Days(cfg.WindowDays, now)
	case "oura":
		return oura.New(oura.Config{Token: cfg.OuraToken}, log),
			source.Range{Start: yesterday.AddDate(0, 0, -(cfg.WindowDays - 1)), End: yesterday, Now: now}
	case "myair":
		return myair.New(myair.Config{
			Email:    cfg.MyAir.Email,
			Password: cfg.MyAir.Password,
		}, log), source.Range{Start: yesterday.AddDate(0, 0, -(cfg.WindowDays - 1)), End: yesterday, Now: now}
	case "heartcloud":
		return heartcloud.New(heartcloud.Config{
			Email:    cfg.HeartCloud.Email,
			Password: cfg.HeartCloud.Password,
		}, log), source.Day(now, now)
	}
	// Unreachable: config.Validate rejects unknown sources.
	panic("unknown source " + name)
}

// sheetsOpener authenticates against Google Sheets and opens the run's
// worksheet, honoring the WORKSHEET_NAME override.
func sheetsOpener(cfg *config.Config) driver.TableOpener {
	return func(ctx context.Context, worksheet string, header []string) (sink.Table, error) {
		if cfg.Worksheet != "" {
			worksheet = cfg.Worksheet
		}
		srv, err := auth.GetSheetsService(ctx)
		if err != nil {
			return nil, err
		}
		return sheets.Open(ctx, srv, cfg.SheetID, worksheet, header)
	}
}
