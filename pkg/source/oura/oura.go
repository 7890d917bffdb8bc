// Package oura pulls daily summaries from the Oura API v2. It is the
// static-token adapter: a fixed personal access token authenticates each
// request, and the three daily collections (sleep, readiness, activity)
// are fetched independently so one failing collection only blanks its own
// columns instead of losing the day.
package oura

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/ewhitmore/vitalsync/pkg/model"
	"github.com/ewhitmore/vitalsync/pkg/source"
	"github.com/ewhitmore/vitalsync/pkg/source/rest"
)

const defaultBaseURL = "https://api.ouraring.com/v2"

// Config carries the Oura personal access token and the endpoint
// override used by tests.
type Config struct {
	Token   string
	BaseURL string
}

// Adapter implements source.Source for Oura daily data.
type Adapter struct {
	client *rest.Client
	log    zerolog.Logger
}

// New creates an Oura adapter.
func New(cfg Config, log zerolog.Logger) *Adapter {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &Adapter{
		client: rest.NewClient(rest.Config{
			BaseURL: base,
			Auth:    rest.BearerToken{Token: cfg.Token},
		}),
		log: log.With().Str("source", "oura").Logger(),
	}
}

func (a *Adapter) Name() string { return "oura" }

func (a *Adapter) Worksheet() string { return "oura_data" }

func (a *Adapter) Header() []string {
	return []string{
		"date", "sleep_score", "readiness_score", "activity_score",
		"total_sleep", "deep_sleep", "rem_sleep", "light_sleep",
		"sleep_efficiency", "hrv_avg", "resting_hr", "body_temp",
		"steps", "calories",
	}
}

// dailyRecord is the shared envelope shape of the v2 daily collections.
// Contributors only appear on sleep and readiness.
type dailyRecord struct {
	Score        *int `json:"score"`
	Steps        *int `json:"steps"`
	Calories     *int `json:"total_calories"`
	Contributors struct {
		TotalSleep       *int `json:"total_sleep"`
		DeepSleep        *int `json:"deep_sleep"`
		RemSleep         *int `json:"rem_sleep"`
		LightSleep       *int `json:"light_sleep"`
		Efficiency       *int `json:"efficiency"`
		HRVBalance       *int `json:"hrv_balance"`
		RestingHeartRate *int `json:"resting_heart_rate"`
		BodyTemperature  *int `json:"body_temperature"`
	} `json:"contributors"`
}

type dailyResponse struct {
	Data []dailyRecord `json:"data"`
}

// Fetch builds one row per day in the range. Each collection failure is
// logged and leaves its fields absent; the fetch itself only fails when
// the range is empty of days, which cannot happen.
func (a *Adapter) Fetch(ctx context.Context, r source.Range) ([]*model.Row, error) {
	var rows []*model.Row
	for day := r.Start; !day.After(r.End); day = day.AddDate(0, 0, 1) {
		rows = append(rows, a.fetchDay(ctx, day))
	}
	return rows, nil
}

func (a *Adapter) fetchDay(ctx context.Context, day time.Time) *model.Row {
	date := model.DateKey(day)
	row := model.NewRow(date)
	row.Set("date", model.Text(date))
	for _, name := range a.Header()[1:] {
		row.Set(name, model.None())
	}

	if sleep, ok := a.collection(ctx, "daily_sleep", date); ok {
		row.Set("sleep_score", optional(sleep.Score))
		row.Set("total_sleep", optional(sleep.Contributors.TotalSleep))
		row.Set("deep_sleep", optional(sleep.Contributors.DeepSleep))
		row.Set("rem_sleep", optional(sleep.Contributors.RemSleep))
		row.Set("light_sleep", optional(sleep.Contributors.LightSleep))
		row.Set("sleep_efficiency", optional(sleep.Contributors.Efficiency))
	}

	if readiness, ok := a.collection(ctx, "daily_readiness", date); ok {
		row.Set("readiness_score", optional(readiness.Score))
		row.Set("hrv_avg", optional(readiness.Contributors.HRVBalance))
		row.Set("resting_hr", optional(readiness.Contributors.RestingHeartRate))
		row.Set("body_temp", optional(readiness.Contributors.BodyTemperature))
	}

	if activity, ok := a.collection(ctx, "daily_activity", date); ok {
		row.Set("activity_score", optional(activity.Score))
		row.Set("steps", optional(activity.Steps))
		row.Set("calories", optional(activity.Calories))
	}

	return row
}

// collection fetches one daily collection for one date. Failures and
// empty days both report not-ok; only failures warrant a warning.
func (a *Adapter) collection(ctx context.Context, name, date string) (dailyRecord, bool) {
	query := url.Values{}
	query.Set("start_date", date)
	query.Set("end_date", date)

	var resp dailyResponse
	if err := a.client.GetJSON(ctx, "/usercollection/"+name, query, &resp); err != nil {
		status := 0
		var serr *rest.StatusError
		if errors.As(err, &serr) {
			status = serr.StatusCode
		}
		a.log.Warn().Str("collection", name).Str("date", date).Int("status", status).
			Err(err).Msg("collection fetch failed, leaving fields absent")
		return dailyRecord{}, false
	}
	if len(resp.Data) == 0 {
		return dailyRecord{}, false
	}
	return resp.Data[0], true
}

func optional(n *int) model.Value {
	if n == nil {
		return model.None()
	}
	return model.Int(int64(*n))
}
