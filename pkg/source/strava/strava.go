// Package strava pulls recent workouts from the Strava API. It is the
// OAuth-refresh adapter: the long-lived refresh token is exchanged for a
// fresh access token at the start of every run, never cached across runs.
package strava

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/ewhitmore/vitalsync/pkg/model"
	"github.com/ewhitmore/vitalsync/pkg/normalize"
	"github.com/ewhitmore/vitalsync/pkg/source"
	"github.com/ewhitmore/vitalsync/pkg/source/rest"
)

const (
	defaultBaseURL  = "https://www.strava.com/api/v3"
	defaultTokenURL = "https://www.strava.com/oauth/token"

	// Pagination is capped at one page of 30 activities; the run window
	// is short enough that more would mean something is wrong upstream.
	perPage = 30
)

// Config carries the Strava application credentials and endpoint
// overrides used by tests.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	BaseURL      string
	TokenURL     string
}

// Adapter implements source.Source for Strava workouts.
type Adapter struct {
	cfg Config
	log zerolog.Logger
}

// New creates a Strava adapter.
func New(cfg Config, log zerolog.Logger) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	return &Adapter{cfg: cfg, log: log.With().Str("source", "strava").Logger()}
}

func (a *Adapter) Name() string { return "strava" }

func (a *Adapter) Worksheet() string { return "strava_workouts" }

func (a *Adapter) Header() []string {
	return []string{
		"workout", "date", "time", "workout_type", "name", "duration_min",
		"distance_km", "avg_hr", "max_hr", "calories", "avg_power",
		"max_power", "zone_1_min", "zone_2_min", "zone_3_min",
		"zone_4_min", "zone_5_min",
	}
}

// activity is the summary shape from the activity list endpoint. Pointer
// fields distinguish metrics Strava omitted from metrics that are zero.
type activity struct {
	ID             int64    `json:"id"`
	StartDateLocal string   `json:"start_date_local"`
	Type           string   `json:"type"`
	Name           string   `json:"name"`
	MovingTime     int      `json:"moving_time"`
	Distance       float64  `json:"distance"`
	AverageHR      *float64 `json:"average_heartrate"`
	MaxHR          *float64 `json:"max_heartrate"`
	Calories       *float64 `json:"calories"`
	AverageWatts   *float64 `json:"average_watts"`
	MaxWatts       *float64 `json:"max_watts"`
}

// activityDetail is the per-activity shape carrying the fields the list
// endpoint omits, chiefly the heart-rate zone breakdown.
type activityDetail struct {
	activity
	HeartrateZones *struct {
		Zones []struct {
			Time int `json:"time"`
		} `json:"zones"`
	} `json:"heartrate_zones"`
}

// Fetch exchanges the refresh token, lists activities after the range
// start, enriches each with its detail call and normalizes the result.
func (a *Adapter) Fetch(ctx context.Context, r source.Range) ([]*model.Row, error) {
	token, err := a.exchangeToken(ctx)
	if err != nil {
		return nil, err
	}

	client := rest.NewClient(rest.Config{
		BaseURL: a.cfg.BaseURL,
		Auth:    rest.BearerToken{Token: token},
	})

	query := url.Values{}
	query.Set("after", strconv.FormatInt(r.Start.Unix(), 10))
	query.Set("per_page", strconv.Itoa(perPage))

	var activities []activity
	if err := client.GetJSON(ctx, "/athlete/activities", query, &activities); err != nil {
		return nil, a.fetchErr("activities", err)
	}
	a.log.Info().Int("count", len(activities)).Msg("fetched activities")

	rows := make([]*model.Row, 0, len(activities))
	for _, act := range activities {
		detail := a.enrich(ctx, client, act)
		rows = append(rows, a.normalize(detail, r.Now))
	}
	return rows, nil
}

// exchangeToken trades the refresh token for a fresh access token. The
// exchange happens on every run; upstream rejections surface the status
// code and body so a revoked grant is diagnosable from the run log alone.
func (a *Adapter) exchangeToken(ctx context.Context) (string, error) {
	conf := &oauth2.Config{
		ClientID:     a.cfg.ClientID,
		ClientSecret: a.cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: a.cfg.TokenURL},
	}
	token, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: a.cfg.RefreshToken}).Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			status := 0
			if rerr.Response != nil {
				status = rerr.Response.StatusCode
			}
			return "", &source.AuthError{
				Source: a.Name(),
				Status: status,
				Body:   string(rerr.Body),
				Err:    err,
			}
		}
		return "", &source.AuthError{Source: a.Name(), Err: err}
	}
	return token.AccessToken, nil
}

// enrich fetches the activity detail and merges in the fields the list
// response omits. A failed detail call leaves the summary untouched: the
// workout still syncs, just without zones and calories.
func (a *Adapter) enrich(ctx context.Context, client *rest.Client, act activity) activityDetail {
	var detail activityDetail
	path := fmt.Sprintf("/activities/%d", act.ID)
	if err := client.GetJSON(ctx, path, nil, &detail); err != nil {
		a.log.Warn().Int64("activity", act.ID).Err(err).Msg("detail fetch failed, keeping summary fields")
		return activityDetail{activity: act}
	}

	merged := activityDetail{activity: act, HeartrateZones: detail.HeartrateZones}
	if detail.Calories != nil {
		merged.Calories = detail.Calories
	}
	return merged
}

func (a *Adapter) normalize(act activityDetail, now time.Time) *model.Row {
	date, clock := splitLocalTime(act.StartDateLocal, now)

	row := model.NewRow(date + "_" + clock)
	row.Set("date", model.Text(date))
	row.Set("time", model.Text(clock))
	workoutType := act.Type
	if workoutType == "" {
		workoutType = "Unknown"
	}
	row.Set("workout_type", model.Text(workoutType))
	row.Set("name", model.Text(act.Name))
	row.Set("duration_min", model.Number(normalize.Round1(float64(act.MovingTime)/60)))
	row.Set("distance_km", model.Number(normalize.Round2(act.Distance/1000)))
	row.Set("avg_hr", optional(act.AverageHR))
	row.Set("max_hr", optional(act.MaxHR))
	row.Set("calories", optional(act.Calories))
	row.Set("avg_power", optional(act.AverageWatts))
	row.Set("max_power", optional(act.MaxWatts))

	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("zone_%d_min", i+1)
		if act.HeartrateZones == nil || len(act.HeartrateZones.Zones) < 5 {
			row.Set(name, model.None())
			continue
		}
		seconds := act.HeartrateZones.Zones[i].Time
		row.Set(name, model.Number(normalize.Round1(float64(seconds)/60)))
	}
	return row
}

// splitLocalTime breaks Strava's local timestamp into the date and clock
// halves of the natural key, falling back to the run date when the
// timestamp does not parse.
func splitLocalTime(s string, now time.Time) (string, string) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		// Some payloads omit the zone suffix entirely.
		t, err = time.Parse("2006-01-02T15:04:05", strings.TrimSuffix(s, "Z"))
	}
	if err != nil {
		return model.DateKey(now), "00:00:00"
	}
	return t.Format(model.DateKeyLayout), t.Format(model.TimeKeyLayout)
}

func optional(f *float64) model.Value {
	if f == nil {
		return model.None()
	}
	return model.Number(*f)
}

func (a *Adapter) fetchErr(resource string, err error) error {
	var serr *rest.StatusError
	if errors.As(err, &serr) {
		return &source.FetchError{Source: a.Name(), Resource: resource, Status: serr.StatusCode, Err: err}
	}
	return &source.FetchError{Source: a.Name(), Resource: resource, Err: err}
}
