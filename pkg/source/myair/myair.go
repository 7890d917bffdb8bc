// Package myair pulls nightly CPAP therapy data from ResMed myAir. The
// service has no token API; authentication is a form login whose session
// cookie rides a jar for the rest of the run and is discarded with it.
package myair

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/ewhitmore/vitalsync/pkg/model"
	"github.com/ewhitmore/vitalsync/pkg/source"
	"github.com/ewhitmore/vitalsync/pkg/source/rest"
)

const defaultBaseURL = "https://myair.resmed.com"

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// Config carries the myAir account credentials and the endpoint override
// used by tests.
type Config struct {
	Email    string
	Password string
	BaseURL  string
}

// Adapter implements source.Source for myAir sleep records.
type Adapter struct {
	cfg Config
	log zerolog.Logger
}

// New creates a myAir adapter.
func New(cfg Config, log zerolog.Logger) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Adapter{cfg: cfg, log: log.With().Str("source", "myair").Logger()}
}

func (a *Adapter) Name() string { return "myair" }

func (a *Adapter) Worksheet() string { return "resmed_cpap" }

func (a *Adapter) Header() []string {
	return []string{"date", "ahi", "leak", "hours_used", "mask_seal", "events", "myair_score"}
}

type sleepRecord struct {
	AHI           *float64 `json:"ahi"`
	MaskPairCount *float64 `json:"maskPairCount"`
	UsageHours    *float64 `json:"usageHours"`
	MaskPairScore *float64 `json:"maskPairScore"`
	TotalEvents   *float64 `json:"totalEvents"`
	MyAirScore    *float64 `json:"myAirScore"`
}

// Fetch logs in and retrieves the sleep record for each day in the range.
// A day with no record still yields a row with only the key populated, so
// the night shows up in the sheet as tracked-but-empty.
func (a *Adapter) Fetch(ctx context.Context, r source.Range) ([]*model.Row, error) {
	client, err := a.login(ctx)
	if err != nil {
		return nil, err
	}

	var rows []*model.Row
	for day := r.Start; !day.After(r.End); day = day.AddDate(0, 0, 1) {
		row, err := a.fetchDay(ctx, client, day)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// login primes the session with a GET to the login page, then posts the
// credential form. The jar carries whatever cookies the site set.
func (a *Adapter) login(ctx context.Context) (*rest.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, &source.AuthError{Source: a.Name(), Err: err}
	}
	client := rest.NewClient(rest.Config{
		BaseURL:    a.cfg.BaseURL,
		UserAgent:  userAgent,
		HTTPClient: &http.Client{Jar: jar, Timeout: 30 * time.Second},
	})

	if err := client.GetJSON(ctx, "/Default/Login", nil, nil); err != nil {
		return nil, a.authErr(err)
	}

	form := url.Values{}
	form.Set("username", a.cfg.Email)
	form.Set("password", a.cfg.Password)
	form.Set("rememberMe", "false")
	if _, err := client.PostForm(ctx, "/Default/Login", form); err != nil {
		return nil, a.authErr(err)
	}

	a.log.Info().Msg("logged in")
	return client, nil
}

func (a *Adapter) fetchDay(ctx context.Context, client *rest.Client, day time.Time) (*model.Row, error) {
	date := model.DateKey(day)
	query := url.Values{}
	query.Set("date", date)

	var records []sleepRecord
	if err := client.GetJSON(ctx, "/SleepData/GetSleepData", query, &records); err != nil {
		status := 0
		var serr *rest.StatusError
		if errors.As(err, &serr) {
			status = serr.StatusCode
		}
		return nil, &source.FetchError{Source: a.Name(), Resource: "sleep data", Status: status, Err: err}
	}

	row := model.NewRow(date)
	row.Set("date", model.Text(date))
	var rec sleepRecord
	if len(records) > 0 {
		rec = records[0]
	}
	row.Set("ahi", optional(rec.AHI))
	row.Set("leak", optional(rec.MaskPairCount))
	row.Set("hours_used", optional(rec.UsageHours))
	row.Set("mask_seal", optional(rec.MaskPairScore))
	row.Set("events", optional(rec.TotalEvents))
	row.Set("myair_score", optional(rec.MyAirScore))
	return row, nil
}

func (a *Adapter) authErr(err error) error {
	var serr *rest.StatusError
	if errors.As(err, &serr) {
		return &source.AuthError{Source: a.Name(), Status: serr.StatusCode, Body: serr.Body, Err: err}
	}
	return &source.AuthError{Source: a.Name(), Err: err}
}

func optional(f *float64) model.Value {
	if f == nil {
		return model.None()
	}
	return model.Number(*f)
}
