// Package driver sequences one synchronization run: authenticate against
// the upstream, fetch and normalize its records, then upsert them into
// the sink. A run either reaches Done or stops at the first fatal error;
// retrying is the scheduler's job, and nothing carries over between runs
// except what the sink itself stores.
package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ewhitmore/vitalsync/pkg/logging"
	"github.com/ewhitmore/vitalsync/pkg/sink"
	"github.com/ewhitmore/vitalsync/pkg/source"
)

// State names the phases of a run.
type State string

const (
	StateInit         State = "init"
	StateAuthenticate State = "authenticate"
	StateFetch        State = "fetch"
	StateUpsert       State = "upsert"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// Report is the aggregate outcome of one run.
type Report struct {
	RunID    string
	Source   string
	State    State
	FailedIn State // phase that failed, when State is failed
	Fetched  int
	Updated  int
	Appended int
	Err      error
}

// OK reports whether the run completed.
func (r Report) OK() bool {
	return r.State == StateDone
}

// TableOpener opens the sink sub-table a source writes to, creating it
// with the given header if needed. Opening includes authenticating
// against the sink.
type TableOpener func(ctx context.Context, worksheet string, header []string) (sink.Table, error)

// Run executes one synchronization run for one source.
func Run(ctx context.Context, src source.Source, open TableOpener, r source.Range, log zerolog.Logger) Report {
	report := Report{
		RunID:  logging.RunID(),
		Source: src.Name(),
		State:  StateInit,
	}
	log = log.With().Str("run_id", report.RunID).Str("source", src.Name()).Logger()
	log.Info().
		Str("start", r.Start.Format("2006-01-02")).
		Str("end", r.End.Format("2006-01-02")).
		Msg("starting sync run")

	report.State = StateFetch
	rows, err := src.Fetch(ctx, r)
	if err != nil {
		// Adapters authenticate inside Fetch; an auth rejection is
		// its own phase for reporting.
		var authErr *source.AuthError
		if errors.As(err, &authErr) {
			return report.fail(StateAuthenticate, err, log)
		}
		return report.fail(StateFetch, err, log)
	}
	report.Fetched = len(rows)
	log.Info().Int("records", len(rows)).Msg("fetch complete")

	if len(rows) == 0 {
		report.State = StateDone
		log.Info().Msg("no records to sync")
		return report
	}

	report.State = StateUpsert
	table, err := open(ctx, src.Worksheet(), src.Header())
	if err != nil {
		return report.fail(StateAuthenticate, fmt.Errorf("opening sink table: %w", err), log)
	}
	upserter, err := sink.NewUpserter(ctx, table, log)
	if err != nil {
		return report.fail(StateUpsert, err, log)
	}
	result, err := upserter.Run(ctx, rows)
	report.Updated = result.Updated
	report.Appended = result.Appended
	if err != nil {
		return report.fail(StateUpsert, err, log)
	}

	report.State = StateDone
	log.Info().
		Int("updated", result.Updated).
		Int("appended", result.Appended).
		Msg("sync run complete")
	return report
}

func (r Report) fail(in State, err error, log zerolog.Logger) Report {
	r.State = StateFailed
	r.FailedIn = in
	r.Err = err
	log.Error().Str("phase", string(in)).Err(err).Msg("sync run failed")
	return r
}
