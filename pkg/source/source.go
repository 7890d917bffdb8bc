// Package source defines the contract every upstream integration
// implements and the error taxonomy the sync driver dispatches on.
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/ewhitmore/vitalsync/pkg/model"
)

// Range is the date window a run rescans. Both bounds are inclusive
// calendar dates; Now is the run's wall clock, passed explicitly so the
// adapters' date fallbacks stay deterministic under test.
type Range struct {
	Start time.Time
	End   time.Time
	Now   time.Time
}

// Day returns a single-day range ending on the given date.
func Day(date time.Time, now time.Time) Range {
	return Range{Start: date, End: date, Now: now}
}

// Days returns a range covering the n days up to and including now.
func Days(n int, now time.Time) Range {
	return Range{Start: now.AddDate(0, 0, -n), End: now, Now: now}
}

// Source is one upstream integration. Fetch authenticates, retrieves and
// normalizes the records for the range; it never touches the sink.
// Authentication state is created inside Fetch and discarded with it;
// nothing survives the run.
type Source interface {
	// Name identifies the source in logs and run reports.
	Name() string

	// Worksheet is the sink sub-table this source writes to.
	Worksheet() string

	// Header is the full column order for the source's worksheet,
	// natural key first. Used when the worksheet is created.
	Header() []string

	// Fetch returns the canonical rows for the range. A failed
	// optional sub-resource degrades to absent fields, not an error.
	Fetch(ctx context.Context, r Range) ([]*model.Row, error)
}

// AuthError means the upstream rejected the credential exchange or login.
// Fatal for the run.
type AuthError struct {
	Source string
	Status int
	Body   string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: authentication failed: status %d: %s", e.Source, e.Status, e.Body)
	}
	return fmt.Sprintf("%s: authentication failed: %v", e.Source, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// FetchError means the upstream returned a non-success status for a
// required resource. For multi-resource sources it is caught per
// sub-resource; for single-resource sources it fails the run.
type FetchError struct {
	Source   string
	Resource string
	Status   int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: fetching %s: status %d", e.Source, e.Resource, e.Status)
	}
	return fmt.Sprintf("%s: fetching %s: %v", e.Source, e.Resource, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
