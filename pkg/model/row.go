package model

import (
	"strconv"
	"time"
)

const (
	// DateKeyLayout is the canonical natural-key form for daily sources.
	DateKeyLayout = "2006-01-02"

	// TimeKeyLayout is the time half of a date+time natural key.
	TimeKeyLayout = "15:04:05"
)

// Value is an optional scalar cell value. The zero Value is absent.
// Absent and zero are distinct: a source that reports 0 produces a present
// Value, a source that omits the field produces an absent one.
type Value struct {
	raw string
	ok  bool
}

// None returns an absent Value.
func None() Value {
	return Value{}
}

// Text returns a present string Value.
func Text(s string) Value {
	return Value{raw: s, ok: true}
}

// Number returns a present numeric Value. The rendering drops trailing
// zeros so 22.0 writes as "22" and 15.5 as "15.5".
func Number(f float64) Value {
	return Value{raw: strconv.FormatFloat(f, 'f', -1, 64), ok: true}
}

// Int returns a present integer Value.
func Int(i int64) Value {
	return Value{raw: strconv.FormatInt(i, 10), ok: true}
}

// Present reports whether the value carries data.
func (v Value) Present() bool {
	return v.ok
}

// String renders the value for a sheet cell. Absent values render as the
// empty string so numeric columns stay parseable downstream.
func (v Value) String() string {
	return v.raw
}

// Row is the canonical, source-independent record written to the sink:
// a natural key plus an ordered set of named optional fields.
type Row struct {
	Key    string
	names  []string
	fields map[string]Value
}

// NewRow creates a Row with the given natural key.
func NewRow(key string) *Row {
	return &Row{
		Key:    key,
		fields: make(map[string]Value),
	}
}

// Set records a field value, preserving first-set order. Setting a name
// twice overwrites the value but keeps its original position.
func (r *Row) Set(name string, v Value) {
	if _, exists := r.fields[name]; !exists {
		r.names = append(r.names, name)
	}
	r.fields[name] = v
}

// Get returns the value for a field name; absent if never set.
func (r *Row) Get(name string) Value {
	return r.fields[name]
}

// Fields returns the field names in the order they were first set.
func (r *Row) Fields() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// DateKey formats a time as a daily natural key.
func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// DateTimeKey formats a time as a date+time natural key for multi-event
// sources, e.g. "2024-12-29_06:15:00".
func DateTimeKey(t time.Time) string {
	return t.Format(DateKeyLayout) + "_" + t.Format(TimeKeyLayout)
}
