// Package normalize holds the pure text-to-field parsers shared by the
// source adapters. Every parser degrades to an absent value on malformed
// input; none of them perform I/O or return errors.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ewhitmore/vitalsync/pkg/model"
)

// Upstream pages render dates in whichever locale the account uses, so the
// accepted layouts cover ISO, US, EU and long-form month spellings.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"January 2, 2006",
}

var (
	numberRe  = regexp.MustCompile(`\d+\.?\d*`)
	mmssRe    = regexp.MustCompile(`(\d+):(\d+)`)
	minutesRe = regexp.MustCompile(`(\d+)`)
)

// Date canonicalizes a free-text date to YYYY-MM-DD, trying each supported
// layout in order. If nothing parses, the run's current date is substituted
// so the record still lands on a valid natural key.
func Date(text string, now time.Time) string {
	s := strings.TrimSpace(text)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.DateKey(t)
		}
	}
	return model.DateKey(now)
}

// Score extracts the first numeric token (digits with an optional decimal
// point) from free text. Absent if the text carries no number.
func Score(text string) model.Value {
	match := numberRe.FindString(text)
	if match == "" {
		return model.None()
	}
	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return model.None()
	}
	return model.Number(f)
}

// Duration converts a session length to fractional minutes. An MM:SS
// pattern wins ("15:30" -> 15.5); a bare number is taken as whole minutes
// ("22" -> 22); anything else is absent.
func Duration(text string) model.Value {
	if m := mmssRe.FindStringSubmatch(text); m != nil {
		minutes, _ := strconv.Atoi(m[1])
		seconds, _ := strconv.Atoi(m[2])
		return model.Number(Round1(float64(minutes) + float64(seconds)/60))
	}
	if m := minutesRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return model.Number(float64(n))
	}
	return model.None()
}

// Round1 rounds to one decimal place.
func Round1(f float64) float64 {
	return math.Round(f*10) / 10
}

// Round2 rounds to two decimal places.
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}
