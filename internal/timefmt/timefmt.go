// Package timefmt converts between the three time representations the dashboard
// deals with: Graph API ISO-8601 UTC strings, Unix seconds, and the
// datetime-local values posted by the scheduling form.
//
// Display conversions are lenient: they never fail, they fall back to the raw
// input or an empty string, because templates always need something to print.
package timefmt

import (
	"strings"
	"time"
)

const (
	// DisplayLayout is the human-readable format used in lists and detail views.
	DisplayLayout = "2006-01-02 03:04 PM"
	// FormLayout matches the HTML datetime-local input.
	FormLayout = "2006-01-02T15:04"
	// StampLayout is used for export file names.
	StampLayout = "2006-01-02_15-04-05"

	isoLayout   = "2006-01-02T15:04:05"
	localLayout = "2006-01-02 15:04"

	// DefaultScheduleOffset is the minimum lead time, in minutes, for a scheduled post.
	DefaultScheduleOffset = 5

	// 9999-12-31T23:59:59Z
	maxUnix = 253402300799
)

// Formatter renders times in a fixed location.
type Formatter struct {
	loc *time.Location
	now func() time.Time
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithClock overrides the wall clock (tests).
func WithClock(now func() time.Time) Option {
	return func(f *Formatter) { f.now = now }
}

// New returns a Formatter for loc. A nil location means UTC.
func New(loc *time.Location, opts ...Option) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	f := &Formatter{loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Location returns the display location.
func (f *Formatter) Location() *time.Location {
	return f.loc
}

// DisplayFromISOUTC converts a Graph timestamp such as "2024-01-01T10:00:00+0000"
// to display format. Everything from the first '+' is dropped and the rest is
// read as UTC. Unparseable input, including fractional seconds, is returned
// unchanged.
func (f *Formatter) DisplayFromISOUTC(s string) string {
	if s == "" {
		return ""
	}
	raw := s
	if i := strings.Index(raw, "+"); i >= 0 {
		raw = raw[:i]
	}
	// time.Parse tolerates fractional seconds the layout does not name.
	if strings.Contains(raw, ".") {
		return s
	}
	t, err := time.ParseInLocation(isoLayout, raw, time.UTC)
	if err != nil {
		return s
	}
	return t.In(f.loc).Format(DisplayLayout)
}

// DisplayFromUnix renders Unix seconds in display format, or "" when the
// timestamp is negative or out of range.
func (f *Formatter) DisplayFromUnix(sec int64) string {
	t, ok := f.fromUnix(sec)
	if !ok {
		return ""
	}
	return t.Format(DisplayLayout)
}

// LocalDisplayFromUnix is the inverse of UnixFromLocalDisplay at minute precision.
func (f *Formatter) LocalDisplayFromUnix(sec int64) string {
	t, ok := f.fromUnix(sec)
	if !ok {
		return ""
	}
	return t.Format(FormLayout)
}

// MinScheduleDisplay returns now plus offsetMinutes in form layout. It is used
// as the min attribute of the scheduling input.
func (f *Formatter) MinScheduleDisplay(offsetMinutes int) string {
	if offsetMinutes <= 0 {
		offsetMinutes = DefaultScheduleOffset
	}
	return f.now().Add(time.Duration(offsetMinutes) * time.Minute).In(f.loc).Format(FormLayout)
}

// UnixFromLocalDisplay parses a datetime-local value ("2024-01-01T10:00") in the
// formatter's location and returns Unix seconds.
func (f *Formatter) UnixFromLocalDisplay(s string) (int64, error) {
	s = strings.Replace(strings.TrimSpace(s), "T", " ", 1)
	t, err := time.ParseInLocation(localLayout, s, f.loc)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}

// NowDisplay returns the current time in display format.
func (f *Formatter) NowDisplay() string {
	return f.now().In(f.loc).Format(DisplayLayout)
}

// Stamp returns the current time formatted for file names.
func (f *Formatter) Stamp() string {
	return f.now().In(f.loc).Format(StampLayout)
}

func (f *Formatter) fromUnix(sec int64) (time.Time, bool) {
	if sec < 0 || sec > maxUnix {
		return time.Time{}, false
	}
	t := time.Unix(sec, 0).In(f.loc)
	if t.Year() > 9999 {
		return time.Time{}, false
	}
	return t, true
}
