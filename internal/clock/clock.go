// Package clock supplies the current instant to the engines. Every calendar
// computation (today, weekday, HH:MM) is done in the clock's location.
package clock

import (
	"sync"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type Clock interface {
	Now() time.Time
}

// System is the wall clock in a fixed location.
type System struct {
	Loc *time.Location
}

func NewSystem(loc *time.Location) System {
	if loc == nil {
		loc = time.Local
	}
	return System{Loc: loc}
}

func (s System) Now() time.Time {
	return time.Now().In(s.Loc)
}

// Fixed is a settable clock for tests and replays.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

func NewFixed(now time.Time) *Fixed {
	return &Fixed{now: now}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fixed) Set(now time.Time) {
	f.mu.Lock()
	f.now = now
	f.mu.Unlock()
}

func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Today returns the calendar date of c.Now() as YYYY-MM-DD.
func Today(c Clock) string {
	return c.Now().Format(DateLayout)
}

// Weekday returns 0 (Sunday) through 6 (Saturday).
func Weekday(c Clock) int {
	return int(c.Now().Weekday())
}

// HHMM returns the zero-padded current time of day, so plain string
// comparison orders it correctly against other HH:MM values.
func HHMM(c Clock) string {
	return c.Now().Format(TimeLayout)
}

// DateOf returns the calendar date of t in loc.
func DateOf(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(DateLayout)
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns the Monday midnight on or before t.
func StartOfWeek(t time.Time) time.Time {
	day := StartOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
