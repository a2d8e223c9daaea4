package timeutil

import "time"

// DefaultTurnpoint moves the day boundary so late-night work stays on the
// previous day.
const DefaultTurnpoint = 6 * time.Hour

// FloorMinute drops seconds and sub-second precision. It works on the
// instant, so a time in a repeated DST hour keeps its offset.
func FloorMinute(value time.Time) time.Time {
	return value.Truncate(time.Minute)
}

func StartOfDay(value time.Time) time.Time {
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, value.Location())
}

// DayBin assigns timestamps to working days that begin at Turnpoint local time.
type DayBin struct {
	Location  *time.Location
	Turnpoint time.Duration
}

func NewDayBin(loc *time.Location, turnpoint time.Duration) DayBin {
	if loc == nil {
		loc = time.Local
	}
	return DayBin{Location: loc, Turnpoint: turnpoint}
}

// DateOf returns midnight of the working day value belongs to.
func (b DayBin) DateOf(value time.Time) time.Time {
	return StartOfDay(value.In(b.location()).Add(-b.Turnpoint))
}

// StartOf returns the first instant of the working day of date.
func (b DayBin) StartOf(date time.Time) time.Time {
	d := date.In(b.location())
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, b.location()).Add(b.Turnpoint)
}

// EndOf returns the first instant after the working day of date.
func (b DayBin) EndOf(date time.Time) time.Time {
	d := date.In(b.location())
	return time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, b.location()).Add(b.Turnpoint)
}

func (b DayBin) location() *time.Location {
	if b.Location == nil {
		return time.Local
	}
	return b.Location
}

// Window is a half-open time interval [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

func (w Window) Contains(value time.Time) bool {
	if !w.From.IsZero() && value.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && !value.Before(w.To) {
		return false
	}
	return true
}

// RollingWindow covers the given number of days before the working day of
// now, plus that day itself, shifted by delta days.
func RollingWindow(now time.Time, days, delta int, bin DayBin) Window {
	today := bin.DateOf(now)
	return Window{
		From: bin.StartOf(today.AddDate(0, 0, delta-days)),
		To:   bin.EndOf(today.AddDate(0, 0, delta)),
	}
}
