package domain

import "time"

const DateLayout = "2006-01-02"

// Interval is a half-open stay [Start, End) at calendar-day granularity.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func NewInterval(start, end time.Time) Interval {
	return Interval{Start: Day(start), End: Day(end)}
}

func ParseInterval(start, end string) (Interval, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return Interval{}, err
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return Interval{}, err
	}
	return NewInterval(s, e), nil
}

func (i Interval) Valid() bool { return i.End.After(i.Start) }

// Overlaps is the only interval comparison in the system: a.start < b.end && b.start < a.end.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Contains reports whether t falls on a night covered by i.
func (i Interval) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(i.Start) && d.Before(i.End)
}

func (i Interval) Nights() int {
	if !i.Valid() {
		return 0
	}
	return int(i.End.Sub(i.Start).Hours() / 24)
}

func (i Interval) String() string {
	return i.Start.Format(DateLayout) + ".." + i.End.Format(DateLayout)
}
