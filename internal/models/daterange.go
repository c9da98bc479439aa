package models

import "time"

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DateOf truncates a timestamp to midnight UTC of its calendar day in the timestamp's own zone.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Normalize returns the range with both ends truncated to calendar days.
func (r DateRange) Normalize() DateRange {
	return DateRange{Start: DateOf(r.Start), End: DateOf(r.End)}
}

// Contains reports whether day lies within the inclusive range.
func (r DateRange) Contains(day time.Time) bool {
	n := r.Normalize()
	d := DateOf(day)
	return !d.Before(n.Start) && !d.After(n.End)
}

// Within reports whether r is fully contained in outer.
func (r DateRange) Within(outer DateRange) bool {
	n := r.Normalize()
	o := outer.Normalize()
	return !n.Start.Before(o.Start) && !n.End.After(o.End)
}

// Overlaps applies the inclusive interval test start1 <= end2 AND start2 <= end1.
func (r DateRange) Overlaps(other DateRange) bool {
	a := r.Normalize()
	b := other.Normalize()
	return !a.Start.After(b.End) && !b.Start.After(a.End)
}

// Days returns the number of days between start and end.
func (r DateRange) Days() int {
	n := r.Normalize()
	return int(n.End.Sub(n.Start).Hours() / 24)
}

// DeriveStatus computes a term or semester status from today: active when today is
// inside the inclusive range, archived after the end, inactive before the start.
func DeriveStatus(r DateRange, today time.Time) CalendarStatus {
	n := r.Normalize()
	d := DateOf(today)
	switch {
	case d.After(n.End):
		return CalendarStatusArchived
	case d.Before(n.Start):
		return CalendarStatusInactive
	default:
		return CalendarStatusActive
	}
}
