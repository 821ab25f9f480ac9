package models

import (
	"fmt"
	"time"
)

// Duration bounds for a reservation, in minutes.
const (
	MinDurationMinutes = 10
	MaxDurationMinutes = 480

	// DefaultDurationMinutes is applied to legacy records that were
	// stored before durations existed.
	DefaultDurationMinutes = 60
)

// Reservation represents a single booking of a shared space.
type Reservation struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Surname         string    `json:"surname"`
	NationalID      string    `json:"national_id"`
	Role            string    `json:"role"`       // student, teacher, staff...; display-only
	Date            string    `json:"date"`       // YYYY-MM-DD
	StartTime       string    `json:"start_time"` // HH:MM
	DurationMinutes int       `json:"duration_minutes"`
	Resource        string    `json:"resource"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Interval is a half-open range of minutes since midnight [Start, End).
type Interval struct {
	Start int
	End   int
}

// Overlaps reports whether two half-open intervals intersect.
// Touching intervals (a.End == b.Start) do not overlap, so
// back-to-back bookings are allowed.
func (a Interval) Overlaps(b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

// MinuteOfDay converts a pre-validated "HH:MM" clock string to minutes
// since midnight. Input is assumed to match the time pattern; a
// malformed string is a caller error.
func MinuteOfDay(clock string) int {
	var h, m int
	fmt.Sscanf(clock, "%d:%d", &h, &m)
	return h*60 + m
}

// FormatMinute renders minutes since midnight back to "HH:MM".
func FormatMinute(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// EffectiveDuration returns the stored duration, falling back to the
// legacy default when the value is absent or out of range.
func (r *Reservation) EffectiveDuration() int {
	if r.DurationMinutes < MinDurationMinutes || r.DurationMinutes > MaxDurationMinutes {
		return DefaultDurationMinutes
	}
	return r.DurationMinutes
}

// Interval returns the reservation's half-open minute interval within
// its date. Arithmetic is plain integer minutes; intervals are only
// ever compared between reservations sharing the same date.
func (r *Reservation) Interval() Interval {
	start := MinuteOfDay(r.StartTime)
	return Interval{Start: start, End: start + r.EffectiveDuration()}
}

// EndInstant combines date, start time and duration into the wall-clock
// moment the reservation ends.
func (r *Reservation) EndInstant() time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", r.Date+" "+r.StartTime, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t.Add(time.Duration(r.EffectiveDuration()) * time.Minute)
}

// ExpiredAt reports whether the reservation has already ended at the
// given moment.
func (r *Reservation) ExpiredAt(now time.Time) bool {
	return now.After(r.EndInstant())
}

// GroupKey is the (date, resource) scope within which overlap is
// evaluated.
func (r *Reservation) GroupKey() string {
	return r.Date + "|" + r.Resource
}

// ConflictDetail describes the first existing reservation that
// overlaps a candidate, with enough data to render a message like
// "conflicts with reservation #7 between 09:00 and 10:00".
type ConflictDetail struct {
	ID              int64  `json:"id"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	ExistingStart   int    `json:"existing_start"`
	ExistingEnd     int    `json:"existing_end"`
	CandidateStart  int    `json:"candidate_start"`
	CandidateEnd    int    `json:"candidate_end"`
}

// Window returns the overlapping minute range shared by the candidate
// and the existing reservation.
func (d *ConflictDetail) Window() Interval {
	w := Interval{Start: d.ExistingStart, End: d.ExistingEnd}
	if d.CandidateStart > w.Start {
		w.Start = d.CandidateStart
	}
	if d.CandidateEnd < w.End {
		w.End = d.CandidateEnd
	}
	return w
}

func (d *ConflictDetail) String() string {
	return fmt.Sprintf("conflicts with reservation #%d between %s and %s",
		d.ID, FormatMinute(d.ExistingStart), FormatMinute(d.ExistingEnd))
}

// ConflictPair is one overlapping pair found by the global scan.
type ConflictPair struct {
	Date     string `json:"date"`
	Resource string `json:"resource"`

	FirstID        int64  `json:"first_id"`
	FirstStart     string `json:"first_start"`
	FirstDuration  int    `json:"first_duration"`
	SecondID       int64  `json:"second_id"`
	SecondStart    string `json:"second_start"`
	SecondDuration int    `json:"second_duration"`

	// MoveID names the later of the two reservations; SuggestedStart
	// is an advisory new start for it, placed right after the earlier
	// one ends. The suggestion is not checked against other
	// reservations.
	MoveID         int64  `json:"move_id"`
	SuggestedStart string `json:"suggested_start"`
}
