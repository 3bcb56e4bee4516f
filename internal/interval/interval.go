package interval

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/reservation-backend/internal/pkg/apperror"
)

var (
	ErrInvalidInterval = apperror.New(http.StatusBadRequest, "start time must be before end time")
	ErrStartInPast     = apperror.Wrap(ErrInvalidInterval, http.StatusBadRequest, "cannot book a time in the past")
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// New builds an Interval normalised to UTC.
// It fails with ErrInvalidInterval unless start is strictly before end.
func New(start, end time.Time) (Interval, error) {
	if !start.Before(end) {
		return Interval{}, ErrInvalidInterval
	}
	return Interval{Start: start.UTC(), End: end.UTC()}, nil
}

// Overlaps reports whether a and b share at least one instant.
// Intervals that only touch (a.End == b.Start) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

func (i Interval) Overlaps(o Interval) bool {
	return Overlaps(i, o)
}

// Contains reports whether t falls inside [Start, End).
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// ContainsInterval reports whether o lies entirely within i.
func (i Interval) ContainsInterval(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

func (i Interval) IsZero() bool {
	return i.Start.IsZero() && i.End.IsZero()
}

// Policy holds the admission-time rules applied on top of the start < end check.
type Policy struct {
	// PastGrace is how far before Now a start time may lie. Zero rejects any past start.
	PastGrace time.Duration
	Now       func() time.Time
}

// DefaultPolicy rejects every past-dated interval.
func DefaultPolicy() Policy {
	return Policy{Now: time.Now}
}

// Validate checks i against the policy.
// Both failure modes match ErrInvalidInterval with errors.Is.
func (p Policy) Validate(i Interval) error {
	if !i.Start.Before(i.End) {
		return ErrInvalidInterval
	}
	if i.Start.Before(p.CurrentTime().Add(-p.PastGrace)) {
		return ErrStartInPast
	}
	return nil
}

// ValidateDate is Validate for intervals given as calendar dates. A start
// anywhere on the current UTC day is not in the past.
func (p Policy) ValidateDate(i Interval) error {
	if !i.Start.Before(i.End) {
		return ErrInvalidInterval
	}
	today := p.CurrentTime().UTC().Truncate(24 * time.Hour)
	if i.Start.Before(today.Add(-p.PastGrace)) {
		return ErrStartInPast
	}
	return nil
}

// CurrentTime returns Now(), or the wall clock when Now is unset.
func (p Policy) CurrentTime() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Gaps returns the sub-intervals of window not covered by any of busy,
// in ascending order. busy may be unsorted and may overlap.
func Gaps(window Interval, busy []Interval) []Interval {
	sorted := make([]Interval, 0, len(busy))
	for _, b := range busy {
		if b.Overlaps(window) {
			sorted = append(sorted, b)
		}
	}
	sortByStart(sorted)

	var gaps []Interval
	cursor := window.Start
	for _, b := range sorted {
		if b.Start.After(cursor) {
			gaps = append(gaps, Interval{Start: cursor, End: b.Start})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
		if !cursor.Before(window.End) {
			return gaps
		}
	}
	if cursor.Before(window.End) {
		gaps = append(gaps, Interval{Start: cursor, End: window.End})
	}
	return gaps
}
