package booking

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/reservation-backend/internal/interval"
	"github.com/nekogravitycat/reservation-backend/internal/pkg/apperror"
)

var (
	ErrNotFound         = apperror.New(http.StatusNotFound, "booking not found")
	ErrTimeConflict     = apperror.New(http.StatusConflict, "time slot already booked")
	ErrMissingFields    = apperror.New(http.StatusBadRequest, "resource, start_date and end_date are required")
	ErrInvalidDate      = apperror.Wrap(interval.ErrInvalidInterval, http.StatusBadRequest, "dates must be RFC 3339 timestamps or YYYY-MM-DD")
	ErrWindowTooLarge   = apperror.Wrap(interval.ErrInvalidInterval, http.StatusBadRequest, "query window is too large")
	ErrResourceNotFound = apperror.New(http.StatusNotFound, "resource not found")
	ErrPermissionDenied = apperror.New(http.StatusForbidden, "permission denied")
	ErrBusy             = apperror.New(http.StatusServiceUnavailable, "resource is busy, please retry")
)

// ConflictError is ErrTimeConflict carrying the free slots around the
// rejected interval. errors.Is(err, ErrTimeConflict) holds for it.
type ConflictError struct {
	Window    interval.Interval
	Available []interval.Interval
}

func (e *ConflictError) Error() string {
	return ErrTimeConflict.Error()
}

func (e *ConflictError) Unwrap() error {
	return ErrTimeConflict
}

type Status string

const (
	// StatusPending is never stored. It marks a candidate inside admission.
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Booking is a reservation of one resource by one user.
// Its interval never changes; a different time is a new booking.
type Booking struct {
	ID         string
	ResourceID string
	UserID     string
	Interval   interval.Interval
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (b *Booking) IsConfirmed() bool {
	return b.Status == StatusConfirmed
}

// Filter narrows a user's booking list.
type Filter struct {
	// Upcoming keeps only bookings that have not ended yet.
	Upcoming bool
}
