package http

import (
	"strings"
	"time"

	"github.com/nekogravitycat/reservation-backend/internal/booking"
	"github.com/nekogravitycat/reservation-backend/internal/interval"
)

const dateLayout = "2006-01-02"

// parseDate accepts RFC 3339 timestamps or plain dates (midnight UTC).
// The bool reports the second form. An empty string yields the zero time.
func parseDate(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), false, nil
	}
	if t, err := time.ParseInLocation(dateLayout, s, time.UTC); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, booking.ErrInvalidDate
}

type CreateBookingRequest struct {
	Resource  string `json:"resource"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type ListBookingsRequest struct {
	Upcoming bool `form:"upcoming"`
}

// WindowRequest is the from/to query pair of resource-scoped reads.
type WindowRequest struct {
	From string `form:"from"`
	To   string `form:"to"`
}

// Window returns nil when neither bound is given. Giving only one bound is
// an error, as is a bound that does not parse.
func (r WindowRequest) Window() (*interval.Interval, error) {
	from, _, err := parseDate(r.From)
	if err != nil {
		return nil, err
	}
	to, _, err := parseDate(r.To)
	if err != nil {
		return nil, err
	}
	if from.IsZero() && to.IsZero() {
		return nil, nil
	}
	if from.IsZero() || to.IsZero() {
		return nil, booking.ErrMissingFields
	}
	iv, err := interval.New(from, to)
	if err != nil {
		return nil, err
	}
	return &iv, nil
}

type BookingResponse struct {
	ID         string    `json:"id"`
	ResourceID string    `json:"resource_id"`
	UserID     string    `json:"user_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func NewBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:         b.ID,
		ResourceID: b.ResourceID,
		UserID:     b.UserID,
		StartTime:  b.Interval.Start,
		EndTime:    b.Interval.End,
		Status:     string(b.Status),
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

type BookingListResponse struct {
	Items []BookingResponse `json:"items"`
}

func NewBookingListResponse(bookings []*booking.Booking) BookingListResponse {
	items := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		items[i] = NewBookingResponse(b)
	}
	return BookingListResponse{Items: items}
}

type SlotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type AvailabilityResponse struct {
	ResourceID string         `json:"resource_id"`
	From       time.Time      `json:"from"`
	To         time.Time      `json:"to"`
	Free       []SlotResponse `json:"free"`
}

func newSlots(free []interval.Interval) []SlotResponse {
	slots := make([]SlotResponse, len(free))
	for i, iv := range free {
		slots[i] = SlotResponse{Start: iv.Start, End: iv.End}
	}
	return slots
}

func NewAvailabilityResponse(resourceID string, window interval.Interval, free []interval.Interval) AvailabilityResponse {
	return AvailabilityResponse{
		ResourceID: resourceID,
		From:       window.Start,
		To:         window.End,
		Free:       newSlots(free),
	}
}

// ConflictResponse is the 409 body of a rejected booking, listing the free
// slots between From and To.
type ConflictResponse struct {
	Error     string         `json:"error"`
	From      time.Time      `json:"from"`
	To        time.Time      `json:"to"`
	Available []SlotResponse `json:"available"`
}

func NewConflictResponse(e *booking.ConflictError) ConflictResponse {
	return ConflictResponse{
		Error:     e.Error(),
		From:      e.Window.Start,
		To:        e.Window.End,
		Available: newSlots(e.Available),
	}
}
