package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nekogravitycat/reservation-backend/internal/auth"
	"github.com/nekogravitycat/reservation-backend/internal/interval"
	"github.com/nekogravitycat/reservation-backend/internal/resource"
)

// MaxAvailabilityWindow bounds availability and resource booking queries.
const MaxAvailabilityWindow = 62 * 24 * time.Hour

// ConflictLookahead is how far past the rejected interval a conflict
// reports free slots.
const ConflictLookahead = 7 * 24 * time.Hour

type CreateRequest struct {
	UserID     string
	ResourceID string
	Start      time.Time
	End        time.Time
	// DateOnly marks Start as a calendar date; a start on the current day
	// is then not in the past.
	DateOnly bool
}

// ResourceGetter is the part of the resource directory bookings depend on.
// GetByID must fail with resource.ErrNotFound for absent or inactive resources.
type ResourceGetter interface {
	GetByID(ctx context.Context, id string) (*resource.Resource, error)
}

// Service is the admission controller: it validates booking requests and
// hands them to the ledger.
type Service interface {
	RequestBooking(ctx context.Context, req CreateRequest) (*Booking, error)
	GetByID(ctx context.Context, id string, requester auth.Identity) (*Booking, error)
	Cancel(ctx context.Context, id string, requester auth.Identity) (*Booking, error)
	ListForUser(ctx context.Context, userID string, filter Filter) ([]*Booking, error)
	ListForResource(ctx context.Context, resourceID string, window *interval.Interval) ([]*Booking, error)
	// Availability returns the free gaps of window on the resource.
	Availability(ctx context.Context, resourceID string, window interval.Interval) ([]interval.Interval, error)
}

type service struct {
	ledger    *Ledger
	resources ResourceGetter
	policy    interval.Policy
	log       *slog.Logger
}

func NewService(ledger *Ledger, resources ResourceGetter, policy interval.Policy, log *slog.Logger) Service {
	if log == nil {
		log = slog.Default()
	}
	return &service{
		ledger:    ledger,
		resources: resources,
		policy:    policy,
		log:       log.With("component", "admission"),
	}
}

func (s *service) RequestBooking(ctx context.Context, req CreateRequest) (*Booking, error) {
	// 1. Required fields
	req.ResourceID = strings.TrimSpace(req.ResourceID)
	if req.ResourceID == "" || req.Start.IsZero() || req.End.IsZero() {
		return nil, ErrMissingFields
	}

	// 2. Interval shape and time policy
	iv, err := interval.New(req.Start, req.End)
	if err != nil {
		return nil, err
	}
	validate := s.policy.Validate
	if req.DateOnly {
		validate = s.policy.ValidateDate
	}
	if err := validate(iv); err != nil {
		return nil, err
	}

	// 3. Resource must exist and be active
	if err := s.checkResource(ctx, req.ResourceID); err != nil {
		return nil, err
	}

	// 4. Atomic overlap check and insert
	b, err := s.ledger.TryAdmit(ctx, req.ResourceID, iv, req.UserID)
	if err != nil {
		if errors.Is(err, ErrTimeConflict) {
			return nil, s.conflict(ctx, req.ResourceID, iv)
		}
		return nil, err
	}

	return b, nil
}

// conflict builds the answer to a rejected interval: the free slots from the
// start of its day until ConflictLookahead after its end. Failing to list
// them still reports the plain conflict.
func (s *service) conflict(ctx context.Context, resourceID string, iv interval.Interval) error {
	window := conflictWindow(iv, s.policy.CurrentTime())
	bookings, err := s.ledger.ListForResource(ctx, resourceID, &window)
	if err != nil {
		s.log.WarnContext(ctx, "list free slots for conflict failed",
			"resource_id", resourceID, "error", err)
		return ErrTimeConflict
	}

	busy := make([]interval.Interval, len(bookings))
	for i, b := range bookings {
		busy[i] = b.Interval
	}
	return &ConflictError{Window: window, Available: interval.Gaps(window, busy)}
}

func conflictWindow(iv interval.Interval, now time.Time) interval.Interval {
	const day = 24 * time.Hour
	from := iv.Start.UTC().Truncate(day)
	if from.Before(now) {
		from = now.UTC()
	}
	to := iv.End.UTC().Truncate(day)
	if to.Before(iv.End) {
		to = to.Add(day)
	}
	to = to.Add(ConflictLookahead)
	if to.Sub(from) > MaxAvailabilityWindow {
		to = from.Add(MaxAvailabilityWindow)
	}
	return interval.Interval{Start: from, End: to}
}

func (s *service) GetByID(ctx context.Context, id string, requester auth.Identity) (*Booking, error) {
	b, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !requester.CanActFor(b.UserID) {
		return nil, ErrPermissionDenied
	}
	return b, nil
}

func (s *service) Cancel(ctx context.Context, id string, requester auth.Identity) (*Booking, error) {
	return s.ledger.Cancel(ctx, id, requester)
}

func (s *service) ListForUser(ctx context.Context, userID string, filter Filter) ([]*Booking, error) {
	return s.ledger.ListForUser(ctx, userID, filter)
}

func (s *service) ListForResource(ctx context.Context, resourceID string, window *interval.Interval) ([]*Booking, error) {
	if window != nil && window.Duration() > MaxAvailabilityWindow {
		return nil, ErrWindowTooLarge
	}
	if err := s.checkResource(ctx, resourceID); err != nil {
		return nil, err
	}
	return s.ledger.ListForResource(ctx, resourceID, window)
}

func (s *service) Availability(ctx context.Context, resourceID string, window interval.Interval) ([]interval.Interval, error) {
	if !window.Start.Before(window.End) {
		return nil, interval.ErrInvalidInterval
	}

	bookings, err := s.ListForResource(ctx, resourceID, &window)
	if err != nil {
		return nil, err
	}

	busy := make([]interval.Interval, len(bookings))
	for i, b := range bookings {
		busy[i] = b.Interval
	}
	return interval.Gaps(window, busy), nil
}

func (s *service) checkResource(ctx context.Context, resourceID string) error {
	if _, err := s.resources.GetByID(ctx, resourceID); err != nil {
		if errors.Is(err, resource.ErrNotFound) {
			return ErrResourceNotFound
		}
		s.log.ErrorContext(ctx, "resource lookup failed", "resource_id", resourceID, "error", err)
		return err
	}
	return nil
}
