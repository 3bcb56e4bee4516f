package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nekogravitycat/reservation-backend/internal/auth"
	"github.com/nekogravitycat/reservation-backend/internal/event"
	"github.com/nekogravitycat/reservation-backend/internal/interval"
	"github.com/nekogravitycat/reservation-backend/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type LedgerConfig struct {
	// MaxRetries bounds how often a busy resource is retried before ErrBusy
	// reaches the caller.
	MaxRetries   int
	RetryBackoff time.Duration
	Now          func() time.Time
}

// Ledger is the authoritative set of bookings. It keeps confirmed bookings
// on the same resource pairwise non-overlapping.
type Ledger struct {
	repo    Repository
	cfg     LedgerConfig
	metrics *metrics.Metrics
	events  event.Publisher
	log     *slog.Logger
}

// NewLedger wires the ledger. Nil metrics, events or log fall back to
// private or no-op implementations.
func NewLedger(repo Repository, cfg LedgerConfig, m *metrics.Metrics, events event.Publisher, log *slog.Logger) *Ledger {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}
	if events == nil {
		events = event.NopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{
		repo:    repo,
		cfg:     cfg,
		metrics: m,
		events:  events,
		log:     log.With("component", "ledger"),
	}
}

// TryAdmit atomically checks iv against the confirmed bookings of the
// resource and stores it as confirmed when nothing overlaps.
func (l *Ledger) TryAdmit(ctx context.Context, resourceID string, iv interval.Interval, userID string) (*Booking, error) {
	started := time.Now()
	candidate := &Booking{
		ResourceID: resourceID,
		UserID:     userID,
		Interval:   iv,
		Status:     StatusPending,
	}

	err := l.retryBusy(ctx, func() error {
		return l.repo.Admit(ctx, candidate)
	})
	l.metrics.AdmissionDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		outcome := admitOutcome(err)
		l.metrics.Admissions.WithLabelValues(outcome).Inc()
		l.log.InfoContext(ctx, "admission rejected",
			"resource_id", resourceID, "user_id", userID,
			"start", iv.Start, "end", iv.End, "outcome", outcome, "error", err)
		return nil, err
	}

	l.metrics.Admissions.WithLabelValues(metrics.OutcomeAdmitted).Inc()
	l.log.InfoContext(ctx, "booking confirmed",
		"booking_id", candidate.ID, "resource_id", resourceID, "user_id", userID,
		"start", iv.Start, "end", iv.End)
	l.publish(ctx, event.TypeBookingConfirmed, candidate)

	return candidate, nil
}

// Cancel releases the booking's interval. Only the owner or an admin may
// cancel; cancelling twice returns the booking unchanged.
func (l *Ledger) Cancel(ctx context.Context, bookingID string, requester auth.Identity) (*Booking, error) {
	b, err := l.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !requester.CanActFor(b.UserID) {
		l.metrics.Cancellations.WithLabelValues(metrics.OutcomeForbidden).Inc()
		return nil, ErrPermissionDenied
	}
	if b.Status == StatusCancelled {
		return b, nil
	}

	var changed bool
	err = l.retryBusy(ctx, func() error {
		var err error
		b, changed, err = l.repo.Cancel(ctx, bookingID)
		return err
	})
	if err != nil {
		l.metrics.Cancellations.WithLabelValues(admitOutcome(err)).Inc()
		return nil, err
	}

	if changed {
		l.metrics.Cancellations.WithLabelValues(metrics.OutcomeCancelled).Inc()
		l.log.InfoContext(ctx, "booking cancelled",
			"booking_id", b.ID, "resource_id", b.ResourceID, "by", requester.UserID)
		l.publish(ctx, event.TypeBookingCancelled, b)
	}
	return b, nil
}

func (l *Ledger) GetByID(ctx context.Context, id string) (*Booking, error) {
	return l.repo.GetByID(ctx, id)
}

// ListForUser returns every booking of the user, oldest start first.
func (l *Ledger) ListForUser(ctx context.Context, userID string, filter Filter) ([]*Booking, error) {
	var endsAfter time.Time
	if filter.Upcoming {
		endsAfter = l.cfg.Now().UTC()
	}
	return l.repo.ListByUser(ctx, userID, endsAfter)
}

// ListForResource returns the confirmed bookings of a resource, optionally
// only those overlapping window.
func (l *Ledger) ListForResource(ctx context.Context, resourceID string, window *interval.Interval) ([]*Booking, error) {
	return l.repo.ListByResource(ctx, resourceID, window)
}

// retryBusy runs op until it succeeds, fails with anything but ErrBusy, or
// has been retried MaxRetries times. Backoff grows linearly.
func (l *Ledger) retryBusy(ctx context.Context, op func() error) error {
	for attempt := 0; ; attempt++ {
		err := op()
		if !errors.Is(err, ErrBusy) || attempt >= l.cfg.MaxRetries {
			return err
		}
		l.metrics.AdmitRetries.Inc()

		timer := time.NewTimer(l.cfg.RetryBackoff * time.Duration(attempt+1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *Ledger) publish(ctx context.Context, typ string, b *Booking) {
	ev := event.BookingEvent{
		Type:       typ,
		BookingID:  b.ID,
		ResourceID: b.ResourceID,
		UserID:     b.UserID,
		StartTime:  b.Interval.Start,
		EndTime:    b.Interval.End,
		OccurredAt: l.cfg.Now().UTC(),
	}
	if err := l.events.Publish(ctx, ev); err != nil {
		l.metrics.EventPublishFails.Inc()
		l.log.WarnContext(ctx, "publish booking event failed",
			"type", typ, "booking_id", b.ID, "error", err)
	}
}

func admitOutcome(err error) string {
	switch {
	case errors.Is(err, ErrTimeConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, ErrBusy):
		return metrics.OutcomeBusy
	case errors.Is(err, ErrResourceNotFound):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}
