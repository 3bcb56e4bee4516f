// Package event publishes booking lifecycle events to a message broker.
package event

import (
	"context"
	"time"
)

const (
	TypeBookingConfirmed = "booking.confirmed"
	TypeBookingCancelled = "booking.cancelled"
)

// BookingEvent is emitted after a booking is committed or cancelled.
// It carries enough for downstream consumers to act without reading the ledger.
type BookingEvent struct {
	Type       string    `json:"type"`
	BookingID  string    `json:"booking_id"`
	ResourceID string    `json:"resource_id"`
	UserID     string    `json:"user_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers booking events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev BookingEvent) error
	Close() error
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, BookingEvent) error { return nil }
func (NopPublisher) Close() error                                { return nil }
