package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nekogravitycat/reservation-backend/internal/interval"
)

// Repository stores bookings.
// Admit and Cancel are each atomic with respect to every other Admit and
// Cancel on the same resource. Operations on different resources must not
// block each other.
type Repository interface {
	// Admit stores b as confirmed unless a confirmed booking on the same
	// resource overlaps it. It fails with ErrTimeConflict, ErrResourceNotFound
	// or ErrBusy and leaves nothing behind on failure.
	Admit(ctx context.Context, b *Booking) error
	// Cancel marks the booking cancelled. changed is false when it already was.
	Cancel(ctx context.Context, id string) (b *Booking, changed bool, err error)
	GetByID(ctx context.Context, id string) (*Booking, error)
	// ListByUser returns the user's bookings of any status ordered by start.
	// A non-zero endsAfter drops bookings that ended before it.
	ListByUser(ctx context.Context, userID string, endsAfter time.Time) ([]*Booking, error)
	// ListByResource returns confirmed bookings ordered by start, optionally
	// only those overlapping window.
	ListByResource(ctx context.Context, resourceID string, window *interval.Interval) ([]*Booking, error)
}

type pgxRepository struct {
	pool        *pgxpool.Pool
	psql        squirrel.StatementBuilderType
	lockTimeout time.Duration
}

// NewPgxRepository serialises admissions per resource with a row lock on the
// resource, waiting at most lockTimeout for it.
func NewPgxRepository(pool *pgxpool.Pool, lockTimeout time.Duration) Repository {
	return &pgxRepository{
		pool:        pool,
		psql:        squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		lockTimeout: lockTimeout,
	}
}

var bookingColumns = []string{
	"id", "resource_id", "user_id", "start_time", "end_time", "status", "created_at", "updated_at",
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	if err := row.Scan(
		&b.ID, &b.ResourceID, &b.UserID, &b.Interval.Start, &b.Interval.End,
		&b.Status, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	b.Interval.Start = b.Interval.Start.UTC()
	b.Interval.End = b.Interval.End.UTC()
	return &b, nil
}

// mapPgError translates storage failures into ledger errors.
// notFound is returned for malformed ids, which can never match a row.
func mapPgError(err error, notFound error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.LockNotAvailable, pgerrcode.DeadlockDetected, pgerrcode.SerializationFailure:
		return ErrBusy
	case pgerrcode.ExclusionViolation:
		return ErrTimeConflict
	case pgerrcode.ForeignKeyViolation:
		return ErrResourceNotFound
	case pgerrcode.InvalidTextRepresentation:
		return notFound
	}
	return err
}

// lockTimeoutMillis rounds d up to whole milliseconds. Postgres reads
// lock_timeout = 0 as no limit, so the result is never below 1.
func lockTimeoutMillis(d time.Duration) int64 {
	ms := (d + time.Millisecond - 1).Milliseconds()
	if ms < 1 {
		return 1
	}
	return ms
}

// lockResource starts the per-resource critical section inside tx and
// reports whether the resource is still active.
func (r *pgxRepository) lockResource(ctx context.Context, tx pgx.Tx, resourceID string) (bool, error) {
	// SET does not accept bind parameters; the value is an integer we format.
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", lockTimeoutMillis(r.lockTimeout))); err != nil {
		return false, fmt.Errorf("set lock timeout failed: %w", err)
	}

	var active bool
	err := tx.QueryRow(ctx,
		"SELECT is_active FROM public.resources WHERE id = $1 FOR NO KEY UPDATE", resourceID,
	).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrResourceNotFound
		}
		return false, mapPgError(err, ErrResourceNotFound)
	}
	return active, nil
}

func (r *pgxRepository) Admit(ctx context.Context, b *Booking) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin admit tx failed: %w", err)
	}
	defer tx.Rollback(ctx)

	active, err := r.lockResource(ctx, tx, b.ResourceID)
	if err != nil {
		return err
	}
	if !active {
		return ErrResourceNotFound
	}

	overlap, args, err := r.psql.Select("1").
		From("public.bookings").
		Where(squirrel.Eq{"resource_id": b.ResourceID, "status": StatusConfirmed}).
		Where(squirrel.Lt{"start_time": b.Interval.End}).
		Where(squirrel.Gt{"end_time": b.Interval.Start}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build overlap query failed: %w", err)
	}

	var exists bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS ("+overlap+")", args...).Scan(&exists); err != nil {
		return fmt.Errorf("check overlap failed: %w", mapPgError(err, ErrResourceNotFound))
	}
	if exists {
		return ErrTimeConflict
	}

	insert, args, err := r.psql.Insert("public.bookings").
		Columns("resource_id", "user_id", "start_time", "end_time", "status").
		Values(b.ResourceID, b.UserID, b.Interval.Start, b.Interval.End, StatusConfirmed).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert booking query failed: %w", err)
	}

	var (
		id                   string
		createdAt, updatedAt time.Time
	)
	if err := tx.QueryRow(ctx, insert, args...).Scan(&id, &createdAt, &updatedAt); err != nil {
		if mapped := mapPgError(err, ErrResourceNotFound); mapped != err {
			return mapped
		}
		return fmt.Errorf("insert booking failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if mapped := mapPgError(err, ErrResourceNotFound); mapped != err {
			return mapped
		}
		return fmt.Errorf("commit admit tx failed: %w", err)
	}

	b.ID = id
	b.Status = StatusConfirmed
	b.CreatedAt = createdAt
	b.UpdatedAt = updatedAt
	return nil
}

func (r *pgxRepository) Cancel(ctx context.Context, id string) (*Booking, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin cancel tx failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var resourceID string
	err = tx.QueryRow(ctx, "SELECT resource_id FROM public.bookings WHERE id = $1", id).Scan(&resourceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrNotFound
		}
		return nil, false, mapPgError(err, ErrNotFound)
	}

	// Deactivated resources still guard their cancellations.
	if _, err := r.lockResource(ctx, tx, resourceID); err != nil {
		return nil, false, err
	}

	query, args, err := r.psql.Update("public.bookings").
		Set("status", StatusCancelled).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id, "status": StatusConfirmed}).
		Suffix("RETURNING " + strings.Join(bookingColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build cancel booking query failed: %w", err)
	}

	b, err := scanBooking(tx.QueryRow(ctx, query, args...))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// Already cancelled.
		current, err := r.get(ctx, tx, id)
		if err != nil {
			return nil, false, err
		}
		return current, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("cancel booking failed: %w", mapPgError(err, ErrNotFound))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit cancel tx failed: %w", mapPgError(err, ErrNotFound))
	}
	return b, true, nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	return r.get(ctx, r.pool, id)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *pgxRepository) get(ctx context.Context, q querier, id string) (*Booking, error) {
	query, args, err := r.psql.Select(bookingColumns...).
		From("public.bookings").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get booking query failed: %w", err)
	}

	b, err := scanBooking(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if mapped := mapPgError(err, ErrNotFound); mapped == ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking failed: %w", err)
	}
	return b, nil
}

func (r *pgxRepository) ListByUser(ctx context.Context, userID string, endsAfter time.Time) ([]*Booking, error) {
	query := r.psql.Select(bookingColumns...).
		From("public.bookings").
		Where(squirrel.Eq{"user_id": userID})

	if !endsAfter.IsZero() {
		query = query.Where(squirrel.GtOrEq{"end_time": endsAfter})
	}

	return r.list(ctx, query.OrderBy("start_time ASC", "created_at ASC"))
}

func (r *pgxRepository) ListByResource(ctx context.Context, resourceID string, window *interval.Interval) ([]*Booking, error) {
	query := r.psql.Select(bookingColumns...).
		From("public.bookings").
		Where(squirrel.Eq{"resource_id": resourceID, "status": StatusConfirmed})

	// Intersection: existing.start < window.end AND existing.end > window.start
	if window != nil {
		query = query.
			Where(squirrel.Lt{"start_time": window.End}).
			Where(squirrel.Gt{"end_time": window.Start})
	}

	return r.list(ctx, query.OrderBy("start_time ASC"))
}

func (r *pgxRepository) list(ctx context.Context, query squirrel.SelectBuilder) ([]*Booking, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list bookings query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		if mapped := mapPgError(err, errNoRows); mapped == errNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("list bookings failed: %w", err)
	}
	defer rows.Close()

	var bookings []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking failed: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		if mapped := mapPgError(err, errNoRows); mapped == errNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("iterate bookings failed: %w", err)
	}
	return bookings, nil
}

// errNoRows marks a filter value that cannot match any row.
var errNoRows = errors.New("no matching rows")
