package booking

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapPgError(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{pgerrcode.LockNotAvailable, ErrBusy},
		{pgerrcode.DeadlockDetected, ErrBusy},
		{pgerrcode.SerializationFailure, ErrBusy},
		{pgerrcode.ExclusionViolation, ErrTimeConflict},
		{pgerrcode.ForeignKeyViolation, ErrResourceNotFound},
		{pgerrcode.InvalidTextRepresentation, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := fmt.Errorf("query: %w", &pgconn.PgError{Code: tt.code})
			assert.ErrorIs(t, mapPgError(err, ErrNotFound), tt.want)
		})
	}

	t.Run("Other errors pass through", func(t *testing.T) {
		pgErr := &pgconn.PgError{Code: pgerrcode.UndefinedTable}
		assert.Same(t, pgErr, mapPgError(pgErr, ErrNotFound))

		plain := errors.New("connection reset")
		assert.Equal(t, plain, mapPgError(plain, ErrNotFound))
	})
}

func TestLockTimeoutMillis(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int64
	}{
		{500 * time.Microsecond, 1},
		{time.Nanosecond, 1},
		{0, 1},
		{time.Millisecond, 1},
		{1500 * time.Microsecond, 2},
		{2 * time.Second, 2000},
	}

	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, lockTimeoutMillis(tt.in))
		})
	}
}
