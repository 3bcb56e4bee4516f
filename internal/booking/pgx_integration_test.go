package booking_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nekogravitycat/reservation-backend/internal/auth"
	"github.com/nekogravitycat/reservation-backend/internal/booking"
	"github.com/nekogravitycat/reservation-backend/internal/db"
	"github.com/nekogravitycat/reservation-backend/internal/interval"
	"github.com/nekogravitycat/reservation-backend/internal/resource"
	"github.com/nekogravitycat/reservation-backend/internal/user"
)

// testPool is nil unless TEST_DB_DSN points at a disposable database.
var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	if err := godotenv.Load("../../.env"); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	if dsn := os.Getenv("TEST_DB_DSN"); dsn != "" {
		ctx := context.Background()
		pool, err := db.NewPool(ctx, dsn)
		if err != nil {
			log.Fatalf("unable to connect to test database: %v", err)
		}
		if err := db.Migrate(ctx, pool); err != nil {
			log.Fatalf("unable to migrate test database: %v", err)
		}
		testPool = pool
	}

	code := m.Run()
	if testPool != nil {
		testPool.Close()
	}
	os.Exit(code)
}

type pgFixture struct {
	ledger   *booking.Ledger
	userID   string
	otherID  string
	resource *resource.Resource
}

func setupPostgres(t *testing.T) pgFixture {
	t.Helper()
	if testPool == nil {
		t.Skip("TEST_DB_DSN not set")
	}
	ctx := context.Background()

	_, err := testPool.Exec(ctx, "TRUNCATE TABLE public.bookings, public.resources, public.users CASCADE")
	require.NoError(t, err)

	users := user.NewService(user.NewPgxRepository(testPool), auth.NewBcryptPasswordHasher(bcrypt.MinCost), nil, nil)
	newUser := func(email string) string {
		u, err := users.Register(ctx, user.RegisterRequest{Email: email, Password: "password123", FirstName: "T", LastName: "U"})
		require.NoError(t, err)
		return u.ID
	}

	resources := resource.NewService(resource.NewPgxRepository(testPool))
	res, err := resources.Create(ctx, resource.CreateRequest{Type: resource.TypeHall, Number: "Main", Capacity: 200})
	require.NoError(t, err)

	repo := booking.NewPgxRepository(testPool, 2*time.Second)
	return pgFixture{
		ledger:   booking.NewLedger(repo, booking.LedgerConfig{MaxRetries: 5, RetryBackoff: 10 * time.Millisecond}, nil, nil, nil),
		userID:   newUser("owner@example.com"),
		otherID:  newUser("other@example.com"),
		resource: res,
	}
}

func hours(from, to int) interval.Interval {
	day := time.Date(2031, 6, 1, 0, 0, 0, 0, time.UTC)
	return interval.Interval{Start: day.Add(time.Duration(from) * time.Hour), End: day.Add(time.Duration(to) * time.Hour)}
}

func TestPostgresAdmitAndCancel(t *testing.T) {
	fx := setupPostgres(t)
	ctx := context.Background()

	b, err := fx.ledger.TryAdmit(ctx, fx.resource.ID, hours(9, 11), fx.userID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, b.Status)

	_, err = fx.ledger.TryAdmit(ctx, fx.resource.ID, hours(10, 12), fx.otherID)
	assert.ErrorIs(t, err, booking.ErrTimeConflict)

	_, err = fx.ledger.TryAdmit(ctx, fx.resource.ID, hours(11, 12), fx.otherID)
	assert.NoError(t, err, "touching intervals do not conflict")

	_, err = fx.ledger.TryAdmit(ctx, "00000000-0000-0000-0000-000000000000", hours(9, 11), fx.userID)
	assert.ErrorIs(t, err, booking.ErrResourceNotFound)

	_, err = fx.ledger.Cancel(ctx, b.ID, auth.Identity{UserID: fx.otherID, Role: auth.RoleUser})
	assert.ErrorIs(t, err, booking.ErrPermissionDenied)

	cancelled, err := fx.ledger.Cancel(ctx, b.ID, auth.Identity{UserID: fx.userID, Role: auth.RoleUser})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, cancelled.Status)

	again, err := fx.ledger.Cancel(ctx, b.ID, auth.Identity{UserID: fx.userID, Role: auth.RoleUser})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, again.Status)

	_, err = fx.ledger.TryAdmit(ctx, fx.resource.ID, hours(9, 11), fx.otherID)
	assert.NoError(t, err, "cancelled interval is free")

	list, err := fx.ledger.ListForUser(ctx, fx.userID, booking.Filter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = fx.ledger.GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, booking.ErrNotFound)
}

func TestPostgresConcurrentIdenticalRequests(t *testing.T) {
	fx := setupPostgres(t)

	for round := 0; round < 5; round++ {
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			admitted  int
			conflicts int
		)
		gate := make(chan struct{})
		iv := hours(round*2, round*2+2)

		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-gate
				_, err := fx.ledger.TryAdmit(context.Background(), fx.resource.ID, iv, fx.userID)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					admitted++
				case errors.Is(err, booking.ErrTimeConflict):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		close(gate)
		wg.Wait()

		require.Equal(t, 1, admitted, fmt.Sprintf("round %d", round))
		require.Equal(t, 15, conflicts, fmt.Sprintf("round %d", round))
	}
}
