package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nekogravitycat/reservation-backend/internal/auth"
	"github.com/nekogravitycat/reservation-backend/internal/booking"
	"github.com/nekogravitycat/reservation-backend/internal/interval"
	"github.com/nekogravitycat/reservation-backend/internal/pkg/response"
	"github.com/nekogravitycat/reservation-backend/internal/resource"
	resHttp "github.com/nekogravitycat/reservation-backend/internal/resource/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tomorrow = time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)

func at(hour int) string {
	return tomorrow.Add(time.Duration(hour) * time.Hour).Format(time.RFC3339)
}

type testEnv struct {
	router *gin.Engine
	roomID string
	alice  string
	bob    string
	admin  string
}

func setupRouter(t *testing.T) testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	resources := resource.NewService(resource.NewMemoryRepository())
	room, err := resources.Create(ctx, resource.CreateRequest{Type: resource.TypeRoom, Number: "101", Capacity: 4})
	require.NoError(t, err)

	ledger := booking.NewLedger(booking.NewMemoryRepository(time.Second, resources),
		booking.LedgerConfig{MaxRetries: 2, RetryBackoff: time.Millisecond}, nil, nil, nil)
	svc := booking.NewService(ledger, resources, interval.DefaultPolicy(), nil)

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	authMiddleware := auth.AuthRequired(jwtManager, auth.NopSessionStore{})

	r := gin.New()
	v1 := r.Group("/v1")
	h := NewHandler(svc)
	RegisterRoutes(v1, h, authMiddleware)
	resGroup := resHttp.RegisterRoutes(v1, resHttp.NewHandler(resources), authMiddleware)
	RegisterResourceRoutes(resGroup, h)

	token := func(role auth.Role) string {
		tok, _, err := jwtManager.GenerateAccessToken(auth.Identity{UserID: uuid.NewString(), Role: role})
		require.NoError(t, err)
		return tok
	}

	return testEnv{
		router: r,
		roomID: room.ID,
		alice:  token(auth.RoleUser),
		bob:    token(auth.RoleUser),
		admin:  token(auth.RoleAdmin),
	}
}

func (e testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestCreateBooking(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, http.MethodPost, "/v1/bookings", env.alice,
		CreateBookingRequest{Resource: env.roomID, StartDate: at(9), EndDate: at(10)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[BookingResponse](t, w)
	assert.Equal(t, "confirmed", created.Status)
	assert.Equal(t, env.roomID, created.ResourceID)

	tests := []struct {
		name string
		path string
		body CreateBookingRequest
		want int
	}{
		{"Overlap", "/v1/bookings", CreateBookingRequest{Resource: env.roomID, StartDate: at(9), EndDate: at(11)}, http.StatusConflict},
		{"Touching is fine", "/v1/bookings", CreateBookingRequest{Resource: env.roomID, StartDate: at(10), EndDate: at(11)}, http.StatusCreated},
		{"Missing resource", "/v1/bookings", CreateBookingRequest{StartDate: at(12), EndDate: at(13)}, http.StatusBadRequest},
		{"Missing end", "/v1/bookings", CreateBookingRequest{Resource: env.roomID, StartDate: at(12)}, http.StatusBadRequest},
		{"Reversed", "/v1/bookings", CreateBookingRequest{Resource: env.roomID, StartDate: at(13), EndDate: at(12)}, http.StatusBadRequest},
		{"Garbage date", "/v1/bookings", CreateBookingRequest{Resource: env.roomID, StartDate: "soon", EndDate: at(12)}, http.StatusBadRequest},
		{"Past", "/v1/bookings", CreateBookingRequest{Resource: env.roomID, StartDate: "2001-01-01", EndDate: "2001-01-02"}, http.StatusBadRequest},
		{"Unknown resource", "/v1/bookings", CreateBookingRequest{Resource: uuid.NewString(), StartDate: at(12), EndDate: at(13)}, http.StatusNotFound},
		{"Malformed resource", "/v1/bookings", CreateBookingRequest{Resource: "room-1", StartDate: at(12), EndDate: at(13)}, http.StatusNotFound},
		{"Resource in path", "/v1/bookings/resource/" + env.roomID, CreateBookingRequest{StartDate: at(14), EndDate: at(15)}, http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, tt.path, env.bob, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}

	t.Run("Date-only values are midnight UTC", func(t *testing.T) {
		day := tomorrow.Add(48 * time.Hour)
		w := env.do(t, http.MethodPost, "/v1/bookings", env.bob, CreateBookingRequest{
			Resource: env.roomID, StartDate: day.Format(dateLayout), EndDate: day.Add(24 * time.Hour).Format(dateLayout),
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		got := decode[BookingResponse](t, w)
		assert.True(t, got.StartTime.Equal(day))
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/v1/bookings", "", CreateBookingRequest{Resource: env.roomID, StartDate: at(20), EndDate: at(21)})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestCreateBookingStartingToday(t *testing.T) {
	env := setupRouter(t)
	today := time.Now().UTC().Truncate(24 * time.Hour)

	w := env.do(t, http.MethodPost, "/v1/bookings", env.alice, CreateBookingRequest{
		Resource:  env.roomID,
		StartDate: today.Format(dateLayout),
		EndDate:   today.Add(48 * time.Hour).Format(dateLayout),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	got := decode[BookingResponse](t, w)
	assert.True(t, got.StartTime.Equal(today))

	t.Run("Yesterday is still past", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/v1/bookings", env.alice, CreateBookingRequest{
			Resource:  env.roomID,
			StartDate: today.Add(-24 * time.Hour).Format(dateLayout),
			EndDate:   today.Format(dateLayout),
		})
		assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	})
}

func TestCreateBookingMissingFieldsFirst(t *testing.T) {
	env := setupRouter(t)

	tests := []struct {
		name string
		path string
		body CreateBookingRequest
	}{
		{"No resource, bad start", "/v1/bookings", CreateBookingRequest{StartDate: "soon", EndDate: at(12)}},
		{"No end, bad start", "/v1/bookings", CreateBookingRequest{Resource: env.roomID, StartDate: "soon"}},
		{"Blank resource in body", "/v1/bookings", CreateBookingRequest{Resource: "  ", StartDate: at(9), EndDate: at(10)}},
		{"No start with resource in path", "/v1/bookings/resource/" + env.roomID, CreateBookingRequest{EndDate: "later"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, tt.path, env.alice, tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			got := decode[response.ErrorResponse](t, w)
			assert.Equal(t, booking.ErrMissingFields.Message, got.Error)
		})
	}
}

func TestCreateBookingConflictListsFreeSlots(t *testing.T) {
	env := setupRouter(t)

	for _, h := range [][2]int{{9, 10}, {12, 14}} {
		w := env.do(t, http.MethodPost, "/v1/bookings", env.alice,
			CreateBookingRequest{Resource: env.roomID, StartDate: at(h[0]), EndDate: at(h[1])})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := env.do(t, http.MethodPost, "/v1/bookings", env.bob,
		CreateBookingRequest{Resource: env.roomID, StartDate: at(11), EndDate: at(13)})
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	got := decode[ConflictResponse](t, w)
	assert.Equal(t, booking.ErrTimeConflict.Message, got.Error)
	assert.True(t, got.From.Equal(tomorrow))
	require.Len(t, got.Available, 3)
	assert.True(t, got.Available[0].Start.Equal(tomorrow))
	assert.True(t, got.Available[0].End.Equal(tomorrow.Add(9*time.Hour)))
	assert.True(t, got.Available[1].Start.Equal(tomorrow.Add(10*time.Hour)))
	assert.True(t, got.Available[1].End.Equal(tomorrow.Add(12*time.Hour)))
	assert.True(t, got.Available[2].Start.Equal(tomorrow.Add(14*time.Hour)))
	assert.True(t, got.Available[2].End.Equal(got.To))
}

func TestConcurrentHTTPBookings(t *testing.T) {
	env := setupRouter(t)
	body := CreateBookingRequest{Resource: env.roomID, StartDate: at(9), EndDate: at(11)}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = map[int]int{}
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := env.do(t, http.MethodPost, "/v1/bookings", env.alice, body)
			mu.Lock()
			codes[w.Code]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, map[int]int{http.StatusCreated: 1, http.StatusConflict: 19}, codes)
}

func TestBookingOwnership(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, http.MethodPost, "/v1/bookings", env.alice,
		CreateBookingRequest{Resource: env.roomID, StartDate: at(9), EndDate: at(10)})
	require.Equal(t, http.StatusCreated, w.Code)
	b := decode[BookingResponse](t, w)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/v1/bookings/"+b.ID, env.alice, nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/v1/bookings/"+b.ID, env.bob, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/v1/bookings/"+b.ID, env.admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/v1/bookings/"+uuid.NewString(), env.alice, nil).Code)

	w = env.do(t, http.MethodDelete, "/v1/bookings/"+b.ID, env.bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodDelete, "/v1/bookings/"+b.ID, env.alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cancelled", decode[BookingResponse](t, w).Status)

	w = env.do(t, http.MethodPost, "/v1/bookings", env.bob,
		CreateBookingRequest{Resource: env.roomID, StartDate: at(9), EndDate: at(10)})
	assert.Equal(t, http.StatusCreated, w.Code, "cancelled slot is free again")

	list := decode[BookingListResponse](t, env.do(t, http.MethodGet, "/v1/bookings", env.alice, nil))
	require.Len(t, list.Items, 1)
	assert.Equal(t, "cancelled", list.Items[0].Status)
}

func TestResourceScopedReads(t *testing.T) {
	env := setupRouter(t)
	for _, h := range [][2]int{{9, 10}, {13, 15}} {
		w := env.do(t, http.MethodPost, "/v1/bookings", env.alice,
			CreateBookingRequest{Resource: env.roomID, StartDate: at(h[0]), EndDate: at(h[1])})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	t.Run("Bookings in window", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/v1/resources/"+env.roomID+"/bookings?from="+at(12)+"&to="+at(18), env.bob, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Len(t, decode[BookingListResponse](t, w).Items, 1)

		w = env.do(t, http.MethodGet, "/v1/resources/"+env.roomID+"/bookings", env.bob, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[BookingListResponse](t, w).Items, 2)
	})

	t.Run("Availability", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/v1/resources/"+env.roomID+"/availability?from="+at(8)+"&to="+at(16), env.bob, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		got := decode[AvailabilityResponse](t, w)
		require.Len(t, got.Free, 3)
		assert.True(t, got.Free[1].Start.Equal(tomorrow.Add(10*time.Hour)))
		assert.True(t, got.Free[1].End.Equal(tomorrow.Add(13*time.Hour)))
	})

	t.Run("Availability requires a window", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/v1/resources/"+env.roomID+"/availability?from="+at(8), env.bob, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NotEmpty(t, decode[response.ErrorResponse](t, w).Error)
	})

	t.Run("Unknown resource", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/v1/resources/"+uuid.NewString()+"/bookings", env.bob, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
