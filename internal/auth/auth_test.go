package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("admin")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)

	_, err = ParseRole("superuser")
	assert.Error(t, err)
	_, err = ParseRole("")
	assert.Error(t, err)
}

func TestRoleSatisfies(t *testing.T) {
	assert.True(t, RoleAdmin.Satisfies(RoleUser))
	assert.True(t, RoleAdmin.Satisfies(RoleAdmin))
	assert.True(t, RoleUser.Satisfies(RoleUser))
	assert.False(t, RoleUser.Satisfies(RoleAdmin))
	assert.False(t, Role("").Satisfies(RoleUser))
}

func TestIdentityCanActFor(t *testing.T) {
	owner := Identity{UserID: "u1", Role: RoleUser}
	other := Identity{UserID: "u2", Role: RoleUser}
	admin := Identity{UserID: "a1", Role: RoleAdmin}

	assert.True(t, owner.CanActFor("u1"))
	assert.False(t, other.CanActFor("u1"))
	assert.True(t, admin.CanActFor("u1"))
	assert.False(t, Identity{}.CanActFor(""))
}

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)

	token, tokenID, err := m.GenerateAccessToken(Identity{UserID: "u1", Role: RoleAdmin})
	require.NoError(t, err)
	require.NotEmpty(t, tokenID)

	claims, err := m.ParseAndValidate(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, tokenID, claims.ID)

	t.Run("Wrong secret is rejected", func(t *testing.T) {
		_, err := NewJWTManager("other", time.Minute).ParseAndValidate(token)
		assert.Error(t, err)
	})

	t.Run("Expired token is rejected", func(t *testing.T) {
		expired := NewJWTManager("secret", -time.Minute)
		tok, _, err := expired.GenerateAccessToken(Identity{UserID: "u1", Role: RoleUser})
		require.NoError(t, err)
		_, err = expired.ParseAndValidate(tok)
		assert.Error(t, err)
	})

	t.Run("Unknown role cannot be issued", func(t *testing.T) {
		_, _, err := m.GenerateAccessToken(Identity{UserID: "u1", Role: "root"})
		assert.Error(t, err)
	})
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptPasswordHasher(4)
	hash, err := h.Hash("correct horse")
	require.NoError(t, err)

	assert.NoError(t, h.Compare(hash, "correct horse"))
	assert.ErrorIs(t, h.Compare(hash, "wrong"), ErrPasswordMismatch)
}

func TestRedisSessionStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisSessionStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s1", "u1", time.Minute))
	assert.True(t, mr.Exists("auth_s1"))

	active, err := store.Active(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, store.Revoke(ctx, "s1"))
	active, err = store.Active(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, active)

	t.Run("Session expires with token TTL", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "s2", "u1", time.Minute))
		mr.FastForward(2 * time.Minute)
		active, err := store.Active(ctx, "s2")
		require.NoError(t, err)
		assert.False(t, active)
	})
}

func newProtectedRouter(m *JWTManager, sessions SessionStore, role Role) *gin.Engine {
	r := gin.New()
	r.GET("/protected", AuthRequired(m, sessions), RequireRole(role), func(c *gin.Context) {
		id := GetIdentity(c)
		c.JSON(http.StatusOK, gin.H{"user_id": id.UserID, "role": id.Role})
	})
	return r
}

func doGet(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)
	userToken, _, err := m.GenerateAccessToken(Identity{UserID: "u1", Role: RoleUser})
	require.NoError(t, err)
	adminToken, _, err := m.GenerateAccessToken(Identity{UserID: "a1", Role: RoleAdmin})
	require.NoError(t, err)

	t.Run("Missing header", func(t *testing.T) {
		w := doGet(newProtectedRouter(m, NopSessionStore{}, RoleUser), "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Garbage token", func(t *testing.T) {
		w := doGet(newProtectedRouter(m, NopSessionStore{}, RoleUser), "not-a-jwt")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("User reaches user route", func(t *testing.T) {
		w := doGet(newProtectedRouter(m, NopSessionStore{}, RoleUser), userToken)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"user_id":"u1"`)
	})

	t.Run("User is forbidden from admin route", func(t *testing.T) {
		w := doGet(newProtectedRouter(m, NopSessionStore{}, RoleAdmin), userToken)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Admin reaches admin route", func(t *testing.T) {
		w := doGet(newProtectedRouter(m, NopSessionStore{}, RoleAdmin), adminToken)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Revoked session is rejected", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		store := NewRedisSessionStore(client)

		token, sid, err := m.GenerateAccessToken(Identity{UserID: "u1", Role: RoleUser})
		require.NoError(t, err)
		require.NoError(t, store.Save(context.Background(), sid, "u1", time.Minute))

		r := newProtectedRouter(m, store, RoleUser)
		assert.Equal(t, http.StatusOK, doGet(r, token).Code)

		require.NoError(t, store.Revoke(context.Background(), sid))
		assert.Equal(t, http.StatusUnauthorized, doGet(r, token).Code)
	})
}
