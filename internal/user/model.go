package user

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/reservation-backend/internal/auth"
	"github.com/nekogravitycat/reservation-backend/internal/pkg/apperror"
)

var (
	ErrNotFound           = apperror.New(http.StatusNotFound, "user not found")
	ErrEmailAlreadyUsed   = apperror.New(http.StatusConflict, "email already used")
	ErrInvalidCredentials = apperror.New(http.StatusUnauthorized, "invalid email or password")
	// ErrInactiveUser shares its message with ErrInvalidCredentials so that
	// login never reveals which check failed.
	ErrInactiveUser = apperror.New(http.StatusUnauthorized, "invalid email or password")
	ErrValidation   = apperror.New(http.StatusBadRequest, "invalid registration data")
)

// User represents a user in the system.
type User struct {
	ID           string // UUID
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         auth.Role
	IsActive     bool
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

func (u *User) Identity() auth.Identity {
	return auth.Identity{UserID: u.ID, Role: u.Role}
}
