package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nekogravitycat/reservation-backend/internal/auth"
)

type RegisterRequest struct {
	Email     string `validate:"required,email,max=254"`
	Password  string `validate:"required,min=8,max=72"`
	FirstName string `validate:"required,max=100"`
	LastName  string `validate:"required,max=100"`
}

// Service defines business logic related to users.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Login(ctx context.Context, email, password string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
}

type service struct {
	repo     Repository
	hasher   auth.PasswordHasher
	isAdmin  func(email string) bool
	validate *validator.Validate
	log      *slog.Logger
}

// NewService creates a new user Service. Self-registered accounts get the
// user role unless isAdmin reports the email as an administrator's.
func NewService(repo Repository, hasher auth.PasswordHasher, isAdmin func(email string) bool, log *slog.Logger) Service {
	if isAdmin == nil {
		isAdmin = func(string) bool { return false }
	}
	if log == nil {
		log = slog.Default()
	}
	return &service{
		repo:     repo,
		hasher:   hasher,
		isAdmin:  isAdmin,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log.With("component", "user"),
	}
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	req.Email = normalizeEmail(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)

	if err := s.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return nil, err
		}
		details := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			details[toSnake(fe.Field())] = fe.Tag()
		}
		return nil, ErrValidation.WithDetails(details)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	role := auth.RoleUser
	if s.isAdmin(req.Email) {
		role = auth.RoleAdmin
	}

	u := &User{
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         role,
		IsActive:     true,
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "user registered", "user_id", u.ID, "role", u.Role)
	return u, nil
}

func (s *service) Login(ctx context.Context, email, password string) (*User, error) {
	cleanEmail := normalizeEmail(email)
	if cleanEmail == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := s.repo.GetByEmail(ctx, cleanEmail)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to fetch user by email: %w", err)
	}

	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrInactiveUser
	}

	// Best effort; login does not fail on this.
	now := time.Now().UTC()
	if err := s.repo.UpdateLastLogin(ctx, u.ID, now); err != nil {
		s.log.WarnContext(ctx, "update last login failed", "user_id", u.ID, "error", err)
	} else {
		u.LastLoginAt = &now
	}

	return u, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// normalizeEmail trims spaces and lowercases the email.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toSnake(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
