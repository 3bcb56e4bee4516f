package resource

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

type CreateRequest struct {
	Type        Type   `validate:"required,oneof=room hall"`
	Number      string `validate:"required,max=64"`
	Description string `validate:"max=500"`
	Capacity    int    `validate:"required,gt=0"`
}

type UpdateRequest struct {
	Description *string `validate:"omitempty,max=500"`
	Capacity    *int    `validate:"omitempty,gt=0"`
}

// Service is the resource directory. Authorization (admin-only mutations)
// is enforced by the HTTP layer.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Resource, error)
	// GetByID fails with ErrNotFound for absent and deactivated resources.
	GetByID(ctx context.Context, id string) (*Resource, error)
	List(ctx context.Context, filter Filter) ([]*Resource, int, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*Resource, error)
	Deactivate(ctx context.Context, id string) error
}

type service struct {
	repo     Repository
	validate *validator.Validate
}

func NewService(repo Repository) Service {
	return &service{
		repo:     repo,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Resource, error) {
	req.Number = strings.TrimSpace(req.Number)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.check(req); err != nil {
		return nil, err
	}

	res := &Resource{
		Type:        req.Type,
		Number:      req.Number,
		Description: req.Description,
		Capacity:    req.Capacity,
	}

	if err := s.repo.Create(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*Resource, error) {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !res.IsActive {
		return nil, ErrNotFound
	}
	return res, nil
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Resource, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) Update(ctx context.Context, id string, req UpdateRequest) (*Resource, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	res, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Description != nil {
		res.Description = strings.TrimSpace(*req.Description)
	}
	if req.Capacity != nil {
		res.Capacity = *req.Capacity
	}

	if err := s.repo.Update(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *service) Deactivate(ctx context.Context, id string) error {
	return s.repo.Deactivate(ctx, id)
}

// check runs struct validation and converts failures into ErrValidation
// with one detail per offending field.
func (s *service) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[strings.ToLower(fe.Field())] = describe(fe)
	}
	return ErrValidation.WithDetails(details)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}
