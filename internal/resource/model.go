package resource

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/reservation-backend/internal/pkg/apperror"
)

var (
	ErrNotFound   = apperror.New(http.StatusNotFound, "resource not found")
	ErrValidation = apperror.New(http.StatusBadRequest, "invalid resource attributes")
	ErrDuplicate  = apperror.New(http.StatusConflict, "a resource with this type and number already exists")
)

// Type is the kind of bookable resource.
type Type string

const (
	TypeRoom Type = "room"
	TypeHall Type = "hall"
)

// Resource represents a bookable unit (e.g., Room 101, Main Hall).
// Resources are never physically deleted; Deactivate hides them from the
// directory while keeping booking history intact.
type Resource struct {
	ID          string
	Type        Type
	Number      string
	Description string
	Capacity    int
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Filter defines parameters for listing resources.
type Filter struct {
	Type     Type
	Page     int
	PageSize int
}

func (f *Filter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}
}

func (f Filter) offset() int {
	return (f.Page - 1) * f.PageSize
}
