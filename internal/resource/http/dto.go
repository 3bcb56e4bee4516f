package http

import (
	"time"

	"github.com/nekogravitycat/reservation-backend/internal/pkg/request"
	"github.com/nekogravitycat/reservation-backend/internal/resource"
)

type ResourceResponse struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Number      string    `json:"number"`
	Description string    `json:"description"`
	Capacity    int       `json:"capacity"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func NewResponse(r *resource.Resource) ResourceResponse {
	return ResourceResponse{
		ID:          r.ID,
		Type:        string(r.Type),
		Number:      r.Number,
		Description: r.Description,
		Capacity:    r.Capacity,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type ListResourcesRequest struct {
	request.ListParams
	Type string `form:"type" binding:"omitempty,oneof=room hall"`
}

// CreateRequest leaves attribute rules to the service so that every caller
// gets the same field-level details.
type CreateRequest struct {
	Type        string `json:"type"`
	Number      string `json:"number"`
	Description string `json:"description"`
	Capacity    int    `json:"capacity"`
}

type UpdateRequest struct {
	Description *string `json:"description"`
	Capacity    *int    `json:"capacity"`
}
