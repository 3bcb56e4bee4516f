package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nekogravitycat/reservation-backend/internal/auth"
	"github.com/nekogravitycat/reservation-backend/internal/booking"
	"github.com/nekogravitycat/reservation-backend/internal/pkg/request"
	"github.com/nekogravitycat/reservation-backend/internal/pkg/response"
)

type Handler struct {
	service booking.Service
}

func NewHandler(service booking.Service) *Handler {
	return &Handler{service: service}
}

// Create books the resource named in the body.
func (h *Handler) Create(c *gin.Context) {
	var body CreateBookingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}
	h.create(c, body.Resource, body)
}

// CreateForResource books the resource named in the path.
func (h *Handler) CreateForResource(c *gin.Context) {
	var body CreateBookingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}
	h.create(c, c.Param("resource_id"), body)
}

func (h *Handler) create(c *gin.Context, resourceID string, body CreateBookingRequest) {
	resourceID = strings.TrimSpace(resourceID)
	if resourceID == "" || strings.TrimSpace(body.StartDate) == "" || strings.TrimSpace(body.EndDate) == "" {
		response.Error(c, booking.ErrMissingFields)
		return
	}

	start, startIsDate, err := parseDate(body.StartDate)
	if err != nil {
		response.Error(c, err)
		return
	}
	end, _, err := parseDate(body.EndDate)
	if err != nil {
		response.Error(c, err)
		return
	}

	// A malformed id can never name a resource.
	if uuid.Validate(resourceID) != nil {
		response.Error(c, booking.ErrResourceNotFound)
		return
	}

	b, err := h.service.RequestBooking(c.Request.Context(), booking.CreateRequest{
		UserID:     auth.GetUserID(c),
		ResourceID: resourceID,
		Start:      start,
		End:        end,
		DateOnly:   startIsDate,
	})
	if err != nil {
		var conflict *booking.ConflictError
		if errors.As(err, &conflict) {
			c.JSON(http.StatusConflict, NewConflictResponse(conflict))
			return
		}
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewBookingResponse(b))
}

// List returns the caller's own bookings.
func (h *Handler) List(c *gin.Context) {
	var req ListBookingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}

	bookings, err := h.service.ListForUser(c.Request.Context(), auth.GetUserID(c), booking.Filter{Upcoming: req.Upcoming})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewBookingListResponse(bookings))
}

func (h *Handler) Get(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.Error(c, booking.ErrNotFound)
		return
	}

	b, err := h.service.GetByID(c.Request.Context(), req.ID, auth.GetIdentity(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewBookingResponse(b))
}

// Cancel releases the booking. The record stays, with status cancelled.
func (h *Handler) Cancel(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.Error(c, booking.ErrNotFound)
		return
	}

	b, err := h.service.Cancel(c.Request.Context(), req.ID, auth.GetIdentity(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewBookingResponse(b))
}

// ListForResource returns the confirmed bookings of the resource in the path.
func (h *Handler) ListForResource(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, booking.ErrResourceNotFound)
		return
	}

	var q WindowRequest
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	window, err := q.Window()
	if err != nil {
		response.Error(c, err)
		return
	}

	bookings, err := h.service.ListForResource(c.Request.Context(), uri.ID, window)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewBookingListResponse(bookings))
}

// Availability returns the free slots of the resource between from and to.
func (h *Handler) Availability(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, booking.ErrResourceNotFound)
		return
	}

	var q WindowRequest
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	window, err := q.Window()
	if err != nil {
		response.Error(c, err)
		return
	}
	if window == nil {
		response.Error(c, booking.ErrMissingFields)
		return
	}

	free, err := h.service.Availability(c.Request.Context(), uri.ID, *window)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewAvailabilityResponse(uri.ID, *window, free))
}
