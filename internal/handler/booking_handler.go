package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/DanialBetres/stepful-scheduling/internal/dto"
	"github.com/DanialBetres/stepful-scheduling/internal/middleware"
	"github.com/DanialBetres/stepful-scheduling/internal/models"
	appErrors "github.com/DanialBetres/stepful-scheduling/pkg/errors"
	"github.com/DanialBetres/stepful-scheduling/pkg/response"
)

type bookingService interface {
	Book(ctx context.Context, req dto.BookingRequest) (*models.Meeting, error)
}

// BookingHandler turns an open slot into a meeting.
type BookingHandler struct {
	service bookingService
}

// NewBookingHandler constructs a booking handler.
func NewBookingHandler(service bookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// Book godoc
// @Summary Book an open slot
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body dto.BookingRequest true "Booking"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Book(c *gin.Context) {
	var req dto.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid booking payload"))
		return
	}
	if !middleware.Owns(middleware.ActorFromContext(c), models.RoleStudent, req.StudentID) {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "students may only book for themselves"))
		return
	}
	meeting, err := h.service.Book(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, meeting)
}
