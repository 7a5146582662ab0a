package handler

import (
	"context"
	"iter"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DanialBetres/stepful-scheduling/internal/dto"
	"github.com/DanialBetres/stepful-scheduling/internal/models"
	"github.com/DanialBetres/stepful-scheduling/internal/service"
	"github.com/DanialBetres/stepful-scheduling/pkg/response"
)

type availabilityService interface {
	AddSlot(ctx context.Context, req dto.SlotRequest) (*models.DaySlots, error)
	RemoveSlot(ctx context.Context, req dto.SlotRequest) (*models.DaySlots, error)
	ListSlotsForDate(ctx context.Context, coachID, rawDate string) (*models.DaySlots, error)
	ListSlotsInRange(ctx context.Context, coachID string, from, to models.Date) (iter.Seq2[models.Date, models.TimeOfDay], error)
}

// AvailabilityHandler exposes a coach's open slots.
type AvailabilityHandler struct {
	service availabilityService
}

// NewAvailabilityHandler constructs an availability handler.
func NewAvailabilityHandler(service availabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: service}
}

// RangeDay groups the open start times of one date.
type RangeDay struct {
	Date       models.Date        `json:"date"`
	StartTimes []models.TimeOfDay `json:"start_times"`
}

// ListForDate godoc
// @Summary Open start times of a coach on one date
// @Tags Availability
// @Produce json
// @Param coachId path string true "Coach ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /coaches/{coachId}/availability [get]
func (h *AvailabilityHandler) ListForDate(c *gin.Context) {
	coachID, ok := pathID(c, "coachId")
	if !ok {
		return
	}
	day, err := h.service.ListSlotsForDate(c.Request.Context(), coachID, c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, day)
}

// ListRange godoc
// @Summary Open slots of a coach across a date range or month
// @Tags Availability
// @Produce json
// @Param coachId path string true "Coach ID"
// @Param from query string false "First date (YYYY-MM-DD)"
// @Param to query string false "Last date (YYYY-MM-DD)"
// @Param month query string false "Month (YYYY-MM)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /coaches/{coachId}/availability/range [get]
func (h *AvailabilityHandler) ListRange(c *gin.Context) {
	coachID, ok := pathID(c, "coachId")
	if !ok {
		return
	}
	var query dto.RangeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "provide from and to, or month"))
		return
	}
	from, to, err := service.ResolveRange(query)
	if err != nil {
		response.Error(c, err)
		return
	}
	slots, err := h.service.ListSlotsInRange(c.Request.Context(), coachID, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}

	days := make([]RangeDay, 0)
	total := 0
	for date, start := range slots {
		if n := len(days); n == 0 || days[n-1].Date != date {
			days = append(days, RangeDay{Date: date})
		}
		days[len(days)-1].StartTimes = append(days[len(days)-1].StartTimes, start)
		total++
	}
	response.JSON(c, http.StatusOK, days, map[string]interface{}{
		"from":  from.String(),
		"to":    to.String(),
		"slots": total,
	})
}

// Add godoc
// @Summary Open a slot
// @Tags Availability
// @Accept json
// @Produce json
// @Param coachId path string true "Coach ID"
// @Param payload body dto.SlotRequest true "Slot"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /coaches/{coachId}/availability [post]
func (h *AvailabilityHandler) Add(c *gin.Context) {
	coachID, ok := pathID(c, "coachId")
	if !ok {
		return
	}
	var req dto.SlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid slot payload"))
		return
	}
	req.CoachID = coachID
	day, err := h.service.AddSlot(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, day)
}

// Remove godoc
// @Summary Withdraw an open slot
// @Tags Availability
// @Produce json
// @Param coachId path string true "Coach ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param start_time query string true "Start time (HH:MM)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /coaches/{coachId}/availability [delete]
func (h *AvailabilityHandler) Remove(c *gin.Context) {
	coachID, ok := pathID(c, "coachId")
	if !ok {
		return
	}
	var req dto.SlotRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, bindError(err, "invalid slot query"))
		return
	}
	req.CoachID = coachID
	day, err := h.service.RemoveSlot(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, day)
}
