package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DanialBetres/stepful-scheduling/internal/models"
	"github.com/DanialBetres/stepful-scheduling/pkg/response"
)

type coachDirectoryService interface {
	List(ctx context.Context) ([]models.Coach, error)
	Profile(ctx context.Context, coachID string) (*models.CoachProfile, error)
}

// CoachHandler serves the coach picker.
type CoachHandler struct {
	service coachDirectoryService
}

// NewCoachHandler constructs a coach handler.
func NewCoachHandler(service coachDirectoryService) *CoachHandler {
	return &CoachHandler{service: service}
}

// List godoc
// @Summary List coaches
// @Tags Coaches
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /coaches [get]
func (h *CoachHandler) List(c *gin.Context) {
	coaches, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, coaches, map[string]interface{}{"count": len(coaches)})
}

// Get godoc
// @Summary Coach profile with upcoming open slots
// @Tags Coaches
// @Produce json
// @Param coachId path string true "Coach ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /coaches/{coachId} [get]
func (h *CoachHandler) Get(c *gin.Context) {
	coachID, ok := pathID(c, "coachId")
	if !ok {
		return
	}
	profile, err := h.service.Profile(c.Request.Context(), coachID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile)
}
