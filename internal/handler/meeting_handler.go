package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DanialBetres/stepful-scheduling/internal/dto"
	"github.com/DanialBetres/stepful-scheduling/internal/models"
	"github.com/DanialBetres/stepful-scheduling/internal/service"
	"github.com/DanialBetres/stepful-scheduling/pkg/response"
)

type meetingQueryService interface {
	ListMeetingsFor(ctx context.Context, actorID string, role models.Role) (*models.MeetingPartition, error)
}

type meetingExportService interface {
	ExportMeetings(ctx context.Context, actorID string, role models.Role, format string) (*service.ExportFile, error)
}

// MeetingHandler lists and exports an actor's meetings.
type MeetingHandler struct {
	meetings meetingQueryService
	exports  meetingExportService
}

// NewMeetingHandler constructs a meeting handler.
func NewMeetingHandler(meetings meetingQueryService, exports meetingExportService) *MeetingHandler {
	return &MeetingHandler{meetings: meetings, exports: exports}
}

// ForCoach godoc
// @Summary Past and upcoming meetings of a coach
// @Tags Meetings
// @Produce json
// @Param coachId path string true "Coach ID"
// @Success 200 {object} response.Envelope
// @Router /coaches/{coachId}/meetings [get]
func (h *MeetingHandler) ForCoach(c *gin.Context) {
	h.list(c, models.RoleCoach, "coachId")
}

// ForStudent godoc
// @Summary Past and upcoming meetings of a student
// @Tags Meetings
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/meetings [get]
func (h *MeetingHandler) ForStudent(c *gin.Context) {
	h.list(c, models.RoleStudent, "studentId")
}

// ExportForCoach godoc
// @Summary Download a coach's meetings
// @Tags Meetings
// @Produce text/csv,application/pdf
// @Param coachId path string true "Coach ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /coaches/{coachId}/meetings/export [get]
func (h *MeetingHandler) ExportForCoach(c *gin.Context) {
	h.export(c, models.RoleCoach, "coachId")
}

// ExportForStudent godoc
// @Summary Download a student's meetings
// @Tags Meetings
// @Produce text/csv,application/pdf
// @Param studentId path string true "Student ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /students/{studentId}/meetings/export [get]
func (h *MeetingHandler) ExportForStudent(c *gin.Context) {
	h.export(c, models.RoleStudent, "studentId")
}

func (h *MeetingHandler) list(c *gin.Context, role models.Role, param string) {
	actorID, ok := pathID(c, param)
	if !ok {
		return
	}
	partition, err := h.meetings.ListMeetingsFor(c.Request.Context(), actorID, role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, partition, map[string]interface{}{
		"past":   len(partition.Past),
		"future": len(partition.Future),
	})
}

func (h *MeetingHandler) export(c *gin.Context, role models.Role, param string) {
	actorID, ok := pathID(c, param)
	if !ok {
		return
	}
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "format must be csv or pdf"))
		return
	}
	file, err := h.exports.ExportMeetings(c.Request.Context(), actorID, role, query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
