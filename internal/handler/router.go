package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/DanialBetres/stepful-scheduling/internal/middleware"
	"github.com/DanialBetres/stepful-scheduling/internal/models"
	"github.com/DanialBetres/stepful-scheduling/internal/service"
)

// Handlers bundles the route handlers registered under the API prefix.
type Handlers struct {
	Coaches      *CoachHandler
	Availability *AvailabilityHandler
	Bookings     *BookingHandler
	Meetings     *MeetingHandler
	Metrics      *MetricsHandler
}

// RegisterRoutes mounts probes at the root and the ledger API under prefix.
// A nil verifier disables actor checks.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, verifier *service.TokenVerifier) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)
	api.GET("/coaches", h.Coaches.List)
	api.GET("/coaches/:coachId", h.Coaches.Get)
	api.GET("/coaches/:coachId/availability", h.Availability.ListForDate)
	api.GET("/coaches/:coachId/availability/range", h.Availability.ListRange)

	secured := api.Group("")
	secured.Use(middleware.Authenticate(verifier))

	coachOnly := middleware.RequireActor(models.RoleCoach, "coachId")
	studentOnly := middleware.RequireActor(models.RoleStudent, "studentId")

	secured.POST("/coaches/:coachId/availability", coachOnly, h.Availability.Add)
	secured.DELETE("/coaches/:coachId/availability", coachOnly, h.Availability.Remove)
	secured.POST("/bookings", h.Bookings.Book)
	secured.GET("/coaches/:coachId/meetings", coachOnly, h.Meetings.ForCoach)
	secured.GET("/coaches/:coachId/meetings/export", coachOnly, h.Meetings.ExportForCoach)
	secured.GET("/students/:studentId/meetings", studentOnly, h.Meetings.ForStudent)
	secured.GET("/students/:studentId/meetings/export", studentOnly, h.Meetings.ExportForStudent)
}
