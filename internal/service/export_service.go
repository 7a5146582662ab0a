package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/DanialBetres/stepful-scheduling/internal/models"
	appErrors "github.com/DanialBetres/stepful-scheduling/pkg/errors"
	"github.com/DanialBetres/stepful-scheduling/pkg/export"
)

type meetingPartitioner interface {
	ListMeetingsFor(ctx context.Context, actorID string, role models.Role) (*models.MeetingPartition, error)
}

// ExportFile is a rendered agenda ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders an actor's meetings as CSV or PDF.
type ExportService struct {
	meetings  meetingPartitioner
	renderers map[string]export.Renderer
}

// NewExportService registers the CSV and PDF renderers.
func NewExportService(meetings meetingPartitioner) *ExportService {
	renderers := map[string]export.Renderer{}
	for _, r := range []export.Renderer{export.NewCSV(), export.NewPDF()} {
		renderers[r.Extension()] = r
	}
	return &ExportService{meetings: meetings, renderers: renderers}
}

// ExportMeetings renders past and upcoming meetings in one table. Format defaults to csv.
func (s *ExportService) ExportMeetings(ctx context.Context, actorID string, role models.Role, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnsupported, fmt.Sprintf("format %q is not supported", format))
	}

	partition, err := s.meetings.ListMeetingsFor(ctx, actorID, role)
	if err != nil {
		return nil, err
	}

	table := export.Table{
		Title:   fmt.Sprintf("Meetings for %s %s", strings.ToLower(string(role)), actorID),
		Columns: []string{"Meeting", "Date", "Start", "End", "With", "When", "Rating", "Notes"},
	}
	appendRows := func(views []models.MeetingView, when string) {
		for _, v := range views {
			end := v.EndTime.String()
			if v.EndDate != v.Date {
				end = v.EndDate.String() + " " + end
			}
			rating := ""
			if v.Rating != nil {
				rating = strconv.FormatFloat(*v.Rating, 'f', -1, 64)
			}
			table.Rows = append(table.Rows, []string{
				strconv.FormatInt(v.ID, 10),
				v.Date.String(),
				v.StartTime.String(),
				end,
				v.CounterpartName,
				when,
				rating,
				v.Notes,
			})
		}
	}
	appendRows(partition.Past, "past")
	appendRows(partition.Future, "upcoming")

	body, err := renderer.Render(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("meetings-%s-%s.%s", strings.ToLower(string(role)), actorID, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}
