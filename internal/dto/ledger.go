package dto

// SlotRequest carries a coach's raw date and start time input.
type SlotRequest struct {
	CoachID   string `json:"-" validate:"required"`
	Date      string `json:"date" form:"date" validate:"required"`
	StartTime string `json:"start_time" form:"start_time" validate:"required"`
}

// BookingRequest asks the ledger to reserve a slot for a student.
type BookingRequest struct {
	CoachID   string `json:"coach_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
	Date      string `json:"date" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
}

// RangeQuery selects a window of dates, either explicit bounds or a YYYY-MM month.
type RangeQuery struct {
	From  string `form:"from" binding:"required_without=Month"`
	To    string `form:"to" binding:"required_with=From"`
	Month string `form:"month" binding:"omitempty,len=7"`
}

// ExportQuery picks the agenda file format.
type ExportQuery struct {
	Format string `form:"format" binding:"omitempty,oneof=csv pdf"`
}
