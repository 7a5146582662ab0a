package models

import "time"

// Meeting is a confirmed booking of one slot by one student.
type Meeting struct {
	ID        int64     `db:"id" json:"id"`
	CoachID   string    `db:"coach_id" json:"coach_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Date      Date      `db:"date" json:"date"`
	StartTime TimeOfDay `db:"start_time" json:"start_time"`
	EndDate   Date      `db:"-" json:"end_date"`
	EndTime   TimeOfDay `db:"-" json:"end_time"`
	Rating    *float64  `db:"rating" json:"rating"`
	Notes     string    `db:"notes" json:"notes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ComputeEnd fills the derived end date and time.
func (m *Meeting) ComputeEnd() {
	m.EndDate, m.EndTime = ComputeEndTime(m.Date, m.StartTime)
}

// Slot returns the slot occupied by the meeting.
func (m Meeting) Slot() Slot {
	return Slot{CoachID: m.CoachID, Date: m.Date, StartTime: m.StartTime}
}

// IsPast reports whether the meeting day is strictly before today.
func (m Meeting) IsPast(today Date) bool {
	return m.Date.Before(today)
}

// MeetingView is a meeting enriched with the other party's display identity.
type MeetingView struct {
	Meeting
	CounterpartID   string `json:"counterpart_id"`
	CounterpartName string `json:"counterpart_name"`
}

// MeetingPartition splits an actor's meetings around today.
type MeetingPartition struct {
	Past   []MeetingView `json:"past"`
	Future []MeetingView `json:"future"`
}
