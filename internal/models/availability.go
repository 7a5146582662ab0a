package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"time"
)

// SlotMap holds, per date key, the complete ordered list of open start times.
type SlotMap map[string][]string

// BookedMap holds, per date key, the meeting ids consuming slots on that date.
type BookedMap map[string][]int64

// CoachAvailability is the per-coach availability document.
type CoachAvailability struct {
	CoachID        string    `db:"coach_id" json:"coach_id"`
	AvailableSlots SlotMap   `db:"available_slots" json:"available_slots"`
	BookedSlots    BookedMap `db:"booked_slots" json:"booked_slots"`
	Revision       int64     `db:"revision" json:"revision"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// EmptyAvailability is the document of a coach who has never published slots.
func EmptyAvailability(coachID string) *CoachAvailability {
	return &CoachAvailability{CoachID: coachID, AvailableSlots: SlotMap{}, BookedSlots: BookedMap{}}
}

// SlotsFor returns the open start times for date in ascending order.
// Entries that fail to parse or fall off the grid are skipped.
func (a *CoachAvailability) SlotsFor(date Date) []TimeOfDay {
	if a == nil {
		return []TimeOfDay{}
	}
	raw := a.AvailableSlots[date.String()]
	out := make([]TimeOfDay, 0, len(raw))
	for _, value := range raw {
		t, err := ParseTimeOfDay(value)
		if err != nil || !IsValidStartTime(t) {
			continue
		}
		out = append(out, t)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// HasSlot reports whether start is open on date.
func (a *CoachAvailability) HasSlot(date Date, start TimeOfDay) bool {
	_, found := slices.BinarySearch(a.SlotsFor(date), start)
	return found
}

// WithSlot returns the complete list for date including start, and whether it changed.
func (a *CoachAvailability) WithSlot(date Date, start TimeOfDay) ([]string, bool) {
	current := a.SlotsFor(date)
	idx, found := slices.BinarySearch(current, start)
	if found {
		return formatTimes(current), false
	}
	return formatTimes(slices.Insert(current, idx, start)), true
}

// WithoutSlot returns the complete list for date excluding start, and whether it changed.
func (a *CoachAvailability) WithoutSlot(date Date, start TimeOfDay) ([]string, bool) {
	current := a.SlotsFor(date)
	idx, found := slices.BinarySearch(current, start)
	if !found {
		return formatTimes(current), false
	}
	return formatTimes(slices.Delete(current, idx, idx+1)), true
}

// BookedWith returns the complete booked list for date with meetingID appended.
func (a *CoachAvailability) BookedWith(date Date, meetingID int64) []int64 {
	var current []int64
	if a != nil {
		current = a.BookedSlots[date.String()]
	}
	out := make([]int64, 0, len(current)+1)
	out = append(out, current...)
	if !slices.Contains(out, meetingID) {
		out = append(out, meetingID)
	}
	return out
}

// Dates returns the dates in [from, to] that have open slots, ascending.
func (a *CoachAvailability) Dates(from, to Date) []Date {
	if a == nil {
		return nil
	}
	dates := make([]Date, 0, len(a.AvailableSlots))
	for key, values := range a.AvailableSlots {
		if len(values) == 0 {
			continue
		}
		d, err := ParseDate(key)
		if err != nil || d.Before(from) || to.Before(d) {
			continue
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

func formatTimes(times []TimeOfDay) []string {
	out := make([]string, len(times))
	for i, t := range times {
		out[i] = t.String()
	}
	return out
}

// Scan implements sql.Scanner for jsonb columns.
func (m *SlotMap) Scan(src interface{}) error {
	return scanJSON(src, m)
}

// Value implements driver.Valuer.
func (m SlotMap) Value() (driver.Value, error) {
	return marshalJSON(map[string][]string(m))
}

// Scan implements sql.Scanner for jsonb columns.
func (m *BookedMap) Scan(src interface{}) error {
	return scanJSON(src, m)
}

// Value implements driver.Valuer.
func (m BookedMap) Value() (driver.Value, error) {
	return marshalJSON(map[string][]int64(m))
}

func marshalJSON(v interface{}) (driver.Value, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(payload) == "null" {
		return "{}", nil
	}
	return string(payload), nil
}

func scanJSON(src interface{}, dest interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		raw = []byte("{}")
	default:
		return fmt.Errorf("cannot scan %T into %T", src, dest)
	}
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	return json.Unmarshal(raw, dest)
}

// DaySlots is the open list of one coach on one date after a read or mutation.
type DaySlots struct {
	CoachID    string      `json:"coach_id"`
	Date       Date        `json:"date"`
	StartTimes []TimeOfDay `json:"start_times"`
	Changed    bool        `json:"changed"`
}
