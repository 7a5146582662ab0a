package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	// SlotGranularity is the start-time grid in minutes.
	SlotGranularity = 30
	// SlotLength is the duration of every slot in minutes.
	SlotLength = 120

	minutesPerDay = 24 * 60
)

// TimeOfDay is minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay parses "H:MM" or "HH:MM". It checks shape only, not the grid.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	value = strings.TrimSpace(value)
	hh, mm, ok := strings.Cut(value, ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 || !allDigits(hh) || !allDigits(mm) {
		return 0, fmt.Errorf("invalid time of day %q", value)
	}
	hours, err := strconv.Atoi(hh)
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}
	minutes, err := strconv.Atoi(mm)
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid minute in %q", value)
	}
	return TimeOfDay(hours*60 + minutes), nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// MustTimeOfDay is ParseTimeOfDay for literals.
func MustTimeOfDay(value string) TimeOfDay {
	t, err := ParseTimeOfDay(value)
	if err != nil {
		panic(err)
	}
	return t
}

// IsValidStartTime reports whether t lies on the 30-minute grid within a day.
func IsValidStartTime(t TimeOfDay) bool {
	return t >= 0 && t < minutesPerDay && int(t)%SlotGranularity == 0
}

// ComputeEndTime returns the end of a slot starting at start on date. Slots
// beginning at 22:00 or later end on the following day.
func ComputeEndTime(date Date, start TimeOfDay) (Date, TimeOfDay) {
	end := int(start) + SlotLength
	return date.AddDays(end / minutesPerDay), TimeOfDay(end % minutesPerDay)
}

// StartTimes lists every valid start time in ascending order.
func StartTimes() []TimeOfDay {
	out := make([]TimeOfDay, 0, minutesPerDay/SlotGranularity)
	for t := 0; t < minutesPerDay; t += SlotGranularity {
		out = append(out, TimeOfDay(t))
	}
	return out
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// MarshalJSON encodes as "HH:MM".
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes "HH:MM".
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Scan implements sql.Scanner for text columns.
func (t *TimeOfDay) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", src)
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value implements driver.Valuer.
func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String(), nil
}

// Slot identifies a two-hour offering.
type Slot struct {
	CoachID   string    `json:"coach_id"`
	Date      Date      `json:"date"`
	StartTime TimeOfDay `json:"start_time"`
}

// End returns the end date and time of the slot.
func (s Slot) End() (Date, TimeOfDay) {
	return ComputeEndTime(s.Date, s.StartTime)
}

// OpenSlot is one bookable entry in a range listing.
type OpenSlot struct {
	Date      Date      `json:"date"`
	StartTime TimeOfDay `json:"start_time"`
	EndDate   Date      `json:"end_date"`
	EndTime   TimeOfDay `json:"end_time"`
}

// NewOpenSlot fills in the derived end of a slot.
func NewOpenSlot(date Date, start TimeOfDay) OpenSlot {
	endDate, endTime := ComputeEndTime(date, start)
	return OpenSlot{Date: date, StartTime: start, EndDate: endDate, EndTime: endTime}
}
