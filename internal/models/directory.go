package models

import (
	"strings"
	"time"
)

// Coach is a directory entry for a slot provider.
type Coach struct {
	ID        string    `db:"id" json:"id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// DisplayName joins first and last name.
func (c Coach) DisplayName() string {
	return displayName(c.FirstName, c.LastName)
}

// Student is a directory entry for a slot consumer.
type Student struct {
	ID        string    `db:"id" json:"id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// DisplayName joins first and last name.
func (s Student) DisplayName() string {
	return displayName(s.FirstName, s.LastName)
}

// CoachProfile is a coach with the open slots of each upcoming date.
type CoachProfile struct {
	Coach
	Availability map[string][]TimeOfDay `json:"availability"`
}

func displayName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}
