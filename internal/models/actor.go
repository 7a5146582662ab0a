package models

import "github.com/golang-jwt/jwt/v5"

// Role distinguishes the two sides of the ledger.
type Role string

const (
	RoleCoach   Role = "COACH"
	RoleStudent Role = "STUDENT"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleCoach || r == RoleStudent
}

// Counterpart returns the opposite role.
func (r Role) Counterpart() Role {
	if r == RoleCoach {
		return RoleStudent
	}
	return RoleCoach
}

// ActorClaims is the bearer token payload; Subject carries the actor id.
type ActorClaims struct {
	Role Role   `json:"role"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}
