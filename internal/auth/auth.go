// Package auth defines the identity model shared by the session manager,
// the route guard and the local directory.
package auth

import (
	"errors"
	"slices"
	"strings"
)

// Role is the role attached to an identity.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

var (
	// ErrInvalidCredentials is returned when no entry matches an email/credential pair.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailExists is returned when registering an email already present in the directory.
	ErrEmailExists = errors.New("email already registered")
)

// ParseRole maps a raw role value to a Role. Absent or unknown values map to RoleStudent.
func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleTeacher:
		return RoleTeacher
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleStudent
	}
}

// IsStaff reports whether the role belongs to the teacher area.
func (r Role) IsStaff() bool {
	return r == RoleTeacher || r == RoleAdmin
}

func (r Role) String() string {
	return string(r)
}

// In reports whether r is one of roles.
func (r Role) In(roles []Role) bool {
	return slices.Contains(roles, r)
}

// Identity is the signed-in user as seen by the client.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Normalize returns a copy with the role defaulted.
func (i Identity) Normalize() Identity {
	i.Role = ParseRole(string(i.Role))
	return i
}
