// Package types provides type definitions for the hiring workflow: applications,
// stage state, feedback, assignments, notifications and the request payloads
// accepted by the API.
package types

import (
	"github.com/google/uuid"
)

// Role is the coarse permission group a user belongs to.
type Role string

// Role constants
const (
	RoleAdmin      Role = "admin"
	RoleHR         Role = "hr"
	RoleTeamMember Role = "team_member"
	RoleRequester  Role = "requester"
	RoleCEO        Role = "ceo"
	RoleCandidate  Role = "candidate"
)

// IsElevated reports whether the role is exempt from assignment ownership,
// edit-window and edit-count restrictions.
func (r Role) IsElevated() bool {
	return r == RoleHR || r == RoleAdmin
}

// CanBeAssigned reports whether a user with this role may evaluate a stage.
func (r Role) CanBeAssigned() bool {
	return r == RoleTeamMember || r == RoleHR || r == RoleAdmin
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleHR, RoleTeamMember, RoleRequester, RoleCEO, RoleCandidate:
		return true
	}
	return false
}

// User is the identity directory's view of a person.
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Role     Role      `json:"role"`
}

// Job is the job directory's display data for a posting.
type Job struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Department string    `json:"department,omitempty"`
}

// UnknownUser is the display name used when an identity cannot be resolved.
const UnknownUser = "Unknown"
