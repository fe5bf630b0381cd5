package domain

import "github.com/google/uuid"

// Role is the authorization role attached to a verified caller
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleModerator
}

// Actor is the verified (user id, role) pair supplied by the authorization layer
type Actor struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
}

// IsModerator reports whether the actor may moderate reviews
func (a Actor) IsModerator() bool {
	return a.Role == RoleModerator
}
