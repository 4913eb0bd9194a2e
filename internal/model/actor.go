package model

// Role is the capacity in which an authenticated user acts
type Role string

const (
	RoleClient    Role = "client"
	RoleCraftsman Role = "craftsman"
	RoleAdmin     Role = "admin"
)

// IsValid returns true for known roles
func (r Role) IsValid() bool {
	return r == RoleClient || r == RoleCraftsman || r == RoleAdmin
}

// Actor is the authenticated caller of a lifecycle operation
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// IsAdmin returns true for administrators
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// RoleIn returns the role the actor plays on an engagement.
// Returns false if the actor is not a party.
func (a Actor) RoleIn(e *Engagement) (Role, bool) {
	switch {
	case a.ID == "":
		return "", false
	case e.ClientID == a.ID:
		return RoleClient, true
	case e.CraftsmanID == a.ID:
		return RoleCraftsman, true
	}
	return "", false
}
