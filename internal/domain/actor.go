package domain

// Role is the authenticated role of an actor. Identity issuance lives
// outside this core; we only consume the (id, role) pair.
type Role string

const (
	RoleRider  Role = "rider"
	RoleDriver Role = "driver"
)

// Actor is an authenticated identity.
type Actor struct {
	ID   string
	Role Role
}
