package core

import "fmt"

// Role partitions the roster. Roles decide which stages an agent acts in.
type Role string

const (
	// RoleHuman is the single human participant.
	RoleHuman Role = "human"
	// RoleMeta agents analyse, route and review.
	RoleMeta Role = "meta"
	// RoleActor agents act on routed instructions.
	RoleActor Role = "actor"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleHuman, RoleMeta, RoleActor:
		return true
	default:
		return false
	}
}

// AgentIdentity names a participant and its role. Identities are immutable
// once the registry is built.
type AgentIdentity struct {
	ID   string `json:"id" yaml:"id"`
	Role Role   `json:"role" yaml:"role"`
}

// String implements fmt.Stringer.
func (a AgentIdentity) String() string { return fmt.Sprintf("%s(%s)", a.ID, a.Role) }
