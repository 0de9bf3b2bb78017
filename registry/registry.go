// Package registry holds the fixed roster of agent identities. It is built
// once at startup and injected into every consumer (scheduler, router,
// scaffolding) so that all of them agree on who exists and in which role.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/tickmesh/core"
)

// DefaultMeta lists the built-in meta agents in invocation order.
var DefaultMeta = []string{
	"meta_supervisor",
	"meta_planner",
	"meta_tool_orchestrator",
	"meta_topology",
	"meta_protocol_dev",
	"meta_agent_manager",
	"meta_windsurf_ops",
	"meta_documenter",
	"meta_security",
	"meta_simulator",
}

// DefaultActors lists the built-in actor agents in invocation order.
var DefaultActors = []string{
	"agent_congress",
	"agent_doj_eoir",
	"agent_dhs_ops",
	"agent_bar",
	"agent_ngos",
	"agent_judiciary",
	"agent_media",
	"agent_civsoc",
	"agent_un",
	"agent_bigtech",
	"agent_academia",
	"agent_children",
}

// Registry is an immutable roster partitioned by role.
type Registry struct {
	agents []core.AgentIdentity
	index  map[string]core.AgentIdentity
}

// New validates and freezes a roster. IDs must be unique, non-empty and free
// of path separators; exactly one human must be present.
func New(agents ...core.AgentIdentity) (*Registry, error) {
	r := &Registry{
		agents: make([]core.AgentIdentity, 0, len(agents)),
		index:  make(map[string]core.AgentIdentity, len(agents)),
	}
	humans := 0
	for _, a := range agents {
		if err := validateID(a.ID); err != nil {
			return nil, err
		}
		if !a.Role.Valid() {
			return nil, fmt.Errorf("registry: agent %q has unknown role %q", a.ID, a.Role)
		}
		if _, dup := r.index[a.ID]; dup {
			return nil, fmt.Errorf("registry: duplicate agent %q", a.ID)
		}
		if a.Role == core.RoleHuman {
			humans++
		}
		r.agents = append(r.agents, a)
		r.index[a.ID] = a
	}
	if humans != 1 {
		return nil, fmt.Errorf("registry: expected exactly one human agent, got %d", humans)
	}
	return r, nil
}

// FromLists builds a registry with the human plus the given meta and actor
// IDs. Empty lists fall back to the built-in roster.
func FromLists(meta, actors []string) (*Registry, error) {
	if len(meta) == 0 {
		meta = DefaultMeta
	}
	if len(actors) == 0 {
		actors = DefaultActors
	}
	agents := make([]core.AgentIdentity, 0, len(meta)+len(actors)+1)
	for _, id := range actors {
		agents = append(agents, core.AgentIdentity{ID: id, Role: core.RoleActor})
	}
	for _, id := range meta {
		agents = append(agents, core.AgentIdentity{ID: id, Role: core.RoleMeta})
	}
	agents = append(agents, core.AgentIdentity{ID: core.HumanID, Role: core.RoleHuman})
	return New(agents...)
}

// Default returns the built-in roster.
func Default() *Registry {
	r, err := FromLists(nil, nil)
	if err != nil {
		panic(err)
	}
	return r
}

// All returns every identity in registration order.
func (r *Registry) All() []core.AgentIdentity {
	return append([]core.AgentIdentity(nil), r.agents...)
}

// ForRole returns the identities with role, in registration order.
func (r *Registry) ForRole(role core.Role) []core.AgentIdentity {
	var out []core.AgentIdentity
	for _, a := range r.agents {
		if a.Role == role {
			out = append(out, a)
		}
	}
	return out
}

// ForStage resolves the agent set a stage invokes. Human and idle stages
// resolve to nothing.
func (r *Registry) ForStage(stage core.Stage) []core.AgentIdentity {
	spec := stage.Spec()
	if spec.Kind != core.KindAgents {
		return nil
	}
	return r.ForRole(spec.Role)
}

// Human returns the single human identity.
func (r *Registry) Human() core.AgentIdentity {
	return r.ForRole(core.RoleHuman)[0]
}

// Get looks up an identity by ID.
func (r *Registry) Get(id string) (core.AgentIdentity, bool) {
	a, ok := r.index[id]
	return a, ok
}

// IDs returns every agent ID sorted lexically.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.agents))
	for _, a := range r.agents {
		ids = append(ids, a.ID)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the roster size.
func (r *Registry) Len() int { return len(r.agents) }

func validateID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("registry: empty agent id")
	case id != strings.TrimSpace(id):
		return fmt.Errorf("registry: agent id %q has surrounding whitespace", id)
	case strings.ContainsAny(id, `/\`) || id == "." || id == "..":
		return fmt.Errorf("registry: agent id %q is not a valid directory name", id)
	}
	return nil
}
