package memory

import "sync"

// InMemoryStore is a process-local Store useful for tests and dry runs.
//
// Concurrency: protected by RWMutex.
type InMemoryStore struct {
	mu       sync.RWMutex
	personas map[string]Persona
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{personas: make(map[string]Persona)}
}

// Put registers or replaces the persona for agent.
func (m *InMemoryStore) Put(agent, systemPrompt, memory string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.personas[agent] = Persona{Agent: agent, SystemPrompt: systemPrompt, Memory: memory}
}

// Load implements Store. Unknown agents get an empty persona.
func (m *InMemoryStore) Load(agent string) (Persona, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.personas[agent]
	if !ok {
		return Persona{Agent: agent}, nil
	}
	return p, nil
}
