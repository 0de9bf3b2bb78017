// Package memory loads the per-agent context handed to the reasoning
// boundary: the persona (system_prompt.md) and the free-form memory notes
// (memory.md). Callers depend on the Store interface and pick FileStore for
// the on-disk agent tree or InMemoryStore in tests.
package memory
