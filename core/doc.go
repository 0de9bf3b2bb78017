// Package core provides the foundational domain types shared by every
// tickmesh component. It defines:
//
//   - Stages (the five-step cycle a tick plays, derived purely from the tick)
//   - Agent identities and their roles (human, meta, actor)
//   - Messages (immutable mailbox entries addressed by agent, direction, tick, filename)
//   - Cycle records (one structured summary per agent per tick)
//   - The error taxonomy used across state, routing and invocation
//
// The package keeps persistence and orchestration out of scope so that the
// state store, mailbox router, invoker and scheduler can depend on a small set
// of stable types without importing one another.
package core
