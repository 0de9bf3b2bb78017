// Package state persists the global tick record, the single source of truth
// for "what tick are we on". All mutation flows through Advance (or
// MarkAwaiting for blocked human stages) and every write is atomic: readers
// observe either the previous file or the new one, never a partial write.
//
// A FileStore also provides an advisory single-writer lock so two
// orchestrators can never advance the same root concurrently.
package state
