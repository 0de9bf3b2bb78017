// Package mailbox implements the file-system message router shared by all
// agents. Every agent owns three subtrees below the agents directory:
//
//	<agents>/<id>/inbox/tik<N>/<file>
//	<agents>/<id>/outbox/tik<N>/<file>
//	<agents>/<id>/cycles/<N>.json
//
// The directory tree is the only channel between agents. Writes pass the
// size guard and are atomic (temp file + rename); reads are snapshots taken
// at call time with no caching, so a later stage always observes everything
// an earlier stage persisted.
package mailbox
