package core

// Direction selects an agent's inbox or outbox subtree.
type Direction string

const (
	// Inbox holds messages an agent is to receive for a tick.
	Inbox Direction = "inbox"
	// Outbox holds messages an agent produced for a tick.
	Outbox Direction = "outbox"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool { return d == Inbox || d == Outbox }

// Message is a single mailbox entry addressed by (Agent, Direction, Tick, Filename).
// Messages are never deleted; history accumulates per tick.
type Message struct {
	Agent     string    `json:"agent"`
	Tick      int       `json:"tick"`
	Direction Direction `json:"direction"`
	Filename  string    `json:"filename"`
	Content   string    `json:"content"`
}

// Provenance returns the "<agent>/<filename>" label used when messages are merged.
func (m Message) Provenance() string { return m.Agent + "/" + m.Filename }
