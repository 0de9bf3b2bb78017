package core

import (
	"encoding/json"
	"time"
)

// Failure markers prefix the Result of a cycle record whose invocation did not
// produce a usable reply.
const (
	MarkerError       = "[ERROR]"
	MarkerInterrupted = "[INTERRUPTED]"
	MarkerRejected    = "[REJECTED]"
)

// FailureKind classifies a recorded failure.
type FailureKind string

const (
	FailureNone        FailureKind = ""
	FailureUpstream    FailureKind = "upstream"
	FailureTimeout     FailureKind = "timeout"
	FailureInterrupted FailureKind = "interrupted"
	FailureRejected    FailureKind = "rejected"
)

// CycleRecord summarises one agent's activity for one tick. Either the
// structured Thought/Action/Result triple or the Combined blob is populated.
type CycleRecord struct {
	Tick     int
	Agent    string
	Thought  string
	Action   string
	Result   string
	Combined string
	Failure  FailureKind
	Model    string
	RunID    string
	Recorded time.Time
}

// Failed reports whether the record carries a failure marker.
func (r CycleRecord) Failed() bool { return r.Failure != FailureNone }

// Text returns the record's result text, whichever form it was written in.
func (r CycleRecord) Text() string {
	if r.Combined != "" {
		return r.Combined
	}
	return r.Result
}

type cycleWire struct {
	Thought             *string     `json:"thought,omitempty"`
	Action              *string     `json:"action,omitempty"`
	Result              *string     `json:"result,omitempty"`
	ThoughtActionResult *string     `json:"thought_action_result,omitempty"`
	Tick                int         `json:"tick,omitempty"`
	Agent               string      `json:"agent,omitempty"`
	Model               string      `json:"model,omitempty"`
	Failure             FailureKind `json:"failure,omitempty"`
	RunID               string      `json:"run_id,omitempty"`
	RecordedAt          *time.Time  `json:"recordedAt,omitempty"`
}

// MarshalJSON writes the combined form when Combined is set, otherwise the
// structured {thought, action, result} triple.
func (r CycleRecord) MarshalJSON() ([]byte, error) {
	w := cycleWire{Tick: r.Tick, Agent: r.Agent, Model: r.Model, Failure: r.Failure, RunID: r.RunID}
	if r.Combined != "" {
		w.ThoughtActionResult = &r.Combined
	} else {
		w.Thought, w.Action, w.Result = &r.Thought, &r.Action, &r.Result
	}
	if !r.Recorded.IsZero() {
		ts := r.Recorded.UTC()
		w.RecordedAt = &ts
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts either persisted form.
func (r *CycleRecord) UnmarshalJSON(data []byte) error {
	var w cycleWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = CycleRecord{Tick: w.Tick, Agent: w.Agent, Model: w.Model, Failure: w.Failure, RunID: w.RunID}
	if w.ThoughtActionResult != nil {
		r.Combined = *w.ThoughtActionResult
	}
	if w.Thought != nil {
		r.Thought = *w.Thought
	}
	if w.Action != nil {
		r.Action = *w.Action
	}
	if w.Result != nil {
		r.Result = *w.Result
	}
	if w.RecordedAt != nil {
		r.Recorded = *w.RecordedAt
	}
	return nil
}
