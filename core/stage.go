package core

import "fmt"

// Stage is one of the five fixed roles a tick plays in the repeating cycle.
// StageIdle is only observed for tick 0, before anything has run.
type Stage int

const (
	// StageIdle is the bootstrap state before the first stage has run.
	StageIdle Stage = iota
	// StageHumanKickoff captures the opening human prompt.
	StageHumanKickoff
	// StageMetaAnalysis runs every meta agent over the human kickoff.
	StageMetaAnalysis
	// StageHumanPlusMeta captures a second human prompt alongside the meta analysis.
	StageHumanPlusMeta
	// StageActorAction runs every actor agent over the routed instructions.
	StageActorAction
	// StageMetaReview runs every meta agent over the actor outputs.
	StageMetaReview
)

// CycleLength is the number of stages in one full cycle.
const CycleLength = 5

// StageKind distinguishes stages that wait on a human from stages that invoke agents.
type StageKind int

const (
	// KindIdle marks the idle pseudo-stage.
	KindIdle StageKind = iota
	// KindHuman stages block for human input and never invoke agents.
	KindHuman
	// KindAgents stages invoke a role-scoped agent set.
	KindAgents
)

// StageSpec describes what a stage requires and who acts in it.
type StageSpec struct {
	Stage Stage
	Name  string
	Kind  StageKind
	// Role is the agent set invoked for KindAgents stages. Empty for human stages.
	Role Role
	// Input names the artifact the stage consumes from the previous tick.
	Input string
}

// Stages is the exhaustive transition table, indexed by Stage.
var Stages = [CycleLength + 1]StageSpec{
	StageIdle:          {Stage: StageIdle, Name: "idle", Kind: KindIdle},
	StageHumanKickoff:  {Stage: StageHumanKickoff, Name: "human-kickoff", Kind: KindHuman},
	StageMetaAnalysis:  {Stage: StageMetaAnalysis, Name: "meta-analysis", Kind: KindAgents, Role: RoleMeta, Input: "human kickoff"},
	StageHumanPlusMeta: {Stage: StageHumanPlusMeta, Name: "human-plus-meta", Kind: KindHuman, Input: "meta analysis"},
	StageActorAction:   {Stage: StageActorAction, Name: "actor-action", Kind: KindAgents, Role: RoleActor, Input: "routing output"},
	StageMetaReview:    {Stage: StageMetaReview, Name: "meta-review", Kind: KindAgents, Role: RoleMeta, Input: "actor outputs"},
}

// StageFor derives the stage a tick plays. Tick 0 (and any negative value) is idle.
func StageFor(tick int) Stage {
	if tick < 1 {
		return StageIdle
	}
	return Stage((tick-1)%CycleLength + 1)
}

// Spec returns the transition table entry for s.
func (s Stage) Spec() StageSpec {
	if !s.Valid() {
		return Stages[StageIdle]
	}
	return Stages[s]
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool { return s >= StageIdle && s <= StageMetaReview }

// IsHuman reports whether the stage waits on human input.
func (s Stage) IsHuman() bool { return s.Spec().Kind == KindHuman }

// String returns the stage name.
func (s Stage) String() string {
	if !s.Valid() {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return Stages[s].Name
}
