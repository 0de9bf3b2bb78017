package core

// HumanID is the identity of the single human participant. Human-authored
// artifacts are filed under this agent's outbox.
const HumanID = "human"

// KickoffFilename is the artifact written for a captured human prompt.
const KickoffFilename = "kickoff.txt"

// ResponseFilename is the outbox artifact holding an agent's raw model reply.
const ResponseFilename = "llm.txt"

// AssignmentFilename is the inbox artifact holding an explicitly routed task.
const AssignmentFilename = "assignment.txt"

// ValidTick reports whether tick is a usable tick value (non-negative).
func ValidTick(tick int) bool { return tick >= 0 }

// MetaAnalysisFilename holds the meta outputs shown to the human at the
// human-plus-meta stage, filed next to the kickoff.
const MetaAnalysisFilename = "meta_analysis.md"

// AssignmentsFilename is the optional routing table under the protocols directory.
const AssignmentsFilename = "next_assignments.json"
