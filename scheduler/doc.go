// Package scheduler advances the orchestration by exactly one stage per
// Step. The stage is derived from the persisted tick; human stages capture
// a prompt or report that input is pending, agent stages gather the previous
// tick's outputs and invoke the role-scoped agent set sequentially. The tick
// is advanced once, after the whole stage has been persisted.
package scheduler
