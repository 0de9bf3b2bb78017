// Package testutil contains helper builders used across tests to reduce
// boilerplate when laying out a tickmesh root (state file, agent tree,
// personas, prior outputs) in a temporary directory. Not intended for
// production usage.
package testutil
