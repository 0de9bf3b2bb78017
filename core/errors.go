package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotBootstrapped is returned when no persisted state exists.
	ErrNotBootstrapped = errors.New("state not bootstrapped")
	// ErrPayloadTooLarge is returned when a payload exceeds the size limit without an overflow flag.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrMissingOverflowHint is returned when the overflow flag is set without a type hint.
	ErrMissingOverflowHint = errors.New("overflow flagged but type hint missing")
	// ErrUpstreamCallFailed wraps network, timeout and interruption failures from the reasoning boundary.
	ErrUpstreamCallFailed = errors.New("upstream call failed")
	// ErrMissingArtifact marks expected prior-tick input that was not found.
	ErrMissingArtifact = errors.New("missing artifact")
	// ErrAwaitingInput is returned when a human stage has no input to capture.
	ErrAwaitingInput = errors.New("awaiting human input")
	// ErrLocked is returned when another orchestrator holds the state lock.
	ErrLocked = errors.New("state locked by another orchestrator")
	// ErrMissingCredential is returned when a provider credential is absent at startup.
	ErrMissingCredential = errors.New("missing credential")
)

// Hint returns an actionable message for fatal errors, or "" when none applies.
func Hint(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotBootstrapped):
		return "run `tickmesh setup` to create the state file and agent tree"
	case errors.Is(err, ErrAwaitingInput):
		return "re-run with --message \"<prompt>\" or from an interactive terminal"
	case errors.Is(err, ErrLocked):
		return "another tickmesh process is running against this root; wait for it to finish. If none is running, delete the stale lock file named above"
	case errors.Is(err, ErrMissingCredential):
		return "export the provider API key (see tickmesh.yaml targets) or add it to the environment"
	case errors.Is(err, ErrPayloadTooLarge), errors.Is(err, ErrMissingOverflowHint):
		return "shorten the message or raise char_limit in tickmesh.yaml"
	default:
		return ""
	}
}

// CredentialError names the environment variable that was missing.
type CredentialError struct {
	Provider string
	EnvVar   string
}

// Error implements error.
func (e *CredentialError) Error() string {
	return fmt.Sprintf("%s: %s is not set (required by provider %q)", ErrMissingCredential, e.EnvVar, e.Provider)
}

// Unwrap exposes ErrMissingCredential to errors.Is.
func (e *CredentialError) Unwrap() error { return ErrMissingCredential }
