// Package sizeguard enforces the outbound message size policy. It is pure:
// Enforce inspects a payload and returns a *Violation or nil.
package sizeguard

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hupe1980/tickmesh/core"
)

// Limit is the default maximum payload length in characters.
const Limit = 8000

// Options tune a single Enforce call.
type Options struct {
	// Limit overrides the default character limit when positive.
	Limit int
	// Overflow marks a payload that is allowed to exceed Limit.
	Overflow bool
	// Hint is the content type of an overflowing payload; mandatory when Overflow is set.
	Hint string
}

// Option mutates Options.
type Option func(o *Options)

// WithLimit overrides the character limit.
func WithLimit(n int) Option { return func(o *Options) { o.Limit = n } }

// WithOverflow flags the payload as an overflow file of the given type.
func WithOverflow(hint string) Option {
	return func(o *Options) {
		o.Overflow = true
		o.Hint = hint
	}
}

// Violation describes a rejected payload. It unwraps to
// core.ErrPayloadTooLarge or core.ErrMissingOverflowHint.
type Violation struct {
	Length   int
	Limit    int
	Overflow bool
	Hint     string
}

// Error implements error.
func (v *Violation) Error() string {
	if v.Overflow {
		return fmt.Sprintf("%s (payload %d chars, limit %d)", core.ErrMissingOverflowHint, v.Length, v.Limit)
	}
	return fmt.Sprintf("%s: payload size %d exceeds %d chars without overflow flag", core.ErrPayloadTooLarge, v.Length, v.Limit)
}

// Unwrap maps the violation onto the shared taxonomy.
func (v *Violation) Unwrap() error {
	if v.Overflow {
		return core.ErrMissingOverflowHint
	}
	return core.ErrPayloadTooLarge
}

// Enforce validates payload against the policy: length <= limit always
// passes; beyond the limit an overflow flag with a non-empty hint is required.
func Enforce(payload string, optFns ...Option) error {
	opts := Options{Limit: Limit}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Limit <= 0 {
		opts.Limit = Limit
	}
	length := utf8.RuneCountInString(payload)
	if length <= opts.Limit {
		return nil
	}
	if !opts.Overflow {
		return &Violation{Length: length, Limit: opts.Limit}
	}
	if strings.TrimSpace(opts.Hint) == "" {
		return &Violation{Length: length, Limit: opts.Limit, Overflow: true}
	}
	return nil
}
