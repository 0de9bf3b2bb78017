// Package tier maps the capability tag declared in an agent's persona to a
// concrete invocation target. Selection is deterministic and never fails:
// a missing or unmapped tag resolves to the fallback target.
package tier

import (
	"regexp"
	"sort"
	"strings"
)

// Tier is a capability class tag such as CHEAP or HQ.
type Tier string

const (
	Cheap    Tier = "CHEAP"
	Medium   Tier = "MEDIUM"
	HQ       Tier = "HQ"
	O3       Tier = "O3"
	O3Reason Tier = "O3-REASON"
)

// Known lists the built-in tiers from cheapest to most capable.
var Known = []Tier{Cheap, Medium, HQ, O3, O3Reason}

// Valid reports whether t is one of the built-in tiers.
func (t Tier) Valid() bool {
	for _, k := range Known {
		if t == k {
			return true
		}
	}
	return false
}

// Target names a provider and a model identifier understood by that provider.
type Target struct {
	Provider string
	Model    string
}

// String renders the target as provider/model.
func (t Target) String() string { return t.Provider + "/" + t.Model }

// Selection is the outcome of resolving a persona.
type Selection struct {
	// Tier is the parsed tag, empty when the persona declares none.
	Tier   Tier
	Target Target
	// Fallback is set when the fallback target was used.
	Fallback bool
}

var (
	tagPattern    = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])tier[*_]*\s*:[*_\s]*(?:llm-)?([a-z0-9][a-z0-9-]*)`)
	legacyPattern = regexp.MustCompile(`(?i)\*\*LLM Default:\*\*\s*(?:llm-)?([a-z0-9][a-z0-9-]*)`)
)

// ParseTag extracts the tier tag from persona text. It accepts "tier: <TAG>"
// anywhere in the text (optionally prefixed "LLM-") and the legacy
// "**LLM Default:** <TAG>" marker. The first declaration wins. The tag is upper-cased; ok is false when
// no tag is declared.
func ParseTag(persona string) (Tier, bool) {
	for _, re := range []*regexp.Regexp{tagPattern, legacyPattern} {
		if m := re.FindStringSubmatch(persona); m != nil {
			return Tier(strings.ToUpper(m[1])), true
		}
	}
	return "", false
}

// Selector resolves personas against a tag to target table.
type Selector struct {
	targets  map[Tier]Target
	fallback Target
}

// DefaultTargets is the built-in tag table.
func DefaultTargets() map[Tier]Target {
	return map[Tier]Target{
		Cheap:    {Provider: "openai", Model: "gpt-4o-mini"},
		Medium:   {Provider: "openai", Model: "gpt-4o"},
		HQ:       {Provider: "openai", Model: "gpt-4o"},
		O3:       {Provider: "openai", Model: "gpt-4o"},
		O3Reason: {Provider: "openai", Model: "gpt-4o"},
	}
}

// DefaultFallback is the built-in target for untagged personas.
var DefaultFallback = Target{Provider: "openai", Model: "gpt-4o-mini"}

// NewSelector copies targets; tags are matched case-insensitively. Custom
// tags outside Known are allowed.
func NewSelector(targets map[Tier]Target, fallback Target) *Selector {
	s := &Selector{targets: make(map[Tier]Target, len(targets)), fallback: fallback}
	for tag, t := range targets {
		s.targets[Tier(strings.ToUpper(string(tag)))] = t
	}
	return s
}

// Default returns a selector over DefaultTargets and DefaultFallback.
func Default() *Selector { return NewSelector(DefaultTargets(), DefaultFallback) }

// Select resolves the persona to a target.
func (s *Selector) Select(persona string) Selection {
	tag, ok := ParseTag(persona)
	if !ok {
		return Selection{Target: s.fallback, Fallback: true}
	}
	if t, ok := s.targets[tag]; ok {
		return Selection{Tier: tag, Target: t}
	}
	return Selection{Tier: tag, Target: s.fallback, Fallback: true}
}

// Targets returns every distinct target the selector can produce, fallback included.
func (s *Selector) Targets() []Target {
	seen := map[Target]bool{s.fallback: true}
	out := []Target{s.fallback}
	for _, tag := range s.tags() {
		t := s.targets[tag]
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// Providers returns the distinct providers of Targets, sorted.
func (s *Selector) Providers() []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range s.Targets() {
		if !seen[t.Provider] {
			seen[t.Provider] = true
			out = append(out, t.Provider)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Selector) tags() []Tier {
	var tags []Tier
	for _, k := range Known {
		if _, ok := s.targets[k]; ok {
			tags = append(tags, k)
		}
	}
	var custom []string
	for tag := range s.targets {
		if !tag.Valid() {
			custom = append(custom, string(tag))
		}
	}
	sort.Strings(custom)
	for _, c := range custom {
		tags = append(tags, Tier(c))
	}
	return tags
}
