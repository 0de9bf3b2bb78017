// Package model defines the provider-agnostic reasoning boundary used by the
// invoker. A Model turns a system instruction plus one user input into text
// or a typed error; nothing else about the provider leaks past this package.
//
// Providers (OpenAI, Anthropic) live in sub-packages and implement Model so
// higher layers stay decoupled from vendor SDKs. MockModel is a
// deterministic in-process implementation for tests and dry runs.
package model
