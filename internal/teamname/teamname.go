// Package teamname validates team identifiers before they reach the
// filesystem or the multiplexer. It is the single gate every public entry
// point calls first: a team name ends up in paths, environment variables,
// and tmux target strings, so rejecting shell metacharacters and uppercase
// at the boundary is the only defense the rest of the system has.
package teamname

import (
	"fmt"
	"regexp"
)

var pattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,48}[a-z0-9]$`)

// InvalidNameError is returned when a proposed team name fails validation.
// Callers that need to distinguish this from other errors can errors.As it.
type InvalidNameError struct {
	Name   string
	Reason string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid team name %q: %s", e.Name, e.Reason)
}

// Validate checks a proposed team name against the canonical pattern
// (^[a-z0-9][a-z0-9-]{0,48}[a-z0-9]$) and returns it unchanged on success.
// It never mutates or normalizes the input; team names are case-sensitive
// and the caller is expected to have already lowercased intentionally.
func Validate(name string) (string, error) {
	if name == "" {
		return "", &InvalidNameError{Name: name, Reason: "must not be empty"}
	}
	if len(name) < 2 {
		return "", &InvalidNameError{Name: name, Reason: "must be at least 2 characters"}
	}
	if len(name) > 50 {
		return "", &InvalidNameError{Name: name, Reason: "must be at most 50 characters"}
	}
	if !pattern.MatchString(name) {
		return "", &InvalidNameError{
			Name:   name,
			Reason: "must match ^[a-z0-9][a-z0-9-]{0,48}[a-z0-9]$ (lowercase alnum, no leading/trailing dash)",
		}
	}
	return name, nil
}

// MustValidate is a convenience wrapper for call sites (tests, CLI flag
// parsing) that want to panic on an invalid name rather than thread an
// error. Production code paths must use Validate.
func MustValidate(name string) string {
	validated, err := Validate(name)
	if err != nil {
		panic(err)
	}
	return validated
}
