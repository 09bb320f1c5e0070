package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/ripple/pkg/domain"
)

// ErrUnknownType is returned for action types no feature declared.
var ErrUnknownType = errors.New("unknown action type")

// ErrReservedType is returned for runtime action types that only the runtime may emit.
var ErrReservedType = errors.New("reserved action type")

var reserved = map[string]bool{
	domain.ActionHandlerError:  true,
	domain.ActionHandlerHalted: true,
}

// Validator checks externally dispatched actions (HTTP, MCP, replay scripts) before they
// enter the timeline.
type Validator struct {
	known  map[string]bool
	decode func(domain.Action) (domain.Action, error)
}

// New creates a validator accepting the given action types, plus the runtime's public ones
// (loading markers, errors and notifications). decode, typically registry.Registry.Decode,
// checks payload shapes; nil skips that check.
func New(types []string, decode func(domain.Action) (domain.Action, error)) *Validator {
	known := map[string]bool{
		domain.ActionLoading: true,
		domain.ActionError:   true,
		domain.ActionNotify:  true,
	}
	for _, t := range types {
		known[t] = true
	}
	return &Validator{known: known, decode: decode}
}

// Validate checks one action.
func (v *Validator) Validate(act domain.Action) error {
	switch {
	case act.Type == "":
		return errors.New("action without type")
	case reserved[act.Type]:
		return fmt.Errorf("%w: %s", ErrReservedType, act.Type)
	case !v.known[act.Type]:
		return fmt.Errorf("%w: %s", ErrUnknownType, act.Type)
	}
	if v.decode != nil && act.Payload != nil {
		if _, err := v.decode(act); err != nil {
			return err
		}
	}
	return nil
}

// ValidateAll checks every action and reports all problems at once, by position.
func (v *Validator) ValidateAll(acts []domain.Action) error {
	var problems []string
	var causes []error
	for i, act := range acts {
		if err := v.Validate(act); err != nil {
			problems = append(problems, fmt.Sprintf("#%d %s", i+1, err))
			causes = append(causes, err)
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return &Report{Problems: problems, causes: causes}
}

// Report lists validation problems.
type Report struct {
	Problems []string
	causes   []error
}

func (r *Report) Error() string {
	return fmt.Sprintf("found %d errors:\n- %s", len(r.Problems), strings.Join(r.Problems, "\n- "))
}

// Unwrap exposes the individual errors to errors.Is.
func (r *Report) Unwrap() []error {
	return r.causes
}
