package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aretw0/ripple/pkg/domain"
	"gopkg.in/yaml.v3"
)

// DefaultExpectTimeout bounds an expect step without its own timeout.
const DefaultExpectTimeout = 5 * time.Second

// Script is a replayable sequence of external actions, waits and expectations.
//
//	name: search rivers
//	settle: 500ms
//	steps:
//	  - dispatch: catalog/TEXT_SEARCH
//	    payload: {url: https://demo.example.org/csw, text: rivers}
//	  - expect: catalog/SEARCH_RESULTS
//	    timeout: 2s
//	  - wait: 100ms
type Script struct {
	Name string `yaml:"name"`

	// Settle is how long the engine keeps running after the last step.
	Settle time.Duration `yaml:"settle"`

	Steps []Step `yaml:"steps"`
}

// Step does exactly one thing: dispatch an action, wait, or expect an action type.
type Step struct {
	Dispatch string        `yaml:"dispatch,omitempty"`
	Payload  any           `yaml:"payload,omitempty"`
	Wait     time.Duration `yaml:"wait,omitempty"`
	Expect   string        `yaml:"expect,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

// Kind names what the step does.
func (s Step) Kind() string {
	switch {
	case s.Dispatch != "":
		return "dispatch"
	case s.Expect != "":
		return "expect"
	case s.Wait > 0:
		return "wait"
	}
	return ""
}

// Action builds the dispatched action of a dispatch step.
func (s Step) Action() domain.Action {
	return domain.NewAction(s.Dispatch, s.Payload)
}

// ParseScript decodes a YAML script and checks its shape.
func ParseScript(r io.Reader) (Script, error) {
	var s Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return Script{}, errors.New("script is empty")
		}
		return Script{}, fmt.Errorf("parse script: %w", err)
	}
	if err := s.check(); err != nil {
		return Script{}, err
	}
	return s, nil
}

// LoadScript reads a script file.
func LoadScript(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("read script: %w", err)
	}
	s, err := ParseScript(bytes.NewReader(data))
	if err != nil {
		return Script{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Actions lists the actions of the dispatch steps, in order.
func (s Script) Actions() []domain.Action {
	var out []domain.Action
	for _, st := range s.Steps {
		if st.Kind() == "dispatch" {
			out = append(out, st.Action())
		}
	}
	return out
}

func (s Script) check() error {
	if len(s.Steps) == 0 {
		return errors.New("script has no steps")
	}
	if s.Settle < 0 {
		return errors.New("settle must not be negative")
	}
	for i, st := range s.Steps {
		set := 0
		for _, b := range []bool{st.Dispatch != "", st.Expect != "", st.Wait != 0} {
			if b {
				set++
			}
		}
		switch {
		case set != 1:
			return fmt.Errorf("step %d: exactly one of dispatch, wait or expect is required", i+1)
		case st.Wait < 0:
			return fmt.Errorf("step %d: wait must be positive", i+1)
		case st.Payload != nil && st.Dispatch == "":
			return fmt.Errorf("step %d: payload without dispatch", i+1)
		case st.Timeout != 0 && st.Expect == "":
			return fmt.Errorf("step %d: timeout without expect", i+1)
		}
	}
	return nil
}
