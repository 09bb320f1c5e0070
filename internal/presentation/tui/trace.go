package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aretw0/ripple/pkg/domain"
	"github.com/muesli/termenv"
)

// Trace prints actions as coloured one-liners, one per action.
type Trace struct {
	mu    sync.Mutex
	out   *termenv.Output
	start time.Time
	now   func() time.Time
}

// NewTrace creates a trace writing to w. Options are passed to termenv; tests use
// termenv.WithProfile(termenv.Ascii) for plain output.
func NewTrace(w io.Writer, opts ...termenv.OutputOption) *Trace {
	return &Trace{
		out:   termenv.NewOutput(w, opts...),
		start: time.Now(),
		now:   time.Now,
	}
}

// Print writes one action.
func (t *Trace) Print(act domain.Action) {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := t.now().Sub(t.start).Truncate(time.Millisecond)
	stamp := t.out.String(fmt.Sprintf("%8s", elapsed)).Faint()
	name := t.out.String(act.Type).Foreground(t.out.Color(colorFor(act))).Bold()
	origin := t.out.String("<- " + originOf(act)).Faint()

	fmt.Fprintf(t.out, "%s  %s  %s  %s\n", stamp, name, summarize(act.Payload), origin)
}

func colorFor(act domain.Action) string {
	switch act.Type {
	case domain.ActionError, domain.ActionHandlerError, domain.ActionHandlerHalted:
		return "#f87171"
	case domain.ActionNotify:
		return "#facc15"
	case domain.ActionLoading:
		return "#94a3b8"
	}
	if act.Meta.Origin == domain.OriginExternal || act.Meta.Origin == "" {
		return "#22d3ee"
	}
	return "#a78bfa"
}

func originOf(act domain.Action) string {
	if act.Meta.Origin == "" {
		return domain.OriginExternal
	}
	return act.Meta.Origin
}

const maxPayload = 96

func summarize(payload any) string {
	if payload == nil {
		return "{}"
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	s := string(b)
	if len(s) > maxPayload {
		s = s[:maxPayload-3] + "..."
	}
	return s
}
