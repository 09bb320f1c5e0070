package observability

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/ripple/pkg/domain"
)

// Entry is one line of the journal.
type Entry struct {
	Time    time.Time     `json:"time"`
	Kind    string        `json:"kind"`
	Action  string        `json:"action,omitempty"`
	Handler string        `json:"handler,omitempty"`
	Feature string        `json:"feature,omitempty"`
	Key     string        `json:"key,omitempty"`
	Elapsed time.Duration `json:"elapsed,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// Journal kinds.
const (
	KindDispatch = "dispatch"
	KindStart    = "start"
	KindEnd      = "end"
	KindCancel   = "cancel"
	KindHalt     = "halt"
	KindFeature  = "feature"
)

// Journal aggregates recent runtime activity into a bounded ring, newest last.
type Journal struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// NewJournal creates a journal keeping at most size entries.
func NewJournal(size int) *Journal {
	if size < 1 {
		size = 1
	}
	return &Journal{entries: make([]Entry, size)}
}

func (j *Journal) add(e Entry) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries[j.next] = e
	j.next = (j.next + 1) % len(j.entries)
	if j.next == 0 {
		j.full = true
	}
}

// Snapshot returns the retained entries in chronological order.
func (j *Journal) Snapshot() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.full {
		return append([]Entry(nil), j.entries[:j.next]...)
	}
	out := make([]Entry, 0, len(j.entries))
	out = append(out, j.entries[j.next:]...)
	return append(out, j.entries[:j.next]...)
}

// Hooks returns lifecycle hooks recording into the journal.
func (j *Journal) Hooks() domain.LifecycleHooks {
	run := func(kind string) func(context.Context, *domain.RunEvent) {
		return func(_ context.Context, e *domain.RunEvent) {
			entry := Entry{
				Kind:    kind,
				Action:  e.Action.Type,
				Handler: e.Handler,
				Feature: e.Feature,
				Key:     e.Key,
				Elapsed: e.Duration,
			}
			if e.Err != nil {
				entry.Error = e.Err.Error()
			}
			j.add(entry)
		}
	}
	return domain.LifecycleHooks{
		OnDispatch: func(_ context.Context, e *domain.DispatchEvent) {
			j.add(Entry{Kind: KindDispatch, Action: e.Action.Type})
		},
		OnRunStart: run(KindStart),
		OnRunEnd:   run(KindEnd),
		OnCancel:   run(KindCancel),
		OnHalt:     run(KindHalt),
		OnFeature: func(_ context.Context, e *domain.FeatureEvent) {
			state := "deactivated"
			if e.Active {
				state = "activated"
			}
			j.add(Entry{Kind: KindFeature, Feature: e.Feature, Action: state})
		},
	}
}
