package epic

import (
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/ripple/pkg/domain"
)

// Strategy governs how a handler treats matching actions that overlap in time.
// Strategies that decorate another (Debounced, RaceWithTimeout, RetryWithBackoff) take it as inner.
type Strategy interface {
	fmt.Stringer

	// newScheduler decides when runs are spawned and which ones are cancelled.
	newScheduler(spawn spawnFunc) scheduler

	// wrap decorates the work executed by each run.
	wrap(next stage) stage
}

// stage is called synchronously when a run is spawned and returns the work executed
// asynchronously. Anything that must happen before the body can trigger effects
// (registering expectations) belongs in the synchronous part.
type stage func(s *Scope) func() error

// spawnFunc starts a run for act. onDone is called after the body returned.
// It returns nil when the handler no longer accepts work.
type spawnFunc func(act domain.Action, key string, onDone func(*Run)) *Run

type scheduler interface {
	offer(act domain.Action, key string)
	// stop drops pending work (timers, queues). In-flight runs are cancelled by the owner.
	stop()
	pending() int
}

// Concurrent spawns an independent run for every matching action.
func Concurrent() Strategy {
	return concurrent{}
}

type concurrent struct{}

func (concurrent) String() string { return "concurrent" }

func (concurrent) wrap(next stage) stage { return next }

func (concurrent) newScheduler(spawn spawnFunc) scheduler {
	return concurrentScheduler{spawn: spawn}
}

type concurrentScheduler struct {
	spawn spawnFunc
}

func (c concurrentScheduler) offer(act domain.Action, key string) {
	c.spawn(act, key, nil)
}

func (concurrentScheduler) stop() {}

func (concurrentScheduler) pending() int { return 0 }

// LatestWins cancels the in-flight run of the same correlation key before spawning a new one.
func LatestWins() Strategy {
	return latestWins{}
}

type latestWins struct{}

func (latestWins) String() string { return "latest-wins" }

func (latestWins) wrap(next stage) stage { return next }

func (latestWins) newScheduler(spawn spawnFunc) scheduler {
	return &latestScheduler{spawn: spawn, current: make(map[string]*Run)}
}

type latestScheduler struct {
	mu      sync.Mutex
	spawn   spawnFunc
	current map[string]*Run
}

func (l *latestScheduler) offer(act domain.Action, key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if prev := l.current[key]; prev != nil {
		prev.Cancel()
		delete(l.current, key)
	}
	run := l.spawn(act, key, func(r *Run) {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.current[key] == r {
			delete(l.current, key)
		}
	})
	if run != nil {
		l.current[key] = run
	}
}

func (l *latestScheduler) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.current)
}

func (*latestScheduler) pending() int { return 0 }

// Serialized queues matching actions per correlation key and runs them one at a time in arrival order.
func Serialized() Strategy {
	return serialized{}
}

type serialized struct{}

func (serialized) String() string { return "serialized" }

func (serialized) wrap(next stage) stage { return next }

func (serialized) newScheduler(spawn spawnFunc) scheduler {
	return &serialScheduler{
		spawn:  spawn,
		queues: make(map[string][]domain.Action),
		busy:   make(map[string]bool),
	}
}

type serialScheduler struct {
	mu     sync.Mutex
	spawn  spawnFunc
	queues map[string][]domain.Action
	busy   map[string]bool
	gen    uint64
}

func (q *serialScheduler) offer(act domain.Action, key string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.busy[key] {
		q.queues[key] = append(q.queues[key], act)
		return
	}
	q.start(act, key)
}

// start must be called with mu held.
func (q *serialScheduler) start(act domain.Action, key string) {
	gen := q.gen
	q.busy[key] = true
	run := q.spawn(act, key, func(*Run) {
		q.mu.Lock()
		defer q.mu.Unlock()
		if q.gen != gen {
			return
		}
		q.next(key)
	})
	if run == nil {
		delete(q.busy, key)
		delete(q.queues, key)
	}
}

// next must be called with mu held.
func (q *serialScheduler) next(key string) {
	queue := q.queues[key]
	if len(queue) == 0 {
		delete(q.busy, key)
		delete(q.queues, key)
		return
	}
	act := queue[0]
	q.queues[key] = queue[1:]
	q.start(act, key)
}

func (q *serialScheduler) stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.gen++
	clear(q.queues)
	clear(q.busy)
}

func (q *serialScheduler) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, queue := range q.queues {
		n += len(queue)
	}
	return n
}

// Debounced collapses bursts of matching actions per correlation key: the last action of a burst
// is handed to inner once window has elapsed without a new match. Inner defaults to LatestWins.
func Debounced(window time.Duration, inner ...Strategy) Strategy {
	return debounced{window: window, inner: innerOr(inner, LatestWins())}
}

type debounced struct {
	window time.Duration
	inner  Strategy
}

func (d debounced) String() string {
	return fmt.Sprintf("debounced(%s, %s)", d.window, d.inner)
}

func (d debounced) wrap(next stage) stage { return d.inner.wrap(next) }

func (d debounced) newScheduler(spawn spawnFunc) scheduler {
	return &debounceScheduler{
		window: d.window,
		inner:  d.inner.newScheduler(spawn),
		timers: make(map[string]debounceTimer),
	}
}

type debounceTimer struct {
	timer *time.Timer
	seq   uint64
	last  domain.Action
}

type debounceScheduler struct {
	mu     sync.Mutex
	window time.Duration
	inner  scheduler
	timers map[string]debounceTimer
	seq    uint64
}

func (d *debounceScheduler) offer(act domain.Action, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if prev, ok := d.timers[key]; ok {
		prev.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timers[key] = debounceTimer{
		timer: time.AfterFunc(d.window, func() { d.fire(key, seq) }),
		seq:   seq,
		last:  act,
	}
}

func (d *debounceScheduler) fire(key string, seq uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.timers[key]
	if !ok || t.seq != seq {
		return
	}
	delete(d.timers, key)
	// Spawning under the lock lets stop wait for a firing timer before runs are cancelled.
	d.inner.offer(t.last, key)
}

func (d *debounceScheduler) stop() {
	d.mu.Lock()
	for _, t := range d.timers {
		t.timer.Stop()
	}
	clear(d.timers)
	d.mu.Unlock()
	d.inner.stop()
}

func (d *debounceScheduler) pending() int {
	d.mu.Lock()
	n := len(d.timers)
	d.mu.Unlock()
	return n + d.inner.pending()
}

func innerOr(inner []Strategy, fallback Strategy) Strategy {
	if len(inner) > 0 && inner[0] != nil {
		return inner[0]
	}
	return fallback
}
