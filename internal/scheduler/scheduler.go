package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/FishWoWater/trellis-blender/internal/logging"
	"go.uber.org/zap"
)

// idleWait bounds how long the loop sleeps when no periodic task is armed.
const idleWait = time.Second

// Scheduler runs tasks on a single host loop.
type Scheduler interface {
	// Post runs fn once, on the loop, as soon as possible.
	Post(fn func())
	// Every runs fn on the loop every interval until the handle is cancelled.
	Every(interval time.Duration, fn func()) Handle
}

// Handle cancels a periodic task. Cancel is idempotent.
type Handle interface {
	Cancel()
	Cancelled() bool
}

type periodic struct {
	interval  time.Duration
	next      time.Time
	fn        func()
	cancelled atomic.Bool
}

func (p *periodic) Cancel()         { p.cancelled.Store(true) }
func (p *periodic) Cancelled() bool { return p.cancelled.Load() }

// Loop is the production Scheduler: one goroutine, started by Run, executes
// every task. The interval of a periodic task counts from the end of its
// previous run, so a slow task never piles up back-to-back invocations.
type Loop struct {
	mu    sync.Mutex
	posts []func()
	tasks []*periodic
	wake  chan struct{}
}

// NewLoop creates an idle loop. Call Run to drive it.
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post implements Scheduler. It is safe to call from any goroutine.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.posts = append(l.posts, fn)
	l.mu.Unlock()
	l.signal()
}

// Every implements Scheduler. The first run happens one interval from now.
func (l *Loop) Every(interval time.Duration, fn func()) Handle {
	p := &periodic{interval: interval, next: time.Now().Add(interval), fn: fn}
	l.mu.Lock()
	l.tasks = append(l.tasks, p)
	l.mu.Unlock()
	l.signal()
	return p
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run executes tasks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	timer := time.NewTimer(idleWait)
	defer timer.Stop()

	for {
		l.runPosts()
		wait := l.runDue(time.Now())

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		case <-timer.C:
		}
	}
}

func (l *Loop) runPosts() {
	l.mu.Lock()
	posts := l.posts
	l.posts = nil
	l.mu.Unlock()

	for _, fn := range posts {
		runGuarded("posted task", fn)
	}
}

// runDue runs every periodic task whose deadline has passed and returns how
// long the loop may sleep before the next one is due.
func (l *Loop) runDue(now time.Time) time.Duration {
	l.mu.Lock()
	live := l.tasks[:0]
	var due []*periodic
	for _, p := range l.tasks {
		if p.Cancelled() {
			continue
		}
		live = append(live, p)
		if !now.Before(p.next) {
			due = append(due, p)
		}
	}
	l.tasks = live
	l.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].next.Before(due[j].next) })
	for _, p := range due {
		if p.Cancelled() {
			continue
		}
		if !runGuarded("periodic task", p.fn) {
			// A failing timer is unregistered, like a host timer callback
			// that raises.
			p.Cancel()
		}
		l.mu.Lock()
		p.next = time.Now().Add(p.interval)
		l.mu.Unlock()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	wait := idleWait
	current := time.Now()
	for _, p := range l.tasks {
		if p.Cancelled() {
			continue
		}
		if d := p.next.Sub(current); d < wait {
			wait = d
		}
	}
	if wait < 0 {
		wait = 0
	}
	return wait
}

// runGuarded keeps a panicking task from taking the host loop down.
func runGuarded(kind string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Task panicked on host loop",
				zap.String("kind", kind),
				zap.String("panic", fmt.Sprint(r)),
				zap.Stack("stack"),
			)
			ok = false
		}
	}()
	fn()
	return true
}
