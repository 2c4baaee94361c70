package scheduler

import (
	"sync"
	"time"
)

// Manual is a Scheduler driven explicitly by Step. Intervals are recorded but
// ignored: each Step fires every live periodic task exactly once.
type Manual struct {
	mu    sync.Mutex
	posts []func()
	tasks []*periodic
}

// NewManual creates a manual scheduler.
func NewManual() *Manual {
	return &Manual{}
}

// Post implements Scheduler.
func (m *Manual) Post(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts = append(m.posts, fn)
}

// Every implements Scheduler.
func (m *Manual) Every(interval time.Duration, fn func()) Handle {
	p := &periodic{interval: interval, fn: fn}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, p)
	return p
}

// Step runs pending posts, then every live periodic task once.
func (m *Manual) Step() {
	m.mu.Lock()
	posts := m.posts
	m.posts = nil
	tasks := make([]*periodic, 0, len(m.tasks))
	for _, p := range m.tasks {
		if !p.Cancelled() {
			tasks = append(tasks, p)
		}
	}
	m.tasks = tasks
	m.mu.Unlock()

	for _, fn := range posts {
		runGuarded("posted task", fn)
	}
	for _, p := range tasks {
		if p.Cancelled() {
			continue
		}
		if !runGuarded("periodic task", p.fn) {
			p.Cancel()
		}
	}
}

// Active reports how many periodic tasks are still armed.
func (m *Manual) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.tasks {
		if !p.Cancelled() {
			n++
		}
	}
	return n
}
