// Package sched is a cooperative frame scheduler. Per-frame tasks and
// deadline timers run on Tick, each behind a cancellable handle. A task that
// fails or panics is removed and reported without disturbing the others.
package sched

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrDone may be returned by a FrameFunc to finish the task without
// reporting an error.
var ErrDone = errors.New("sched: task done")

// Clock supplies the scheduler time in seconds.
type Clock interface {
	Now() float64
}

// FrameFunc runs once per tick with the current clock time.
type FrameFunc func(now float64) error

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger used for failed tasks.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithErrorHandler installs a callback for tasks that fail or panic.
func WithErrorHandler(fn func(t *Task, err error)) Option {
	return func(s *Scheduler) { s.onError = fn }
}

// Scheduler runs frame tasks and timers against a Clock.
type Scheduler struct {
	clock   Clock
	log     *slog.Logger
	onError func(*Task, error)

	mu     sync.Mutex
	tasks  []*Task
	closed bool
}

// New creates a scheduler reading time from clock.
func New(clock Clock, opts ...Option) *Scheduler {
	s := &Scheduler{clock: clock, log: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Now returns the clock time.
func (s *Scheduler) Now() float64 { return s.clock.Now() }

// Every registers fn to run on every tick until it returns an error, ErrDone,
// or the handle is cancelled.
func (s *Scheduler) Every(name string, fn FrameFunc) *Task {
	return s.add(newTask(name, fn, -1))
}

// At registers fn to run once on the first tick at or after when.
func (s *Scheduler) At(name string, when float64, fn func(now float64)) *Task {
	return s.add(newTask(name, func(now float64) error {
		fn(now)
		return ErrDone
	}, when))
}

// After registers fn to run once delay seconds from now.
func (s *Scheduler) After(name string, delay float64, fn func(now float64)) *Task {
	return s.At(name, s.clock.Now()+delay, fn)
}

func (s *Scheduler) add(t *Task) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		t.finish()
		return t
	}
	s.tasks = append(s.tasks, t)
	return t
}

// Len returns the number of live tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if t.Active() {
			n++
		}
	}
	return n
}

// Tick runs every due task once. Tasks added during a tick first run on the
// next tick.
func (s *Scheduler) Tick() {
	now := s.clock.Now()

	s.mu.Lock()
	due := make([]*Task, len(s.tasks))
	copy(due, s.tasks)
	s.mu.Unlock()

	for _, t := range due {
		if !t.Active() || (t.deadline >= 0 && now < t.deadline) {
			continue
		}
		if err := s.run(t, now); err != nil {
			t.finish()
			if !errors.Is(err, ErrDone) {
				s.report(t, err)
			}
		}
	}
	s.prune()
}

func (s *Scheduler) run(t *Task, now float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sched: task %q panicked: %v", t.name, r)
		}
	}()
	return t.fn(now)
}

func (s *Scheduler) report(t *Task, err error) {
	s.log.Error("frame task failed", "task", t.name, "id", t.id, "err", err)
	if s.onError != nil {
		s.onError(t, err)
	}
}

func (s *Scheduler) prune() {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := s.tasks[:0]
	for _, t := range s.tasks {
		if t.Active() {
			live = append(live, t)
		}
	}
	for i := len(live); i < len(s.tasks); i++ {
		s.tasks[i] = nil
	}
	s.tasks = live
}

// Run ticks at the given interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Close cancels every task and rejects new ones.
func (s *Scheduler) Close() {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = nil
	s.closed = true
	s.mu.Unlock()
	for _, t := range tasks {
		t.Cancel()
	}
}

// Task is a handle to a scheduled frame task or timer.
type Task struct {
	id       string
	name     string
	fn       FrameFunc
	deadline float64

	once sync.Once
	done chan struct{}
}

func newTask(name string, fn FrameFunc, deadline float64) *Task {
	return &Task{
		id:       uuid.NewString(),
		name:     name,
		fn:       fn,
		deadline: deadline,
		done:     make(chan struct{}),
	}
}

// ID returns the unique task id.
func (t *Task) ID() string { return t.id }

// Name returns the name given at registration.
func (t *Task) Name() string { return t.name }

// Cancel stops the task. It is safe to call more than once and on a nil
// handle.
func (t *Task) Cancel() {
	if t == nil {
		return
	}
	t.finish()
}

// Active reports whether the task will run again.
func (t *Task) Active() bool {
	if t == nil {
		return false
	}
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

// Done is closed when the task finishes or is cancelled.
func (t *Task) Done() <-chan struct{} { return t.done }

func (t *Task) finish() {
	t.once.Do(func() { close(t.done) })
}
