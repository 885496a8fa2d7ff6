package transition

import (
	"sync"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/sched"
)

// Run is the handle of one executing transition.
type Run struct {
	id       string
	settings Settings
	start    float64
	task     *sched.Task
	timer    *sched.Task

	mu       sync.Mutex
	progress float64
}

// ID returns the run's unique id.
func (r *Run) ID() string { return r.id }

// Settings returns the settings the run was started with.
func (r *Run) Settings() Settings { return r.settings }

// Start returns the scheduler time at which automation begins.
func (r *Run) Start() float64 { return r.start }

// Done is closed Duration seconds after the start, or on Cancel.
func (r *Run) Done() <-chan struct{} { return r.timer.Done() }

// Active reports whether the automation task is still running.
func (r *Run) Active() bool {
	if r == nil {
		return false
	}
	return r.task.Active()
}

// Progress returns the last progress value applied.
func (r *Run) Progress() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress
}

func (r *Run) setProgress(p float64) {
	r.mu.Lock()
	r.progress = p
	r.mu.Unlock()
}

// Cancel stops the automation and closes Done. The mix stays where the last
// frame left it. Cancel is safe on a nil or finished run.
func (r *Run) Cancel() {
	if r == nil {
		return
	}
	r.task.Cancel()
	r.timer.Cancel()
}
