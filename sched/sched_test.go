package sched

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEveryRunsUntilCancelled(t *testing.T) {
	clk := &ManualClock{}
	s := New(clk)
	var seen []float64
	task := s.Every("count", func(now float64) error {
		seen = append(seen, now)
		return nil
	})
	for range 3 {
		clk.Advance(0.5)
		s.Tick()
	}
	task.Cancel()
	task.Cancel()
	s.Tick()

	if len(seen) != 3 || seen[2] != 1.5 {
		t.Fatalf("seen = %v, want three ticks ending at 1.5", seen)
	}
	if task.Active() || s.Len() != 0 {
		t.Fatalf("task still active after Cancel (len %d)", s.Len())
	}
	select {
	case <-task.Done():
	default:
		t.Fatal("Done not closed")
	}
}

func TestAtFiresOnceAtDeadline(t *testing.T) {
	clk := &ManualClock{}
	s := New(clk)
	fired := 0
	task := s.After("deadline", 1, func(float64) { fired++ })
	clk.Set(0.99)
	s.Tick()
	if fired != 0 {
		t.Fatal("timer fired early")
	}
	clk.Set(1)
	s.Tick()
	s.Tick()
	if fired != 1 {
		t.Fatalf("fired %d times, want 1", fired)
	}
	if task.Active() {
		t.Fatal("timer should be finished")
	}
}

func TestFailingTaskIsIsolated(t *testing.T) {
	clk := &ManualClock{}
	var reported []string
	s := New(clk, WithErrorHandler(func(task *Task, err error) {
		reported = append(reported, task.Name())
	}))

	healthy := 0
	s.Every("healthy", func(float64) error {
		healthy++
		return nil
	})
	s.Every("broken", func(float64) error { return errors.New("boom") })
	s.Every("panics", func(float64) error { panic("bad frame") })
	s.Every("finishes", func(float64) error { return ErrDone })

	s.Tick()
	s.Tick()

	if healthy != 2 {
		t.Fatalf("healthy ran %d times, want 2", healthy)
	}
	if len(reported) != 2 || reported[0] != "broken" || reported[1] != "panics" {
		t.Fatalf("reported = %v", reported)
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
}

func TestTaskAddedDuringTickRunsNextTick(t *testing.T) {
	s := New(&ManualClock{})
	inner := 0
	s.At("outer", 0, func(float64) {
		s.Every("inner", func(float64) error {
			inner++
			return nil
		})
	})
	s.Tick()
	if inner != 0 {
		t.Fatal("task added during tick ran in the same tick")
	}
	s.Tick()
	if inner != 1 {
		t.Fatalf("inner = %d, want 1", inner)
	}
}

func TestCloseCancelsEverything(t *testing.T) {
	s := New(&ManualClock{})
	a := s.Every("a", func(float64) error { return nil })
	b := s.After("b", 10, func(float64) {})
	s.Close()
	if a.Active() || b.Active() {
		t.Fatal("Close left tasks active")
	}
	late := s.Every("late", func(float64) error { return nil })
	if late.Active() {
		t.Fatal("task registered after Close is active")
	}
	var nilTask *Task
	nilTask.Cancel()
	if nilTask.Active() {
		t.Fatal("nil task reported active")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s := New(NewWallClock())
	ticks := make(chan struct{}, 1)
	s.Every("signal", func(float64) error {
		select {
		case ticks <- struct{}{}:
		default:
		}
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx, time.Millisecond) }()
	<-ticks
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
}
