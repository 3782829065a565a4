package pipeline

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingRunner struct {
	runs     atomic.Int32
	canceled atomic.Int32
	block    chan struct{}
}

func (r *countingRunner) Run(ctx context.Context) RunResult {
	r.runs.Add(1)
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			r.canceled.Add(1)
		}
	}
	return RunResult{}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 2s")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestScheduler_RunsImmediately(t *testing.T) {
	r := &countingRunner{}
	s := NewScheduler(r, time.Hour, 0, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	waitFor(t, func() bool { return r.runs.Load() >= 1 })
}

func TestScheduler_StopCancelsInFlightRun(t *testing.T) {
	r := &countingRunner{block: make(chan struct{})}
	s := NewScheduler(r, time.Hour, time.Hour, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, func() bool { return r.runs.Load() == 1 })

	s.Stop()
	waitFor(t, func() bool { return r.canceled.Load() == 1 })
}

func TestScheduler_RejectsNonPositiveInterval(t *testing.T) {
	if err := NewScheduler(&countingRunner{}, 0, 0, nil).Start(); err == nil {
		t.Error("Start() with zero interval should fail")
	}
}
