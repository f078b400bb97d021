package ai

import (
	"sync"
	"testing"
	"time"

	"deadfall/internal/vecmath"
)

// TestWorkerSnapshotIsolation checks the worker never observes a torn
// mix of two published snapshots, only ever S1 or S2 wholesale.
func TestWorkerSnapshotIsolation(t *testing.T) {
	w := NewWorker(60)
	seen := make(chan uint64, 500)
	var wg sync.WaitGroup

	snapFor := func(seq uint64) *Snapshot {
		players := map[string]PlayerParams{
			"p1": {Name: "p1", Position: vecmath.Vector{X: float64(seq)}},
		}
		return NewSnapshot(seq, nil, nil, PhysicsParams{}, players, nil)
	}

	w.Publish(snapFor(1))

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			w.mu.Lock()
			snap := w.snapshot
			w.mu.Unlock()
			if snap == nil {
				continue
			}
			p := snap.Players["p1"]
			if uint64(p.Position.X) != snap.Sequence {
				t.Errorf("torn snapshot: sequence %d but player.X %v", snap.Sequence, p.Position.X)
			}
			seen <- snap.Sequence
		}
	}()

	for seq := uint64(2); seq <= 10; seq++ {
		w.Publish(snapFor(seq))
		time.Sleep(time.Millisecond)
	}

	wg.Wait()
	close(seen)
}

func TestWorkerIsolatesOperatorFailure(t *testing.T) {
	w := NewWorker(1000)
	op := NewOperator("bot1", panicStrategy{})
	w.AddOperator(op)
	w.Publish(NewSnapshot(1, nil, nil, PhysicsParams{}, map[string]PlayerParams{
		"bot1": {Name: "bot1", Alive: true},
	}, nil))

	w.runOne(w.snapshot, op)

	got := op.Drain(8)
	want := []Action{ActionRelax, ActionStop, ActionDisableLongShot}
	if len(got) != len(want) {
		t.Fatalf("got %v actions, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("action %d = %v, want %v", i, got[i], want[i])
		}
	}
}

type panicStrategy struct{}

func (panicStrategy) Difficulty() string { return "broken" }
func (panicStrategy) Decide(*Snapshot, string, *OperatorState) []Action {
	panic("boom")
}

func TestWorkerStartStop(t *testing.T) {
	w := NewWorker(60)
	w.Publish(NewSnapshot(1, nil, nil, PhysicsParams{}, map[string]PlayerParams{}, nil))
	w.Start()
	time.Sleep(5 * time.Millisecond)
	w.Stop()
}
