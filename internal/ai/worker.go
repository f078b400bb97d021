package ai

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// pollInterval is the worker's wake-up cadence; a decision pass only
// runs once elapsed-since-last-publish exceeds 1/rps.
const pollInterval = time.Millisecond

// Worker runs the single dedicated AI goroutine: it owns no simulation
// state, reads a snapshot published by the main thread under a single
// mutex and computes off that copy. Actions go straight into each
// operator's lock-free queue; the mutex is not held while the worker
// pushes them or while the main thread drains them.
type Worker struct {
	mu       sync.Mutex
	snapshot *Snapshot
	rps      float64

	operators  map[string]*Operator
	failedOnce map[string]bool

	stop    int32
	done    chan struct{}
	started bool

	Logger *log.Logger
}

// NewWorker constructs a Worker with no operators and no published
// snapshot yet; call Start to spawn its goroutine.
func NewWorker(rps float64) *Worker {
	if rps <= 0 {
		rps = 60
	}
	return &Worker{
		rps:        rps,
		operators:  make(map[string]*Operator),
		failedOnce: make(map[string]bool),
		done:       make(chan struct{}),
		Logger:     log.Default(),
	}
}

// AddOperator registers an operator for a player name, replacing any
// existing one for the same name.
func (w *Worker) AddOperator(op *Operator) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.operators[op.PlayerName] = op
}

// RemoveOperator unregisters an operator, e.g. on player disconnect or
// when AI control is handed back to a human.
func (w *Worker) RemoveOperator(playerName string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.operators, playerName)
	delete(w.failedOnce, playerName)
}

// Operator returns the operator bound to playerName, if any.
func (w *Worker) Operator(playerName string) (*Operator, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	op, ok := w.operators[playerName]
	return op, ok
}

// Publish swaps in a newly-built snapshot under the single mutex. The
// main thread calls this once per simulation step.
func (w *Worker) Publish(snap *Snapshot) {
	w.mu.Lock()
	w.snapshot = snap
	w.mu.Unlock()
}

// DrainActions drains up to maxItems pending actions for playerName.
// Called by the main thread only, once per tick.
func (w *Worker) DrainActions(playerName string, maxItems int) []Action {
	op, ok := w.Operator(playerName)
	if !ok {
		return nil
	}
	return op.Drain(maxItems)
}

// Start spawns the dedicated worker goroutine. Calling Start twice is a
// no-op.
func (w *Worker) Start() {
	if w.started {
		return
	}
	w.started = true
	go w.loop()
}

// Stop sets the shared stop flag and blocks until the worker goroutine
// has exited.
func (w *Worker) Stop() {
	if !w.started {
		return
	}
	atomic.StoreInt32(&w.stop, 1)
	<-w.done
}

func (w *Worker) loop() {
	defer close(w.done)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var lastPublish time.Time
	for range ticker.C {
		if atomic.LoadInt32(&w.stop) != 0 {
			return
		}
		cadence := time.Duration(float64(time.Second) / w.rps)
		if time.Since(lastPublish) < cadence {
			continue
		}
		lastPublish = time.Now()
		w.tick()
	}
}

func (w *Worker) tick() {
	w.mu.Lock()
	snap := w.snapshot
	ops := make([]*Operator, 0, len(w.operators))
	for _, op := range w.operators {
		ops = append(ops, op)
	}
	w.mu.Unlock()

	if snap == nil {
		return
	}

	for _, op := range ops {
		w.runOne(snap, op)
	}
}

// runOne isolates a single operator's failure: a panic inside Decide is caught, the operator's
// action stream is forced to {relax, stop, disable_long_shot}, and the
// failure is logged once per operator to avoid flooding.
func (w *Worker) runOne(snap *Snapshot, op *Operator) {
	defer func() {
		if r := recover(); r != nil {
			w.mu.Lock()
			already := w.failedOnce[op.PlayerName]
			w.failedOnce[op.PlayerName] = true
			w.mu.Unlock()
			if !already {
				w.Logger.Printf("[ai] operator %q (%s) failed, isolating: %v", op.PlayerName, op.Difficulty(), r)
			}
			op.Fail()
		}
	}()
	op.Update(snap)
}
