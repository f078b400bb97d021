package ai

import (
	"deadfall/internal/spatial"
)

const actionQueueCapacity = 64

// Strategy is the per-difficulty decision function: given the latest
// snapshot and the name of the player it operates, it produces zero or
// more actions for this tick. Implementations must not retain the
// snapshot pointer past the call (the worker may reuse slices only
// after every operator has finished its pass, but treat it as
// borrowed to keep that contract simple for callers).
type Strategy interface {
	Difficulty() string
	Decide(snap *Snapshot, playerName string, st *OperatorState) []Action
}

// OperatorState is the small piece of per-operator memory a Strategy is
// allowed to carry between ticks (current path, last target, dodge
// timers). It lives outside the Snapshot because it is operator-private
// and never published.
type OperatorState struct {
	CurrentPath   []string // platform names, nearest-first hop order
	LastTargetRef string
	DodgeTimer    float64
	LongShot      bool
}

// Operator is a state machine bound to one player name; it publishes
// actions into a bounded MPSC queue the main thread drains once per
// tick.
type Operator struct {
	PlayerName string
	strategy   Strategy
	state      OperatorState
	queue      *spatial.LockFreeQueue[Action]
}

// NewOperator binds a Strategy to a player name.
func NewOperator(playerName string, strategy Strategy) *Operator {
	return &Operator{
		PlayerName: playerName,
		strategy:   strategy,
		queue:      spatial.NewLockFreeQueue[Action](actionQueueCapacity),
	}
}

// Difficulty reports the bound strategy's difficulty label.
func (o *Operator) Difficulty() string { return o.strategy.Difficulty() }

// Update runs one decision pass against snap and pushes the resulting
// actions onto the operator's queue. Called by the worker goroutine
// only, after the snapshot read lock has been released.
func (o *Operator) Update(snap *Snapshot) {
	actions := o.strategy.Decide(snap, o.PlayerName, &o.state)
	for _, a := range actions {
		if !o.queue.TryPush(a) {
			break // queue full: drop rather than block the worker
		}
	}
}

// Enqueue pushes a single action from outside the Strategy path — the
// entry point for externally-scripted operators, which receive the
// snapshot and write actions directly. Returns false when the queue is
// full and the action was dropped.
func (o *Operator) Enqueue(a Action) bool {
	return o.queue.TryPush(a)
}

// Fail isolates an AI script/strategy failure to this operator: the
// action stream becomes {relax, stop, disable_long_shot} and the
// operator keeps running.
func (o *Operator) Fail() {
	for _, a := range []Action{ActionRelax, ActionStop, ActionDisableLongShot} {
		o.queue.TryPush(a)
	}
}

// Drain removes up to maxItems pending actions for the main loop to
// apply. Called by the main thread only.
func (o *Operator) Drain(maxItems int) []Action {
	return o.queue.Drain(maxItems)
}
