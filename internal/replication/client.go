package replication

import (
	"deadfall/internal/vecmath"
)

// DefaultClientSmoothing is the factor a client blends a remote
// player's position toward the server-reported one by each tick.
const DefaultClientSmoothing = 0.3

// ReconcileLocal is the client-side reconciliation rule for the
// LOCALLY-controlled player: when the server's event counter is behind
// the client's, position and velocity are ignored (only weapon/ammo
// fields reconcile); otherwise the local state smooths toward the
// server values.
//
// clientCounter is the local player's own EventCounter at the moment
// the sync arrived; serverCounter/serverPos/serverVel come off the
// wire. Returns the position/velocity to apply and whether they were
// applied at all (false means only config fields should reconcile).
func ReconcileLocal(clientCounter, serverCounter uint64, localPos, serverPos, localVel, serverVel vecmath.Vector, smoothing float64) (pos, vel vecmath.Vector, applied bool) {
	if serverCounter < clientCounter {
		return localPos, localVel, false
	}
	return localPos.Lerp(serverPos, smoothing), localVel.Lerp(serverVel, smoothing), true
}

// ReconcileRemote is the rule for every OTHER player: always smooth toward the server-reported position, unconditionally
// (no event-counter comparison — remote players are never predicted
// locally, only smoothed).
func ReconcileRemote(localPos, serverPos vecmath.Vector, smoothing float64) vecmath.Vector {
	return localPos.Lerp(serverPos, smoothing)
}
