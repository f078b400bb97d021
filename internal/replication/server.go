package replication

import (
	"net"
	"time"

	"deadfall/internal/entity"
	"deadfall/internal/vecmath"
)

// DefaultPhysicSyncInterval is the cadence at which the server
// broadcasts a physic-sync of every player to every subscriber.
const DefaultPhysicSyncInterval = 60 * time.Millisecond

// DefaultSmoothing is the fixed factor the server slides its own
// simulated position toward a client-reported one by, damping jitter
// instead of trusting either side outright.
const DefaultSmoothing = 0.25

// PeerSession is the server's per-connected-client bookkeeping: socket
// address, bound player name, reliability state and ping tracking.
type PeerSession struct {
	Addr       *net.UDPAddr
	PlayerName string
	Ping       *PingTracker

	lastEventCounter uint64
	hasEventCounter  bool
}

// AuthorityMode selects how the server reconciles a client's
// self-reported position against its own simulated one.
type AuthorityMode int

const (
	// ModeCorrect snaps the player straight to the server's simulated
	// state, ignoring the client's reported position entirely.
	ModeCorrect AuthorityMode = iota
	// ModeSmooth blends toward the client-reported position by
	// DefaultSmoothing, damping jitter instead of full correction.
	ModeSmooth
)

// Server applies the server-side authority rules: monotonic
// event-counter validation, position reconciliation, periodic
// broadcast, and trust rules for bullet spawns and adjustment boxes.
type Server struct {
	Mode      AuthorityMode
	Smoothing float64

	peers map[string]*PeerSession
}

// NewServer constructs a Server in smoothing mode with the default
// smoothing factor.
func NewServer() *Server {
	return &Server{Mode: ModeSmooth, Smoothing: DefaultSmoothing, peers: make(map[string]*PeerSession)}
}

// AddPeer registers a newly-connected client session.
func (s *Server) AddPeer(sess *PeerSession) { s.peers[sess.Addr.String()] = sess }

// RemovePeer drops a disconnected client's session.
func (s *Server) RemovePeer(addr *net.UDPAddr) { delete(s.peers, addr.String()) }

// Peers returns every connected session. Order is unspecified.
func (s *Server) Peers() []*PeerSession {
	out := make([]*PeerSession, 0, len(s.peers))
	for _, sess := range s.peers {
		out = append(out, sess)
	}
	return out
}

// Peer looks up a session by address.
func (s *Server) Peer(addr *net.UDPAddr) (*PeerSession, bool) {
	sess, ok := s.peers[addr.String()]
	return sess, ok
}

// ApplyInput validates one client's PlayerInput against the session's
// monotonic event counter and applies it to the server's authoritative
// Player. Returns false if the input was rejected as stale.
func (s *Server) ApplyInput(sess *PeerSession, player *entity.Player, in PlayerInput) bool {
	if sess.hasEventCounter && in.EventCounter <= sess.lastEventCounter {
		return false // stale: drop
	}
	sess.lastEventCounter = in.EventCounter
	sess.hasEventCounter = true

	player.Input = entity.InputState{
		MoveLeft: in.MoveLeft, MoveRight: in.MoveRight, Fire: in.Fire,
		Jump: in.Jump, JumpDown: in.JumpDown, YLocked: in.YLocked,
	}
	player.EventCounter = in.EventCounter
	return true
}

// Reconcile blends a client's self-reported position into the
// server's simulated position (ModeSmooth), or discards it outright
// (ModeCorrect). When the server's own simulated y_locked bit just
// transitioned off->on, the position snaps exactly to the simulated
// one regardless of mode: "feet must be on the platform exactly."
func (s *Server) Reconcile(simPos vecmath.Vector, simYLocked bool, wasYLocked bool, reportedPos vecmath.Vector) vecmath.Vector {
	if simYLocked && !wasYLocked {
		return simPos
	}
	if s.Mode == ModeCorrect {
		return simPos
	}
	return simPos.Lerp(reportedPos, s.Smoothing)
}

// TrustBulletSpawn reports whether a bullet-spawn action should be
// trusted: the client is authoritative for its own locally-controlled
// player, the server for AI-controlled players. sourceIsServer is true
// when the spawn action originated on the server itself (AI fire).
func TrustBulletSpawn(sourceIsServer bool, playerIsAIControlled bool) bool {
	if playerIsAIControlled {
		return sourceIsServer
	}
	return !sourceIsServer
}

// AdjustmentBoxSpawnTime returns the wall-clock instant to sample a
// remote player's position trace at, lag-compensated by the shooting
// peer's own reported ping.
func AdjustmentBoxSpawnTime(now time.Time, shooterPing *PingTracker) time.Time {
	return now.Add(-shooterPing.HalfRTT())
}
