package replication

import (
	"net"
	"sync"
	"time"
)

// Default resend/retry knobs.
const (
	DefaultResendInterval = 200 * time.Millisecond
	DefaultMaxRetries     = 10
	ackCacheTTL           = 5 * time.Second
)

// CompletionHandler is invoked exactly once per reliable send: with
// (true, retriesUsed) on acknowledgement, or (false, retriesUsed) when
// the retry budget is exhausted or the connection is torn down.
type CompletionHandler func(ok bool, retriesUsed int)

type outstandingKey struct {
	peer string
	id   uint64
	hash uint64
}

type outstandingEntry struct {
	peer        *net.UDPAddr
	packet      []byte
	lastSend    time.Time
	retriesLeft int
	retriesUsed int
	onComplete  CompletionHandler
}

// ReliableSender tracks in-flight reliable packets in a single per-peer
// table keyed by (peer, id, hash), per the design note moving this
// bookkeeping off a per-socket map.
type ReliableSender struct {
	mu             sync.Mutex
	outstanding    map[outstandingKey]*outstandingEntry
	resendInterval time.Duration
	maxRetries     int
	socket         *Socket

	torndown bool
}

// NewReliableSender constructs a sender bound to socket with the
// default resend interval and retry budget.
func NewReliableSender(socket *Socket) *ReliableSender {
	return &ReliableSender{
		outstanding:    make(map[outstandingKey]*outstandingEntry),
		resendInterval: DefaultResendInterval,
		maxRetries:     DefaultMaxRetries,
		socket:         socket,
	}
}

// Send transmits packet to peer immediately and, if reliable, records
// it in the outstanding table for the retry loop to manage.
func (r *ReliableSender) Send(peer *net.UDPAddr, kind ActionKind, packetID uint64, payload []byte, reliable bool, onComplete CompletionHandler) Result {
	packet := Encode(kind, reliable, packetID, payload)
	res := r.socket.Send(peer, packet)
	if res != ResultOK {
		return res
	}
	if !reliable {
		return res
	}

	_, _, hash := headerFields(packet)
	key := outstandingKey{peer: peer.String(), id: packetID, hash: hash}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.torndown {
		if onComplete != nil {
			onComplete(false, 0)
		}
		return res
	}
	r.outstanding[key] = &outstandingEntry{
		peer: peer, packet: packet, lastSend: time.Now(),
		retriesLeft: r.maxRetries, onComplete: onComplete,
	}
	return res
}

func headerFields(packet []byte) (uint32, uint64, uint64) {
	h, _, _ := Decode(packet)
	return uint32(h.ActionKind), h.PacketID, h.PayloadHash
}

// Ack marks a packet as acknowledged and fires its completion handler
// with success, removing it from the outstanding table.
func (r *ReliableSender) Ack(peer *net.UDPAddr, packetID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, entry := range r.outstanding {
		if key.peer == peer.String() && key.id == packetID {
			delete(r.outstanding, key)
			if entry.onComplete != nil {
				entry.onComplete(true, entry.retriesUsed)
			}
			return
		}
	}
}

// AckCorrupted is the hash-mismatch fast path: the receiver reports a
// corrupted packet, so the sender resends immediately instead of
// waiting out the resend interval.
func (r *ReliableSender) AckCorrupted(peer *net.UDPAddr, packetID uint64) {
	r.mu.Lock()
	var entry *outstandingEntry
	for key, e := range r.outstanding {
		if key.peer == peer.String() && key.id == packetID {
			entry = e
			break
		}
	}
	r.mu.Unlock()
	if entry == nil || entry.retriesLeft <= 0 {
		return
	}
	r.resendNow(entry)
}

// Tick drives the resend loop: entries whose resend interval has
// elapsed are re-emitted and have a retry consumed; entries whose
// retry budget is exhausted fire their completion handler with
// failure and are dropped. Call once per tick.
func (r *ReliableSender) Tick() {
	now := time.Now()
	var toFail []*outstandingEntry
	var toResend []*outstandingEntry

	r.mu.Lock()
	for key, entry := range r.outstanding {
		if entry.retriesLeft <= 0 {
			toFail = append(toFail, entry)
			delete(r.outstanding, key)
			continue
		}
		if now.Sub(entry.lastSend) >= r.resendInterval {
			toResend = append(toResend, entry)
		}
	}
	r.mu.Unlock()

	for _, e := range toResend {
		r.resendNow(e)
	}
	for _, e := range toFail {
		if e.onComplete != nil {
			e.onComplete(false, e.retriesUsed)
		}
	}
}

func (r *ReliableSender) resendNow(entry *outstandingEntry) {
	r.mu.Lock()
	entry.retriesLeft--
	entry.retriesUsed++
	entry.lastSend = time.Now()
	r.mu.Unlock()
	r.socket.Send(entry.peer, entry.packet)
}

// Teardown fails every outstanding send immediately: pending reliable
// sends fail fast at shutdown, their completion handlers receiving
// false.
func (r *ReliableSender) Teardown() {
	r.mu.Lock()
	r.torndown = true
	entries := make([]*outstandingEntry, 0, len(r.outstanding))
	for key, e := range r.outstanding {
		entries = append(entries, e)
		delete(r.outstanding, key)
	}
	r.mu.Unlock()

	for _, e := range entries {
		if e.onComplete != nil {
			e.onComplete(false, e.retriesUsed)
		}
	}
}

// Outstanding returns the current number of in-flight reliable sends
// (an observability hook for internal/metrics).
func (r *ReliableSender) Outstanding() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.outstanding)
}

// ackedEntry is one record in the receiver's dedup cache.
type ackedEntry struct {
	at time.Time
}

// ReliableReceiver deduplicates inbound reliable packets: a first copy
// is recorded, acked and dispatched; a later duplicate re-sends the ack
// without re-invoking the dispatch callback.
type ReliableReceiver struct {
	mu     sync.Mutex
	seen   map[outstandingKey]ackedEntry
	socket *Socket
}

// NewReliableReceiver constructs a receiver bound to socket.
func NewReliableReceiver(socket *Socket) *ReliableReceiver {
	return &ReliableReceiver{seen: make(map[outstandingKey]ackedEntry), socket: socket}
}

// Handle processes one inbound reliable packet from peer. dispatch is
// called exactly once for a given (peer, id, hash) no matter how many
// duplicates arrive; every copy (first or duplicate) gets an ack.
func (r *ReliableReceiver) Handle(peer *net.UDPAddr, packetID uint64, hash uint64, dispatch func()) {
	key := outstandingKey{peer: peer.String(), id: packetID, hash: hash}

	r.mu.Lock()
	r.evictStale()
	_, dup := r.seen[key]
	r.seen[key] = ackedEntry{at: time.Now()}
	r.mu.Unlock()

	r.sendAck(peer, packetID, ActionAckOK)
	if !dup {
		dispatch()
	}
}

// HandleCorrupted sends a "corrupted" ack for a hash-mismatched
// reliable packet so the sender fast-resends.
func (r *ReliableReceiver) HandleCorrupted(peer *net.UDPAddr, packetID uint64) {
	r.sendAck(peer, packetID, ActionAckCorrupted)
}

func (r *ReliableReceiver) sendAck(peer *net.UDPAddr, packetID uint64, kind ActionKind) {
	ack := Ack{AckedID: packetID}
	r.socket.Send(peer, Encode(kind, false, packetID, ack.Marshal()))
}

func (r *ReliableReceiver) evictStale() {
	cutoff := time.Now().Add(-ackCacheTTL)
	for k, e := range r.seen {
		if e.at.Before(cutoff) {
			delete(r.seen, k)
		}
	}
}
