// Package replication implements the lock-step client/server
// replication protocol over an unreliable datagram
// transport — packet framing with a header hash, reliable delivery
// with resend/ack bookkeeping, clock-sync ping/rtt, and server
// authority with client-side prediction and reconciliation.
package replication

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/pkg/errors"
)

// MaxDatagramSize is the maximum payload a single packet may carry:
// the practical Ethernet-MTU-safe UDP payload ceiling.
const MaxDatagramSize = 1472

// HeaderSize is the fixed framing header length: action_kind(4) +
// reliable_flag(4) + packet_id(8) + payload_hash(8).
const HeaderSize = 24

// ActionKind tags the payload that follows the header.
type ActionKind uint32

const (
	ActionClientHello ActionKind = iota
	ActionServerPing
	ActionAckOK
	ActionAckCorrupted
	ActionPlayerInput
	ActionPlayerPhysicalSync
	ActionBulletSpawnBatch
	ActionLevelSync
	ActionPlayerConfigSync
)

// Header is the fixed 24-byte framing prefix every packet starts with.
type Header struct {
	ActionKind  ActionKind
	Reliable    bool
	PacketID    uint64
	PayloadHash uint64
}

// fnv1a64 computes the 64-bit FNV-1a hash used for the payload_hash
// header field, over bytes [HeaderSize..end].
func fnv1a64(data []byte) uint64 {
	h := fnv.New64a()
	h.Write(data)
	return h.Sum64()
}

// Encode frames payload behind a header: action kind, reliable flag,
// packet id, and the payload hash computed after the payload has been
// appended.
func Encode(kind ActionKind, reliable bool, packetID uint64, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(kind))
	var flag uint32
	if reliable {
		flag = 1
	}
	binary.LittleEndian.PutUint32(buf[4:8], flag)
	binary.LittleEndian.PutUint64(buf[8:16], packetID)
	copy(buf[HeaderSize:], payload)
	hash := fnv1a64(buf[HeaderSize:])
	binary.LittleEndian.PutUint64(buf[16:24], hash)
	return buf
}

// ErrTooSmall is returned by Decode when header+payload is under
// HeaderSize bytes; such packets are dropped.
var ErrTooSmall = errors.New("replication: packet smaller than header")

// ErrHashMismatch is returned by Decode when the recomputed FNV-1a hash
// does not match the header's payload_hash field.
var ErrHashMismatch = errors.New("replication: payload hash mismatch")

// Decode parses the framing header and validates the payload hash,
// returning the header and the payload slice (a view into buf, not a
// copy).
func Decode(buf []byte) (Header, []byte, error) {
	if len(buf) < HeaderSize {
		return Header{}, nil, ErrTooSmall
	}
	h := Header{
		ActionKind:  ActionKind(binary.LittleEndian.Uint32(buf[0:4])),
		Reliable:    binary.LittleEndian.Uint32(buf[4:8])&1 != 0,
		PacketID:    binary.LittleEndian.Uint64(buf[8:16]),
		PayloadHash: binary.LittleEndian.Uint64(buf[16:24]),
	}
	payload := buf[HeaderSize:]
	if fnv1a64(payload) != h.PayloadHash {
		return h, payload, ErrHashMismatch
	}
	return h, payload, nil
}
