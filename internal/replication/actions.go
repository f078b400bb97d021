package replication

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// NameSize is the fixed-capacity, zero-padded buffer used for player
// names on the wire: 23 bytes plus a NUL terminator.
const NameSize = 24

// EncodeName writes name into a fixed NameSize buffer, truncating to
// 23 bytes and always NUL-terminating.
func EncodeName(name string) [NameSize]byte {
	var buf [NameSize]byte
	n := len(name)
	if n > NameSize-1 {
		n = NameSize - 1
	}
	copy(buf[:n], name[:n])
	return buf
}

// DecodeName reads a NUL-terminated, zero-padded name buffer back into
// a string.
func DecodeName(buf [NameSize]byte) string {
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n])
}

func putFloat32(buf []byte, off int, v float32) {
	binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
}
func getFloat32(buf []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
}
func putFloat64(buf []byte, off int, v float64) {
	binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(v))
}
func getFloat64(buf []byte, off int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(buf[off:]))
}

// Vec2 is the wire representation of a 2-D vector: two binary32
// floats.
type Vec2 struct{ X, Y float32 }

func putVec2(buf []byte, off int, v Vec2) {
	putFloat32(buf, off, v.X)
	putFloat32(buf, off+4, v.Y)
}
func getVec2(buf []byte, off int) Vec2 {
	return Vec2{X: getFloat32(buf, off), Y: getFloat32(buf, off+4)}
}

// --- ClientHello -----------------------------------------------------

// ClientHello is sent once by a connecting client.
type ClientHello struct {
	PlayerName string
}

func (a ClientHello) Marshal() []byte {
	buf := make([]byte, NameSize)
	name := EncodeName(a.PlayerName)
	copy(buf, name[:])
	return buf
}

func UnmarshalClientHello(b []byte) (ClientHello, error) {
	if len(b) < NameSize {
		return ClientHello{}, errors.New("replication: ClientHello payload too short")
	}
	var name [NameSize]byte
	copy(name[:], b[:NameSize])
	return ClientHello{PlayerName: DecodeName(name)}, nil
}

// --- ServerPing --------------------------------------------------------

// ServerPing carries a local id the client echoes back unchanged for
// clock sync.
type ServerPing struct {
	PingID     uint64
	ServerTime float64
}

func (a ServerPing) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], a.PingID)
	putFloat64(buf, 8, a.ServerTime)
	return buf
}

func UnmarshalServerPing(b []byte) (ServerPing, error) {
	if len(b) < 16 {
		return ServerPing{}, errors.New("replication: ServerPing payload too short")
	}
	return ServerPing{
		PingID:     binary.LittleEndian.Uint64(b[0:8]),
		ServerTime: getFloat64(b, 8),
	}, nil
}

// --- Acks --------------------------------------------------------------

// AckOK/AckCorrupted both carry just the packet id being acknowledged;
// AckCorrupted additionally signals a hash mismatch so the sender fast-
// resends instead of waiting out the full resend interval.
type Ack struct {
	AckedID uint64
}

func (a Ack) Marshal() []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, a.AckedID)
	return buf
}

func UnmarshalAck(b []byte) (Ack, error) {
	if len(b) < 8 {
		return Ack{}, errors.New("replication: Ack payload too short")
	}
	return Ack{AckedID: binary.LittleEndian.Uint64(b)}, nil
}

// --- PlayerInput ---------------------------------------------------------

// inputFlag bit positions within PlayerInput's packed flag byte.
const (
	flagMoveLeft = 1 << iota
	flagMoveRight
	flagFire
	flagJump
	flagJumpDown
	flagYLocked
)

// PlayerInput is the per-tick input-state delta a client sends.
type PlayerInput struct {
	EventCounter uint64
	MoveLeft     bool
	MoveRight    bool
	Fire         bool
	Jump         bool
	JumpDown     bool
	YLocked      bool
}

func (a PlayerInput) Marshal() []byte {
	buf := make([]byte, 9)
	binary.LittleEndian.PutUint64(buf[0:8], a.EventCounter)
	var flags byte
	if a.MoveLeft {
		flags |= flagMoveLeft
	}
	if a.MoveRight {
		flags |= flagMoveRight
	}
	if a.Fire {
		flags |= flagFire
	}
	if a.Jump {
		flags |= flagJump
	}
	if a.JumpDown {
		flags |= flagJumpDown
	}
	if a.YLocked {
		flags |= flagYLocked
	}
	buf[8] = flags
	return buf
}

func UnmarshalPlayerInput(b []byte) (PlayerInput, error) {
	if len(b) < 9 {
		return PlayerInput{}, errors.New("replication: PlayerInput payload too short")
	}
	flags := b[8]
	return PlayerInput{
		EventCounter: binary.LittleEndian.Uint64(b[0:8]),
		MoveLeft:     flags&flagMoveLeft != 0,
		MoveRight:    flags&flagMoveRight != 0,
		Fire:         flags&flagFire != 0,
		Jump:         flags&flagJump != 0,
		JumpDown:     flags&flagJumpDown != 0,
		YLocked:      flags&flagYLocked != 0,
	}, nil
}

// --- PlayerPhysicalSync ----------------------------------------------------

// PlayerPhysicalSync is the server's (or, pre-reconciliation, a
// client's) authoritative physical state for one player: position,
// velocity, gun state and the event counter used for ordering.
type PlayerPhysicalSync struct {
	PlayerName   string
	Position     Vec2
	Velocity     Vec2
	EventCounter uint64
	YLocked      bool
	FacingLeft   bool
	HP           float32
	WeaponID     string
}

func (a PlayerPhysicalSync) Marshal() []byte {
	buf := make([]byte, NameSize+8+8+8+1+NameSize+4)
	off := 0
	name := EncodeName(a.PlayerName)
	copy(buf[off:], name[:])
	off += NameSize
	putVec2(buf, off, a.Position)
	off += 8
	putVec2(buf, off, a.Velocity)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], a.EventCounter)
	off += 8
	var flags byte
	if a.YLocked {
		flags |= 1
	}
	if a.FacingLeft {
		flags |= 2
	}
	buf[off] = flags
	off++
	weapon := EncodeName(a.WeaponID)
	copy(buf[off:], weapon[:])
	off += NameSize
	putFloat32(buf, off, a.HP)
	return buf
}

func UnmarshalPlayerPhysicalSync(b []byte) (PlayerPhysicalSync, error) {
	want := NameSize + 8 + 8 + 8 + 1 + NameSize + 4
	if len(b) < want {
		return PlayerPhysicalSync{}, errors.New("replication: PlayerPhysicalSync payload too short")
	}
	off := 0
	var name [NameSize]byte
	copy(name[:], b[off:])
	off += NameSize
	pos := getVec2(b, off)
	off += 8
	vel := getVec2(b, off)
	off += 8
	evt := binary.LittleEndian.Uint64(b[off:])
	off += 8
	flags := b[off]
	off++
	var weapon [NameSize]byte
	copy(weapon[:], b[off:])
	off += NameSize
	hp := getFloat32(b, off)

	return PlayerPhysicalSync{
		PlayerName:   DecodeName(name),
		Position:     pos,
		Velocity:     vel,
		EventCounter: evt,
		YLocked:      flags&1 != 0,
		FacingLeft:   flags&2 != 0,
		WeaponID:     DecodeName(weapon),
		HP:           hp,
	}, nil
}

// --- BulletSpawnBatch --------------------------------------------------

// BulletSpawn is one bullet within a BulletSpawnBatch.
type BulletSpawn struct {
	Origin      Vec2
	Velocity    Vec2
	Mass        float32
	Group       int32
	TracerColor [3]byte
	OwnerName   string
	IsKick      bool
}

// BulletSpawnBatch is a vector of bullet spawns, length-prefixed with
// a u64 on the wire.
type BulletSpawnBatch struct {
	Bullets []BulletSpawn
}

const bulletSpawnWireSize = 8 + 8 + 4 + 4 + 3 + 1 + NameSize

func (a BulletSpawnBatch) Marshal() []byte {
	buf := make([]byte, 8+len(a.Bullets)*bulletSpawnWireSize)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(len(a.Bullets)))
	off := 8
	for _, b := range a.Bullets {
		putVec2(buf, off, b.Origin)
		off += 8
		putVec2(buf, off, b.Velocity)
		off += 8
		putFloat32(buf, off, b.Mass)
		off += 4
		binary.LittleEndian.PutUint32(buf[off:], uint32(b.Group))
		off += 4
		copy(buf[off:off+3], b.TracerColor[:])
		off += 3
		if b.IsKick {
			buf[off] = 1
		}
		off++
		name := EncodeName(b.OwnerName)
		copy(buf[off:], name[:])
		off += NameSize
	}
	return buf
}

func UnmarshalBulletSpawnBatch(b []byte) (BulletSpawnBatch, error) {
	if len(b) < 8 {
		return BulletSpawnBatch{}, errors.New("replication: BulletSpawnBatch payload too short")
	}
	count := binary.LittleEndian.Uint64(b[0:8])
	off := 8
	out := make([]BulletSpawn, 0, count)
	for i := uint64(0); i < count; i++ {
		if off+bulletSpawnWireSize > len(b) {
			return BulletSpawnBatch{}, errors.New("replication: BulletSpawnBatch truncated")
		}
		spawn := BulletSpawn{
			Origin:   getVec2(b, off),
			Velocity: getVec2(b, off+8),
			Mass:     getFloat32(b, off+16),
			Group:    int32(binary.LittleEndian.Uint32(b[off+20:])),
		}
		copy(spawn.TracerColor[:], b[off+24:off+27])
		spawn.IsKick = b[off+27] != 0
		var name [NameSize]byte
		copy(name[:], b[off+28:])
		spawn.OwnerName = DecodeName(name)
		off += bulletSpawnWireSize
		out = append(out, spawn)
	}
	return BulletSpawnBatch{Bullets: out}, nil
}

// --- LevelSync -----------------------------------------------------------

// PlatformWire is one platform's wire geometry.
type PlatformWire struct {
	Name string
	X, Y float32
	Len  float32
}

// LevelSync carries the full static platform layout for a level.
type LevelSync struct {
	Platforms []PlatformWire
}

const platformWireSize = NameSize + 4 + 4 + 4

func (a LevelSync) Marshal() []byte {
	buf := make([]byte, 8+len(a.Platforms)*platformWireSize)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(len(a.Platforms)))
	off := 8
	for _, p := range a.Platforms {
		name := EncodeName(p.Name)
		copy(buf[off:], name[:])
		off += NameSize
		putFloat32(buf, off, p.X)
		off += 4
		putFloat32(buf, off, p.Y)
		off += 4
		putFloat32(buf, off, p.Len)
		off += 4
	}
	return buf
}

func UnmarshalLevelSync(b []byte) (LevelSync, error) {
	if len(b) < 8 {
		return LevelSync{}, errors.New("replication: LevelSync payload too short")
	}
	count := binary.LittleEndian.Uint64(b[0:8])
	off := 8
	out := make([]PlatformWire, 0, count)
	for i := uint64(0); i < count; i++ {
		if off+platformWireSize > len(b) {
			return LevelSync{}, errors.New("replication: LevelSync truncated")
		}
		var name [NameSize]byte
		copy(name[:], b[off:])
		p := PlatformWire{
			Name: DecodeName(name),
			X:    getFloat32(b, off+NameSize),
			Y:    getFloat32(b, off+NameSize+4),
			Len:  getFloat32(b, off+NameSize+8),
		}
		off += platformWireSize
		out = append(out, p)
	}
	return LevelSync{Platforms: out}, nil
}

// --- PlayerConfigSync ------------------------------------------------------

// PlayerConfigSync carries non-physical per-player configuration:
// weapon selection, group tag and tracer colour.
type PlayerConfigSync struct {
	PlayerName  string
	WeaponID    string
	GroupTag    int32
	TracerColor [3]byte
}

func (a PlayerConfigSync) Marshal() []byte {
	buf := make([]byte, NameSize+NameSize+4+3)
	off := 0
	name := EncodeName(a.PlayerName)
	copy(buf[off:], name[:])
	off += NameSize
	weapon := EncodeName(a.WeaponID)
	copy(buf[off:], weapon[:])
	off += NameSize
	binary.LittleEndian.PutUint32(buf[off:], uint32(a.GroupTag))
	off += 4
	copy(buf[off:], a.TracerColor[:])
	return buf
}

func UnmarshalPlayerConfigSync(b []byte) (PlayerConfigSync, error) {
	want := NameSize + NameSize + 4 + 3
	if len(b) < want {
		return PlayerConfigSync{}, errors.New("replication: PlayerConfigSync payload too short")
	}
	off := 0
	var name [NameSize]byte
	copy(name[:], b[off:])
	off += NameSize
	var weapon [NameSize]byte
	copy(weapon[:], b[off:])
	off += NameSize
	group := int32(binary.LittleEndian.Uint32(b[off:]))
	off += 4
	var color [3]byte
	copy(color[:], b[off:])
	return PlayerConfigSync{
		PlayerName:  DecodeName(name),
		WeaponID:    DecodeName(weapon),
		GroupTag:    group,
		TracerColor: color,
	}, nil
}
