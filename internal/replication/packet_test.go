package replication

import (
	"hash/fnv"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := PlayerInput{EventCounter: 42, MoveLeft: true, Fire: true}.Marshal()
	packet := Encode(ActionPlayerInput, true, 7, payload)

	h, got, err := Decode(packet)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if h.ActionKind != ActionPlayerInput || !h.Reliable || h.PacketID != 7 {
		t.Fatalf("header = %+v, unexpected", h)
	}
	in, err := UnmarshalPlayerInput(got)
	if err != nil {
		t.Fatalf("UnmarshalPlayerInput: %v", err)
	}
	if in.EventCounter != 42 || !in.MoveLeft || !in.Fire || in.MoveRight {
		t.Fatalf("round-tripped input = %+v, unexpected", in)
	}
}

func TestPayloadHashMatchesFNV1a64(t *testing.T) {
	payload := []byte("hello replication")
	packet := Encode(ActionServerPing, false, 1, payload)

	h := fnv.New64a()
	h.Write(payload)
	want := h.Sum64()

	hdr, _, err := Decode(packet)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if hdr.PayloadHash != want {
		t.Fatalf("PayloadHash = %d, want %d", hdr.PayloadHash, want)
	}
}

func TestDecodeRejectsTooSmall(t *testing.T) {
	_, _, err := Decode(make([]byte, 10))
	if err != ErrTooSmall {
		t.Fatalf("err = %v, want ErrTooSmall", err)
	}
}

func TestDecodeRejectsHashMismatch(t *testing.T) {
	packet := Encode(ActionServerPing, false, 1, []byte("abc"))
	packet[HeaderSize] ^= 0xFF // corrupt the payload after hashing
	_, _, err := Decode(packet)
	if err != ErrHashMismatch {
		t.Fatalf("err = %v, want ErrHashMismatch", err)
	}
}

func TestNameRoundTrip(t *testing.T) {
	name := EncodeName("a-reasonably-long-player-name-that-overflows")
	got := DecodeName(name)
	if len(got) != NameSize-1 {
		t.Fatalf("truncated name length = %d, want %d", len(got), NameSize-1)
	}

	short := EncodeName("bob")
	if DecodeName(short) != "bob" {
		t.Fatalf("DecodeName(short) = %q, want bob", DecodeName(short))
	}
}

func TestBulletSpawnBatchRoundTrip(t *testing.T) {
	batch := BulletSpawnBatch{Bullets: []BulletSpawn{
		{Origin: Vec2{1, 2}, Velocity: Vec2{100, 0}, Mass: 0.2, Group: -1, OwnerName: "shooter"},
		{Origin: Vec2{3, 4}, Velocity: Vec2{0, -50}, Mass: 0.3, Group: 2, OwnerName: "ai_bot", IsKick: true},
	}}
	got, err := UnmarshalBulletSpawnBatch(batch.Marshal())
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.Bullets) != 2 || got.Bullets[1].OwnerName != "ai_bot" || !got.Bullets[1].IsKick {
		t.Fatalf("round-tripped batch = %+v, unexpected", got)
	}
}

func TestLevelSyncRoundTrip(t *testing.T) {
	sync := LevelSync{Platforms: []PlatformWire{
		{Name: "a", X: 0, Y: 100, Len: 50},
		{Name: "b", X: 200, Y: 150, Len: 80},
	}}
	got, err := UnmarshalLevelSync(sync.Marshal())
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.Platforms) != 2 || got.Platforms[1].Name != "b" || got.Platforms[1].Len != 80 {
		t.Fatalf("round-tripped level sync = %+v, unexpected", got)
	}
}

func TestPlayerPhysicalSyncRoundTrip(t *testing.T) {
	in := PlayerPhysicalSync{
		PlayerName: "hero", Position: Vec2{10, 20}, Velocity: Vec2{1, -2},
		EventCounter: 99, YLocked: true, FacingLeft: true, HP: 75.5, WeaponID: "rifle",
	}
	got, err := UnmarshalPlayerPhysicalSync(in.Marshal())
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != in {
		t.Fatalf("round-tripped sync = %+v, want %+v", got, in)
	}
}
