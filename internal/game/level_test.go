package game

import (
	"os"
	"path/filepath"
	"testing"

	"deadfall/internal/config"
)

func TestLevelFromStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arena.lvl")
	content := `[level]
name  = pit
spawn = 300 150

[platform.ground]
rect = 0 500 900

[platform.ledge]
rect = 200 320 180

[wall.0]
line = -20 -400 -20 520
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	store, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	lvl, err := LevelFromStore(store)
	if err != nil {
		t.Fatalf("LevelFromStore: %v", err)
	}

	if lvl.Name != "pit" {
		t.Fatalf("name = %q", lvl.Name)
	}
	if lvl.Spawn.X != 300 || lvl.Spawn.Y != 150 {
		t.Fatalf("spawn = %v", lvl.Spawn)
	}
	if len(lvl.Platforms) != 2 {
		t.Fatalf("platforms = %d, want 2", len(lvl.Platforms))
	}
	if len(lvl.Walls) != 1 {
		t.Fatalf("walls = %d, want 1", len(lvl.Walls))
	}

	// Wire round trip keeps the platform layout intact.
	sync := lvl.ToSync()
	back := LevelFromSync(lvl.Name, lvl.Spawn, sync)
	if len(back.Platforms) != len(lvl.Platforms) {
		t.Fatalf("round trip lost platforms: %d != %d", len(back.Platforms), len(lvl.Platforms))
	}
	for i := range back.Platforms {
		if back.Platforms[i].Name != lvl.Platforms[i].Name {
			t.Fatalf("platform %d name %q != %q", i, back.Platforms[i].Name, lvl.Platforms[i].Name)
		}
	}
}

func TestLevelFromStoreRejectsEmptyPlatforms(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.lvl")
	if err := os.WriteFile(path, []byte("[level]\nname = void\nspawn = 0 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	store, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if _, err := LevelFromStore(store); err == nil {
		t.Fatal("level with no platforms accepted")
	}
}
