package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadFileResolvesIncludes(t *testing.T) {
	dir := t.TempDir()
	writeTemp(t, dir, "base.cfg", "[simulation]\ngravity = 500\n")
	main := writeTemp(t, dir, "main.cfg", "#include \"base.cfg\"\n[network]\nmax_retries = 4\n")

	store, err := LoadFile(main)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got := store.Float("simulation", "gravity", -1); got != 500 {
		t.Fatalf("gravity = %v, want 500", got)
	}
	if got := store.Int("network", "max_retries", -1); got != 4 {
		t.Fatalf("max_retries = %v, want 4", got)
	}
}

func TestLoadFileRejectsCircularInclude(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.cfg")
	b := filepath.Join(dir, "b.cfg")
	if err := os.WriteFile(a, []byte("#include \"b.cfg\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("#include \"a.cfg\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(a); err == nil {
		t.Fatal("expected an error for circular #include, got nil")
	}
}

func TestStoreTypedValues(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "values.cfg", `
[ai]
enabled = on
difficulty = "hard"
weights = 1 2 3
spawn = null
bounds = 0 100

`)
	store, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !store.Bool("ai", "enabled", false) {
		t.Fatal("enabled should be true")
	}
	if got := store.String("ai", "difficulty", ""); got != "hard" {
		t.Fatalf("difficulty = %q, want hard", got)
	}
	if got := store.List("ai", "weights"); len(got) != 3 || got[1] != "2" {
		t.Fatalf("weights = %v, unexpected", got)
	}
	if _, present, ok := store.Optional("ai", "spawn"); !present || ok {
		t.Fatalf("spawn optional = present=%v ok=%v, want present=true ok=false", present, ok)
	}
	tuple, err := store.Tuple("ai", "bounds", 2)
	if err != nil || tuple[0] != "0" || tuple[1] != "100" {
		t.Fatalf("bounds tuple = %v, err=%v", tuple, err)
	}
	if _, err := store.Tuple("ai", "bounds", 3); err == nil {
		t.Fatal("expected arity mismatch error")
	}
}

func TestLoadMissingFileIsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.cfg")); err == nil {
		t.Fatal("expected an error loading a nonexistent config file")
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") returned error: %v", err)
	}
	if cfg.Simulation.RPS != DefaultSimulation().RPS {
		t.Fatalf("RPS = %v, want default", cfg.Simulation.RPS)
	}
}
