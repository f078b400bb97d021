// Package config is the single source of truth for runtime settings:
// simulation tuning, the replication layer's network knobs, the AI
// worker's defaults and the admin/metrics server's bind addresses.
//
// Config files are INI-like sections with `key = value`, `#include`
// directives resolved relative to the including file, and a handful of
// typed value shapes (bool, int, float, string, list, tuple, optional)
// layered on top of gopkg.in/ini.v1's plain string values — ini.v1
// parses sections and keys; this package adds the shape grammar and the
// #include preprocessor the file format needs beyond that.
//
// IMPORTANT: this is the single source of truth for tunables. Other
// packages read through AppConfig rather than hard-coding defaults.
package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

// =============================================================================
// #include preprocessing
// =============================================================================

// preprocess reads path and splices in the contents of every #include
// directive it finds, resolved relative to the including file's
// directory, before any ini parsing happens (ini.v1 has no notion of
// includes). Cycles are rejected rather than looping forever.
func preprocess(path string, seen map[string]bool) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrapf(err, "config: resolving %s", path)
	}
	if seen[abs] {
		return "", errors.Errorf("config: circular #include involving %s", path)
	}
	seen[abs] = true

	f, err := os.Open(abs)
	if err != nil {
		return "", errors.Wrapf(err, "config: opening %s", path)
	}
	defer f.Close()

	var out strings.Builder
	dir := filepath.Dir(abs)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#include") {
			target := strings.TrimSpace(strings.TrimPrefix(trimmed, "#include"))
			target = unquote(target)
			if !filepath.IsAbs(target) {
				target = filepath.Join(dir, target)
			}
			included, err := preprocess(target, seen)
			if err != nil {
				return "", err
			}
			out.WriteString(included)
			out.WriteByte('\n')
			continue
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return "", errors.Wrapf(err, "config: reading %s", path)
	}
	return out.String(), nil
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// =============================================================================
// Store: typed access over an ini.File
// =============================================================================

// Store wraps a parsed config file and exposes typed value shapes on
// top of ini.v1's plain-string keys.
type Store struct {
	file *ini.File
}

// LoadFile preprocesses #include directives in path and parses the
// result as an INI document.
func LoadFile(path string) (*Store, error) {
	text, err := preprocess(path, make(map[string]bool))
	if err != nil {
		return nil, err
	}
	file, err := ini.Load([]byte(text))
	if err != nil {
		return nil, errors.Wrapf(err, "config: parsing %s", path)
	}
	return &Store{file: file}, nil
}

// SectionsWithPrefix returns the names of every section starting with
// prefix, in file order. Used for repeated-section layouts like
// [platform.<name>].
func (s *Store) SectionsWithPrefix(prefix string) []string {
	var out []string
	for _, sec := range s.file.Sections() {
		if strings.HasPrefix(sec.Name(), prefix) {
			out = append(out, sec.Name())
		}
	}
	return out
}

func (s *Store) raw(section, key string) (string, bool) {
	sec, err := s.file.GetSection(section)
	if err != nil {
		return "", false
	}
	if !sec.HasKey(key) {
		return "", false
	}
	return sec.Key(key).String(), true
}

// Bool reads a `true/false/on/off` value (case-insensitive).
func (s *Store) Bool(section, key string, def bool) bool {
	v, ok := s.raw(section, key)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "on":
		return true
	case "false", "off":
		return false
	default:
		return def
	}
}

// Int reads an integer value.
func (s *Store) Int(section, key string, def int) int {
	v, ok := s.raw(section, key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// Float reads a floating-point value.
func (s *Store) Float(section, key string, def float64) float64 {
	v, ok := s.raw(section, key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}

// String reads a single/double-quoted or bare string value.
func (s *Store) String(section, key string, def string) string {
	v, ok := s.raw(section, key)
	if !ok {
		return def
	}
	return unquote(strings.TrimSpace(v))
}

// Optional reads a value that may be the literal `null`, returning
// ok=false in that case.
func (s *Store) Optional(section, key string) (value string, present, ok bool) {
	v, present := s.raw(section, key)
	if !present {
		return "", false, false
	}
	v = strings.TrimSpace(v)
	if v == "null" {
		return "", true, false
	}
	return unquote(v), true, true
}

// List reads a homogeneous value list split on whitespace outside
// quotes.
func (s *Store) List(section, key string) []string {
	v, ok := s.raw(section, key)
	if !ok {
		return nil
	}
	return tokenize(v)
}

// Tuple reads a fixed-arity tuple; an arity mismatch is an error since
// tuples, unlike lists, have a known shape the caller depends on.
func (s *Store) Tuple(section, key string, arity int) ([]string, error) {
	tokens := s.List(section, key)
	if tokens == nil {
		return nil, errors.Errorf("config: missing tuple %s.%s", section, key)
	}
	if len(tokens) != arity {
		return nil, errors.Errorf("config: %s.%s has %d elements, want %d", section, key, len(tokens), arity)
	}
	return tokens, nil
}

// tokenize splits on whitespace but keeps quoted substrings intact.
func tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	inQuote := byte(0)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			} else {
				cur.WriteByte(c)
			}
		case c == '"' || c == '\'':
			inQuote = c
		case c == ' ' || c == '\t':
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

// =============================================================================
// SIMULATION CONFIGURATION
// =============================================================================

// SimulationConfig tunes the fixed-timestep physics loop.
type SimulationConfig struct {
	Gravity   float64 // downward acceleration applied to non-fixed bodies
	RPS       float64 // reports-per-second the accumulator steps toward
	TimeSpeed float64 // global simulation speed multiplier
	WorldMinX float64
	WorldMaxX float64
}

// DefaultSimulation returns the baseline simulation tuning.
func DefaultSimulation() SimulationConfig {
	return SimulationConfig{
		Gravity:   980,
		RPS:       60,
		TimeSpeed: 1.0,
		WorldMinX: 0,
		WorldMaxX: 2000,
	}
}

// SimulationFromEnv overlays environment variables onto the defaults.
func SimulationFromEnv() SimulationConfig {
	cfg := DefaultSimulation()
	if v := getEnvFloat("SIM_GRAVITY", -1); v >= 0 {
		cfg.Gravity = v
	}
	if v := getEnvFloat("SIM_RPS", -1); v > 0 {
		cfg.RPS = v
	}
	if v := getEnvFloat("SIM_TIME_SPEED", -1); v > 0 {
		cfg.TimeSpeed = v
	}
	return cfg
}

// SimulationFromStore overlays a parsed config file's [simulation]
// section onto the defaults.
func SimulationFromStore(s *Store) SimulationConfig {
	cfg := DefaultSimulation()
	cfg.Gravity = s.Float("simulation", "gravity", cfg.Gravity)
	cfg.RPS = s.Float("simulation", "rps", cfg.RPS)
	cfg.TimeSpeed = s.Float("simulation", "time_speed", cfg.TimeSpeed)
	cfg.WorldMinX = s.Float("simulation", "world_min_x", cfg.WorldMinX)
	cfg.WorldMaxX = s.Float("simulation", "world_max_x", cfg.WorldMaxX)
	return cfg
}

// =============================================================================
// NETWORK CONFIGURATION
// =============================================================================

// NetworkConfig tunes the replication layer's transport and reliability
// knobs.
type NetworkConfig struct {
	BindAddr             string
	ResendIntervalMS     int
	MaxRetries           int
	PeerRate             float64
	PeerBurst            int
	PhysicSyncIntervalMS int
	ServerSmoothing      float64
	ClientSmoothing      float64
}

// DefaultNetwork mirrors the replication package's own defaults.
func DefaultNetwork() NetworkConfig {
	return NetworkConfig{
		BindAddr:             ":9977",
		ResendIntervalMS:     200,
		MaxRetries:           10,
		PeerRate:             240,
		PeerBurst:            64,
		PhysicSyncIntervalMS: 60,
		ServerSmoothing:      0.25,
		ClientSmoothing:      0.3,
	}
}

// NetworkFromEnv overlays environment variables onto the defaults.
func NetworkFromEnv() NetworkConfig {
	cfg := DefaultNetwork()
	if v := os.Getenv("NET_BIND_ADDR"); v != "" {
		cfg.BindAddr = v
	}
	if v := getEnvInt("NET_MAX_RETRIES", -1); v >= 0 {
		cfg.MaxRetries = v
	}
	return cfg
}

// NetworkFromStore overlays a parsed config file's [network] section
// onto the defaults.
func NetworkFromStore(s *Store) NetworkConfig {
	cfg := DefaultNetwork()
	cfg.BindAddr = s.String("network", "bind_addr", cfg.BindAddr)
	cfg.ResendIntervalMS = s.Int("network", "resend_interval_ms", cfg.ResendIntervalMS)
	cfg.MaxRetries = s.Int("network", "max_retries", cfg.MaxRetries)
	cfg.PeerRate = s.Float("network", "peer_rate", cfg.PeerRate)
	cfg.PeerBurst = s.Int("network", "peer_burst", cfg.PeerBurst)
	cfg.PhysicSyncIntervalMS = s.Int("network", "physic_sync_interval_ms", cfg.PhysicSyncIntervalMS)
	cfg.ServerSmoothing = s.Float("network", "server_smoothing", cfg.ServerSmoothing)
	cfg.ClientSmoothing = s.Float("network", "client_smoothing", cfg.ClientSmoothing)
	return cfg
}

// =============================================================================
// AI CONFIGURATION
// =============================================================================

// AIConfig tunes the AI worker's default operators.
type AIConfig struct {
	DefaultDifficulty string
	PollIntervalMS    int
}

// DefaultAI returns the AI worker's baseline tuning.
func DefaultAI() AIConfig {
	return AIConfig{DefaultDifficulty: "medium", PollIntervalMS: 1}
}

// AIFromStore overlays a parsed config file's [ai] section onto the
// defaults.
func AIFromStore(s *Store) AIConfig {
	cfg := DefaultAI()
	cfg.DefaultDifficulty = s.String("ai", "default_difficulty", cfg.DefaultDifficulty)
	cfg.PollIntervalMS = s.Int("ai", "poll_interval_ms", cfg.PollIntervalMS)
	return cfg
}

// =============================================================================
// ADMIN / OBSERVABILITY SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds the admin/metrics HTTP server's bind address, kept
// loopback-only by default since it exposes internal state.
type ServerConfig struct {
	AdminAddr string
}

// DefaultServer returns the default admin server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{AdminAddr: "127.0.0.1:8090"}
}

// ServerFromEnv overlays environment variables onto the defaults.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()
	if v := os.Getenv("ADMIN_ADDR"); v != "" {
		cfg.AdminAddr = v
	}
	return cfg
}

// ServerFromStore overlays a parsed config file's [server] section onto
// the defaults.
func ServerFromStore(s *Store) ServerConfig {
	cfg := DefaultServer()
	cfg.AdminAddr = s.String("server", "admin_addr", cfg.AdminAddr)
	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Simulation SimulationConfig
	Network    NetworkConfig
	AI         AIConfig
	Server     ServerConfig
}

// LoadDefault returns the complete configuration with only environment
// overrides applied (no config file on disk).
func LoadDefault() AppConfig {
	return AppConfig{
		Simulation: SimulationFromEnv(),
		Network:    NetworkFromEnv(),
		AI:         DefaultAI(),
		Server:     ServerFromEnv(),
	}
}

// Load reads path (applying #include and the typed-value grammar),
// falling back to environment-only defaults if path is empty. A
// present-but-invalid file aborts start-up: the caller should treat a
// non-nil error as fatal.
func Load(path string) (AppConfig, error) {
	if path == "" {
		return LoadDefault(), nil
	}
	store, err := LoadFile(path)
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Simulation: SimulationFromStore(store),
		Network:    NetworkFromStore(store),
		AI:         AIFromStore(store),
		Server:     ServerFromStore(store),
	}, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
