package adminapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"deadfall/internal/ai"
	"deadfall/internal/spatial"
)

type fakeState struct {
	snap *ai.Snapshot
	lb   []spatial.SkipListEntry
}

func (f *fakeState) Snapshot() *ai.Snapshot               { return f.snap }
func (f *fakeState) Leaderboard() []spatial.SkipListEntry { return f.lb }

func TestRouterServesSnapshotAndLeaderboard(t *testing.T) {
	state := &fakeState{
		snap: ai.NewSnapshot(1, nil, nil, ai.PhysicsParams{}, map[string]ai.PlayerParams{
			"alice": {Name: "alice", Alive: true},
		}, nil),
		lb: []spatial.SkipListEntry{{Key: "alice", Score: 3}},
	}
	router := NewRouter(RouterConfig{State: state})
	server := httptest.NewServer(router)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/snapshot")
	if err != nil {
		t.Fatalf("GET /api/snapshot: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	resp2, err := http.Get(server.URL + "/api/leaderboard")
	if err != nil {
		t.Fatalf("GET /api/leaderboard: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp2.StatusCode)
	}

	resp3, err := http.Get(server.URL + "/api/stats")
	if err != nil {
		t.Fatalf("GET /api/stats: %v", err)
	}
	defer resp3.Body.Close()
	if resp3.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp3.StatusCode)
	}

	resp4, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp4.Body.Close()
	if resp4.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp4.StatusCode)
	}
}
