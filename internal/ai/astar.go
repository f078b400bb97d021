package ai

import "container/heap"

// pqItem is one entry in the A* open set.
type pqItem struct {
	platform string
	priority float64
	index    int
}

// platformQueue is a container/heap min-heap ordered by cumulative
// Euclidean path length. The node set is a handful of named platforms,
// so a hand-rolled heap beats pulling in a graph library.
type platformQueue []*pqItem

func (pq platformQueue) Len() int           { return len(pq) }
func (pq platformQueue) Less(i, j int) bool { return pq[i].priority < pq[j].priority }
func (pq platformQueue) Swap(i, j int)      { pq[i], pq[j] = pq[j], pq[i]; pq[i].index = i; pq[j].index = j }
func (pq *platformQueue) Push(x interface{}) {
	item := x.(*pqItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}
func (pq *platformQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}

// platformIndex resolves a platform name to its row/column in the
// snapshot's Platforms/Adjacency arrays, or -1 if unknown.
func platformIndex(snap *Snapshot, name string) int {
	for i, p := range snap.Platforms {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// AStarPath finds the lowest cumulative-distance hop sequence from
// fromPlatform to toPlatform using the snapshot's precomputed
// platform-to-platform adjacency map as edge weights.
//
// The heuristic is straight-line distance to the goal platform's
// centre, which is admissible because adjacency costs are themselves
// Euclidean path lengths (never shorter than the straight line).
func AStarPath(snap *Snapshot, fromPlatform, toPlatform string) []string {
	from := platformIndex(snap, fromPlatform)
	to := platformIndex(snap, toPlatform)
	if from < 0 || to < 0 {
		return nil
	}
	if from == to {
		return []string{snap.Platforms[from].Name}
	}

	n := len(snap.Platforms)
	gScore := make([]float64, n)
	cameFrom := make([]int, n)
	visited := make([]bool, n)
	for i := range gScore {
		gScore[i] = posInf
		cameFrom[i] = -1
	}
	gScore[from] = 0

	goalCenter := snap.Platforms[to].Center()
	heuristic := func(i int) float64 {
		return snap.Platforms[i].Center().Sub(goalCenter).Length()
	}

	pq := &platformQueue{}
	heap.Init(pq)
	heap.Push(pq, &pqItem{platform: snap.Platforms[from].Name, priority: heuristic(from)})
	nodeOf := map[string]int{snap.Platforms[from].Name: from}

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(*pqItem)
		ci, ok := nodeOf[cur.platform]
		if !ok || visited[ci] {
			continue
		}
		visited[ci] = true
		if ci == to {
			break
		}
		for j := 0; j < n; j++ {
			if j == ci || visited[j] {
				continue
			}
			cost := snap.Adjacency[ci][j]
			if cost >= posInf {
				continue
			}
			cand := gScore[ci] + cost
			if cand < gScore[j] {
				gScore[j] = cand
				cameFrom[j] = ci
				nodeOf[snap.Platforms[j].Name] = j
				heap.Push(pq, &pqItem{platform: snap.Platforms[j].Name, priority: cand + heuristic(j)})
			}
		}
	}

	if gScore[to] >= posInf {
		return nil
	}

	path := []string{snap.Platforms[to].Name}
	for at := to; cameFrom[at] != -1; {
		at = cameFrom[at]
		path = append([]string{snap.Platforms[at].Name}, path...)
	}
	return path
}

const posInf = 1e18

// BuildAdjacency precomputes the platform distance-vector map:
// Adjacency[i][j] is the Euclidean distance between
// platform centres when a point could plausibly hop between them
// (reachable by a single jump, approximated here as "within
// maxHopDistance"), or the posInf sentinel (1e18) otherwise. Indirect reachability is then
// resolved at query time by AStarPath, not baked into this matrix.
func BuildAdjacency(platforms []PlatformInfo, maxHopDistance float64) [][]float64 {
	n := len(platforms)
	adj := make([][]float64, n)
	for i := range adj {
		adj[i] = make([]float64, n)
		for j := range adj[i] {
			if i == j {
				continue
			}
			d := platforms[i].Center().Sub(platforms[j].Center()).Length()
			if d <= maxHopDistance {
				adj[i][j] = d
			} else {
				adj[i][j] = posInf
			}
		}
	}
	return adj
}
