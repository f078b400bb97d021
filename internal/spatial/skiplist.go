// Package spatial holds the small concurrent data structures the
// entity and AI layers share: the rank-augmented skip list backing the
// kill leaderboard and the bounded MPSC ring buffer carrying AI
// actions to the main loop.
package spatial

import (
	"math/rand"
	"sync"
	"sync/atomic"
)

const (
	maxLevel         = 32
	levelProbability = 0.25
)

// SkipListEntry is one scored row: a player name and its kill count.
type SkipListEntry struct {
	Key   string
	Score float64
}

type skipNode struct {
	entry SkipListEntry
	next  []*skipNode
	// span[i] is the number of rank positions crossed by following
	// next[i]; it is what lets GetRange descend to its start rank in
	// O(log n). GetRank scans the bottom level instead.
	span []int
}

// SkipList is a span-augmented skip list ordered by descending score
// (ties broken by ascending key). Writers take the mutex; Length is
// readable without it.
type SkipList struct {
	head   *skipNode
	level  int32
	length int32
	mu     sync.RWMutex
	rng    *rand.Rand
}

// NewSkipList returns an empty list.
func NewSkipList() *SkipList {
	return &SkipList{
		head: &skipNode{
			next: make([]*skipNode, maxLevel),
			span: make([]int, maxLevel),
		},
		level: 1,
		rng:   rand.New(rand.NewSource(rand.Int63())),
	}
}

func (sl *SkipList) randomLevel() int {
	level := 1
	for level < maxLevel && sl.rng.Float64() < levelProbability {
		level++
	}
	return level
}

// Insert sets key's score, repositioning it if it was already present.
func (sl *SkipList) Insert(key string, score float64) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.removeLocked(key)
	sl.insertLocked(key, score)
}

// Remove deletes key, reporting whether it was present.
func (sl *SkipList) Remove(key string) bool {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.removeLocked(key)
}

func (sl *SkipList) insertLocked(key string, score float64) {
	update := make([]*skipNode, maxLevel)
	rank := make([]int, maxLevel)

	x := sl.head
	for i := int(sl.level) - 1; i >= 0; i-- {
		if i == int(sl.level)-1 {
			rank[i] = 0
		} else {
			rank[i] = rank[i+1]
		}
		for x.next[i] != nil && (x.next[i].entry.Score > score ||
			(x.next[i].entry.Score == score && x.next[i].entry.Key < key)) {
			rank[i] += x.span[i]
			x = x.next[i]
		}
		update[i] = x
	}

	newLevel := sl.randomLevel()
	if newLevel > int(sl.level) {
		for i := int(sl.level); i < newLevel; i++ {
			rank[i] = 0
			update[i] = sl.head
			update[i].span[i] = int(sl.length)
		}
		atomic.StoreInt32(&sl.level, int32(newLevel))
	}

	node := &skipNode{
		entry: SkipListEntry{Key: key, Score: score},
		next:  make([]*skipNode, newLevel),
		span:  make([]int, newLevel),
	}
	for i := 0; i < newLevel; i++ {
		node.next[i] = update[i].next[i]
		update[i].next[i] = node
		node.span[i] = update[i].span[i] - (rank[0] - rank[i])
		update[i].span[i] = (rank[0] - rank[i]) + 1
	}
	for i := newLevel; i < int(sl.level); i++ {
		update[i].span[i]++
	}

	atomic.AddInt32(&sl.length, 1)
}

// removeLocked finds key by scanning the bottom level (the score is
// unknown at call time, so the sorted descent cannot locate it), then
// unlinks it through a freshly-built update path.
func (sl *SkipList) removeLocked(key string) bool {
	var target *skipNode
	for x := sl.head.next[0]; x != nil; x = x.next[0] {
		if x.entry.Key == key {
			target = x
			break
		}
	}
	if target == nil {
		return false
	}

	update := make([]*skipNode, maxLevel)
	x := sl.head
	for i := int(sl.level) - 1; i >= 0; i-- {
		for x.next[i] != nil && (x.next[i].entry.Score > target.entry.Score ||
			(x.next[i].entry.Score == target.entry.Score && x.next[i].entry.Key < key)) {
			x = x.next[i]
		}
		update[i] = x
	}

	for i := 0; i < int(sl.level); i++ {
		if update[i].next[i] == target {
			update[i].span[i] += target.span[i] - 1
			update[i].next[i] = target.next[i]
		} else {
			update[i].span[i]--
		}
	}
	for sl.level > 1 && sl.head.next[sl.level-1] == nil {
		atomic.AddInt32(&sl.level, -1)
	}
	atomic.AddInt32(&sl.length, -1)
	return true
}

// GetRank returns key's 1-indexed rank (1 = highest score), or 0 when
// absent.
func (sl *SkipList) GetRank(key string) int {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	rank := 0
	for x := sl.head.next[0]; x != nil; x = x.next[0] {
		rank++
		if x.entry.Key == key {
			return rank
		}
	}
	return 0
}

// GetRange returns the entries at ranks [start, end], inclusive and
// 1-indexed, best first.
func (sl *SkipList) GetRange(start, end int) []SkipListEntry {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	if start <= 0 {
		start = 1
	}
	if end > int(sl.length) {
		end = int(sl.length)
	}
	if start > end {
		return nil
	}

	result := make([]SkipListEntry, 0, end-start+1)
	traversed := 0
	x := sl.head
	for i := int(sl.level) - 1; i >= 0; i-- {
		for x.next[i] != nil && traversed+x.span[i] < start {
			traversed += x.span[i]
			x = x.next[i]
		}
	}
	for x = x.next[0]; x != nil && traversed < end; x = x.next[0] {
		traversed++
		if traversed >= start {
			result = append(result, x.entry)
		}
	}
	return result
}

// GetScore returns key's score if present.
func (sl *SkipList) GetScore(key string) (float64, bool) {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	for x := sl.head.next[0]; x != nil; x = x.next[0] {
		if x.entry.Key == key {
			return x.entry.Score, true
		}
	}
	return 0, false
}

// Length returns the number of entries.
func (sl *SkipList) Length() int {
	return int(atomic.LoadInt32(&sl.length))
}
