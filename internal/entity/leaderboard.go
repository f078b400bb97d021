package entity

import "deadfall/internal/spatial"

// Leaderboard ranks players by kill count on a rank-augmented skip
// list.
type Leaderboard struct {
	sl *spatial.SkipList
}

// NewLeaderboard returns an empty leaderboard.
func NewLeaderboard() *Leaderboard {
	return &Leaderboard{sl: spatial.NewSkipList()}
}

// Record sets a player's score (e.g. kill count) in the leaderboard.
func (l *Leaderboard) Record(playerName string, kills float64) {
	l.sl.Insert(playerName, kills)
}

// Remove takes a player out of the leaderboard (e.g. on disconnect).
func (l *Leaderboard) Remove(playerName string) {
	l.sl.Remove(playerName)
}

// Rank returns a player's 1-indexed rank, or 0 if absent.
func (l *Leaderboard) Rank(playerName string) int {
	return l.sl.GetRank(playerName)
}

// Top returns the top n entries, highest score first.
func (l *Leaderboard) Top(n int) []spatial.SkipListEntry {
	return l.sl.GetRange(1, n)
}
