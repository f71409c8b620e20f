package tournament

import "github.com/google/btree"

// LeaderboardEntry is one ranked row. Rank starts at 1.
type LeaderboardEntry struct {
	Rank        int
	UserID      string
	Score       int
	Performance int
}

type boardItem struct {
	uid   string
	score int
	perf  int
	seq   int
}

// boardLess is a total order: points, performance, join order, then id.
func boardLess(a, b boardItem) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if a.perf != b.perf {
		return a.perf > b.perf
	}
	if a.seq != b.seq {
		return a.seq < b.seq
	}
	return a.uid < b.uid
}

// Leaderboard keeps ranked players in a btree with an id index so a
// reposition is a delete plus an insert.
type Leaderboard struct {
	tree  *btree.BTreeG[boardItem]
	items map[string]boardItem
}

func NewLeaderboard() *Leaderboard {
	return &Leaderboard{
		tree:  btree.NewG[boardItem](16, boardLess),
		items: make(map[string]boardItem),
	}
}

func (l *Leaderboard) Set(uid string, score, perf, seq int) {
	if old, ok := l.items[uid]; ok {
		l.tree.Delete(old)
	}
	it := boardItem{uid: uid, score: score, perf: perf, seq: seq}
	l.tree.ReplaceOrInsert(it)
	l.items[uid] = it
}

func (l *Leaderboard) Remove(uid string) {
	if old, ok := l.items[uid]; ok {
		l.tree.Delete(old)
		delete(l.items, uid)
	}
}

func (l *Leaderboard) Len() int { return l.tree.Len() }

// Rank returns the 1-based position of uid, or 0 when it is not ranked.
func (l *Leaderboard) Rank(uid string) int {
	it, ok := l.items[uid]
	if !ok {
		return 0
	}
	rank := 0
	l.tree.AscendLessThan(it, func(boardItem) bool {
		rank++
		return true
	})
	return rank + 1
}

// Entries lists at most limit rows from the top; limit <= 0 means all.
func (l *Leaderboard) Entries(limit int) []LeaderboardEntry {
	n := l.tree.Len()
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]LeaderboardEntry, 0, n)
	l.tree.Ascend(func(it boardItem) bool {
		if len(out) == n {
			return false
		}
		out = append(out, LeaderboardEntry{Rank: len(out) + 1, UserID: it.uid, Score: it.score, Performance: it.perf})
		return true
	})
	return out
}

func (l *Leaderboard) Top() (LeaderboardEntry, bool) {
	it, ok := l.tree.Min()
	if !ok {
		return LeaderboardEntry{}, false
	}
	return LeaderboardEntry{Rank: 1, UserID: it.uid, Score: it.score, Performance: it.perf}, true
}

// ranks maps every ranked player to its position in one pass.
func (l *Leaderboard) ranks() map[string]int {
	out := make(map[string]int, l.tree.Len())
	i := 0
	l.tree.Ascend(func(it boardItem) bool {
		i++
		out[it.uid] = i
		return true
	})
	return out
}
