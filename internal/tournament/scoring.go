package tournament

import (
	"math"

	"github.com/park285/Cheese-Tournament/internal/movecodec"
	"github.com/park285/Cheese-Tournament/internal/pairing"
)

const (
	winPoints   = 2
	drawPoints  = 1
	onFireAfter = 2   // consecutive wins before arena points double
	perfSwing   = 500 // performance credit for a win, debit for a loss
)

// score applies a terminated game to its two players. Arena doubles the
// points of players on a streak and pays a berserk bonus on wins; the
// round-based systems use flat points.
func score(sys pairing.System, w, b *PlayerData, g GameData) {
	arena := sys == pairing.Arena
	side := func(p *PlayerData, won, lost, berserk bool, oppRating int) {
		switch {
		case won:
			pts := winPoints
			if arena && p.WinStreak >= onFireAfter {
				pts *= 2
			}
			if arena && berserk {
				pts++
			}
			p.Points += pts
			p.Wins++
			p.WinStreak++
			updatePerformance(p, oppRating+perfSwing)
		case lost:
			p.WinStreak = 0
			updatePerformance(p, oppRating-perfSwing)
		default:
			pts := drawPoints
			if arena && p.WinStreak >= onFireAfter {
				pts *= 2
			}
			p.Points += pts
			p.WinStreak = 0
			updatePerformance(p, oppRating)
		}
		if berserk {
			p.Berserks++
		}
	}
	whiteWon := g.Result == movecodec.WhiteWins
	blackWon := g.Result == movecodec.BlackWins
	side(w, whiteWon, blackWon, g.WhiteBerserk, g.BlackRating)
	side(b, blackWon, whiteWon, g.BlackBerserk, g.WhiteRating)
}

// updatePerformance keeps a rounded running average over games played.
func updatePerformance(p *PlayerData, perf int) {
	p.NbGames++
	n := float64(p.NbGames)
	p.Performance = int(math.Round((float64(p.Performance)*(n-1) + float64(perf)) / n))
}
