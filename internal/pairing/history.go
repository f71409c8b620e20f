package pairing

import (
	"errors"

	"github.com/dominikbraun/graph"

	"github.com/park285/Cheese-Tournament/internal/storage"
)

type colorStat struct {
	whites, blacks int
	last           int // +1 white, -1 black, 0 none
}

// History is the opponent graph built from prior pairings. Edge weight
// counts how many times two players met.
type History struct {
	met    graph.Graph[string, string]
	colors map[string]*colorStat
	byes   map[string]int
	last   map[string]string
}

func NewHistory(prior []storage.PairingRecord) *History {
	h := &History{
		met:    graph.New(graph.StringHash),
		colors: make(map[string]*colorStat),
		byes:   make(map[string]int),
		last:   make(map[string]string),
	}
	for _, p := range prior {
		if p.IsBye() {
			h.byes[p.White]++
			continue
		}
		h.add(p.White, p.Black)
	}
	return h
}

func (h *History) vertex(id string) {
	// ErrVertexAlreadyExists is the only failure for a string hash
	_ = h.met.AddVertex(id)
}

func (h *History) add(white, black string) {
	h.vertex(white)
	h.vertex(black)
	if err := h.met.AddEdge(white, black, graph.EdgeWeight(1)); err != nil {
		if !errors.Is(err, graph.ErrEdgeAlreadyExists) {
			return
		}
		e, _ := h.met.Edge(white, black)
		_ = h.met.UpdateEdge(white, black, graph.EdgeWeight(e.Properties.Weight+1))
	}
	h.stat(white).whites++
	h.stat(white).last = 1
	h.stat(black).blacks++
	h.stat(black).last = -1
	h.last[white] = black
	h.last[black] = white
}

func (h *History) stat(id string) *colorStat {
	s, ok := h.colors[id]
	if !ok {
		s = &colorStat{}
		h.colors[id] = s
	}
	return s
}

// Met returns how many times a and b have played each other.
func (h *History) Met(a, b string) int {
	e, err := h.met.Edge(a, b)
	if err != nil {
		return 0
	}
	return e.Properties.Weight
}

func (h *History) Byes(id string) int { return h.byes[id] }

func (h *History) LastOpponent(id string) string { return h.last[id] }

// ColorBalance is whites minus blacks.
func (h *History) ColorBalance(id string) int {
	s, ok := h.colors[id]
	if !ok {
		return 0
	}
	return s.whites - s.blacks
}

// Colors orders a pair so the player owed white plays white. a is the
// higher ranked player and keeps white on a full tie.
func (h *History) Colors(a, b Entrant) (white, black Entrant) {
	da, db := h.ColorBalance(a.ID), h.ColorBalance(b.ID)
	if da != db {
		if da < db {
			return a, b
		}
		return b, a
	}
	la, lb := h.lastColor(a.ID), h.lastColor(b.ID)
	if la != lb {
		if la < lb {
			return a, b
		}
		return b, a
	}
	return a, b
}

func (h *History) lastColor(id string) int {
	if s, ok := h.colors[id]; ok {
		return s.last
	}
	return 0
}
