package tournament

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Tournament/internal/movecodec"
	"github.com/park285/Cheese-Tournament/internal/obslog"
	"github.com/park285/Cheese-Tournament/internal/pairing"
	"github.com/park285/Cheese-Tournament/internal/storage"
	"github.com/park285/Cheese-Tournament/internal/variant"
)

const DefaultMaxChat = 100

// Params are the creation-time settings of a tournament.
type Params struct {
	ID             string
	Variant        variant.Descriptor
	System         pairing.System
	Base           float64
	Inc            int
	ByoyomiPeriods int
	Rated          bool
	FEN            string
	Rounds         int
	StartsAt       time.Time
	BeforeStart    int
	Minutes        int
	CreatedBy      string
	CreatedAt      time.Time
	Name           string
	Description    string
	Frequency      string
	MaxChat        int
}

type Counters struct {
	GamesFinished int
	WhiteWins     int
	BlackWins     int
	Draws         int
	Berserks      int
}

// Changes lists the records a mutation touched. The caller persists them
// after the tournament lock is released.
type Changes struct {
	Tournament *storage.TournamentRecord
	Players    []storage.PlayerRecord
	Pairings   []storage.PairingRecord
}

func (c Changes) Empty() bool {
	return c.Tournament == nil && len(c.Players) == 0 && len(c.Pairings) == 0
}

// Tournament is the in-memory state of one tournament. Every method takes
// the tournament lock; none of them does IO.
type Tournament struct {
	mu       sync.Mutex
	p        Params
	strategy pairing.Strategy

	status   Status
	winner   string
	players  map[string]*PlayerData
	nextSeq  int
	board    *Leaderboard
	pairings []storage.PairingRecord
	pidx     map[string]int
	ongoing  map[string]*OngoingGame
	recorded map[string]struct{}
	counters Counters
	chat     []storage.ChatRecord

	// startRoster is fixed at start; round-based fixtures are built over it
	startRoster []string
}

func New(p Params) (*Tournament, error) {
	s, err := pairing.New(p.System)
	if err != nil {
		return nil, err
	}
	if p.MaxChat <= 0 {
		p.MaxChat = DefaultMaxChat
	}
	return &Tournament{
		p:        p,
		strategy: s,
		players:  make(map[string]*PlayerData),
		board:    NewLeaderboard(),
		pidx:     make(map[string]int),
		ongoing:  make(map[string]*OngoingGame),
		recorded: make(map[string]struct{}),
	}, nil
}

func (t *Tournament) ID() string { return t.p.ID }

func (t *Tournament) Params() Params {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.p
}

func (t *Tournament) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Tournament) Winner() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.winner
}

func (t *Tournament) Counters() Counters {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counters
}

// NbPlayers counts participants who have not withdrawn.
func (t *Tournament) NbPlayers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nbPlayers()
}

func (t *Tournament) nbPlayers() int {
	n := 0
	for _, p := range t.players {
		if !p.Withdrawn {
			n++
		}
	}
	return n
}

func (t *Tournament) Player(uid string) (PlayerData, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.players[uid]
	if !ok {
		return PlayerData{}, false
	}
	return *p, true
}

// Players returns every participant, withdrawn ones included, in join order.
func (t *Tournament) Players() []PlayerData {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]PlayerData, 0, len(t.players))
	for _, p := range t.players {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (t *Tournament) Standings(limit int) []LeaderboardEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.board.Entries(limit)
}

func (t *Tournament) Rank(uid string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.board.Rank(uid)
}

// Ongoing lists games without a result, by round then id.
func (t *Tournament) Ongoing() []OngoingGame {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]OngoingGame, 0, len(t.ongoing))
	for _, g := range t.ongoing {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Game.Round != out[j].Game.Round {
			return out[i].Game.Round < out[j].Game.Round
		}
		return out[i].Game.ID < out[j].Game.ID
	})
	return out
}

func (t *Tournament) OngoingGame(id string) (OngoingGame, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.ongoing[id]
	if !ok {
		return OngoingGame{}, false
	}
	return *g, true
}

func (t *Tournament) Pairings() []storage.PairingRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]storage.PairingRecord(nil), t.pairings...)
}

func (t *Tournament) Chat() []storage.ChatRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]storage.ChatRecord(nil), t.chat...)
}

func (t *Tournament) Record() storage.TournamentRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.record()
}

func (t *Tournament) record() storage.TournamentRecord {
	return storage.TournamentRecord{
		ID:             t.p.ID,
		Variant:        t.p.Variant.Code,
		Chess960:       t.p.Variant.Shuffle,
		Base:           t.p.Base,
		Inc:            t.p.Inc,
		ByoyomiPeriods: t.p.ByoyomiPeriods,
		Rated:          t.p.Rated,
		FEN:            t.p.FEN,
		System:         int(t.p.System),
		Rounds:         t.p.Rounds,
		StartsAt:       t.p.StartsAt,
		BeforeStart:    t.p.BeforeStart,
		Minutes:        t.p.Minutes,
		CreatedBy:      t.p.CreatedBy,
		CreatedAt:      t.p.CreatedAt,
		Status:         int(t.status),
		Name:           t.p.Name,
		Description:    t.p.Description,
		Frequency:      t.p.Frequency,
		Winner:         t.winner,
		NbPlayers:      t.nbPlayers(),
		StartRoster:    append([]string(nil), t.startRoster...),
	}
}

func (t *Tournament) header() *storage.TournamentRecord {
	rec := t.record()
	return &rec
}

func (t *Tournament) transition(to Status) error {
	if !canTransition(t.status, to) {
		return &TransitionError{From: t.status, To: to}
	}
	obslog.L().Info("tournament_status_changed",
		zap.String("tid", t.p.ID),
		zap.String("from", t.status.String()),
		zap.String("to", to.String()),
	)
	t.status = to
	return nil
}

// Join adds a new entrant or brings back a paused or withdrawn one.
// A paused player may resume whenever the tournament is live; new and
// withdrawn players need the strategy to accept entries.
func (t *Tournament) Join(e Entry) (Changes, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.status.Live() {
		return Changes{}, ErrNotAcceptingJoins
	}
	p, ok := t.players[e.UserID]
	if ok && !p.Withdrawn {
		p.Paused = false
		return Changes{Players: []storage.PlayerRecord{p.record(t.p.ID)}}, nil
	}
	if !t.strategy.AcceptsJoin(t.status == Started) {
		return Changes{}, ErrNotAcceptingJoins
	}
	if ok {
		p.Withdrawn, p.Paused = false, false
	} else {
		t.nextSeq++
		p = newPlayer(e, t.nextSeq)
		t.players[e.UserID] = p
	}
	t.reposition(p)
	t.refreshRanks()
	return Changes{Tournament: t.header(), Players: []storage.PlayerRecord{p.record(t.p.ID)}}, nil
}

// Withdraw drops a player from pairing and ranking. Stats are kept.
func (t *Tournament) Withdraw(uid string) (Changes, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.status.Live() {
		return Changes{}, ErrTournamentClosed
	}
	p, ok := t.players[uid]
	if !ok {
		return Changes{}, fmt.Errorf("%w: %s", ErrUnknownPlayer, uid)
	}
	if p.Withdrawn {
		return Changes{}, nil
	}
	p.Withdrawn, p.Paused = true, false
	t.board.Remove(uid)
	t.refreshRanks()
	return Changes{Tournament: t.header(), Players: []storage.PlayerRecord{p.record(t.p.ID)}}, nil
}

// Pause keeps a player ranked but out of new pairings.
func (t *Tournament) Pause(uid string) (Changes, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.status.Live() {
		return Changes{}, ErrTournamentClosed
	}
	p, ok := t.players[uid]
	if !ok {
		return Changes{}, fmt.Errorf("%w: %s", ErrUnknownPlayer, uid)
	}
	if p.Paused || p.Withdrawn {
		return Changes{}, nil
	}
	p.Paused = true
	return Changes{Players: []storage.PlayerRecord{p.record(t.p.ID)}}, nil
}

func (t *Tournament) Start(now time.Time) (Changes, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.transition(Started); err != nil {
		return Changes{}, err
	}
	if t.p.StartsAt.IsZero() {
		t.p.StartsAt = now
	}
	roster := t.entered()
	if t.strategy.RoundBased() {
		if len(roster) < 2 {
			// nothing can ever be paired
			obslog.L().Warn("tournament_roster_too_small",
				zap.String("tid", t.p.ID),
				zap.String("system", t.p.System.String()),
				zap.Int("players", len(roster)),
			)
			if err := t.transition(Aborted); err != nil {
				return Changes{}, err
			}
			return Changes{Tournament: t.header()}, nil
		}
		t.startRoster = make([]string, len(roster))
		for i, e := range roster {
			t.startRoster[i] = e.ID
		}
	}
	if t.p.System == pairing.Swiss && t.p.Rounds <= 0 {
		t.p.Rounds = defaultSwissRounds(len(roster))
	}
	t.strategy.Prepare(roster, t.pairings)
	return Changes{Tournament: t.header()}, nil
}

func defaultSwissRounds(n int) int {
	if n < 2 {
		return 1
	}
	return int(math.Ceil(math.Log2(float64(n))))
}

// Abort stops the tournament. Recorded results stay; ongoing games are dropped.
func (t *Tournament) Abort() (Changes, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.transition(Aborted); err != nil {
		return Changes{}, err
	}
	clear(t.ongoing)
	return Changes{Tournament: t.header()}, nil
}

// Finish closes the tournament and names the leaderboard top as winner.
func (t *Tournament) Finish() (Changes, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.transition(Finished); err != nil {
		return Changes{}, err
	}
	if top, ok := t.board.Top(); ok {
		t.winner = top.UserID
	}
	clear(t.ongoing)
	return Changes{Tournament: t.header()}, nil
}

func (t *Tournament) Archive() (Changes, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.transition(Archived); err != nil {
		return Changes{}, err
	}
	return Changes{Tournament: t.header()}, nil
}

// RecordGameResult scores a finished game once. Only games paired by this
// tournament and still ongoing are accepted; fields the caller leaves empty
// are taken from the pairing.
func (t *Tournament) RecordGameResult(g GameData) (Changes, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != Started {
		return Changes{}, ErrNotStarted
	}
	if !g.Result.Terminated() {
		return Changes{}, ErrGameNotFinished
	}
	if _, done := t.recorded[g.ID]; done {
		return Changes{}, fmt.Errorf("%w: %s", ErrResultAlreadyRecorded, g.ID)
	}
	og, ok := t.ongoing[g.ID]
	if !ok {
		return Changes{}, fmt.Errorf("%w: %s", ErrUnknownGame, g.ID)
	}
	if (g.White != "" && g.White != og.Game.White) || (g.Black != "" && g.Black != og.Game.Black) {
		return Changes{}, fmt.Errorf("%w: %s is %s vs %s", ErrUnknownGame, g.ID, og.Game.White, og.Game.Black)
	}
	g = mergeGame(og.Game, g)
	rec, err := g.record(t.p.ID)
	if err != nil {
		return Changes{}, err
	}
	w, wok := t.players[g.White]
	b, bok := t.players[g.Black]
	switch {
	case !wok:
		return Changes{}, fmt.Errorf("%w: %s", ErrUnknownPlayer, g.White)
	case !bok:
		return Changes{}, fmt.Errorf("%w: %s", ErrUnknownPlayer, g.Black)
	}

	t.applyResult(g)
	delete(t.ongoing, g.ID)
	t.putPairing(rec)
	t.refreshRanks()

	obslog.L().Debug("game_result_recorded",
		zap.String("tid", t.p.ID),
		zap.String("gid", g.ID),
		zap.String("result", string(g.Result)),
	)
	return Changes{
		Players:  []storage.PlayerRecord{w.record(t.p.ID), b.record(t.p.ID)},
		Pairings: []storage.PairingRecord{rec},
	}, nil
}

func mergeGame(base, g GameData) GameData {
	if g.White == "" {
		g.White, g.WhiteRating = base.White, base.WhiteRating
	}
	if g.Black == "" {
		g.Black, g.BlackRating = base.Black, base.BlackRating
	}
	if g.Date.IsZero() {
		g.Date = base.Date
	}
	if g.Round == 0 {
		g.Round = base.Round
	}
	g.WhiteBerserk = g.WhiteBerserk || base.WhiteBerserk
	g.BlackBerserk = g.BlackBerserk || base.BlackBerserk
	return g
}

// NextRound asks the strategy for pairings. Nothing happens unless the
// tournament is started; round-based systems wait for the round to end.
func (t *Tournament) NextRound(now time.Time) (pairing.Round, Changes, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != Started {
		return pairing.Round{}, Changes{}, nil
	}
	if t.strategy.RoundBased() && len(t.ongoing) > 0 {
		return pairing.Round{}, Changes{}, ErrRoundInProgress
	}
	req := t.request(now)
	req.Active = t.idle()
	round, err := t.strategy.GenerateNextRound(req)
	if err != nil {
		return pairing.Round{}, Changes{}, err
	}

	var ch Changes
	for _, rec := range round.Games {
		g, err := gameFromRecord(rec)
		if err != nil {
			return pairing.Round{}, Changes{}, err
		}
		t.putPairing(rec)
		t.ongoing[rec.ID] = &OngoingGame{Game: g}
		ch.Pairings = append(ch.Pairings, rec)
	}
	if t.strategy.RoundBased() {
		for _, rec := range round.Byes {
			t.putPairing(rec)
			p := t.applyBye(rec)
			ch.Pairings = append(ch.Pairings, rec)
			if p != nil && t.strategy.ByePoints() > 0 {
				ch.Players = append(ch.Players, p.record(t.p.ID))
			}
		}
	}
	t.refreshRanks()

	if !round.Empty() {
		obslog.L().Info("pairing_round_generated",
			zap.String("tid", t.p.ID),
			zap.Int("round", round.Number),
			zap.Int("games", len(round.Games)),
			zap.Int("byes", len(round.Byes)),
		)
	}
	return round, ch, nil
}

// Done reports that the strategy has nothing left to pair and every
// game has reported.
func (t *Tournament) Done(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != Started || len(t.ongoing) > 0 {
		return false
	}
	req := t.request(now)
	req.Active = t.entered()
	return t.strategy.Complete(req)
}

// AddChat appends a line and trims the tail.
func (t *Tournament) AddChat(rec storage.ChatRecord) storage.ChatRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec.TournamentID = t.p.ID
	t.appendChat(rec)
	return rec
}

func (t *Tournament) appendChat(rec storage.ChatRecord) {
	t.chat = append(t.chat, rec)
	if over := len(t.chat) - t.p.MaxChat; over > 0 {
		t.chat = append([]storage.ChatRecord(nil), t.chat[over:]...)
	}
}

func (t *Tournament) request(now time.Time) pairing.Request {
	return pairing.Request{
		TournamentID: t.p.ID,
		Prior:        t.pairings,
		Now:          now,
		StartsAt:     t.p.StartsAt,
		Minutes:      t.p.Minutes,
		Rounds:       t.p.Rounds,
	}
}

// idle lists pairable players not in a game, in standings order.
func (t *Tournament) idle() []pairing.Entrant {
	busy := make(map[string]bool, 2*len(t.ongoing))
	for _, g := range t.ongoing {
		busy[g.Game.White] = true
		busy[g.Game.Black] = true
	}
	var out []pairing.Entrant
	for _, e := range t.board.Entries(0) {
		p := t.players[e.UserID]
		if p == nil || !p.active() || busy[p.UserID] {
			continue
		}
		out = append(out, p.entrant())
	}
	return out
}

// entered lists players who have not withdrawn, in join order.
func (t *Tournament) entered() []pairing.Entrant {
	var out []pairing.Entrant
	for _, p := range t.players {
		if !p.Withdrawn {
			out = append(out, p.entrant())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// fixedRoster resolves the roster saved at start.
func (t *Tournament) fixedRoster() ([]pairing.Entrant, error) {
	out := make([]pairing.Entrant, 0, len(t.startRoster))
	for _, uid := range t.startRoster {
		p, ok := t.players[uid]
		if !ok {
			return nil, integrity(t.p.ID, "start roster references unknown player %s", uid)
		}
		out = append(out, p.entrant())
	}
	return out, nil
}

func (t *Tournament) putPairing(rec storage.PairingRecord) {
	if i, ok := t.pidx[rec.ID]; ok {
		t.pairings[i] = rec
		return
	}
	t.pidx[rec.ID] = len(t.pairings)
	t.pairings = append(t.pairings, rec)
}

// applyResult is shared by live results and replay on reload.
func (t *Tournament) applyResult(g GameData) {
	w, b := t.players[g.White], t.players[g.Black]
	score(t.p.System, w, b, g)

	t.counters.GamesFinished++
	switch g.Result {
	case movecodec.WhiteWins:
		t.counters.WhiteWins++
	case movecodec.BlackWins:
		t.counters.BlackWins++
	case movecodec.Draw:
		t.counters.Draws++
	}
	if g.WhiteBerserk {
		t.counters.Berserks++
	}
	if g.BlackBerserk {
		t.counters.Berserks++
	}
	t.recorded[g.ID] = struct{}{}
	t.reposition(w)
	t.reposition(b)
}

func (t *Tournament) applyBye(rec storage.PairingRecord) *PlayerData {
	p := t.players[rec.White]
	if p == nil {
		return nil
	}
	p.Points += t.strategy.ByePoints()
	t.recorded[rec.ID] = struct{}{}
	t.reposition(p)
	return p
}

func (t *Tournament) reposition(p *PlayerData) {
	if p.Withdrawn {
		t.board.Remove(p.UserID)
		return
	}
	t.board.Set(p.UserID, p.Points, p.Performance, p.Seq)
}

func (t *Tournament) refreshRanks() {
	if len(t.ongoing) == 0 {
		return
	}
	ranks := t.board.ranks()
	for _, g := range t.ongoing {
		g.WhiteRank = ranks[g.Game.White]
		g.BlackRank = ranks[g.Game.Black]
	}
}
