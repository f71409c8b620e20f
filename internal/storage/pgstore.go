package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Schema creates the tables PostgresAdapter expects.
const Schema = `
CREATE TABLE IF NOT EXISTS tournament (
    id              TEXT PRIMARY KEY,
    variant         TEXT NOT NULL,
    chess960        BOOLEAN NOT NULL DEFAULT FALSE,
    base            DOUBLE PRECISION NOT NULL DEFAULT 0,
    inc             INTEGER NOT NULL DEFAULT 0,
    byoyomi_periods INTEGER NOT NULL DEFAULT 0,
    rated           BOOLEAN NOT NULL DEFAULT TRUE,
    fen             TEXT NOT NULL DEFAULT '',
    system          INTEGER NOT NULL,
    rounds          INTEGER NOT NULL DEFAULT 0,
    starts_at       TIMESTAMPTZ NOT NULL,
    before_start    INTEGER NOT NULL DEFAULT 0,
    minutes         INTEGER NOT NULL DEFAULT 0,
    created_by      TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL,
    status          INTEGER NOT NULL,
    name            TEXT NOT NULL DEFAULT '',
    description     TEXT NOT NULL DEFAULT '',
    frequency       TEXT NOT NULL DEFAULT '',
    winner          TEXT NOT NULL DEFAULT '',
    nb_players      INTEGER NOT NULL DEFAULT 0,
    start_roster    TEXT[] NOT NULL DEFAULT '{}'
);
ALTER TABLE tournament ADD COLUMN IF NOT EXISTS start_roster TEXT[] NOT NULL DEFAULT '{}';
CREATE INDEX IF NOT EXISTS tournament_status_starts_idx ON tournament (status, starts_at DESC);

CREATE TABLE IF NOT EXISTS tournament_player (
    id           TEXT PRIMARY KEY,
    tid          TEXT NOT NULL REFERENCES tournament(id),
    uid          TEXT NOT NULL,
    title        TEXT NOT NULL DEFAULT '',
    rating       INTEGER NOT NULL DEFAULT 0,
    provisional  BOOLEAN NOT NULL DEFAULT FALSE,
    paused       BOOLEAN NOT NULL DEFAULT FALSE,
    withdrawn    BOOLEAN NOT NULL DEFAULT FALSE,
    score        INTEGER NOT NULL DEFAULT 0,
    wins         INTEGER NOT NULL DEFAULT 0,
    berserks     INTEGER NOT NULL DEFAULT 0,
    performance  INTEGER NOT NULL DEFAULT 0,
    win_streak   INTEGER NOT NULL DEFAULT 0,
    arrival_rank INTEGER NOT NULL DEFAULT 0,
    UNIQUE (tid, uid)
);

CREATE TABLE IF NOT EXISTS tournament_pairing (
    id            TEXT PRIMARY KEY,
    tid           TEXT NOT NULL REFERENCES tournament(id),
    white         TEXT NOT NULL,
    black         TEXT NOT NULL,
    white_rating  INTEGER NOT NULL DEFAULT 0,
    black_rating  INTEGER NOT NULL DEFAULT 0,
    result        CHAR(1) NOT NULL,
    date          TIMESTAMPTZ NOT NULL,
    white_berserk BOOLEAN NOT NULL DEFAULT FALSE,
    black_berserk BOOLEAN NOT NULL DEFAULT FALSE,
    round         INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS tournament_pairing_tid_date_idx ON tournament_pairing (tid, date);

CREATE TABLE IF NOT EXISTS tournament_chat (
    seq     BIGSERIAL PRIMARY KEY,
    tid     TEXT NOT NULL,
    type    TEXT NOT NULL DEFAULT '',
    author  TEXT NOT NULL DEFAULT '',
    message TEXT NOT NULL DEFAULT '',
    room    TEXT NOT NULL DEFAULT '',
    time    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS tournament_chat_tid_idx ON tournament_chat (tid, seq DESC);
`

type PostgresAdapter struct {
	db *sql.DB
}

func NewPostgresAdapter(databaseURL string) (*PostgresAdapter, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresAdapter{db: db}, nil
}

// EnsureSchema applies Schema; statements are idempotent.
func (a *PostgresAdapter) EnsureSchema(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (a *PostgresAdapter) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *PostgresAdapter) SupportsOrderedQuery() bool { return true }

const tournamentColumns = `id, variant, chess960, base, inc, byoyomi_periods, rated, fen, system, rounds,
    starts_at, before_start, minutes, created_by, created_at, status, name, description, frequency, winner, nb_players, start_roster`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTournament(row rowScanner) (TournamentRecord, error) {
	var t TournamentRecord
	err := row.Scan(&t.ID, &t.Variant, &t.Chess960, &t.Base, &t.Inc, &t.ByoyomiPeriods, &t.Rated, &t.FEN,
		&t.System, &t.Rounds, &t.StartsAt, &t.BeforeStart, &t.Minutes, &t.CreatedBy, &t.CreatedAt,
		&t.Status, &t.Name, &t.Description, &t.Frequency, &t.Winner, &t.NbPlayers, pq.Array(&t.StartRoster))
	return t, err
}

func (a *PostgresAdapter) LoadTournament(ctx context.Context, id string) (*TournamentRecord, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournament WHERE id = $1`
	t, err := scanTournament(a.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select tournament: %w", err)
	}
	return &t, nil
}

func (a *PostgresAdapter) ListTournaments(ctx context.Context, q TournamentQuery) ([]TournamentRecord, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournament`
	args := []any{}
	if len(q.Statuses) > 0 {
		query += ` WHERE status = ANY($1)`
		statuses := make([]int64, len(q.Statuses))
		for i, s := range q.Statuses {
			statuses[i] = int64(s)
		}
		args = append(args, pq.Array(statuses))
	}
	query += ` ORDER BY starts_at DESC, id ASC`
	if q.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, q.Limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tournaments: %w", err)
	}
	defer rows.Close()

	var out []TournamentRecord
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tournament: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (a *PostgresAdapter) UpsertTournament(ctx context.Context, t TournamentRecord) error {
	const query = `INSERT INTO tournament (` + tournamentColumns + `) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22
      ) ON CONFLICT (id) DO UPDATE SET
        status=EXCLUDED.status,
        name=EXCLUDED.name,
        description=EXCLUDED.description,
        starts_at=EXCLUDED.starts_at,
        minutes=EXCLUDED.minutes,
        rounds=EXCLUDED.rounds,
        winner=EXCLUDED.winner,
        nb_players=EXCLUDED.nb_players,
        start_roster=EXCLUDED.start_roster`
	_, err := a.db.ExecContext(ctx, query,
		t.ID, t.Variant, t.Chess960, t.Base, t.Inc, t.ByoyomiPeriods, t.Rated, t.FEN, t.System, t.Rounds,
		t.StartsAt, t.BeforeStart, t.Minutes, t.CreatedBy, t.CreatedAt, t.Status, t.Name, t.Description,
		t.Frequency, t.Winner, t.NbPlayers, pq.Array(t.StartRoster))
	if err != nil {
		return fmt.Errorf("upsert tournament: %w", err)
	}
	return nil
}

func (a *PostgresAdapter) ListPlayers(ctx context.Context, tid string, byRating bool) ([]PlayerRecord, error) {
	query := `SELECT id, tid, uid, title, rating, provisional, paused, withdrawn, score, wins, berserks,
        performance, win_streak, arrival_rank FROM tournament_player WHERE tid = $1`
	if byRating {
		query += ` ORDER BY rating DESC, arrival_rank ASC`
	}
	rows, err := a.db.QueryContext(ctx, query, tid)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var out []PlayerRecord
	for rows.Next() {
		var p PlayerRecord
		if err := rows.Scan(&p.ID, &p.TournamentID, &p.UserID, &p.Title, &p.Rating, &p.Provisional,
			&p.Paused, &p.Withdrawn, &p.Score, &p.Wins, &p.Berserks, &p.Performance, &p.WinStreak,
			&p.ArrivalRank); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (a *PostgresAdapter) UpsertPlayer(ctx context.Context, p PlayerRecord) error {
	const query = `INSERT INTO tournament_player (
        id, tid, uid, title, rating, provisional, paused, withdrawn, score, wins, berserks,
        performance, win_streak, arrival_rank
      ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
      ON CONFLICT (tid, uid) DO UPDATE SET
        rating=EXCLUDED.rating,
        provisional=EXCLUDED.provisional,
        paused=EXCLUDED.paused,
        withdrawn=EXCLUDED.withdrawn,
        score=EXCLUDED.score,
        wins=EXCLUDED.wins,
        berserks=EXCLUDED.berserks,
        performance=EXCLUDED.performance,
        win_streak=EXCLUDED.win_streak`
	_, err := a.db.ExecContext(ctx, query, p.ID, p.TournamentID, p.UserID, p.Title, p.Rating, p.Provisional,
		p.Paused, p.Withdrawn, p.Score, p.Wins, p.Berserks, p.Performance, p.WinStreak, p.ArrivalRank)
	if err != nil {
		return fmt.Errorf("upsert player: %w", err)
	}
	return nil
}

func (a *PostgresAdapter) ListPairings(ctx context.Context, tid string) ([]PairingRecord, error) {
	const query = `SELECT id, tid, white, black, white_rating, black_rating, result, date,
        white_berserk, black_berserk, round FROM tournament_pairing WHERE tid = $1 ORDER BY date ASC, id ASC`
	rows, err := a.db.QueryContext(ctx, query, tid)
	if err != nil {
		return nil, fmt.Errorf("list pairings: %w", err)
	}
	defer rows.Close()

	var out []PairingRecord
	for rows.Next() {
		var p PairingRecord
		if err := rows.Scan(&p.ID, &p.TournamentID, &p.White, &p.Black, &p.WhiteRating, &p.BlackRating,
			&p.Result, &p.Date, &p.WhiteBerserk, &p.BlackBerserk, &p.Round); err != nil {
			return nil, fmt.Errorf("scan pairing: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (a *PostgresAdapter) UpsertPairing(ctx context.Context, p PairingRecord) error {
	const query = `INSERT INTO tournament_pairing (
        id, tid, white, black, white_rating, black_rating, result, date, white_berserk, black_berserk, round
      ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
      ON CONFLICT (id) DO UPDATE SET
        result=EXCLUDED.result,
        white_berserk=EXCLUDED.white_berserk,
        black_berserk=EXCLUDED.black_berserk`
	_, err := a.db.ExecContext(ctx, query, p.ID, p.TournamentID, p.White, p.Black, p.WhiteRating, p.BlackRating,
		p.Result, p.Date, p.WhiteBerserk, p.BlackBerserk, p.Round)
	if err != nil {
		return fmt.Errorf("upsert pairing: %w", err)
	}
	return nil
}

func (a *PostgresAdapter) RecentChat(ctx context.Context, tid string, limit int) ([]ChatRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `SELECT tid, type, author, message, room, time FROM (
        SELECT seq, tid, type, author, message, room, time FROM tournament_chat
        WHERE tid = $1 ORDER BY seq DESC LIMIT $2
      ) recent ORDER BY seq ASC`
	rows, err := a.db.QueryContext(ctx, query, tid, limit)
	if err != nil {
		return nil, fmt.Errorf("recent chat: %w", err)
	}
	defer rows.Close()

	var out []ChatRecord
	for rows.Next() {
		var c ChatRecord
		if err := rows.Scan(&c.TournamentID, &c.Type, &c.User, &c.Message, &c.Room, &c.Time); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (a *PostgresAdapter) AppendChat(ctx context.Context, c ChatRecord) error {
	const query = `INSERT INTO tournament_chat (tid, type, author, message, room, time) VALUES ($1,$2,$3,$4,$5,$6)`
	if _, err := a.db.ExecContext(ctx, query, c.TournamentID, c.Type, c.User, c.Message, c.Room, c.Time); err != nil {
		return fmt.Errorf("append chat: %w", err)
	}
	return nil
}
