package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"hanabi-stats/server/engine"
	"hanabi-stats/server/stats"
	"hanabi-stats/server/variant"
)

//go:embed schema.sql
var schema embed.FS

// ErrNotFound is returned by LoadGame for unknown ids.
var ErrNotFound = errors.New("store: game not found")

type DB struct{ *pgxpool.Pool }

func Open(dsn string) (*DB, error) {
	p, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, err
	}
	return &DB{p}, nil
}

func (db *DB) Close(ctx context.Context)      { db.Pool.Close() }
func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

func Migrate(ctx context.Context, db *DB) error {
	sqlBytes, err := schema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, string(sqlBytes))
	return err
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

/* -----------------------------
   Raw game logs
------------------------------*/

// SaveGame stores one game log and its notes atomically. Rows that already
// exist are left alone, so importing the same dump twice is harmless.
func (db *DB) SaveGame(ctx context.Context, g engine.Game, notes [][]string) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // safe if already committed

	if err := upsertGame(ctx, tx, g); err != nil {
		return err
	}
	if _, err := insertDeck(ctx, tx, g.Seed, g.Deck.Cards); err != nil {
		return err
	}
	if err := insertActions(ctx, tx, g.ID, g.Actions); err != nil {
		return err
	}
	if err := insertNotes(ctx, tx, g.ID, g.Players, notes); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// InsertDeck stores the deck for seed unless one is already stored. It
// reports whether rows were written.
func (db *DB) InsertDeck(ctx context.Context, seed string, cards []engine.Card) (bool, error) {
	return insertDeck(ctx, db, seed, cards)
}

func upsertGame(ctx context.Context, q querier, g engine.Game) error {
	_, err := q.Exec(ctx, `
        INSERT INTO games(game_id, players, variant, starting_player, speedrun, seed)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (game_id) DO NOTHING
    `, g.ID, g.Players, g.Options.Variant, g.Options.StartingPlayer, g.Options.Speedrun, nullable(g.Seed))
	if err != nil {
		return fmt.Errorf("upsert game %d: %w", g.ID, err)
	}
	return nil
}

func insertDeck(ctx context.Context, q querier, seed string, cards []engine.Card) (bool, error) {
	if seed == "" || len(cards) == 0 {
		return false, nil
	}
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM decks WHERE seed = $1)`, seed).Scan(&exists); err != nil {
		return false, fmt.Errorf("deck %s: %w", seed, err)
	}
	if exists {
		return false, nil
	}
	b := &pgx.Batch{}
	for i, c := range cards {
		b.Queue(`
			INSERT INTO decks(seed, card_index, suit_index, rank)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (seed, card_index) DO NOTHING
		`, seed, i, c.Suit, c.Rank)
	}
	if err := q.SendBatch(ctx, b).Close(); err != nil {
		return false, fmt.Errorf("deck %s: %w", seed, err)
	}
	return true, nil
}

func insertActions(ctx context.Context, q querier, gameID int, actions []engine.Action) error {
	if len(actions) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for turn, a := range actions {
		b.Queue(`
			INSERT INTO game_actions(game_id, turn, action_type, target, value)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (game_id, turn) DO NOTHING
		`, gameID, turn, int(a.Kind), a.Target, a.Value)
	}
	if err := q.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("actions of game %d: %w", gameID, err)
	}
	return nil
}

// insertNotes pairs notes[i] with players[i]. Extra note rows without a
// player are dropped.
func insertNotes(ctx context.Context, q querier, gameID int, players []string, notes [][]string) error {
	b := &pgx.Batch{}
	for i, n := range notes {
		if i >= len(players) {
			break
		}
		b.Queue(`
			INSERT INTO player_notes(game_id, player, notes)
			VALUES ($1,$2,$3)
			ON CONFLICT (game_id, player) DO NOTHING
		`, gameID, players[i], n)
	}
	if b.Len() == 0 {
		return nil
	}
	if err := q.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("notes of game %d: %w", gameID, err)
	}
	return nil
}

/* -----------------------------
   Derived results
------------------------------*/

// SaveResult writes the derived columns of a game, creating the game row
// when it is not stored yet. A replayed result overwrites them and marks the
// game replayed. A summary result only fills columns that are still NULL,
// so it never clobbers a replay.
func (db *DB) SaveResult(ctx context.Context, r engine.GameResult) error {
	query, args := saveResultSQL(r)
	if _, err := db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("save result %d: %w", r.GameID, err)
	}
	return nil
}

const (
	replayedResultSQL = `
        INSERT INTO games(game_id, players, variant, starting_player, speedrun, seed,
                          score, max_score, turns, end_condition, efficiency, incomplete, replayed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12, now())
        ON CONFLICT (game_id) DO UPDATE
          SET score = EXCLUDED.score,
              max_score = EXCLUDED.max_score,
              turns = EXCLUDED.turns,
              end_condition = EXCLUDED.end_condition,
              efficiency = EXCLUDED.efficiency,
              incomplete = EXCLUDED.incomplete,
              replayed_at = now()`

	summaryResultSQL = `
        INSERT INTO games(game_id, players, variant, starting_player, speedrun, seed,
                          score, max_score, turns, end_condition)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        ON CONFLICT (game_id) DO UPDATE
          SET score = COALESCE(games.score, EXCLUDED.score),
              max_score = COALESCE(games.max_score, EXCLUDED.max_score),
              turns = COALESCE(games.turns, EXCLUDED.turns),
              end_condition = COALESCE(games.end_condition, EXCLUDED.end_condition)`
)

func saveResultSQL(r engine.GameResult) (string, []any) {
	args := []any{r.GameID, r.Players, r.Variant, r.StartingPlayer, r.Speedrun, nullable(r.Seed),
		r.Score, r.MaxScore, r.Turns, int(r.EndCondition)}
	if !r.Replayed {
		return summaryResultSQL, args
	}
	return replayedResultSQL, append(args, r.Efficiency, r.Incomplete)
}

const resultColumns = `
    SELECT game_id, players, variant, starting_player, speedrun, COALESCE(seed, ''),
           score, COALESCE(max_score, 0), COALESCE(turns, 0), COALESCE(end_condition, 0),
           COALESCE(efficiency, 0), incomplete, replayed_at IS NOT NULL
      FROM games
     WHERE score IS NOT NULL`

// ResultsWithPlayer returns the results of every scored game player was in,
// ordered by game id.
func (db *DB) ResultsWithPlayer(ctx context.Context, player string) ([]engine.GameResult, error) {
	return db.results(ctx, resultColumns+` AND $1 = ANY(players) ORDER BY game_id`, player)
}

func (db *DB) AllResults(ctx context.Context) ([]engine.GameResult, error) {
	return db.results(ctx, resultColumns+` ORDER BY game_id`)
}

func (db *DB) results(ctx context.Context, query string, args ...any) ([]engine.GameResult, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []engine.GameResult
	for rows.Next() {
		var r engine.GameResult
		var end int
		if err := rows.Scan(&r.GameID, &r.Players, &r.Variant, &r.StartingPlayer, &r.Speedrun, &r.Seed,
			&r.Score, &r.MaxScore, &r.Turns, &end, &r.Efficiency, &r.Incomplete, &r.Replayed); err != nil {
			return nil, err
		}
		r.EndCondition = engine.EndCondition(end)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

/* -----------------------------
   Re-replay support
------------------------------*/

// GameIDs lists stored games that have actions. With pending set only
// games never replayed are listed.
func (db *DB) GameIDs(ctx context.Context, pending bool) ([]int, error) {
	query := `
        SELECT g.game_id
          FROM games g
         WHERE EXISTS (SELECT 1 FROM game_actions a WHERE a.game_id = g.game_id)`
	if pending {
		query += ` AND g.replayed_at IS NULL`
	}
	query += ` ORDER BY g.game_id`

	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LoadGame rebuilds a replayable game from the games, decks and
// game_actions tables.
func (db *DB) LoadGame(ctx context.Context, id int) (engine.Game, error) {
	g := engine.Game{ID: id}
	var seed *string
	err := db.QueryRow(ctx, `
		SELECT players, variant, starting_player, speedrun, seed
		  FROM games WHERE game_id = $1
	`, id).Scan(&g.Players, &g.Options.Variant, &g.Options.StartingPlayer, &g.Options.Speedrun, &seed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return engine.Game{}, fmt.Errorf("game %d: %w", id, ErrNotFound)
		}
		return engine.Game{}, err
	}
	if seed != nil {
		g.Seed = *seed
	}
	g.Options.NumPlayers = len(g.Players)

	var cards []engine.Card
	rows, err := db.Query(ctx, `SELECT suit_index, rank FROM decks WHERE seed = $1 ORDER BY card_index`, g.Seed)
	if err != nil {
		return engine.Game{}, err
	}
	for rows.Next() {
		var c engine.Card
		if err := rows.Scan(&c.Suit, &c.Rank); err != nil {
			rows.Close()
			return engine.Game{}, err
		}
		cards = append(cards, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return engine.Game{}, err
	}
	g.Deck = engine.NewDeck(g.Seed, cards)

	rows, err = db.Query(ctx, `SELECT action_type, target, value FROM game_actions WHERE game_id = $1 ORDER BY turn`, id)
	if err != nil {
		return engine.Game{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var a engine.Action
		var kind int
		if err := rows.Scan(&kind, &a.Target, &a.Value); err != nil {
			return engine.Game{}, err
		}
		a.Kind = engine.ActionKind(kind)
		g.Actions = append(g.Actions, a)
	}
	return g, rows.Err()
}

/* -----------------------------
   Card and clue history
------------------------------*/

// SaveTrace replaces the card and clue rows of one game.
func (db *DB) SaveTrace(ctx context.Context, tr engine.Trace) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	b := &pgx.Batch{}
	b.Queue(`DELETE FROM card_actions WHERE game_id = $1`, tr.GameID)
	b.Queue(`DELETE FROM clues WHERE game_id = $1`, tr.GameID)
	for _, c := range tr.Cards {
		var kind, left any
		if !c.Held() {
			kind, left = int(c.Action), c.TurnLeft
		}
		b.Queue(`
			INSERT INTO card_actions(game_id, card_index, suit_index, rank, player, turn_drawn, action_type, turn_action)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, tr.GameID, c.Order, c.Card.Suit, c.Card.Rank, c.Player, c.TurnDrawn, kind, left)
	}
	for _, c := range tr.Clues {
		b.Queue(`
			INSERT INTO clues(game_id, turn, clue_type, value, giver, receiver)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, tr.GameID, c.Turn, int(c.Kind), c.Value, c.Giver, c.Receiver)
	}
	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("trace of game %d: %w", tr.GameID, err)
	}
	return tx.Commit(ctx)
}

// ActionTallies aggregates the stored card and clue rows per player.
func (db *DB) ActionTallies(ctx context.Context) ([]stats.ActionTally, error) {
	rows, err := db.Query(ctx, `
		WITH given AS (
		    SELECT giver AS player, count(*) AS n,
		           count(*) FILTER (WHERE clue_type = 2) AS color,
		           count(*) FILTER (WHERE clue_type = 3) AS rank_n
		      FROM clues GROUP BY giver
		), received AS (
		    SELECT receiver AS player, count(*) AS n
		      FROM clues WHERE receiver <> '' GROUP BY receiver
		), cards AS (
		    SELECT player,
		           count(*) FILTER (WHERE action_type = 0) AS plays,
		           count(*) FILTER (WHERE action_type = 1) AS discards
		      FROM card_actions GROUP BY player
		), names AS (
		    SELECT player FROM given UNION SELECT player FROM received UNION SELECT player FROM cards
		)
		SELECT n.player, COALESCE(g.n, 0), COALESCE(r.n, 0), COALESCE(g.color, 0), COALESCE(g.rank_n, 0),
		       COALESCE(c.plays, 0), COALESCE(c.discards, 0)
		  FROM names n
		  LEFT JOIN given g USING (player)
		  LEFT JOIN received r USING (player)
		  LEFT JOIN cards c USING (player)
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []stats.ActionTally
	for rows.Next() {
		var t stats.ActionTally
		if err := rows.Scan(&t.Player, &t.CluesGiven, &t.CluesReceived, &t.ColorClues, &t.RankClues, &t.Plays, &t.Discards); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	stats.SortActionTallies(out)
	return out, nil
}

// Notes returns the stored note rows of the given players, or of everyone
// when players is empty, ordered by game and player.
func (db *DB) Notes(ctx context.Context, players []string) ([]stats.NoteRow, error) {
	if players == nil {
		players = []string{}
	}
	rows, err := db.Query(ctx, `
		SELECT game_id, player, notes FROM player_notes
		 WHERE cardinality($1::text[]) = 0 OR player = ANY($1)
		 ORDER BY game_id, player
	`, players)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []stats.NoteRow
	for rows.Next() {
		var n stats.NoteRow
		if err := rows.Scan(&n.GameID, &n.Player, &n.Notes); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

/* -----------------------------
   Variants
------------------------------*/

func (db *DB) UpsertVariants(ctx context.Context, vs []variant.Variant) error {
	if len(vs) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, v := range vs {
		var override any
		if len(v.MaxScoreOverride) > 0 {
			override = v.MaxScoreOverride
		}
		b.Queue(`
			INSERT INTO variants(name, variant_id, suits, special_rank, up_or_down, max_score_override)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (name) DO UPDATE
			  SET variant_id = EXCLUDED.variant_id,
			      suits = EXCLUDED.suits,
			      special_rank = EXCLUDED.special_rank,
			      up_or_down = EXCLUDED.up_or_down,
			      max_score_override = EXCLUDED.max_score_override
		`, v.Name, v.ID, v.Suits, v.SpecialRank, v.UpOrDown, override)
	}
	return db.SendBatch(ctx, b).Close()
}

func (db *DB) LoadVariants(ctx context.Context) ([]variant.Variant, error) {
	rows, err := db.Query(ctx, `
		SELECT variant_id, name, suits, special_rank, up_or_down, max_score_override
		  FROM variants ORDER BY variant_id, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []variant.Variant
	for rows.Next() {
		var v variant.Variant
		var override []byte
		if err := rows.Scan(&v.ID, &v.Name, &v.Suits, &v.SpecialRank, &v.UpOrDown, &override); err != nil {
			return nil, err
		}
		if len(override) > 0 {
			if err := json.Unmarshal(override, &v.MaxScoreOverride); err != nil {
				return nil, fmt.Errorf("variant %s: %w", v.Name, err)
			}
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
