package store

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hanabi-stats/server/engine"
	"hanabi-stats/server/stats"
	"hanabi-stats/server/variant"
)

func TestSchemaEmbedded(t *testing.T) {
	b, err := schema.ReadFile("schema.sql")
	require.NoError(t, err)
	for _, table := range []string{"games", "decks", "game_actions", "player_notes", "variants", "card_actions", "clues"} {
		assert.Contains(t, string(b), "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
}

func TestSaveResultSQLKeepsReplayData(t *testing.T) {
	summary := engine.GameResult{GameID: 9, Players: []string{"a", "b"}, Score: 25}
	query, args := saveResultSQL(summary)
	assert.Len(t, args, 10)
	assert.NotContains(t, query, "replayed_at")
	assert.NotContains(t, query, "efficiency")
	assert.Contains(t, query, "COALESCE(games.score, EXCLUDED.score)")

	replayedRes := summary
	replayedRes.Replayed = true
	replayedRes.Efficiency = 1.25
	query, args = saveResultSQL(replayedRes)
	require.Len(t, args, 12)
	assert.Equal(t, 1.25, args[10])
	assert.Contains(t, query, "replayed_at = now()")
}

func TestNullable(t *testing.T) {
	assert.Nil(t, nullable(""))
	assert.Equal(t, "p2v0s1", nullable("p2v0s1"))
}

// openTestDB connects to TEST_DATABASE_URL or skips.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(context.Background()) })
	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db))
	_, err = db.Exec(ctx, `TRUNCATE games, decks, game_actions, player_notes, variants, card_actions, clues CASCADE`)
	require.NoError(t, err)
	return db
}

func TestSaveGameRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	g := engine.Game{
		ID:      42,
		Players: []string{"alice", "bob"},
		Seed:    "p2v0s42",
		Deck:    engine.NewDeck("p2v0s42", []engine.Card{{Suit: 0, Rank: 1}, {Suit: 1, Rank: 2}}),
		Actions: []engine.Action{{Kind: engine.Play, Target: 0}, {Kind: engine.RankClue, Target: 1, Value: 2}},
		Options: engine.Options{Variant: "No Variant", StartingPlayer: 1},
	}
	notes := [][]string{{"", "2?"}, {"", ""}, {"orphan"}}
	require.NoError(t, db.SaveGame(ctx, g, notes))
	require.NoError(t, db.SaveGame(ctx, g, notes), "second import is a no-op")

	wrote, err := db.InsertDeck(ctx, g.Seed, g.Deck.Cards)
	require.NoError(t, err)
	assert.False(t, wrote, "deck for a known seed is skipped")

	loaded, err := db.LoadGame(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, g.Players, loaded.Players)
	assert.Equal(t, g.Deck.Cards, loaded.Deck.Cards)
	assert.Equal(t, g.Actions, loaded.Actions)
	assert.Equal(t, 1, loaded.Options.StartingPlayer)

	ids, err := db.GameIDs(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []int{42}, ids)

	res, err := engine.NewReplayer(nil, engine.DefaultConfig()).Replay(loaded)
	require.NoError(t, err)
	require.NoError(t, db.SaveResult(ctx, res))

	ids, err = db.GameIDs(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, ids)

	rs, err := db.ResultsWithPlayer(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, 1, rs[0].Score)
	assert.Equal(t, res.Efficiency, rs[0].Efficiency)

	assert.True(t, rs[0].Replayed)

	// a history summary of the same game must not undo the replay
	summary := res
	summary.Replayed, summary.Efficiency, summary.Score = false, 0, 25
	require.NoError(t, db.SaveResult(ctx, summary))
	rs, err = db.ResultsWithPlayer(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, 1, rs[0].Score)
	assert.Equal(t, res.Efficiency, rs[0].Efficiency)
	assert.True(t, rs[0].Replayed)

	// a summary for an unknown game is stored but stays unreplayed
	require.NoError(t, db.SaveResult(ctx, engine.GameResult{GameID: 43, Players: []string{"bob", "carl"}, Variant: "No Variant", Score: 20}))
	rs, err = db.ResultsWithPlayer(ctx, "carl")
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.False(t, rs[0].Replayed)

	rs, err = db.ResultsWithPlayer(ctx, "zed")
	require.NoError(t, err)
	assert.Empty(t, rs)

	_, err = db.LoadGame(ctx, 7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTraceAndNotes(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	deck := make([]engine.Card, 12)
	for i := range deck {
		deck[i] = engine.Card{Suit: 0, Rank: 1}
	}
	g := engine.Game{
		ID:      50,
		Players: []string{"alice", "bob"},
		Seed:    "p2v0s50",
		Deck:    engine.NewDeck("p2v0s50", deck),
		Actions: []engine.Action{
			{Kind: engine.Play, Target: 0},
			{Kind: engine.ColorClue, Target: 0, Value: 1},
			{Kind: engine.RankClue, Target: 1, Value: 2},
		},
		Options: engine.Options{Variant: "No Variant"},
	}
	require.NoError(t, db.SaveGame(ctx, g, [][]string{{"chop", "r5"}, {"chop"}}))

	_, tr, err := engine.NewReplayer(nil, engine.DefaultConfig()).Trace(g)
	require.NoError(t, err)
	require.NoError(t, db.SaveTrace(ctx, tr))
	require.NoError(t, db.SaveTrace(ctx, tr), "saving again replaces the rows")

	tallies, err := db.ActionTallies(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.TallyActions([]engine.Trace{tr}), tallies)

	notes, err := db.Notes(ctx, nil)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	notes, err = db.Notes(ctx, []string{"bob"})
	require.NoError(t, err)
	assert.Equal(t, []stats.NoteRow{{GameID: 50, Player: "bob", Notes: []string{"chop"}}}, notes)
}

func TestVariantsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	vs := []variant.Variant{
		{ID: 0, Name: "No Variant", Suits: 5},
		{ID: 999, Name: "Odd Variant (4 Suits)", Suits: 4, SpecialRank: 1, MaxScoreOverride: map[int]int{2: 19}},
	}
	require.NoError(t, db.UpsertVariants(ctx, vs))
	require.NoError(t, db.UpsertVariants(ctx, vs))

	got, err := db.LoadVariants(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[0].MaxScoreOverride)
	assert.Equal(t, vs[1], got[1])
}
