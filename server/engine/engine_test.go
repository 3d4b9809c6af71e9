package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func play(order int) Action    { return Action{Kind: Play, Target: order} }
func discard(order int) Action { return Action{Kind: Discard, Target: order} }
func colorClue(to int) Action  { return Action{Kind: ColorClue, Target: to} }
func rankClue(to int) Action   { return Action{Kind: RankClue, Target: to, Value: 1} }
func over(ec EndCondition) Action {
	return Action{Kind: GameOver, Value: int(ec)}
}

func newGame(variantName string, cards []Card, actions ...Action) Game {
	return Game{
		ID:      1,
		Players: []string{"alice", "bob"},
		Seed:    "p2v0s1",
		Deck:    NewDeck("p2v0s1", cards),
		Actions: actions,
		Options: Options{NumPlayers: 2, Variant: variantName},
	}
}

func TestReplayIncompleteLogIsFlagged(t *testing.T) {
	deck := []Card{{0, 1}, {0, 2}, {1, 4}, {0, 3}}
	g := newGame("No Variant", deck,
		play(0), play(1), discard(2), colorClue(1), play(3))

	res, err := NewReplayer(nil, DefaultConfig()).Replay(g)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Score)
	assert.Equal(t, 25, res.MaxScore)
	assert.Equal(t, Unknown, res.EndCondition)
	assert.True(t, res.Incomplete)
	assert.NotEmpty(t, res.Warnings)
	assert.Equal(t, 5, res.Turns)
	assert.Equal(t, 3.0, res.Efficiency)
	assert.Equal(t, 0, res.Strikes)
}

func TestReplayGameOverSuppliesEndCondition(t *testing.T) {
	deck := []Card{{0, 1}, {0, 2}, {1, 4}, {0, 3}}
	g := newGame("No Variant", deck,
		play(0), play(1), discard(2), colorClue(1), play(3), over(Terminated), play(2))

	res, err := NewReplayer(nil, DefaultConfig()).Replay(g)
	require.NoError(t, err)
	assert.Equal(t, Terminated, res.EndCondition)
	assert.False(t, res.Incomplete)
	assert.Equal(t, 6, res.Turns)
	assert.Equal(t, 3, res.Score)
	require.Len(t, res.Warnings, 1, "trailing action is reported")
}

func TestReplayAllSuitsCompleteIsNormal(t *testing.T) {
	var deck []Card
	var actions []Action
	for s := 0; s < 3; s++ {
		for r := 1; r <= 5; r++ {
			actions = append(actions, play(len(deck)))
			deck = append(deck, Card{Suit: s, Rank: r})
		}
	}
	g := newGame("3 Suits", deck, actions...)

	res, err := NewReplayer(nil, DefaultConfig()).Replay(g)
	require.NoError(t, err)
	assert.Equal(t, 15, res.Score)
	assert.Equal(t, 15, res.MaxScore)
	assert.Equal(t, Normal, res.EndCondition)
	assert.False(t, res.Incomplete)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 0.0, res.Efficiency, "no clues given")
}

func TestReplayStrikesAndStrikeoutPolicy(t *testing.T) {
	deck := []Card{{0, 3}, {0, 4}, {0, 5}, {0, 1}}
	actions := []Action{play(0), play(1), play(2), over(Strikeout)}

	res, err := NewReplayer(nil, DefaultConfig()).Replay(newGame("No Variant", deck, actions...))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Strikes)
	assert.Equal(t, Strikeout, res.EndCondition)
	assert.Equal(t, 4, res.Turns)
	assert.Empty(t, res.Warnings)

	// Without the terminal action the policy alone ends the game.
	res, err = NewReplayer(nil, DefaultConfig()).Replay(newGame("No Variant", deck, play(0), play(1), play(2), play(3)))
	require.NoError(t, err)
	assert.Equal(t, Strikeout, res.EndCondition)
	assert.Equal(t, 0, res.Score)
	assert.Len(t, res.Warnings, 1)

	cfg := DefaultConfig()
	cfg.EndOnStrikeout = false
	res, err = NewReplayer(nil, cfg).Replay(newGame("No Variant", deck, play(0), play(1), play(2), play(3)))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Strikes)
	assert.Equal(t, 1, res.Score)
	assert.True(t, res.Incomplete)
}

func TestReplayUpOrDownStrike(t *testing.T) {
	deck := []Card{{0, 5}, {0, 4}, {0, 3}, {0, 1}}
	g := newGame("Up or Down (5 Suits)", deck, play(0), play(1), play(2), play(3), over(Normal))

	res, err := NewReplayer(nil, DefaultConfig()).Replay(g)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Score)
	assert.Equal(t, 1, res.Strikes)
	assert.Equal(t, 3, res.Plays)
}

func TestReplayClueFromEmptyPoolWarns(t *testing.T) {
	deck := []Card{{0, 1}}
	actions := make([]Action, 0, 10)
	for i := 0; i < 9; i++ {
		actions = append(actions, rankClue(1))
	}
	actions = append(actions, play(0), over(Normal))

	res, err := NewReplayer(nil, DefaultConfig()).Replay(newGame("No Variant", deck, actions...))
	require.NoError(t, err)
	assert.Equal(t, 9, res.CluesGiven)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "turn 8")
	assert.Equal(t, 0.11, res.Efficiency)
}

func TestReplayDiscardRefundsAndBonusClue(t *testing.T) {
	// 8 clues spent, then a suit is completed: the bonus refills one token,
	// so a ninth clue is legal.
	var deck []Card
	var actions []Action
	for i := 0; i < 8; i++ {
		actions = append(actions, colorClue(1))
	}
	for r := 1; r <= 5; r++ {
		actions = append(actions, play(len(deck)))
		deck = append(deck, Card{Suit: 0, Rank: r})
	}
	actions = append(actions, colorClue(1))

	res, err := NewReplayer(nil, DefaultConfig()).Replay(newGame("No Variant", deck, actions...))
	require.NoError(t, err)
	assert.Len(t, res.Warnings, 1, "only the missing game over")

	cfg := DefaultConfig()
	cfg.BonusClue = false
	res, err = NewReplayer(nil, cfg).Replay(newGame("No Variant", deck, actions...))
	require.NoError(t, err)
	assert.Len(t, res.Warnings, 2)
}

func TestReplayMalformed(t *testing.T) {
	r := NewReplayer(nil, DefaultConfig())

	_, err := r.Replay(newGame("No Variant", []Card{{0, 1}}, play(4)))
	assert.True(t, errors.Is(err, ErrMalformed))

	_, err = r.Replay(newGame("No Variant", []Card{{0, 1}}, Action{Kind: 9}))
	assert.True(t, errors.Is(err, ErrMalformed))

	_, err = r.Replay(newGame("3 Suits", []Card{{4, 1}}))
	assert.True(t, errors.Is(err, ErrMalformed))

	g := newGame("No Variant", nil)
	g.Players = nil
	_, err = r.Replay(g)
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestReplayResultIsDetached(t *testing.T) {
	g := newGame("No Variant", []Card{{0, 1}}, play(0), over(Normal))
	res, err := NewReplayer(nil, DefaultConfig()).Replay(g)
	require.NoError(t, err)
	g.Players[0] = "mallory"
	assert.Equal(t, "alice", res.Players[0])
	assert.Equal(t, "alice", res.Starter())
}

func TestReplayRejectsStartCardOutsideUpOrDown(t *testing.T) {
	r := NewReplayer(nil, DefaultConfig())
	deck := []Card{{0, StartRank}, {0, 1}}

	_, err := r.Replay(newGame("No Variant", deck, play(1), over(Normal)))
	assert.ErrorIs(t, err, ErrMalformed)

	res, err := r.Replay(newGame("Up or Down (5 Suits)", deck, play(0), over(Normal)))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Score)
}

func TestReplayMarksResultReplayed(t *testing.T) {
	res, err := NewReplayer(nil, DefaultConfig()).Replay(newGame("No Variant", []Card{{0, 1}}, play(0)))
	require.NoError(t, err)
	assert.True(t, res.Replayed)
}

func TestTraceFollowsHandsAndClues(t *testing.T) {
	deck := make([]Card, 12)
	for i := range deck {
		deck[i] = Card{Suit: 1, Rank: 3}
	}
	deck[5] = Card{Suit: 0, Rank: 1}
	deck[10] = Card{Suit: 0, Rank: 2}

	// bob starts, plays and discards (drawing 10 and 11) while alice clues
	// bob, then plays the card drawn on turn 1.
	toBob := Action{Kind: ColorClue, Target: 1, Value: 2}
	g := newGame("No Variant", deck, play(5), toBob, discard(6), rankClue(1), play(10), over(Normal))
	g.Options.StartingPlayer = 1

	rp := NewReplayer(nil, DefaultConfig())
	res, tr, err := rp.Trace(g)
	require.NoError(t, err)
	plain, err := rp.Replay(g)
	require.NoError(t, err)
	assert.Equal(t, plain, res)
	assert.Equal(t, 2, res.Score)

	assert.Equal(t, 1, tr.GameID)
	require.Len(t, tr.Cards, 12)
	assert.Equal(t, CardEvent{Order: 0, Card: deck[0], Player: "alice", TurnDrawn: 0, TurnLeft: -1}, tr.Cards[0])
	assert.True(t, tr.Cards[0].Held())
	assert.Equal(t, CardEvent{Order: 5, Card: deck[5], Player: "bob", TurnDrawn: 0, Action: Play, TurnLeft: 0}, tr.Cards[5])
	assert.Equal(t, CardEvent{Order: 6, Card: deck[6], Player: "bob", TurnDrawn: 0, Action: Discard, TurnLeft: 2}, tr.Cards[6])
	assert.Equal(t, CardEvent{Order: 10, Card: deck[10], Player: "bob", TurnDrawn: 1, Action: Play, TurnLeft: 4}, tr.Cards[10])
	assert.Equal(t, CardEvent{Order: 11, Card: deck[11], Player: "bob", TurnDrawn: 3, TurnLeft: -1}, tr.Cards[11])

	assert.Equal(t, []ClueEvent{
		{Turn: 1, Kind: ColorClue, Value: 2, Giver: "alice", Receiver: "bob"},
		{Turn: 3, Kind: RankClue, Value: 1, Giver: "alice", Receiver: "bob"},
	}, tr.Clues)
}

func TestTraceCardPlayedBeforeItWasDrawn(t *testing.T) {
	deck := make([]Card, 12)
	for i := range deck {
		deck[i] = Card{Suit: 0, Rank: 1}
	}
	_, tr, err := NewReplayer(nil, DefaultConfig()).Trace(newGame("No Variant", deck, play(11), discard(5)))
	require.NoError(t, err)

	require.Len(t, tr.Cards, 12)
	assert.Equal(t, CardEvent{Order: 10, Card: deck[10], Player: "alice", TurnDrawn: 1, TurnLeft: -1}, tr.Cards[10])
	assert.Equal(t, CardEvent{Order: 11, Card: deck[11], Player: "alice", TurnDrawn: -1, Action: Play, TurnLeft: 0}, tr.Cards[11])
	assert.Equal(t, "bob", tr.Cards[5].Player)
	assert.Equal(t, 1, tr.Cards[5].TurnLeft)
}
