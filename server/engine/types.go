package engine

import "fmt"

type ActionKind int

const (
	Play      ActionKind = 0
	Discard   ActionKind = 1
	ColorClue ActionKind = 2
	RankClue  ActionKind = 3
	GameOver  ActionKind = 4
)

func (k ActionKind) String() string {
	switch k {
	case Play:
		return "play"
	case Discard:
		return "discard"
	case ColorClue:
		return "color_clue"
	case RankClue:
		return "rank_clue"
	case GameOver:
		return "game_over"
	}
	return fmt.Sprintf("action(%d)", int(k))
}

func (k ActionKind) IsClue() bool { return k == ColorClue || k == RankClue }

// Action is one turn of the log.
// Play/discard: Target is the card order in the deck, Value is 0.
// Clue: Target is the receiving player, Value the color index or rank.
// Game over: Target is the player who ended the game, Value the EndCondition.
type Action struct {
	Kind   ActionKind `json:"type"`
	Target int        `json:"target"`
	Value  int        `json:"value"`
}

type EndCondition int

const (
	Unknown EndCondition = iota // log ended without a terminal action
	Normal
	Strikeout
	Timeout
	Terminated
	SpeedrunFail
	Idle
	CharacterSoftlock
	AllOrNothingFail
	AllOrNothingSoftlock
	TerminatedByVote
)

var endConditionNames = [...]string{
	Unknown:              "unknown",
	Normal:               "normal",
	Strikeout:            "strikeout",
	Timeout:              "timeout",
	Terminated:           "terminated",
	SpeedrunFail:         "speedrun_fail",
	Idle:                 "idle",
	CharacterSoftlock:    "character_softlock",
	AllOrNothingFail:     "all_or_nothing_fail",
	AllOrNothingSoftlock: "all_or_nothing_softlock",
	TerminatedByVote:     "terminated_by_vote",
}

func (e EndCondition) Valid() bool { return e >= Unknown && e <= TerminatedByVote }

func (e EndCondition) String() string {
	if e.Valid() {
		return endConditionNames[e]
	}
	return fmt.Sprintf("end_condition(%d)", int(e))
}

// Options carries the table settings recorded with a game. Only
// StartingPlayer and Speedrun affect statistics; the rest is informational.
type Options struct {
	NumPlayers     int
	Variant        string
	StartingPlayer int
	Speedrun       bool
	Timed          bool
	OneExtraCard   bool
	OneLessCard    bool
	AllOrNothing   bool
}

// Game is everything the replayer needs for one game.
type Game struct {
	ID      int
	Players []string
	Seed    string
	Deck    Deck
	Actions []Action
	Options Options
}

// GameResult is created once per game by Replay and never mutated.
type GameResult struct {
	GameID         int      `json:"game_id"`
	Variant        string   `json:"variant"`
	Players        []string `json:"players"`
	Seed           string   `json:"seed,omitempty"`
	StartingPlayer int      `json:"starting_player"`
	Speedrun       bool     `json:"speedrun"`

	Score        int          `json:"score"`
	MaxScore     int          `json:"max_score"`
	EndCondition EndCondition `json:"end_condition"`
	Turns        int          `json:"turns"`
	Efficiency   float64      `json:"efficiency"`

	Plays      int `json:"plays"`
	Discards   int `json:"discards"`
	CluesGiven int `json:"clues_given"`
	Strikes    int `json:"strikes"`

	// Replayed is set only by Replay. Results built from history summaries
	// carry no measured efficiency.
	Replayed bool `json:"replayed"`
	// Incomplete is set when the log ended without a game over action and
	// the final state does not imply one.
	Incomplete bool     `json:"incomplete,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

func (r GameResult) NumPlayers() int { return len(r.Players) }

// Starter is the name of the player who took the first turn, or "".
func (r GameResult) Starter() string {
	if r.StartingPlayer < 0 || r.StartingPlayer >= len(r.Players) {
		return ""
	}
	return r.Players[r.StartingPlayer]
}

func (r GameResult) HasPlayer(name string) bool {
	for _, p := range r.Players {
		if p == name {
			return true
		}
	}
	return false
}
