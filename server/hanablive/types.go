package hanablive

import (
	"encoding/json"
	"fmt"
	"strings"

	"hanabi-stats/server/engine"
	"hanabi-stats/server/variant"
)

const defaultVariant = "No Variant"

// Options is the options object of both exports and history rows. Exports
// name the variant "variant", history rows "variantName".
type Options struct {
	NumPlayers     int    `json:"numPlayers"`
	Variant        string `json:"variant"`
	VariantName    string `json:"variantName"`
	StartingPlayer int    `json:"startingPlayer"`
	Speedrun       bool   `json:"speedrun"`
	Timed          bool   `json:"timed"`
	OneExtraCard   bool   `json:"oneExtraCard"`
	OneLessCard    bool   `json:"oneLessCard"`
	AllOrNothing   bool   `json:"allOrNothing"`
}

func (o Options) variant() string {
	if v := strings.TrimSpace(o.Variant); v != "" {
		return v
	}
	if v := strings.TrimSpace(o.VariantName); v != "" {
		return v
	}
	return defaultVariant
}

func (o Options) engine(players int) engine.Options {
	n := o.NumPlayers
	if n == 0 {
		n = players
	}
	return engine.Options{
		NumPlayers:     n,
		Variant:        o.variant(),
		StartingPlayer: o.StartingPlayer,
		Speedrun:       o.Speedrun,
		Timed:          o.Timed,
		OneExtraCard:   o.OneExtraCard,
		OneLessCard:    o.OneLessCard,
		AllOrNothing:   o.AllOrNothing,
	}
}

// ExportGame is the body of /export/{id}.
type ExportGame struct {
	ID      int             `json:"id"`
	Players []string        `json:"players"`
	Deck    []engine.Card   `json:"deck"`
	Actions []engine.Action `json:"actions"`
	Options Options         `json:"options"`
	Seed    string          `json:"seed"`
	Notes   [][]string      `json:"notes,omitempty"`
}

// Parse decodes an export body without validating it.
func Parse(b []byte) (*ExportGame, error) {
	var e ExportGame
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("decode export: %w", err)
	}
	return &e, nil
}

// Game validates the export and converts it for replay.
func (e *ExportGame) Game() (engine.Game, error) {
	if e.ID <= 0 {
		return engine.Game{}, fmt.Errorf("%w: export without id", engine.ErrMalformed)
	}
	if len(e.Players) == 0 {
		return engine.Game{}, fmt.Errorf("%w: export %d has no players", engine.ErrMalformed, e.ID)
	}
	if len(e.Deck) == 0 {
		return engine.Game{}, fmt.Errorf("%w: export %d has no deck", engine.ErrMalformed, e.ID)
	}
	return engine.Game{
		ID:      e.ID,
		Players: append([]string(nil), e.Players...),
		Seed:    e.Seed,
		Deck:    engine.NewDeck(e.Seed, e.Deck),
		Actions: append([]engine.Action(nil), e.Actions...),
		Options: e.Options.engine(len(e.Players)),
	}, nil
}

// DecodeExport decodes and validates one export body.
func DecodeExport(b []byte) (engine.Game, error) {
	e, err := Parse(b)
	if err != nil {
		return engine.Game{}, err
	}
	return e.Game()
}

// HistoryGame is one row of /api/v1/history-full/{user}.
type HistoryGame struct {
	ID           int      `json:"id"`
	Score        int      `json:"score"`
	NumTurns     int      `json:"numTurns"`
	EndCondition int      `json:"endCondition"`
	PlayerNames  []string `json:"playerNames"`
	Seed         string   `json:"seed"`
	Options      Options  `json:"options"`
}

// Result builds a GameResult from the summary row alone. Efficiency and the
// per-action counters are unknown without the export; they stay zero and
// Replayed stays false.
func (h HistoryGame) Result() engine.GameResult {
	name := h.Options.variant()
	v := variant.Lookup(name)
	end := engine.EndCondition(h.EndCondition)
	if !end.Valid() {
		end = engine.Unknown
	}
	return engine.GameResult{
		GameID:         h.ID,
		Variant:        name,
		Players:        append([]string(nil), h.PlayerNames...),
		Seed:           h.Seed,
		StartingPlayer: h.Options.StartingPlayer,
		Speedrun:       h.Options.Speedrun,
		Score:          h.Score,
		MaxScore:       v.MaxScoreFor(len(h.PlayerNames)),
		EndCondition:   end,
		Turns:          h.NumTurns,
	}
}

// Results converts a whole history page.
func Results(rows []HistoryGame) []engine.GameResult {
	out := make([]engine.GameResult, 0, len(rows))
	for _, h := range rows {
		out = append(out, h.Result())
	}
	return out
}
