package engine

import (
	"errors"
	"fmt"
	"math"

	"hanabi-stats/server/variant"
)

// ErrMalformed marks a game whose log cannot be replayed at all. Callers
// skip such games; it never aborts a batch.
var ErrMalformed = errors.New("malformed game")

type Config struct {
	MaxClues int
	// BonusClue grants a clue token when a suit is completed.
	BonusClue bool
	// StrikeLimit ends the game with a strikeout when EndOnStrikeout is set.
	StrikeLimit    int
	EndOnStrikeout bool
}

func DefaultConfig() Config {
	return Config{MaxClues: variant.MaxClues, BonusClue: true, StrikeLimit: 3, EndOnStrikeout: true}
}

type Replayer struct {
	Cfg     Config
	Catalog *variant.Catalog
}

func NewReplayer(cat *variant.Catalog, cfg Config) *Replayer {
	if cat == nil {
		cat = variant.Default()
	}
	if cfg.MaxClues <= 0 {
		cfg.MaxClues = variant.MaxClues
	}
	return &Replayer{Cfg: cfg, Catalog: cat}
}

// replay holds the state of one game. It never outlives a Replay call.
type replay struct {
	cfg   Config
	piles *Piles
	clues int
	res   GameResult
	over  bool
	ended bool    // explicit game over seen
	trace *tracer // nil unless tracing
}

// Replay walks the actions of g in order and returns its result.
func (r *Replayer) Replay(g Game) (GameResult, error) {
	res, _, err := r.replay(g, false)
	return res, err
}

// Trace replays g like Replay and also follows every card and clue: who
// drew, played or discarded each card, and who clued whom.
func (r *Replayer) Trace(g Game) (GameResult, Trace, error) {
	return r.replay(g, true)
}

func (r *Replayer) replay(g Game, tracing bool) (GameResult, Trace, error) {
	v := r.Catalog.Lookup(g.Options.Variant)
	if len(g.Players) == 0 {
		return GameResult{}, Trace{}, fmt.Errorf("%w: game %d has no players", ErrMalformed, g.ID)
	}
	if err := g.Deck.Validate(v.Suits, v.UpOrDown); err != nil {
		return GameResult{}, Trace{}, fmt.Errorf("game %d: %w", g.ID, err)
	}

	st := &replay{
		cfg:   r.Cfg,
		piles: NewPiles(v),
		clues: r.Cfg.MaxClues,
		res: GameResult{
			GameID:         g.ID,
			Variant:        v.Name,
			Players:        append([]string(nil), g.Players...),
			Seed:           g.Seed,
			StartingPlayer: g.Options.StartingPlayer,
			Speedrun:       g.Options.Speedrun,
			MaxScore:       v.MaxScoreFor(len(g.Players)),
		},
	}
	if tracing {
		st.trace = newTracer(g)
	}
	if n := g.Options.NumPlayers; n != 0 && n != len(g.Players) {
		st.warn(-1, "numPlayers option is %d but %d players are listed", n, len(g.Players))
	}

	for turn, a := range g.Actions {
		if st.over {
			rest := g.Actions[turn:]
			if !st.ended && a.Kind == GameOver {
				st.gameOver(turn, a)
				st.res.Turns++
				rest = rest[1:]
			}
			if len(rest) > 0 {
				st.warn(turn, "%d actions after the game ended were ignored", len(rest))
			}
			break
		}
		if err := st.apply(turn, a, g.Deck); err != nil {
			return GameResult{}, Trace{}, fmt.Errorf("game %d turn %d: %w", g.ID, turn, err)
		}
		st.res.Turns++
	}
	res := st.finish()
	if st.trace == nil {
		return res, Trace{}, nil
	}
	return res, st.trace.done(), nil
}

func (st *replay) apply(turn int, a Action, deck Deck) error {
	switch a.Kind {
	case Play:
		c, err := deck.At(a.Target)
		if err != nil {
			return err
		}
		if st.trace != nil {
			st.trace.leave(turn, a, deck)
		}
		legal, completed := st.piles.Play(c)
		if !legal {
			st.res.Strikes++
			if st.cfg.EndOnStrikeout && st.cfg.StrikeLimit > 0 && st.res.Strikes >= st.cfg.StrikeLimit {
				st.res.EndCondition = Strikeout
				st.over = true
			}
			return nil
		}
		st.res.Plays++
		if completed && st.cfg.BonusClue && st.clues < st.cfg.MaxClues {
			st.clues++
		}
	case Discard:
		if _, err := deck.At(a.Target); err != nil {
			return err
		}
		if st.trace != nil {
			st.trace.leave(turn, a, deck)
		}
		st.res.Discards++
		if st.clues < st.cfg.MaxClues {
			st.clues++
		}
	case ColorClue, RankClue:
		if st.trace != nil {
			st.trace.clue(turn, a)
		}
		st.res.CluesGiven++
		if st.clues == 0 {
			st.warn(turn, "%s given with no clue tokens left", a.Kind)
			return nil
		}
		st.clues--
	case GameOver:
		st.gameOver(turn, a)
	default:
		return fmt.Errorf("%w: unknown action type %d", ErrMalformed, int(a.Kind))
	}
	return nil
}

func (st *replay) gameOver(turn int, a Action) {
	st.over = true
	st.ended = true
	ec := EndCondition(a.Value)
	if !ec.Valid() || ec == Unknown {
		st.warn(turn, "game over with unknown end condition %d", a.Value)
		return
	}
	st.res.EndCondition = ec
}

func (st *replay) finish() GameResult {
	st.res.Score = st.piles.Score()
	st.res.Efficiency = efficiency(st.res.Plays, st.res.CluesGiven)
	st.res.Replayed = true
	if !st.ended && st.res.EndCondition == Unknown && st.piles.AllComplete() {
		st.res.EndCondition = Normal
	}
	if st.res.EndCondition == Unknown {
		st.res.Incomplete = true
		if !st.ended {
			st.warn(-1, "log ended without a game over action at score %d/%d", st.res.Score, st.res.MaxScore)
		}
	}
	return st.res
}

func (st *replay) warn(turn int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if turn >= 0 {
		msg = fmt.Sprintf("turn %d: %s", turn, msg)
	}
	st.res.Warnings = append(st.res.Warnings, msg)
}

// efficiency is plays per clue given, rounded to 2 decimals; 0 when no clue
// was given.
func efficiency(plays, clues int) float64 {
	if clues == 0 {
		return 0
	}
	return math.Round(float64(plays)/float64(clues)*100) / 100
}
