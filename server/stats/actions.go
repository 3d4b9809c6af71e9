package stats

import (
	"sort"

	"hanabi-stats/server/engine"
)

// ActionTally counts what one player did at the table across traced games.
type ActionTally struct {
	Player        string `json:"player"`
	CluesGiven    int    `json:"clues_given"`
	CluesReceived int    `json:"clues_received"`
	ColorClues    int    `json:"color_clues"`
	RankClues     int    `json:"rank_clues"`
	Plays         int    `json:"plays"`
	Discards      int    `json:"discards"`
}

// TallyActions folds traces into one tally per player, ordered by
// SortActionTallies.
func TallyActions(traces []engine.Trace) []ActionTally {
	byName := make(map[string]*ActionTally)
	get := func(name string) *ActionTally {
		t, ok := byName[name]
		if !ok {
			t = &ActionTally{Player: name}
			byName[name] = t
		}
		return t
	}
	for _, tr := range traces {
		for _, c := range tr.Clues {
			g := get(c.Giver)
			g.CluesGiven++
			if c.Kind == engine.ColorClue {
				g.ColorClues++
			} else {
				g.RankClues++
			}
			if c.Receiver != "" {
				get(c.Receiver).CluesReceived++
			}
		}
		for _, c := range tr.Cards {
			if c.Held() {
				continue
			}
			switch c.Action {
			case engine.Play:
				get(c.Player).Plays++
			case engine.Discard:
				get(c.Player).Discards++
			}
		}
	}
	out := make([]ActionTally, 0, len(byName))
	for _, t := range byName {
		out = append(out, *t)
	}
	SortActionTallies(out)
	return out
}

// SortActionTallies orders by clues given, most first, then by name.
func SortActionTallies(ts []ActionTally) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].CluesGiven != ts[j].CluesGiven {
			return ts[i].CluesGiven > ts[j].CluesGiven
		}
		return ts[i].Player < ts[j].Player
	})
}
