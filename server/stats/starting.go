package stats

import (
	"sort"

	"hanabi-stats/server/engine"
)

// StartingAdvantage compares a player's win rate when taking the first turn
// with their win rate otherwise. Any zero denominator yields 0.
func StartingAdvantage(groupWins, groupGames, otherWins, otherGames int) float64 {
	if groupGames == 0 || otherGames == 0 || otherWins == 0 {
		return 0
	}
	first := float64(groupWins) / float64(groupGames)
	rest := float64(otherWins) / float64(otherGames)
	return round2(first / rest)
}

type StartingRow struct {
	Player       string  `json:"player"`
	Ratio        float64 `json:"ratio"`
	StarterWins  int     `json:"starter_wins"`
	StarterGames int     `json:"starter_games"`
	OtherWins    int     `json:"other_wins"`
	OtherGames   int     `json:"other_games"`
}

// StartingPlayerReport computes StartingAdvantage for every player over
// non-speedrun games with three or more players. When players is non-empty
// only those players are reported.
func StartingPlayerReport(results []engine.GameResult, players ...string) []StartingRow {
	only := make(map[string]bool, len(players))
	for _, p := range players {
		only[p] = true
	}
	type split struct{ starter, other Tally }
	splits := make(map[string]*split)
	for _, r := range Filter(results, NotSpeedrun, ThreePlus) {
		win := IsWin(r)
		starter := r.Starter()
		seen := make(map[string]bool, len(r.Players))
		for _, p := range r.Players {
			if seen[p] || (len(only) > 0 && !only[p]) {
				continue
			}
			seen[p] = true
			s, ok := splits[p]
			if !ok {
				s = &split{}
				splits[p] = s
			}
			if p == starter {
				s.starter.add(win)
			} else {
				s.other.add(win)
			}
		}
	}

	out := make([]StartingRow, 0, len(splits))
	for p, s := range splits {
		out = append(out, StartingRow{
			Player:       p,
			Ratio:        StartingAdvantage(s.starter.Wins, s.starter.Games(), s.other.Wins, s.other.Games()),
			StarterWins:  s.starter.Wins,
			StarterGames: s.starter.Games(),
			OtherWins:    s.other.Wins,
			OtherGames:   s.other.Games(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ratio != out[j].Ratio {
			return out[i].Ratio > out[j].Ratio
		}
		return out[i].Player < out[j].Player
	})
	return out
}
