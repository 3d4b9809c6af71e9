package stats

import (
	"math"

	"hanabi-stats/server/engine"
	"hanabi-stats/server/variant"
)

func round2(x float64) float64 { return math.Round(x*100) / 100 }

// Percentage is value*100/total rounded to 2 decimals, 0 when total is 0.
func Percentage(value, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(value) * 100 / float64(total))
}

// PercentageWhole is Percentage rounded to a whole number.
func PercentageWhole(value, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(value) * 100 / float64(total))
}

// Ratio is value/total rounded to 2 decimals, 0 when total is 0.
func Ratio(value, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(value) / float64(total))
}

// MaxScore of the game's variant for its player count.
func MaxScore(r engine.GameResult) int {
	if r.MaxScore > 0 {
		return r.MaxScore
	}
	return variant.MaxScoreFor(r.Variant, r.NumPlayers())
}

// IsWin is true only for a perfect score.
func IsWin(r engine.GameResult) bool { return r.Score == MaxScore(r) }

func CountWins(results []engine.GameResult) (wins, losses int) {
	for _, r := range results {
		if IsWin(r) {
			wins++
		} else {
			losses++
		}
	}
	return wins, losses
}

// NormalizedEfficiency compares the efficiency of a game to the estimate
// of what its variant and player count require. 1.0 means "just enough".
func NormalizedEfficiency(r engine.GameResult) float64 {
	need := variant.RequiredEfficiency(r.Variant, r.NumPlayers())
	if need == 0 {
		return 0
	}
	return round2(r.Efficiency / need)
}

// MeanEfficiency averages Efficiency over complete replayed results.
// Summary-only results have no measured efficiency and are left out. It is
// 0 when nothing qualifies.
func MeanEfficiency(results []engine.GameResult) float64 {
	var sum float64
	n := 0
	for _, r := range results {
		if !r.Replayed || r.Incomplete {
			continue
		}
		sum += r.Efficiency
		n++
	}
	if n == 0 {
		return 0
	}
	return round2(sum / float64(n))
}

type Predicate func(engine.GameResult) bool

// bgaVariants are the variants also offered on Board Game Arena.
var bgaVariants = map[string]bool{
	"No Variant":        true,
	"6 Suits":           true,
	"Rainbow (6 Suits)": true,
}

func TwoPlayer(r engine.GameResult) bool   { return r.NumPlayers() == 2 }
func ThreePlus(r engine.GameResult) bool   { return r.NumPlayers() >= 3 }
func NotSpeedrun(r engine.GameResult) bool { return !r.Speedrun }
func BGA(r engine.GameResult) bool         { return bgaVariants[r.Variant] }
func NonBGA(r engine.GameResult) bool      { return !bgaVariants[r.Variant] }

func PlayerCount(n int) Predicate {
	return func(r engine.GameResult) bool { return r.NumPlayers() == n }
}

func WithPlayer(name string) Predicate {
	return func(r engine.GameResult) bool { return r.HasPlayer(name) }
}

// Filter keeps the results matching every predicate, preserving order.
func Filter(results []engine.GameResult, preds ...Predicate) []engine.GameResult {
	out := make([]engine.GameResult, 0, len(results))
next:
	for _, r := range results {
		for _, p := range preds {
			if !p(r) {
				continue next
			}
		}
		out = append(out, r)
	}
	return out
}

// WilsonCI95 is the Wilson score interval for a win rate.
func WilsonCI95(wins, total int) (low, hi float64) {
	if total <= 0 {
		return 0, 1
	}
	z := 1.96
	n := float64(total)
	p := float64(wins) / n
	den := 1 + (z*z)/n
	center := p + (z*z)/(2*n)
	half := z * math.Sqrt((p*(1-p))/n+(z*z)/(4*n*n))
	return (center - half) / den, (center + half) / den
}
