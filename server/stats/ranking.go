package stats

import (
	"sort"

	"hanabi-stats/server/engine"
)

// PartnerScore is how an anchor player fares in games shared with Partner.
// WinLoss is wins as a percentage of losses, reported as 0 when there are
// no losses.
type PartnerScore struct {
	Partner string  `json:"partner"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	WinLoss float64 `json:"win_loss"`
	WinRate float64 `json:"win_rate"`
}

func (p PartnerScore) Games() int { return p.Wins + p.Losses }

// Undefeated partners have an unbounded win/loss ratio.
func (p PartnerScore) Undefeated() bool { return p.Losses == 0 && p.Wins > 0 }

// TopPartners returns the n partners of anchor with the highest win/loss
// ratio over games containing both. Undefeated partners rank above every
// finite ratio. Partners with fewer than minGames shared games are left
// out. Ties go to the lexically smaller name. n <= 0 keeps every partner.
func TopPartners(anchor string, results []engine.GameResult, n, minGames int) []PartnerScore {
	tallies := make(map[string]*Tally)
	for _, r := range results {
		if !r.HasPlayer(anchor) {
			continue
		}
		win := IsWin(r)
		seen := map[string]bool{anchor: true}
		for _, p := range r.Players {
			if seen[p] {
				continue
			}
			seen[p] = true
			t, ok := tallies[p]
			if !ok {
				t = &Tally{}
				tallies[p] = t
			}
			t.add(win)
		}
	}

	out := make([]PartnerScore, 0, len(tallies))
	for name, t := range tallies {
		if t.Games() < minGames {
			continue
		}
		out = append(out, PartnerScore{
			Partner: name,
			Wins:    t.Wins,
			Losses:  t.Losses,
			WinLoss: t.WinLoss(),
			WinRate: t.WinRate().Percentage,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		ui, uj := out[i].Undefeated(), out[j].Undefeated()
		if ui != uj {
			return ui
		}
		if !ui && out[i].WinLoss != out[j].WinLoss {
			return out[i].WinLoss > out[j].WinLoss
		}
		return out[i].Partner < out[j].Partner
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

type Standing struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Ranking accumulates how often, and how high, players appear across many
// anchors' top-N lists.
type Ranking struct {
	count  map[string]int
	weight map[string]int
}

// NewRanking seeds names with zero so they show up even if never listed.
func NewRanking(seed ...string) *Ranking {
	r := &Ranking{count: make(map[string]int), weight: make(map[string]int)}
	for _, name := range seed {
		if _, ok := r.count[name]; !ok {
			r.count[name] = 0
			r.weight[name] = 0
		}
	}
	return r
}

// AddList records one anchor's ordered list. The entry at index i gains a
// weight of len(list)-i.
func (r *Ranking) AddList(list []string) {
	for i, name := range list {
		r.count[name]++
		r.weight[name] += len(list) - i
	}
}

func (r *Ranking) Merge(o *Ranking) {
	for name, v := range o.count {
		r.count[name] += v
	}
	for name, v := range o.weight {
		r.weight[name] += v
	}
}

func (r *Ranking) ByCount() []Standing  { return standings(r.count) }
func (r *Ranking) ByWeight() []Standing { return standings(r.weight) }

// standings sorts by value descending, then name ascending.
func standings(m map[string]int) []Standing {
	out := make([]Standing, 0, len(m))
	for name, v := range m {
		out = append(out, Standing{Name: name, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// GlobalRanking builds the top-n partner list of every anchor and folds
// them into one ranking seeded with the anchors.
func GlobalRanking(anchors []string, results []engine.GameResult, n, minGames int) *Ranking {
	rk := NewRanking(anchors...)
	for _, a := range anchors {
		top := TopPartners(a, results, n, minGames)
		names := make([]string, len(top))
		for i, p := range top {
			names[i] = p.Partner
		}
		rk.AddList(names)
	}
	return rk
}
