package stats

import (
	"sort"

	"golang.org/x/text/cases"

	"hanabi-stats/server/engine"
)

// Class is a ruleset family a game is counted under.
type Class int

const (
	Totals Class = iota
	BGAOnly
	NonBGAOnly
	NonSpeedrunOnly
	numClasses
)

var classNames = [numClasses]string{"Totals", "BGA", "Non-BGA", "Non-speedrun"}

func (c Class) String() string { return classNames[c] }

func (c Class) matches(r engine.GameResult) bool {
	switch c {
	case BGAOnly:
		return BGA(r)
	case NonBGAOnly:
		return NonBGA(r)
	case NonSpeedrunOnly:
		return NotSpeedrun(r)
	}
	return true
}

func Classes() []Class { return []Class{Totals, BGAOnly, NonBGAOnly, NonSpeedrunOnly} }

type Tally struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
}

func (t Tally) Games() int { return t.Wins + t.Losses }

func (t *Tally) add(win bool) {
	if win {
		t.Wins++
	} else {
		t.Losses++
	}
}

func (t Tally) plus(o Tally) Tally { return Tally{Wins: t.Wins + o.Wins, Losses: t.Losses + o.Losses} }

// Rate is the (percentage, ratio, count) triple reports print.
type Rate struct {
	Percentage float64 `json:"pct"`
	Ratio      float64 `json:"ratio"`
	Count      int     `json:"count"`
}

func (t Tally) WinRate() Rate {
	return Rate{Percentage(t.Wins, t.Games()), Ratio(t.Wins, t.Games()), t.Wins}
}

func (t Tally) LossRate() Rate {
	return Rate{Percentage(t.Losses, t.Games()), Ratio(t.Losses, t.Games()), t.Losses}
}

// WinLoss is wins as a percentage of losses.
func (t Tally) WinLoss() float64 { return Percentage(t.Wins, t.Losses) }

// Buckets splits a tally by player count.
type Buckets struct {
	All       Tally `json:"all"`
	TwoPlayer Tally `json:"2p"`
	ThreePlus Tally `json:"3p+"`
}

func (b Buckets) plus(o Buckets) Buckets {
	return Buckets{All: b.All.plus(o.All), TwoPlayer: b.TwoPlayer.plus(o.TwoPlayer), ThreePlus: b.ThreePlus.plus(o.ThreePlus)}
}

type PlayerRecord struct {
	Name    string
	Classes [numClasses]Buckets
}

func (p PlayerRecord) Class(c Class) Buckets { return p.Classes[c] }

// Accumulator folds game results into player records. It is not safe for
// concurrent use; give each worker its own and Merge them.
type Accumulator struct {
	records map[string]*PlayerRecord
}

func NewAccumulator() *Accumulator {
	return &Accumulator{records: make(map[string]*PlayerRecord)}
}

func (a *Accumulator) Add(r engine.GameResult) {
	win := IsWin(r)
	seen := make(map[string]bool, len(r.Players))
	for _, name := range r.Players {
		if seen[name] {
			continue
		}
		seen[name] = true
		rec := a.record(name)
		for _, c := range Classes() {
			if !c.matches(r) {
				continue
			}
			b := &rec.Classes[c]
			b.All.add(win)
			switch {
			case TwoPlayer(r):
				b.TwoPlayer.add(win)
			case ThreePlus(r):
				b.ThreePlus.add(win)
			}
		}
	}
}

// Merge adds every record of o into a. Merging is associative and
// commutative, so per-worker accumulators can be combined in any order.
func (a *Accumulator) Merge(o *Accumulator) {
	for name, src := range o.records {
		dst := a.record(name)
		for c := range dst.Classes {
			dst.Classes[c] = dst.Classes[c].plus(src.Classes[c])
		}
	}
}

func (a *Accumulator) record(name string) *PlayerRecord {
	rec, ok := a.records[name]
	if !ok {
		rec = &PlayerRecord{Name: name}
		a.records[name] = rec
	}
	return rec
}

func (a *Accumulator) Record(name string) (PlayerRecord, bool) {
	rec, ok := a.records[name]
	if !ok {
		return PlayerRecord{Name: name}, false
	}
	return *rec, true
}

// Records returns a snapshot ordered by case-folded name.
func (a *Accumulator) Records() []PlayerRecord {
	out := make([]PlayerRecord, 0, len(a.records))
	for _, rec := range a.records {
		out = append(out, *rec)
	}
	SortByName(out, func(i int) string { return out[i].Name })
	return out
}

func Summarize(results []engine.GameResult) []PlayerRecord {
	acc := NewAccumulator()
	for _, r := range results {
		acc.Add(r)
	}
	return acc.Records()
}

// SortByName sorts s by case-folded name, then by the raw name so that the
// order is total.
func SortByName[T any](s []T, name func(i int) string) {
	fold := cases.Fold()
	keys := make(map[string]string, len(s))
	key := func(n string) string {
		k, ok := keys[n]
		if !ok {
			k = fold.String(n)
			keys[n] = k
		}
		return k
	}
	sort.SliceStable(s, func(i, j int) bool {
		ni, nj := name(i), name(j)
		ki, kj := key(ni), key(nj)
		if ki != kj {
			return ki < kj
		}
		return ni < nj
	})
}
