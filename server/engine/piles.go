package engine

import "hanabi-stats/server/variant"

type Direction int

const (
	Undetermined Direction = iota
	Ascending
	Descending
)

func (d Direction) String() string {
	switch d {
	case Ascending:
		return "up"
	case Descending:
		return "down"
	}
	return ""
}

// StartRank is how exports encode the START card of Up or Down suits.
const StartRank = 7

// directionByRank fixes the direction of an undetermined Up or Down pile.
// Ranks missing here (3, START) leave it undetermined.
var directionByRank = map[int]Direction{
	1: Ascending,
	2: Ascending,
	4: Descending,
	5: Descending,
}

// openers lists the ranks playable on an undetermined Up or Down pile,
// keyed by the current top.
var openers = map[int]map[int]bool{
	0:         {1: true, 5: true, StartRank: true},
	StartRank: {2: true, 4: true},
}

type Pile struct {
	Top    int
	Dir    Direction
	Played int
}

func (p Pile) Complete() bool { return p.Played >= variant.CardsPerSuit }

// Piles is the play area for one game. It is owned by a single replay.
type Piles struct {
	upOrDown bool
	suits    []Pile
}

func NewPiles(v variant.Variant) *Piles {
	return &Piles{upOrDown: v.UpOrDown, suits: make([]Pile, v.Suits)}
}

func (ps *Piles) Suit(i int) Pile { return ps.suits[i] }

// Playable reports whether c can go on its pile right now.
func (ps *Piles) Playable(c Card) bool {
	if c.Suit < 0 || c.Suit >= len(ps.suits) {
		return false
	}
	_, ok := next(ps.suits[c.Suit], c.Rank, ps.upOrDown)
	return ok
}

// Play applies c. It returns false, leaving the piles untouched, when the
// play is illegal; the caller records a strike. completed is true when
// this play finished the suit.
func (ps *Piles) Play(c Card) (legal, completed bool) {
	if c.Suit < 0 || c.Suit >= len(ps.suits) {
		return false, false
	}
	p, ok := next(ps.suits[c.Suit], c.Rank, ps.upOrDown)
	if !ok {
		return false, false
	}
	ps.suits[c.Suit] = p
	return true, p.Complete()
}

// Score is the number of cards successfully played. For ordinary suits it
// equals the sum of the pile tops.
func (ps *Piles) Score() int {
	s := 0
	for _, p := range ps.suits {
		s += p.Played
	}
	return s
}

func (ps *Piles) AllComplete() bool {
	for _, p := range ps.suits {
		if !p.Complete() {
			return false
		}
	}
	return len(ps.suits) > 0
}

// next computes the pile after playing rank, or false if it is illegal.
func next(p Pile, rank int, upOrDown bool) (Pile, bool) {
	if p.Complete() {
		return p, false
	}
	if !upOrDown {
		if rank != p.Top+1 {
			return p, false
		}
		return Pile{Top: rank, Dir: Ascending, Played: p.Played + 1}, true
	}

	switch p.Dir {
	case Ascending:
		if rank != p.Top+1 {
			return p, false
		}
	case Descending:
		if rank != p.Top-1 {
			return p, false
		}
	default:
		if !openers[p.Top][rank] {
			return p, false
		}
		p.Dir = directionByRank[rank]
	}
	p.Top = rank
	p.Played++
	return p, true
}
