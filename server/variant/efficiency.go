package variant

import "math"

// MaxClues is the size of the clue token pool.
const MaxClues = 8

// copiesPerRank is the standard distribution of one suit: three 1s, two
// each of 2-4 and a single 5.
var copiesPerRank = [CardsPerSuit + 1]int{0, 3, 2, 2, 2, 1}

var handSizes = map[int]int{2: 5, 3: 5, 4: 4, 5: 4, 6: 3}

// HandSize is the number of cards each player starts with.
func HandSize(players int, oneLess, oneExtra bool) int {
	n, ok := handSizes[players]
	if !ok {
		return 0
	}
	if oneLess {
		return n - 1
	}
	if oneExtra {
		return n + 1
	}
	return n
}

// StartingCards is the total number of cards dealt before the first turn.
func StartingCards(players int, oneLess, oneExtra bool) int {
	return HandSize(players, oneLess, oneExtra) * players
}

// DeckSize is the number of cards in a full deck of the variant.
func (v Variant) DeckSize() int {
	per := 0
	for _, c := range copiesPerRank {
		per += c
	}
	return per * v.Suits
}

// RequiredEfficiency estimates the clue efficiency a team needs to reach
// the max score: max score divided by every clue the team can ever hold.
// That is the starting pool, one clue per discard the pace allows, and one
// bonus clue per completed suit except the last.
func (v Variant) RequiredEfficiency(players int) float64 {
	hand := HandSize(players, false, false)
	if hand == 0 {
		return 0
	}
	max := v.MaxScoreFor(players)
	pace := v.DeckSize() - hand*players - max + players
	if pace < 0 {
		pace = 0
	}
	clues := MaxClues + pace + v.Suits - 1
	if clues <= 0 {
		return 0
	}
	return math.Round(float64(max)/float64(clues)*100) / 100
}

func RequiredEfficiency(name string, players int) float64 {
	return defaultCatalog.Lookup(name).RequiredEfficiency(players)
}
