package engine

import "fmt"

type Card struct {
	Suit int `json:"suitIndex"`
	Rank int `json:"rank"`
}

func (c Card) String() string {
	return fmt.Sprintf("s%dr%d", c.Suit, c.Rank)
}

// Deck is the fixed card order for a seed. Card orders referenced by play
// and discard actions index into Cards.
type Deck struct {
	Seed  string
	Cards []Card
}

func NewDeck(seed string, cards []Card) Deck {
	cp := make([]Card, len(cards))
	copy(cp, cards)
	return Deck{Seed: seed, Cards: cp}
}

func (d Deck) Len() int { return len(d.Cards) }

// At returns the card with the given order.
func (d Deck) At(order int) (Card, error) {
	if order < 0 || order >= len(d.Cards) {
		return Card{}, fmt.Errorf("%w: card order %d outside deck of %d", ErrMalformed, order, len(d.Cards))
	}
	return d.Cards[order], nil
}

// Validate checks every card against the suit count of the variant. The
// START rank only exists in Up or Down variants.
func (d Deck) Validate(suits int, upOrDown bool) error {
	for i, c := range d.Cards {
		if c.Suit < 0 || c.Suit >= suits {
			return fmt.Errorf("%w: card %d has suit %d (variant has %d)", ErrMalformed, i, c.Suit, suits)
		}
		switch {
		case c.Rank >= 1 && c.Rank <= 5:
		case c.Rank == StartRank && upOrDown:
		default:
			return fmt.Errorf("%w: card %d has rank %d", ErrMalformed, i, c.Rank)
		}
	}
	return nil
}
