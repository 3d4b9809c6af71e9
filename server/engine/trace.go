package engine

import (
	"sort"

	"hanabi-stats/server/variant"
)

// CardEvent follows one card from the hand it was drawn into until it left
// that hand. TurnDrawn is 0 for dealt cards, t+1 for a card drawn at the end
// of turn t and -1 when the deal never handed the card out. TurnLeft is -1
// while the card is still held; Action is only meaningful otherwise.
type CardEvent struct {
	Order     int        `json:"order"`
	Card      Card       `json:"card"`
	Player    string     `json:"player"`
	TurnDrawn int        `json:"turn_drawn"`
	Action    ActionKind `json:"action"`
	TurnLeft  int        `json:"turn_left"`
}

func (e CardEvent) Held() bool { return e.TurnLeft < 0 }

type ClueEvent struct {
	Turn     int        `json:"turn"`
	Kind     ActionKind `json:"kind"`
	Value    int        `json:"value"`
	Giver    string     `json:"giver"`
	Receiver string     `json:"receiver"`
}

// Trace is the card and clue history of one replayed game. Cards are in
// deck order, clues in turn order.
type Trace struct {
	GameID int         `json:"game_id"`
	Cards  []CardEvent `json:"cards"`
	Clues  []ClueEvent `json:"clues"`
}

// tracer follows hands during a replay. Every player in seat order is dealt
// a full hand, then whoever plays or discards draws the next card while the
// deck lasts. Turns rotate from the starting player.
type tracer struct {
	players []string
	start   int
	deck    Deck
	next    int
	byOrder map[int]int // deck order -> index in tr.Cards
	tr      Trace
}

func newTracer(g Game) *tracer {
	n := len(g.Players)
	t := &tracer{
		players: g.Players,
		start:   ((g.Options.StartingPlayer % n) + n) % n,
		deck:    g.Deck,
		byOrder: make(map[int]int),
		tr:      Trace{GameID: g.ID},
	}
	hand := variant.HandSize(n, g.Options.OneLessCard, g.Options.OneExtraCard)
	for seat := range g.Players {
		for i := 0; i < hand; i++ {
			t.draw(seat, 0)
		}
	}
	return t
}

func (t *tracer) seat(turn int) int { return (t.start + turn) % len(t.players) }

func (t *tracer) draw(seat, turn int) {
	if t.next >= t.deck.Len() {
		return
	}
	order := t.next
	t.next++
	if _, seen := t.byOrder[order]; seen {
		return
	}
	t.byOrder[order] = len(t.tr.Cards)
	t.tr.Cards = append(t.tr.Cards, CardEvent{
		Order:     order,
		Card:      t.deck.Cards[order],
		Player:    t.players[seat],
		TurnDrawn: turn,
		TurnLeft:  -1,
	})
}

// leave records a play or discard by the acting player, then draws the
// replacement card. A card the deal never reached is charged to the actor.
func (t *tracer) leave(turn int, a Action, deck Deck) {
	seat := t.seat(turn)
	i, ok := t.byOrder[a.Target]
	if !ok {
		i = len(t.tr.Cards)
		t.byOrder[a.Target] = i
		t.tr.Cards = append(t.tr.Cards, CardEvent{
			Order:     a.Target,
			Card:      deck.Cards[a.Target],
			Player:    t.players[seat],
			TurnDrawn: -1,
		})
	}
	t.tr.Cards[i].Action = a.Kind
	t.tr.Cards[i].TurnLeft = turn
	t.draw(seat, turn+1)
}

func (t *tracer) clue(turn int, a Action) {
	ev := ClueEvent{Turn: turn, Kind: a.Kind, Value: a.Value, Giver: t.players[t.seat(turn)]}
	if a.Target >= 0 && a.Target < len(t.players) {
		ev.Receiver = t.players[a.Target]
	}
	t.tr.Clues = append(t.tr.Clues, ev)
}

func (t *tracer) done() Trace {
	sort.Slice(t.tr.Cards, func(i, j int) bool { return t.tr.Cards[i].Order < t.tr.Cards[j].Order })
	return t.tr
}
