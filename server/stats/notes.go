package stats

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// NoteRow is the notes one player kept during one game, one entry per card.
type NoteRow struct {
	GameID int      `json:"game_id"`
	Player string   `json:"player"`
	Notes  []string `json:"notes"`
}

// Portrait counts the words a player wrote in card notes.
type Portrait map[string]int

// Words is the total number of words written.
func (p Portrait) Words() int {
	n := 0
	for _, c := range p {
		n += c
	}
	return n
}

// Top lists words by count, most used first, ties by word.
func (p Portrait) Top() []Standing { return standings(p) }

// noteWords splits a note into case-folded words. Digits and '?' stay part
// of a word, so "r5" and "2?" survive.
func noteWords(fold cases.Caser, note string) []string {
	return strings.FieldsFunc(fold.String(note), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '?'
	})
}

// Portraits builds one Portrait per player from note rows.
func Portraits(rows []NoteRow) map[string]Portrait {
	fold := cases.Fold()
	out := make(map[string]Portrait)
	for _, row := range rows {
		p, ok := out[row.Player]
		if !ok {
			p = Portrait{}
			out[row.Player] = p
		}
		for _, note := range row.Notes {
			for _, w := range noteWords(fold, note) {
				p[w]++
			}
		}
	}
	return out
}

// MostTalkative ranks players by words written, most first.
func MostTalkative(ps map[string]Portrait) []Standing {
	words := make(map[string]int, len(ps))
	for name, p := range ps {
		words[name] = p.Words()
	}
	return standings(words)
}

// VocabularyOverlap is the percentage of a's distinct words that b also
// uses. It is 0 when a is empty.
func VocabularyOverlap(a, b Portrait) float64 {
	shared := 0
	for w := range a {
		if _, ok := b[w]; ok {
			shared++
		}
	}
	return Percentage(shared, len(a))
}

// OverlapMatrix holds VocabularyOverlap(players[i], players[j]) at [i][j].
func OverlapMatrix(players []string, ps map[string]Portrait) [][]float64 {
	m := make([][]float64, len(players))
	for i, a := range players {
		m[i] = make([]float64, len(players))
		for j, b := range players {
			m[i][j] = VocabularyOverlap(ps[a], ps[b])
		}
	}
	return m
}
