package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortraits(t *testing.T) {
	ps := Portraits([]NoteRow{
		{GameID: 1, Player: "alice", Notes: []string{"Chop", "r5, 2?", ""}},
		{GameID: 2, Player: "alice", Notes: []string{"chop!"}},
		{GameID: 1, Player: "bob", Notes: []string{"", "trash"}},
	})
	require.Len(t, ps, 2)
	assert.Equal(t, Portrait{"chop": 2, "r5": 1, "2?": 1}, ps["alice"])
	assert.Equal(t, 4, ps["alice"].Words())
	assert.Equal(t, []Standing{{"chop", 2}, {"2?", 1}, {"r5", 1}}, ps["alice"].Top())

	assert.Equal(t, []Standing{{"alice", 4}, {"bob", 1}}, MostTalkative(ps))
}

func TestVocabularyOverlap(t *testing.T) {
	a := Portrait{"chop": 3, "r5": 1, "trash": 1}
	b := Portrait{"chop": 1, "finesse": 2}

	assert.Equal(t, 33.33, VocabularyOverlap(a, b))
	assert.Equal(t, 50.0, VocabularyOverlap(b, a))
	assert.Equal(t, 0.0, VocabularyOverlap(nil, a))

	ps := map[string]Portrait{"a": a, "b": b}
	assert.Equal(t, [][]float64{{100, 33.33}, {50, 100}}, OverlapMatrix([]string{"a", "b"}, ps))
}
