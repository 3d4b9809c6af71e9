package variant

import (
	"strconv"
	"strings"
	"sync"
)

// CardsPerSuit is the number of distinct cards that must be played to
// complete one suit.
const CardsPerSuit = 5

// DefaultSuits is used when a variant name carries no usable suit count.
const DefaultSuits = 5

type Variant struct {
	ID          int
	Name        string
	Suits       int
	SpecialRank int  // 0 when the variant has no special rank
	UpOrDown    bool // suits may be built ascending or descending
	// MaxScoreOverride maps a player count to a max score that differs
	// from Suits*CardsPerSuit.
	MaxScoreOverride map[int]int
}

// MaxScore is the perfect score regardless of player count.
func (v Variant) MaxScore() int { return v.Suits * CardsPerSuit }

// MaxScoreFor returns the perfect score for a given player count.
func (v Variant) MaxScoreFor(players int) int {
	if s, ok := v.MaxScoreOverride[players]; ok {
		return s
	}
	return v.MaxScore()
}

func (v Variant) IsSpecialRank(rank int) bool {
	return v.SpecialRank != 0 && rank == v.SpecialRank
}

// Catalog is a read-mostly registry of variants keyed by exact name.
type Catalog struct {
	mu     sync.RWMutex
	byName map[string]Variant
}

func NewCatalog(vs ...Variant) *Catalog {
	c := &Catalog{byName: make(map[string]Variant, len(vs))}
	for _, v := range vs {
		c.byName[v.Name] = v
	}
	return c
}

// Register adds or replaces variants, e.g. after loading the variants table.
func (c *Catalog) Register(vs ...Variant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range vs {
		if v.Suits <= 0 {
			v.Suits = parseSuits(v.Name)
		}
		c.byName[v.Name] = v
	}
}

// All returns a copy of every registered variant.
func (c *Catalog) All() []Variant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Variant, 0, len(c.byName))
	for _, v := range c.byName {
		out = append(out, v)
	}
	return out
}

// Lookup never fails: unknown names resolve through parseSuits.
func (c *Catalog) Lookup(name string) Variant {
	c.mu.RLock()
	v, ok := c.byName[name]
	c.mu.RUnlock()
	if ok {
		return v
	}
	return Variant{
		Name:     name,
		Suits:    parseSuits(name),
		UpOrDown: isUpOrDown(name),
	}
}

func (c *Catalog) SuitCount(name string) int            { return c.Lookup(name).Suits }
func (c *Catalog) MaxScore(name string) int             { return c.Lookup(name).MaxScore() }
func (c *Catalog) MaxScoreFor(name string, n int) int   { return c.Lookup(name).MaxScoreFor(n) }
func (c *Catalog) IsSpecialRank(name string, r int) bool { return c.Lookup(name).IsSpecialRank(r) }

// parseSuits reads the "N Suits" suffix hanab.live puts in variant names,
// e.g. "Rainbow (6 Suits)" or "Up or Down (4 Suits)".
func parseSuits(name string) int {
	s := strings.TrimSpace(name)
	s = strings.TrimSuffix(s, ")")
	if !strings.HasSuffix(s, "Suits") {
		return DefaultSuits
	}
	s = strings.TrimSpace(strings.TrimSuffix(s, "Suits"))
	i := strings.LastIndexAny(s, " (")
	n, err := strconv.Atoi(s[i+1:])
	if err != nil || n <= 0 {
		return DefaultSuits
	}
	return n
}

func isUpOrDown(name string) bool {
	return strings.HasPrefix(name, "Up or Down")
}

var defaultCatalog = NewCatalog(
	Variant{ID: 0, Name: "No Variant", Suits: 5},
	Variant{ID: 1, Name: "6 Suits", Suits: 6},
	Variant{ID: 2, Name: "4 Suits", Suits: 4},
	Variant{ID: 3, Name: "3 Suits", Suits: 3},
	Variant{ID: 16, Name: "Rainbow (6 Suits)", Suits: 6},
	Variant{ID: 104, Name: "Dual-Color Mix", Suits: 6},
	Variant{ID: 105, Name: "Ambiguous Mix", Suits: 6},
	Variant{ID: 106, Name: "Ambiguous & Dual-Color", Suits: 6},
	Variant{ID: 110, Name: "Up or Down (5 Suits)", Suits: 5, UpOrDown: true},
	Variant{ID: 111, Name: "Up or Down (6 Suits)", Suits: 6, UpOrDown: true},
	Variant{ID: 112, Name: "Up or Down (4 Suits)", Suits: 4, UpOrDown: true},
	Variant{ID: 113, Name: "Up or Down (3 Suits)", Suits: 3, UpOrDown: true},
	Variant{ID: 211, Name: "Pink-Ones (5 Suits)", Suits: 5, SpecialRank: 1},
	Variant{ID: 212, Name: "Brown-Fives (5 Suits)", Suits: 5, SpecialRank: 5},
)

// Default is the process-wide catalog seeded with the common variants.
func Default() *Catalog { return defaultCatalog }

func Lookup(name string) Variant               { return defaultCatalog.Lookup(name) }
func SuitCount(name string) int                { return defaultCatalog.SuitCount(name) }
func MaxScore(name string) int                 { return defaultCatalog.MaxScore(name) }
func MaxScoreFor(name string, players int) int { return defaultCatalog.MaxScoreFor(name, players) }
func IsSpecialRank(name string, rank int) bool { return defaultCatalog.IsSpecialRank(name, rank) }
