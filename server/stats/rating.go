package stats

import (
	"math"
	"sort"

	"hanabi-stats/server/engine"
)

// Glicko-2 constants (paper values).
const (
	g2Scale = 173.7178
	q       = math.Ln10 / 400.0
	pi2     = math.Pi * math.Pi

	// DefaultTau constrains volatility changes.
	DefaultTau = 0.5
)

// Glicko2 holds the public 1500-scale values, not mu/phi.
type Glicko2 struct {
	Rating     float64 `json:"rating"`
	RD         float64 `json:"rd"`
	Volatility float64 `json:"volatility"`
	Games      int     `json:"games"`
}

func NewGlicko2() *Glicko2 {
	return &Glicko2{Rating: 1500, RD: 350, Volatility: 0.06}
}

func toMuPhi(r, rd float64) (mu, phi float64)   { return (r - 1500.0) / g2Scale, rd / g2Scale }
func fromMuPhi(mu, phi float64) (r, rd float64) { return mu*g2Scale + 1500.0, phi * g2Scale }

func g(phi float64) float64 { return 1.0 / math.Sqrt(1.0+3.0*q*q*phi*phi/pi2) }
func expected(mu, muj, phij float64) float64 {
	return 1.0 / (1.0 + math.Exp(-g(phij)*(mu-muj)))
}

// Opponent is one result inside a rating period. S is 1 for a win and 0
// for a loss.
type Opponent struct {
	R Glicko2
	S float64
}

// Update applies one Glicko-2 rating period. Opponents must hold the values
// from the start of the period.
func (a *Glicko2) Update(opps []Opponent, tau float64) {
	muA, phiA := toMuPhi(a.Rating, a.RD)
	a.Games++
	if len(opps) == 0 {
		phiStar := math.Sqrt(phiA*phiA + a.Volatility*a.Volatility)
		a.Rating, a.RD = fromMuPhi(muA, phiStar)
		return
	}

	var sumG2E, sumGSE float64
	for _, o := range opps {
		muB, phiB := toMuPhi(o.R.Rating, o.R.RD)
		gB := g(phiB)
		e := expected(muA, muB, phiB)
		sumG2E += gB * gB * e * (1.0 - e)
		sumGSE += gB * (o.S - e)
	}
	v := 1.0 / (q * q * sumG2E)
	delta := v * q * sumGSE

	vol := a.Volatility
	if math.Abs(delta) >= 1e-12 {
		vol = newVolatility(phiA, a.Volatility, v, delta, tau)
	}
	phiStar := math.Sqrt(phiA*phiA + vol*vol)
	phiNew := 1.0 / math.Sqrt(1.0/(phiStar*phiStar)+1.0/v)
	muNew := muA + phiNew*phiNew*q*sumGSE

	a.Rating, a.RD = fromMuPhi(muNew, phiNew)
	a.Volatility = vol
}

// newVolatility solves f(x)=0 from the Glicko-2 paper with the Illinois
// variant of regula falsi.
func newVolatility(phi, sigma, v, delta, tau float64) float64 {
	a := math.Log(sigma * sigma)
	f := func(x float64) float64 {
		ex := math.Exp(x)
		num := ex * (delta*delta - phi*phi - v - ex)
		den := 2.0 * (phi*phi + v + ex) * (phi*phi + v + ex)
		return num/den - (x-a)/(tau*tau)
	}

	A := a
	var B float64
	if delta*delta > phi*phi+v {
		B = math.Log(delta*delta - phi*phi - v)
	} else {
		k := 1.0
		for f(a-k) < 0 && k < 1e6 {
			k *= 2.0
		}
		B = a - k
	}
	fA, fB := f(A), f(B)
	for it := 0; it < 60 && math.Abs(B-A) > 1e-6; it++ {
		C := A + (A-B)*fA/(fB-fA)
		fC := f(C)
		if math.IsNaN(fC) || math.IsInf(fC, 0) {
			break
		}
		if fC*fB < 0 {
			A, fA = B, fB
		} else {
			fA /= 2
		}
		B, fB = C, fC
	}
	return math.Exp(B / 2.0)
}

// Ratings rates players against variants. Every game is one rating period:
// each player meets the variant (S=1 on a perfect score) and the variant
// meets each player with the opposite score. A name listed twice in one
// game is rated once.
type Ratings struct {
	Players  map[string]*Glicko2
	Variants map[string]*Glicko2
	Tau      float64
}

func NewRatings(tau float64) *Ratings {
	if tau <= 0 {
		tau = DefaultTau
	}
	return &Ratings{Players: map[string]*Glicko2{}, Variants: map[string]*Glicko2{}, Tau: tau}
}

func ratingOf(m map[string]*Glicko2, name string) *Glicko2 {
	r, ok := m[name]
	if !ok {
		r = NewGlicko2()
		m[name] = r
	}
	return r
}

// Rate applies results in game id order so the outcome does not depend on
// the order they were collected in.
func (rt *Ratings) Rate(results []engine.GameResult) {
	sorted := append([]engine.GameResult(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].GameID < sorted[j].GameID })
	for _, r := range sorted {
		rt.rateGame(r)
	}
}

func (rt *Ratings) rateGame(r engine.GameResult) {
	s := 0.0
	if IsWin(r) {
		s = 1.0
	}
	vr := ratingOf(rt.Variants, r.Variant)
	varStart := *vr

	var vsPlayers []Opponent
	seen := make(map[string]bool, len(r.Players))
	for _, name := range r.Players {
		if seen[name] {
			continue
		}
		seen[name] = true
		pr := ratingOf(rt.Players, name)
		vsPlayers = append(vsPlayers, Opponent{R: *pr, S: 1 - s})
		pr.Update([]Opponent{{R: varStart, S: s}}, rt.Tau)
	}
	vr.Update(vsPlayers, rt.Tau)
}

type RatedName struct {
	Name string `json:"name"`
	Glicko2
}

// Leaderboard lists ratings by rating descending, then name.
func Leaderboard(m map[string]*Glicko2) []RatedName {
	out := make([]RatedName, 0, len(m))
	for name, r := range m {
		out = append(out, RatedName{Name: name, Glicko2: *r})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].Name < out[j].Name
	})
	return out
}
