package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"hanabi-stats/server/engine"
	"hanabi-stats/server/stats"
)

// ResultSource is the read side of store.DB the API needs.
type ResultSource interface {
	Ping(ctx context.Context) error
	ResultsWithPlayer(ctx context.Context, player string) ([]engine.GameResult, error)
	AllResults(ctx context.Context) ([]engine.GameResult, error)
}

type RouterOptions struct {
	TopN     int
	MinGames int
}

type bucketsView map[string]stats.Buckets

type playerView struct {
	Name       string      `json:"name"`
	Games      int         `json:"games"`
	WinRate    stats.Rate  `json:"win_rate"`
	WinLoss    float64     `json:"win_loss_pct"`
	Efficiency float64     `json:"avg_efficiency"`
	CI95       [2]float64  `json:"win_rate_ci95"`
	Classes    bucketsView `json:"classes"`
}

func Router(src ResultSource, opts RouterOptions) http.Handler {
	if opts.TopN <= 0 {
		opts.TopN = 10
	}
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.Timeout(30 * time.Second))

	mux.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := withTimeout(r.Context(), 2*time.Second)
		defer cancel()
		dbOK := src.Ping(ctx) == nil
		writeJSON(w, map[string]any{"ok": true, "db": dbOK})
	})

	mux.Get("/api/players/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		rs, err := src.ResultsWithPlayer(r.Context(), name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		acc := stats.NewAccumulator()
		for _, res := range rs {
			acc.Add(res)
		}
		rec, ok := acc.Record(name)
		if !ok {
			http.Error(w, "no games for player", http.StatusNotFound)
			return
		}
		tot := rec.Class(stats.Totals).All
		lo, hi := stats.WilsonCI95(tot.Wins, tot.Games())
		v := playerView{
			Name:       rec.Name,
			Games:      tot.Games(),
			WinRate:    tot.WinRate(),
			WinLoss:    tot.WinLoss(),
			Efficiency: stats.MeanEfficiency(rs),
			CI95:       [2]float64{lo, hi},
			Classes:    bucketsView{},
		}
		for _, c := range stats.Classes() {
			v.Classes[c.String()] = rec.Class(c)
		}
		writeJSON(w, v)
	})

	mux.Get("/api/players/{name}/partners", func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		n := queryInt(r, "n", opts.TopN)
		minGames := queryInt(r, "min", opts.MinGames)
		rs, err := src.ResultsWithPlayer(r.Context(), name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, stats.TopPartners(name, rs, n, minGames))
	})

	mux.Get("/api/ranking", func(w http.ResponseWriter, r *http.Request) {
		rs, err := src.AllResults(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		anchors := splitList(r.URL.Query().Get("anchors"))
		if len(anchors) == 0 {
			anchors = playerNames(rs)
		}
		rk := stats.GlobalRanking(anchors, rs, queryInt(r, "n", opts.TopN), queryInt(r, "min", opts.MinGames))
		writeJSON(w, map[string]any{"by_count": rk.ByCount(), "by_weight": rk.ByWeight()})
	})

	mux.Get("/api/starting-player", func(w http.ResponseWriter, r *http.Request) {
		rs, err := src.AllResults(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, stats.StartingPlayerReport(rs, splitList(r.URL.Query().Get("players"))...))
	})

	mux.Get("/api/ratings", func(w http.ResponseWriter, r *http.Request) {
		rs, err := src.AllResults(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		rt := stats.NewRatings(stats.DefaultTau)
		rt.Rate(rs)
		writeJSON(w, map[string]any{
			"players":  stats.Leaderboard(rt.Players),
			"variants": stats.Leaderboard(rt.Variants),
		})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}

func queryInt(r *http.Request, key string, def int) int {
	s := strings.TrimSpace(r.URL.Query().Get(key))
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// playerNames lists every player seen in rs in case-folded order.
func playerNames(rs []engine.GameResult) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range rs {
		for _, p := range r.Players {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	stats.SortByName(out, func(i int) string { return out[i] })
	return out
}
