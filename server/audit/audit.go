package audit

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"hanabi-stats/server/batch"
	"hanabi-stats/server/engine"
)

// Store is the part of store.DB the audit needs.
type Store interface {
	GameIDs(ctx context.Context, pending bool) ([]int, error)
	LoadGame(ctx context.Context, id int) (engine.Game, error)
	SaveResult(ctx context.Context, r engine.GameResult) error
	SaveTrace(ctx context.Context, tr engine.Trace) error
	AllResults(ctx context.Context) ([]engine.GameResult, error)
}

// Mismatch is a stored game whose recorded outcome disagrees with a fresh
// replay of its actions.
type Mismatch struct {
	GameID      int                 `json:"game_id"`
	StoredScore int                 `json:"stored_score"`
	ReplayScore int                 `json:"replay_score"`
	StoredEnd   engine.EndCondition `json:"stored_end"`
	ReplayEnd   engine.EndCondition `json:"replay_end"`
}

// Auditor re-replays stored game logs and writes the derived columns back.
type Auditor struct {
	Store  Store
	Runner *batch.Runner
	Log    logrus.FieldLogger
}

func New(s Store, r *batch.Runner, log logrus.FieldLogger) *Auditor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Auditor{Store: s, Runner: r, Log: log}
}

// Rescan replays every stored game (or only never-replayed ones when
// pending is set) and saves each result and its card and clue history as
// it completes.
func (a *Auditor) Rescan(ctx context.Context, pending bool) (batch.Report, []Mismatch, error) {
	before, err := a.Store.AllResults(ctx)
	if err != nil {
		return batch.Report{}, nil, fmt.Errorf("load stored results: %w", err)
	}
	ids, err := a.Store.GameIDs(ctx, pending)
	if err != nil {
		return batch.Report{}, nil, fmt.Errorf("list games: %w", err)
	}

	r := *a.Runner
	r.OnResult = a.Store.SaveResult
	r.OnTrace = a.Store.SaveTrace
	rep := r.RunIDs(ctx, ids, a.Store.LoadGame)

	mm := Compare(before, rep.Results)
	for _, m := range mm {
		a.Log.WithFields(logrus.Fields{
			"game_id":      m.GameID,
			"stored_score": m.StoredScore,
			"replay_score": m.ReplayScore,
			"stored_end":   m.StoredEnd.String(),
			"replay_end":   m.ReplayEnd.String(),
		}).Warn("stored result disagrees with replay")
	}
	return rep, mm, nil
}

// Compare pairs results by game id and lists those whose score or end
// condition differ. Games present on one side only are ignored.
func Compare(stored, replayed []engine.GameResult) []Mismatch {
	byID := make(map[int]engine.GameResult, len(stored))
	for _, s := range stored {
		byID[s.GameID] = s
	}
	var out []Mismatch
	for _, r := range replayed {
		s, ok := byID[r.GameID]
		if !ok {
			continue
		}
		if s.Score == r.Score && s.EndCondition == r.EndCondition {
			continue
		}
		out = append(out, Mismatch{
			GameID:      r.GameID,
			StoredScore: s.Score,
			ReplayScore: r.Score,
			StoredEnd:   s.EndCondition,
			ReplayEnd:   r.EndCondition,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameID < out[j].GameID })
	return out
}
