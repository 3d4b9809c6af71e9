package batch

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"hanabi-stats/server/engine"
	"hanabi-stats/server/stats"
)

// Skip records a game that could not be replayed.
type Skip struct {
	GameID int
	Err    error
}

func (s Skip) Error() string { return fmt.Sprintf("game %d: %v", s.GameID, s.Err) }

// Report is the outcome of one run. Results are sorted by game id.
type Report struct {
	RunID     uuid.UUID
	Results   []engine.GameResult
	Skipped   []Skip
	Warnings  int
	NotRun    int // games never started because the run was cancelled
	Cancelled bool
	Elapsed   time.Duration
}

// Records folds the completed results into per-player records.
func (r Report) Records() []stats.PlayerRecord { return stats.Summarize(r.Results) }

// Loader fetches one game by id, e.g. from the store or the network.
type Loader func(ctx context.Context, id int) (engine.Game, error)

// Runner replays many games on a bounded pool of goroutines. A failing
// game never stops the others.
type Runner struct {
	Replayer *engine.Replayer
	Workers  int
	Log      logrus.FieldLogger
	// OnResult, when set, is called from worker goroutines for every
	// completed game. Errors turn the game into a Skip.
	OnResult func(ctx context.Context, res engine.GameResult) error
	// OnTrace, when set, makes the runner trace every game and is called
	// after OnResult. Errors turn the game into a Skip.
	OnTrace func(ctx context.Context, tr engine.Trace) error
}

func NewRunner(rp *engine.Replayer, workers int, log logrus.FieldLogger) *Runner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{Replayer: rp, Workers: workers, Log: log}
}

// Run replays games that are already in memory.
func (r *Runner) Run(ctx context.Context, games []engine.Game) Report {
	idx := make([]int, len(games))
	for i := range games {
		idx[i] = i
	}
	return r.run(ctx, idx, func(_ context.Context, i int) (engine.Game, error) {
		return games[i], nil
	}, func(i int) int { return games[i].ID })
}

// RunIDs loads and replays each id.
func (r *Runner) RunIDs(ctx context.Context, ids []int, load Loader) Report {
	return r.run(ctx, ids, load, func(id int) int { return id })
}

func (r *Runner) run(ctx context.Context, keys []int, load Loader, gameID func(int) int) Report {
	start := time.Now()
	rep := Report{RunID: uuid.New()}
	log := r.Log.WithField("run_id", rep.RunID.String())
	log.WithField("games", len(keys)).Info("batch started")

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(r.Workers)

	for i, key := range keys {
		if ctx.Err() != nil {
			mu.Lock()
			rep.NotRun += len(keys) - i
			mu.Unlock()
			break
		}
		g.Go(func() error {
			res, err := r.one(ctx, key, load)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if cerr := ctx.Err(); cerr != nil && errors.Is(err, cerr) {
					rep.NotRun++
					return nil
				}
				s := Skip{GameID: gameID(key), Err: err}
				rep.Skipped = append(rep.Skipped, s)
				log.WithField("game_id", s.GameID).WithError(err).Warn("skipping game")
				return nil
			}
			for _, w := range res.Warnings {
				log.WithField("game_id", res.GameID).Warn(w)
			}
			rep.Warnings += len(res.Warnings)
			rep.Results = append(rep.Results, res)
			return nil
		})
	}
	_ = g.Wait()
	if ctx.Err() != nil {
		rep.Cancelled = true
	}

	sort.Slice(rep.Results, func(i, j int) bool { return rep.Results[i].GameID < rep.Results[j].GameID })
	sort.Slice(rep.Skipped, func(i, j int) bool { return rep.Skipped[i].GameID < rep.Skipped[j].GameID })
	rep.Elapsed = time.Since(start)

	log.WithFields(logrus.Fields{
		"replayed":  len(rep.Results),
		"skipped":   len(rep.Skipped),
		"warnings":  rep.Warnings,
		"not_run":   rep.NotRun,
		"cancelled": rep.Cancelled,
		"elapsed":   rep.Elapsed.Round(time.Millisecond).String(),
	}).Info("batch finished")
	return rep
}

// one replays a single game and converts panics into errors.
func (r *Runner) one(ctx context.Context, key int, load Loader) (res engine.GameResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	if err := ctx.Err(); err != nil {
		return engine.GameResult{}, err
	}
	g, err := load(ctx, key)
	if err != nil {
		return engine.GameResult{}, err
	}
	var tr engine.Trace
	if r.OnTrace != nil {
		res, tr, err = r.Replayer.Trace(g)
	} else {
		res, err = r.Replayer.Replay(g)
	}
	if err != nil {
		return engine.GameResult{}, err
	}
	if r.OnResult != nil {
		if err := r.OnResult(ctx, res); err != nil {
			return engine.GameResult{}, fmt.Errorf("store result: %w", err)
		}
	}
	if r.OnTrace != nil {
		if err := r.OnTrace(ctx, tr); err != nil {
			return engine.GameResult{}, fmt.Errorf("store trace: %w", err)
		}
	}
	return res, nil
}
