package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"hanabi-stats/server/audit"
	"hanabi-stats/server/batch"
	"hanabi-stats/server/cache"
	"hanabi-stats/server/config"
	"hanabi-stats/server/engine"
	"hanabi-stats/server/hanablive"
	"hanabi-stats/server/report"
	"hanabi-stats/server/stats"
	"hanabi-stats/server/store"
	"hanabi-stats/server/variant"
)

//
// ===== pretty printing =====
//

var useColor bool

const (
	colReset  = "\033[0m"
	colBold   = "\033[1m"
	colDim    = "\033[2m"
	colGreen  = "\033[32m"
	colRed    = "\033[31m"
	colYellow = "\033[33m"
)

func c(code, s string) string {
	if !useColor {
		return s
	}
	return code + s + colReset
}
func bold(s string) string { return c(colBold, s) }
func dim(s string) string  { return c(colDim, s) }
func good(s string) string { return c(colGreen, s) }
func warn(s string) string { return c(colYellow, s) }
func bad(s string) string  { return c(colRed, s) }
func section(title string) { fmt.Printf("\n%s %s %s\n", dim("──"), bold(title), dim("──")) }

//
// ===== bootstrap =====
//

// cliArgs holds the parsed command line. Flags may be written "--flag value"
// or "--flag=value".
type cliArgs struct {
	migrate  bool
	rescan   bool
	pending  bool
	reports  bool
	starting bool
	imports  []string
	fetch    []string
	rank     []string
	notes    []string
}

func parseArgs(args []string) (cliArgs, error) {
	var a cliArgs
	for i := 0; i < len(args); i++ {
		name, val, hasVal := strings.Cut(args[i], "=")
		value := func() (string, error) {
			if hasVal {
				return val, nil
			}
			if i+1 >= len(args) || strings.HasPrefix(args[i+1], "--") {
				return "", fmt.Errorf("%s needs a value", name)
			}
			i++
			return args[i], nil
		}
		switch name {
		case "--migrate":
			a.migrate = true
		case "--rescan":
			a.rescan = true
		case "--pending":
			a.rescan, a.pending = true, true
		case "--report":
			a.reports = true
		case "--starting":
			a.starting = true
		case "--import":
			v, err := value()
			if err != nil {
				return a, err
			}
			a.imports = append(a.imports, v)
		case "--fetch":
			v, err := value()
			if err != nil {
				return a, err
			}
			a.fetch = append(a.fetch, splitList(v)...)
		case "--rank":
			v, err := value()
			if err != nil {
				return a, err
			}
			a.rank = append(a.rank, splitList(v)...)
		case "--notes":
			v, err := value()
			if err != nil {
				return a, err
			}
			a.notes = append(a.notes, splitList(v)...)
		case "serve":
		default:
			return a, fmt.Errorf("unknown argument %q", args[i])
		}
	}
	return a, nil
}

func (a cliArgs) batchMode() bool {
	return a.rescan || a.reports || a.starting || len(a.imports) > 0 || len(a.fetch) > 0 || len(a.rank) > 0 || len(a.notes) > 0
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := cfg.Logger()
	useColor = (os.Getenv("NO_COLOR") == "") && (strings.TrimSpace(os.Getenv("USE_COLOR")) != "0")

	args, err := parseArgs(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watchSignals(cancel)

	db := openDB(ctx, cfg, log, args.migrate)
	if db != nil {
		defer db.Close(context.Background())
	}

	if args.migrate {
		if db == nil {
			log.Fatal("--migrate needs DATABASE_URL")
		}
		if err := store.Migrate(ctx, db); err != nil {
			log.Fatal(err)
		}
		if err := db.UpsertVariants(ctx, variant.Default().All()); err != nil {
			log.Fatal(err)
		}
		log.Info("migrated")
		if !args.batchMode() {
			return
		}
	}

	if args.batchMode() {
		if err := runBatch(ctx, cfg, log, db, args); err != nil {
			log.Fatal(err)
		}
		return
	}

	// server
	if db == nil {
		log.Fatal("serving needs DATABASE_URL")
	}
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      Router(db, RouterOptions{TopN: cfg.TopN, MinGames: cfg.MinSharedGames}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = srv.Shutdown(shutdown)
	}()
	log.Infof("listening on http://localhost:%s (Ctrl+C to stop)", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func watchSignals(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c
	cancel()
}

// openDB connects when DATABASE_URL is set. Failures are logged and the
// run continues without a database, except when migrating.
func openDB(ctx context.Context, cfg config.Config, log *logrus.Logger, migrating bool) *store.DB {
	if cfg.DatabaseURL == "" {
		return nil
	}
	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Warn("DB disabled (open failed)")
		return nil
	}
	if cfg.AutoMigrate && !migrating {
		if err := store.Migrate(ctx, db); err != nil {
			log.WithError(err).Warn("migrate failed (continuing without DB)")
			db.Close(ctx)
			return nil
		}
	}
	if vs, err := db.LoadVariants(ctx); err != nil {
		log.WithError(err).Debug("variants table not loaded")
	} else {
		variant.Default().Register(vs...)
	}
	return db
}

func newCache(ctx context.Context, cfg config.Config, log *logrus.Logger) cache.Cache {
	if cfg.RedisURL == "" {
		return cache.NewMemory()
	}
	rc, err := cache.NewRedis(ctx, cfg.RedisURL, cfg.CacheTTL)
	if err != nil {
		log.WithError(err).Warn("redis disabled")
		return cache.NewMemory()
	}
	return rc
}

//
// ===== batch modes =====
//

func runBatch(ctx context.Context, cfg config.Config, log *logrus.Logger, db *store.DB, args cliArgs) error {
	rp := engine.NewReplayer(variant.Default(), engine.Config{
		MaxClues:       variant.MaxClues,
		BonusClue:      cfg.BonusClue,
		StrikeLimit:    cfg.StrikeLimit,
		EndOnStrikeout: cfg.EndOnStrikeout,
	})
	runner := batch.NewRunner(rp, cfg.Workers, log)

	// collected in memory for runs without a database
	var local collected

	for _, path := range args.imports {
		if err := importFile(ctx, path, runner, db, log, &local); err != nil {
			return err
		}
	}

	if len(args.fetch) > 0 {
		client := hanablive.New(cfg.APIBase, cfg.HTTPTimeout, cfg.UserAgent, newCache(ctx, cfg, log), log)
		rs, err := fetchHistories(ctx, client, db, args.fetch, log)
		if err != nil {
			return err
		}
		local.results = append(local.results, rs...)
	}

	if args.rescan {
		if db == nil {
			return errors.New("--rescan needs DATABASE_URL")
		}
		rep, mm, err := audit.New(db, runner, log).Rescan(ctx, args.pending)
		if err != nil {
			return err
		}
		printReport(rep)
		if len(mm) > 0 {
			fmt.Printf("%s %d stored results disagree with their logs\n", warn("!"), len(mm))
		}
	}

	if !args.reports && !args.starting && len(args.rank) == 0 && len(args.notes) == 0 {
		return nil
	}
	in := collected{results: dedupe(local.results), traces: local.traces, notes: local.notes}
	if db != nil {
		all, err := db.AllResults(ctx)
		if err != nil {
			return fmt.Errorf("load results: %w", err)
		}
		in.results = dedupe(append(all, local.results...))
		if args.reports {
			if in.tallies, err = db.ActionTallies(ctx); err != nil {
				return fmt.Errorf("load action tallies: %w", err)
			}
		}
		if len(args.notes) > 0 {
			if in.notes, err = db.Notes(ctx, args.notes); err != nil {
				return fmt.Errorf("load notes: %w", err)
			}
		}
	}
	return writeReports(cfg, in, args, log)
}

// collected is what the batch modes gather for reports. Imports store
// traces and notes in the database when one is configured, so tallies and
// notes are read back from it instead.
type collected struct {
	results []engine.GameResult
	traces  []engine.Trace
	notes   []stats.NoteRow
	tallies []stats.ActionTally
}

func importFile(ctx context.Context, path string, runner *batch.Runner, db *store.DB, log *logrus.Logger, out *collected) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	exports, err := hanablive.ReadJSONL(f, log.WithField("file", path))
	if err != nil {
		return err
	}

	games := make([]engine.Game, 0, len(exports))
	for _, e := range exports {
		g, err := e.Game()
		if err != nil {
			log.WithField("game_id", e.ID).WithError(err).Warn("skipping export")
			continue
		}
		for i, ns := range e.Notes {
			if i < len(g.Players) && len(ns) > 0 {
				out.notes = append(out.notes, stats.NoteRow{GameID: g.ID, Player: g.Players[i], Notes: ns})
			}
		}
		if db != nil {
			if err := db.SaveGame(ctx, g, e.Notes); err != nil {
				log.WithField("game_id", g.ID).WithError(err).Warn("storing game failed")
			}
		}
		games = append(games, g)
	}

	var mu sync.Mutex
	r := *runner
	r.OnTrace = func(ctx context.Context, tr engine.Trace) error {
		mu.Lock()
		out.traces = append(out.traces, tr)
		mu.Unlock()
		if db != nil {
			return db.SaveTrace(ctx, tr)
		}
		return nil
	}
	if db != nil {
		r.OnResult = db.SaveResult
	}
	rep := r.Run(ctx, games)
	section("IMPORT " + path)
	printReport(rep)
	out.results = append(out.results, rep.Results...)
	return nil
}

// fetchHistories pulls the finished-game history of each user. A user whose
// history cannot be fetched is skipped.
func fetchHistories(ctx context.Context, client *hanablive.Client, db *store.DB, users []string, log *logrus.Logger) ([]engine.GameResult, error) {
	var out []engine.GameResult
	for _, u := range users {
		if ctx.Err() != nil {
			break
		}
		rows, err := client.HistoryFull(ctx, u)
		if err != nil {
			log.WithField("user", u).WithError(err).Warn("history fetch failed")
			continue
		}
		rs := hanablive.Results(rows)
		if db != nil {
			for _, r := range rs {
				if err := db.SaveResult(ctx, r); err != nil {
					log.WithField("game_id", r.GameID).WithError(err).Warn("storing result failed")
				}
			}
		}
		log.WithFields(logrus.Fields{"user": u, "games": len(rs)}).Info("history fetched")
		out = append(out, rs...)
	}
	return out, ctx.Err()
}

func dedupe(rs []engine.GameResult) []engine.GameResult {
	seen := make(map[int]bool, len(rs))
	out := rs[:0:0]
	for _, r := range rs {
		if seen[r.GameID] {
			continue
		}
		seen[r.GameID] = true
		out = append(out, r)
	}
	return out
}

func writeReports(cfg config.Config, in collected, args cliArgs, log *logrus.Logger) error {
	results := in.results
	write := func(name string, fn func(io.Writer) error) error {
		path, err := report.WriteFile(cfg.OutputDir, name, fn)
		if err != nil {
			return err
		}
		log.WithField("path", path).Info("report written")
		return nil
	}

	if args.reports {
		recs := stats.Summarize(results)
		if err := write("up_to_date_stats", func(w io.Writer) error { return report.WritePlayerSummary(w, recs) }); err != nil {
			return err
		}
		for _, set := range []struct {
			name string
			pred []stats.Predicate
		}{
			{"highest_wr_all", nil},
			{"highest_wr_bga", []stats.Predicate{stats.BGA}},
			{"highest_wr_non_speedrun", []stats.Predicate{stats.NotSpeedrun}},
		} {
			sub := stats.Summarize(stats.Filter(results, set.pred...))
			if err := write(set.name, func(w io.Writer) error { return report.WriteHighestWinRate(w, sub, cfg.MinSharedGames) }); err != nil {
				return err
			}
		}
		tallies := in.tallies
		if tallies == nil {
			tallies = stats.TallyActions(in.traces)
		}
		if err := write("clue_givers", func(w io.Writer) error { return report.WriteActions(w, tallies) }); err != nil {
			return err
		}
	}

	if len(args.rank) > 0 {
		rk := stats.GlobalRanking(args.rank, results, cfg.TopN, cfg.MinSharedGames)
		if err := write("rank_1", func(w io.Writer) error { return report.WriteRanking(w, rk.ByCount()) }); err != nil {
			return err
		}
		if err := write("rank_weight", func(w io.Writer) error { return report.WriteRanking(w, rk.ByWeight()) }); err != nil {
			return err
		}
		for _, a := range args.rank {
			top := stats.TopPartners(a, results, 0, cfg.MinSharedGames)
			if err := write(a+"_wl_by_players", func(w io.Writer) error { return report.WritePartners(w, top) }); err != nil {
				return err
			}
		}
	}

	if args.starting {
		rows := stats.StartingPlayerReport(results)
		if err := write("starting_player", func(w io.Writer) error { return report.WriteStartingPlayer(w, rows) }); err != nil {
			return err
		}
	}

	if len(args.notes) > 0 {
		ps := stats.Portraits(in.notes)
		for _, p := range args.notes {
			if err := write(p+"_portrait", func(w io.Writer) error { return report.WritePortrait(w, ps[p]) }); err != nil {
				return err
			}
		}
		if err := write("most_talkative", func(w io.Writer) error { return report.WriteTalkative(w, stats.MostTalkative(ps)) }); err != nil {
			return err
		}
		m := stats.OverlapMatrix(args.notes, ps)
		if err := write("vocabulary_intersection", func(w io.Writer) error { return report.WriteVocabulary(w, args.notes, m) }); err != nil {
			return err
		}
	}
	return nil
}

func printReport(rep batch.Report) {
	fmt.Printf("%s run %s\n", dim("•"), rep.RunID)
	fmt.Printf("  replayed %s  skipped %s  warnings %s  in %s\n",
		good(fmt.Sprint(len(rep.Results))),
		bad(fmt.Sprint(len(rep.Skipped))),
		warn(fmt.Sprint(rep.Warnings)),
		rep.Elapsed.Round(time.Millisecond))
	if rep.Cancelled {
		fmt.Printf("  %s %d games not started\n", warn("cancelled:"), rep.NotRun)
	}
	for _, s := range rep.Skipped {
		fmt.Printf("  %s %v\n", bad("skip"), s)
	}
}
