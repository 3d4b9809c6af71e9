package hanablive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"hanabi-stats/server/cache"
	"hanabi-stats/server/engine"
)

const exportBody = `{
  "id": 1001,
  "players": ["alice", "bob"],
  "deck": [{"suitIndex":0,"rank":1},{"suitIndex":1,"rank":1},{"suitIndex":0,"rank":2}],
  "actions": [{"type":0,"target":0,"value":0},{"type":3,"target":0,"value":2},{"type":0,"target":2,"value":0},{"type":4,"target":0,"value":4}],
  "options": {"variant":"No Variant","startingPlayer":1,"speedrun":true},
  "seed": "p2v0s1",
  "notes": [["", "5?"], ["", ""]]
}`

const historyBody = `[
  {"id":1001,"score":25,"numTurns":40,"endCondition":1,"playerNames":["alice","bob"],"seed":"p2v0s1",
   "options":{"numPlayers":2,"variantName":"No Variant","startingPlayer":1,"speedrun":false}},
  {"id":1002,"score":27,"numTurns":55,"endCondition":2,"playerNames":["alice","bob","cathy"],"seed":"p3v1s9",
   "options":{"numPlayers":3,"variantName":"Rainbow (6 Suits)","startingPlayer":0,"speedrun":false}}
]`

func newServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/export/1001", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("unexpected user agent %q", ua)
		}
		fmt.Fprint(w, exportBody)
	})
	mux.HandleFunc("/api/v1/history-full/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/history-full/Matías V5" {
			http.Error(w, "no such user", http.StatusNotFound)
			return
		}
		fmt.Fprint(w, historyBody)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestExportAndCache(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	log, _ := test.NewNullLogger()
	c := New(srv.URL+"/", time.Second, "test-agent", cache.NewMemory(), log)

	for i := 0; i < 2; i++ {
		g, err := c.Game(context.Background(), 1001)
		if err != nil {
			t.Fatalf("game: %v", err)
		}
		if g.ID != 1001 || len(g.Players) != 2 || g.Deck.Len() != 3 {
			t.Fatalf("unexpected game %+v", g)
		}
		if g.Options.Variant != "No Variant" || g.Options.StartingPlayer != 1 || !g.Options.Speedrun {
			t.Fatalf("unexpected options %+v", g.Options)
		}
		if g.Options.NumPlayers != 2 {
			t.Fatalf("numPlayers should default to player count, got %d", g.Options.NumPlayers)
		}
		if g.Actions[1].Kind != engine.RankClue || g.Actions[3].Value != int(engine.Terminated) {
			t.Fatalf("unexpected actions %+v", g.Actions)
		}
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("expected one request with cache, got %d", n)
	}
}

func TestExportNotFound(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	c := New(srv.URL, time.Second, "test-agent", nil, nil)

	_, err := c.Export(context.Background(), 9)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHistoryFull(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	c := New(srv.URL, time.Second, "test-agent", nil, nil)

	rows, err := c.HistoryFull(context.Background(), "Matías V5")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	rs := Results(rows)
	if rs[0].MaxScore != 25 || rs[0].EndCondition != engine.Normal || rs[0].Starter() != "bob" {
		t.Fatalf("unexpected first result %+v", rs[0])
	}
	if rs[1].Variant != "Rainbow (6 Suits)" || rs[1].MaxScore != 30 || rs[1].EndCondition != engine.Strikeout {
		t.Fatalf("unexpected second result %+v", rs[1])
	}
	if rs[0].Replayed || rs[1].Replayed {
		t.Fatal("history rows must not count as replayed")
	}

	if _, err := c.HistoryFull(context.Background(), "nobody"); err == nil {
		t.Fatal("expected error for unknown user")
	}
}

func TestDecodeExportValidates(t *testing.T) {
	if _, err := DecodeExport([]byte(`{"id":5,"players":[],"deck":[{"suitIndex":0,"rank":1}]}`)); !errors.Is(err, engine.ErrMalformed) {
		t.Fatalf("expected ErrMalformed for no players, got %v", err)
	}
	if _, err := DecodeExport([]byte(`{"id":5,"players":["a"]}`)); !errors.Is(err, engine.ErrMalformed) {
		t.Fatalf("expected ErrMalformed for empty deck, got %v", err)
	}
	if _, err := DecodeExport([]byte(`{"id":`)); err == nil {
		t.Fatal("expected decode error")
	}

	g, err := DecodeExport([]byte(`{"id":6,"players":["a","b"],"deck":[{"suitIndex":0,"rank":1}]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if g.Options.Variant != "No Variant" {
		t.Fatalf("missing variant should default, got %q", g.Options.Variant)
	}
}

func TestReadJSONLSkipsBadLines(t *testing.T) {
	log, hook := test.NewNullLogger()
	in := strings.Join([]string{
		strings.ReplaceAll(exportBody, "\n", ""),
		"",
		"{not json",
		`{"id":1002,"players":["x","y"],"deck":[{"suitIndex":0,"rank":1}],"actions":[]}`,
	}, "\n")

	games, err := ReadJSONL(strings.NewReader(in), log)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(games) != 2 || games[0].ID != 1001 || games[1].ID != 1002 {
		t.Fatalf("unexpected games %+v", games)
	}
	if len(games[0].Notes) != 2 {
		t.Fatalf("notes not decoded: %+v", games[0].Notes)
	}
	if len(hook.AllEntries()) != 1 {
		t.Fatalf("expected one warning, got %d", len(hook.AllEntries()))
	}
	if line := hook.LastEntry().Data["line"]; line != 3 {
		t.Fatalf("expected warning for line 3, got %v", line)
	}
}
