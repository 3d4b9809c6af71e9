package hanablive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"hanabi-stats/server/cache"
	"hanabi-stats/server/engine"
)

// ErrNotFound is returned when the server has no export for a game id.
var ErrNotFound = errors.New("hanablive: export not found")

const DefaultBaseURL = "https://hanab.live"

type Client struct {
	BaseURL   string
	UserAgent string
	HTTP      *http.Client
	Cache     cache.Cache
	Log       logrus.FieldLogger
}

// New returns a client with a bounded timeout. A nil cache disables caching.
func New(base string, timeout time.Duration, userAgent string, c cache.Cache, log logrus.FieldLogger) *Client {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if c == nil {
		c = cache.Nop{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		BaseURL:   base,
		UserAgent: userAgent,
		HTTP:      &http.Client{Timeout: timeout},
		Cache:     c,
		Log:       log,
	}
}

// HistoryFull fetches every finished game of user.
func (c *Client) HistoryFull(ctx context.Context, user string) ([]HistoryGame, error) {
	body, status, err := c.get(ctx, "/api/v1/history-full/"+url.PathEscape(user))
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("history %s: http %d: %s", user, status, truncate(string(body), 200))
	}
	var rows []HistoryGame
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("history %s: %w", user, err)
	}
	return rows, nil
}

// ExportRaw returns the export body of one game, from the cache when
// possible. Any non-200 answer is ErrNotFound.
func (c *Client) ExportRaw(ctx context.Context, id int) ([]byte, error) {
	key := "export:" + strconv.Itoa(id)
	if b, ok, err := c.Cache.Get(ctx, key); err != nil {
		c.Log.WithError(err).WithField("game_id", id).Warn("cache read failed")
	} else if ok {
		return b, nil
	}

	body, status, err := c.get(ctx, "/export/"+strconv.Itoa(id))
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("game %d: %w (http %d)", id, ErrNotFound, status)
	}
	if err := c.Cache.Set(ctx, key, body); err != nil {
		c.Log.WithError(err).WithField("game_id", id).Warn("cache write failed")
	}
	return body, nil
}

// Export fetches and parses one export.
func (c *Client) Export(ctx context.Context, id int) (*ExportGame, error) {
	b, err := c.ExportRaw(ctx, id)
	if err != nil {
		return nil, err
	}
	e, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("game %d: %w", id, err)
	}
	return e, nil
}

// Game fetches one export and converts it for replay.
func (c *Client) Game(ctx context.Context, id int) (engine.Game, error) {
	e, err := c.Export(ctx, id)
	if err != nil {
		return engine.Game{}, err
	}
	return e.Game()
}

func (c *Client) get(ctx context.Context, path string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, resp.StatusCode, err
	}
	return buf.Bytes(), resp.StatusCode, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
