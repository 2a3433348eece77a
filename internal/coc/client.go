// Package coc is a minimal Clash of Clans API client covering the
// endpoints the bot uses.
package coc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultBaseURL = "https://api.clashofclans.com/v1"

// API error conditions the command layer renders distinct guidance
// for.
var (
	ErrNotFound      = errors.New("not found")
	ErrPrivateWarLog = errors.New("war log is private")
	ErrRateLimited   = errors.New("rate limited")
)

// Client is a Clash of Clans API client with simple rate limiting
type Client struct {
	http *resty.Client

	// Simple rate limiter
	mu          sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

// NewClient creates a new API client authenticated with a bearer token
func NewClient(token string) *Client {
	httpClient := resty.New().
		SetBaseURL(defaultBaseURL).
		SetAuthToken(token).
		SetTimeout(10 * time.Second).
		SetHeader("Accept", "application/json")

	return &Client{
		http: httpClient,
		// Rate limit: ~20 requests per second (50ms between requests)
		minInterval: 50 * time.Millisecond,
	}
}

// SetBaseURL overrides the API endpoint, used by tests.
func (c *Client) SetBaseURL(baseURL string) {
	c.http.SetBaseURL(baseURL)
}

// Player fetches a player profile by tag.
func (c *Client) Player(ctx context.Context, tag string) (*Player, error) {
	var player Player
	if err := c.get(ctx, "/players/"+url.PathEscape(tag), &player); err != nil {
		return nil, fmt.Errorf("fetch player %s: %w", tag, err)
	}
	return &player, nil
}

// Clan fetches a clan profile by tag.
func (c *Client) Clan(ctx context.Context, tag string) (*Clan, error) {
	var clan Clan
	if err := c.get(ctx, "/clans/"+url.PathEscape(tag), &clan); err != nil {
		return nil, fmt.Errorf("fetch clan %s: %w", tag, err)
	}
	return &clan, nil
}

// CurrentWar fetches the live war for a clan tag. A clan not in war
// still returns a war object with state notInWar; a clan with a
// private war log yields ErrPrivateWarLog.
func (c *Client) CurrentWar(ctx context.Context, tag string) (*CurrentWar, error) {
	var war CurrentWar
	err := c.get(ctx, "/clans/"+url.PathEscape(tag)+"/currentwar", &war)
	if err != nil {
		var status *statusError
		if errors.As(err, &status) && status.code == http.StatusForbidden {
			return nil, fmt.Errorf("fetch current war %s: %w", tag, ErrPrivateWarLog)
		}
		return nil, fmt.Errorf("fetch current war %s: %w", tag, err)
	}
	return &war, nil
}

// statusError carries a non-OK HTTP status for callers that map
// endpoint-specific conditions.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("API error: status %d, body: %s", e.code, e.body)
}

// get performs a rate-limited GET and decodes the JSON response.
func (c *Client) get(ctx context.Context, path string, result any) error {
	c.throttle()

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(result).
		Get(path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return &statusError{code: resp.StatusCode(), body: resp.String()}
	}
}

// throttle enforces the minimum interval between requests.
func (c *Client) throttle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < c.minInterval {
		time.Sleep(c.minInterval - elapsed)
	}
	c.lastRequest = time.Now()
}
