// Package nvr is the HTTP client for a Frigate-compatible NVR API: the
// event feed plus the three media representations of an event.
package nvr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	logx "github.com/oslabbie/frigate-alerts/pkg/logx"
)

type Client struct {
	baseURL string
	limit   int
	http    *http.Client
	log     logx.Logger
}

func NewClient(baseURL string, fetchLimit int, timeout time.Duration, log logx.Logger) *Client {
	if fetchLimit <= 0 {
		fetchLimit = 20
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		limit:   fetchLimit,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Events fetches the event feed, newest first (feed ordering).
func (c *Client) Events(ctx context.Context) ([]Event, error) {
	u := fmt.Sprintf("%s/api/events?limit=%d", c.baseURL, c.limit)
	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	var events []Event
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return events, nil
}

// Clip fetches the time-ranged video for one camera.
func (c *Client) Clip(ctx context.Context, camera string, start, end float64) ([]byte, error) {
	u := fmt.Sprintf("%s/api/%s/start/%s/end/%s/clip.mp4",
		c.baseURL, url.PathEscape(camera), formatTS(start), formatTS(end))
	return c.get(ctx, u)
}

// Snapshot fetches the full-resolution still tied to an event.
func (c *Client) Snapshot(ctx context.Context, eventID string) ([]byte, error) {
	u := fmt.Sprintf("%s/api/events/%s/snapshot.jpg", c.baseURL, url.PathEscape(eventID))
	return c.get(ctx, u)
}

// Thumbnail fetches the low-fidelity still tied to an event.
func (c *Client) Thumbnail(ctx context.Context, eventID string) ([]byte, error) {
	u := fmt.Sprintf("%s/api/events/%s/thumbnail.jpg", c.baseURL, url.PathEscape(eventID))
	return c.get(ctx, u)
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return nil, fmt.Errorf("GET %s: http %d", u, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: read body: %w", u, err)
	}
	return body, nil
}

func formatTS(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
