package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	retry "github.com/avast/retry-go/v4"
)

const defaultBaseURL = "https://api.themoviedb.org/3"

// tmdbClient is a minimal TMDB v3 client (bearer auth, the handful of
// endpoints the frontend needs).
type tmdbClient struct {
	apiKey   string
	language string
	baseURL  string
	httpc    *http.Client

	throttleMu  sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

func newTMDBClient(apiKey, language string, httpc *http.Client) *tmdbClient {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	return &tmdbClient{
		apiKey:      apiKey,
		language:    language,
		baseURL:     defaultBaseURL,
		httpc:       httpc,
		minInterval: 20 * time.Millisecond,
	}
}

// throttle spaces requests at least minInterval apart.
func (c *tmdbClient) throttle() {
	c.throttleMu.Lock()
	defer c.throttleMu.Unlock()
	if wait := c.minInterval - time.Since(c.lastRequest); wait > 0 {
		time.Sleep(wait)
	}
	c.lastRequest = time.Now()
}

// get performs GET {baseURL}{path}?{query} and decodes the JSON body into
// out. Transient failures (network errors, upstream 5xx) are retried with
// backoff; 4xx responses are terminal.
func (c *tmdbClient) get(ctx context.Context, path string, query url.Values, out any) error {
	if query == nil {
		query = url.Values{}
	}
	if c.language != "" {
		query.Set("language", c.language)
	}

	endpoint := c.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	return retry.Do(
		func() error {
			c.throttle()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.httpc.Do(req)
			if err != nil {
				return fmt.Errorf("tmdb request %s: %w", path, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 500 {
				io.Copy(io.Discard, resp.Body)
				return fmt.Errorf("tmdb %s: upstream status %d", path, resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				io.Copy(io.Discard, resp.Body)
				return retry.Unrecoverable(fmt.Errorf("tmdb %s: status %d", path, resp.StatusCode))
			}

			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode tmdb %s: %w", path, err))
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(300*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
}
