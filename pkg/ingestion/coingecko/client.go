// Package coingecko fetches historical hourly price samples for a coin
// against a quote currency from the public CoinGecko market-chart API,
// windowing requests to the provider's range limits and deduplicating by
// timestamp.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

const (
	defaultBaseURL = "https://api.coingecko.com/api/v3"
	// window is the widest interval CoinGecko's market_chart/range
	// endpoint accepts per request; the spec requires pagination in
	// 30-day windows regardless of any particular provider limit.
	window = 30 * 24 * time.Hour
)

// Sample is one (timestamp, price) observation.
type Sample struct {
	Timestamp int64
	Price     float64
}

// Client fetches quote history from CoinGecko.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default http.Client, e.g. to inject a
// recorded transport in tests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(base string) Option {
	return func(cl *Client) { cl.baseURL = base }
}

// New returns a Client talking to the public CoinGecko API by default.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type marketChartResponse struct {
	Prices [][2]float64 `json:"prices"`
}

// FetchRange returns ordered, timestamp-deduplicated price samples for
// coinID against vsCurrency over [from, to], paginating the request into
// 30-day windows.
func (c *Client) FetchRange(ctx context.Context, coinID, vsCurrency string, from, to time.Time) ([]Sample, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("coingecko: to (%s) must be after from (%s)", to, from)
	}

	seen := make(map[int64]struct{})
	var out []Sample

	for start := from; start.Before(to); start = start.Add(window) {
		end := start.Add(window)
		if end.After(to) {
			end = to
		}

		samples, err := c.fetchWindow(ctx, coinID, vsCurrency, start, end)
		if err != nil {
			return nil, err
		}

		for _, s := range samples {
			if _, dup := seen[s.Timestamp]; dup {
				continue
			}
			seen[s.Timestamp] = struct{}{}
			out = append(out, s)
		}
	}

	return out, nil
}

func (c *Client) fetchWindow(ctx context.Context, coinID, vsCurrency string, from, to time.Time) ([]Sample, error) {
	endpoint := fmt.Sprintf("%s/coins/%s/market_chart/range", c.baseURL, url.PathEscape(coinID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("coingecko: build request: %w", err)
	}
	q := req.URL.Query()
	q.Set("vs_currency", vsCurrency)
	q.Set("from", fmt.Sprintf("%d", from.Unix()))
	q.Set("to", fmt.Sprintf("%d", to.Unix()))
	req.URL.RawQuery = q.Encode()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coingecko: request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logx.Errorf("coingecko: %s returned status %d", endpoint, resp.StatusCode)
		return nil, fmt.Errorf("coingecko: unexpected status %d from %s", resp.StatusCode, endpoint)
	}

	var parsed marketChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("coingecko: decode response: %w", err)
	}

	samples := make([]Sample, 0, len(parsed.Prices))
	for _, p := range parsed.Prices {
		samples = append(samples, Sample{
			Timestamp: int64(p[0]) / 1000, // CoinGecko reports milliseconds
			Price:     p[1],
		})
	}
	return samples, nil
}
