// Package marketdata supplies token snapshots from the DexScreener HTTP
// API, a demo generator, and a websocket pair feed. Fetch failures are
// logged and surface as empty results; a missing answer means "skip this
// token this cycle", never a fatal error.
package marketdata

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

	"github.com/rs/zerolog"

	"dexagent/internal/domain"
	"dexagent/internal/engine"
	"dexagent/internal/observability"
)

// Default configuration values.
const (
	DefaultBaseURL     = "https://api.dexscreener.com"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// Client is the DexScreener REST client.
//
// All fetch methods satisfy the engine's market-source contract: failures
// are logged and answered with empty results.
type Client struct {
	baseURL     string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	logger      zerolog.Logger
	now         func() time.Time
}

var _ engine.MarketSource = (*Client)(nil)

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = clock
	}
}

// NewClient creates a DexScreener client.
func NewClient(baseURL string, logger zerolog.Logger, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:     baseURL,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
		logger:      logger.With().Str("component", "dexscreener").Logger(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get performs a GET with retries and exponential backoff, decoding the
// JSON body into result.
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	start := time.Now()
	err := c.doGet(ctx, path, result)
	observability.RecordAPIRequest(endpointLabel(path), time.Since(start).Seconds(), err)
	return err
}

// endpointLabel reduces a request path to a low-cardinality metric label by
// dropping the query string and any address segments.
func endpointLabel(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(segments) > 3 {
		segments = segments[:3]
	}
	return "/" + strings.Join(segments, "/")
}

func (c *Client) doGet(ctx context.Context, path string, result interface{}) error {
	endpoint := c.baseURL + path

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
			continue
		}

		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// wirePair is one pair object as DexScreener returns it.
type wirePair struct {
	BaseToken struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
		Name    string `json:"name"`
	} `json:"baseToken"`
	PriceUSD    string `json:"priceUsd"`
	PriceChange struct {
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	MarketCap     float64 `json:"marketCap"`
	FDV           float64 `json:"fdv"`
	ChainID       string  `json:"chainId"`
	PairAddress   string  `json:"pairAddress"`
	PairCreatedAt string  `json:"pairCreatedAt"`
}

func (p wirePair) snapshot() domain.TokenSnapshot {
	price, _ := strconv.ParseFloat(p.PriceUSD, 64)
	return domain.TokenSnapshot{
		Address:        p.BaseToken.Address,
		Symbol:         p.BaseToken.Symbol,
		Name:           p.BaseToken.Name,
		PriceUSD:       price,
		PriceChange24h: p.PriceChange.H24,
		Volume24h:      p.Volume.H24,
		LiquidityUSD:   p.Liquidity.USD,
		MarketCap:      p.MarketCap,
		FDV:            p.FDV,
		Chain:          p.ChainID,
		PairAddress:    p.PairAddress,
		PairCreatedAt:  p.PairCreatedAt,
	}
}

// wireTokenEntry wraps a token with its pairs, as used by the trending and
// gainers-losers endpoints.
type wireTokenEntry struct {
	Pairs []wirePair `json:"pairs"`
}

// snapshotsFromEntries keeps the first pair of each entry. Pairs whose base
// token address is implausible for their chain are dropped; scan candidates
// enter the system here, so this is where the address check belongs.
func snapshotsFromEntries(entries []wireTokenEntry) []domain.TokenSnapshot {
	var out []domain.TokenSnapshot
	for _, entry := range entries {
		if len(entry.Pairs) == 0 {
			continue
		}
		pair := entry.Pairs[0]
		if !ValidAddress(pair.ChainID, pair.BaseToken.Address) {
			continue
		}
		out = append(out, pair.snapshot())
	}
	return out
}

// SearchPairs searches token pairs by free-text query.
func (c *Client) SearchPairs(ctx context.Context, query string) []domain.TokenSnapshot {
	var resp struct {
		Pairs []wirePair `json:"pairs"`
	}
	path := "/latest/dex/search?q=" + url.QueryEscape(query)
	if err := c.get(ctx, path, &resp); err != nil {
		c.logger.Warn().Err(err).Str("query", query).Msg("search failed")
		return nil
	}

	out := make([]domain.TokenSnapshot, 0, len(resp.Pairs))
	for _, pair := range resp.Pairs {
		out = append(out, pair.snapshot())
	}
	return out
}

// GetTokenPairs returns all pairs trading a token address.
func (c *Client) GetTokenPairs(ctx context.Context, address string) []domain.TokenSnapshot {
	var resp struct {
		Pairs []wirePair `json:"pairs"`
	}
	if err := c.get(ctx, "/latest/dex/tokens/"+url.PathEscape(address), &resp); err != nil {
		c.logger.Warn().Err(err).Str("address", address).Msg("token pairs fetch failed")
		return nil
	}

	out := make([]domain.TokenSnapshot, 0, len(resp.Pairs))
	for _, pair := range resp.Pairs {
		out = append(out, pair.snapshot())
	}
	return out
}

// GetTrendingTokens returns trending tokens, optionally filtered by chain.
// The endpoint answers either a bare array of token entries or an object
// with a "tokens" field; both shapes are accepted.
func (c *Client) GetTrendingTokens(ctx context.Context, chain string) []domain.TokenSnapshot {
	path := "/latest/dex/tokens/trending"
	if chain != "" {
		path += "/" + url.PathEscape(chain)
	}

	var raw json.RawMessage
	if err := c.get(ctx, path, &raw); err != nil {
		c.logger.Warn().Err(err).Msg("trending fetch failed")
		return nil
	}

	var entries []wireTokenEntry
	if err := json.Unmarshal(raw, &entries); err == nil {
		return snapshotsFromEntries(entries)
	}

	var wrapped struct {
		Tokens []wireTokenEntry `json:"tokens"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		c.logger.Warn().Err(err).Msg("trending response in unknown shape")
		return nil
	}
	return snapshotsFromEntries(wrapped.Tokens)
}

// GetNewPairs returns pairs created within the last hours, optionally
// filtered by chain. Pairs with unparsable creation timestamps are skipped.
func (c *Client) GetNewPairs(ctx context.Context, chain string, hours int) []domain.TokenSnapshot {
	path := "/latest/dex/pairs/new"
	if chain != "" {
		path += "/" + url.PathEscape(chain)
	}

	var resp struct {
		Pairs []wirePair `json:"pairs"`
	}
	if err := c.get(ctx, path, &resp); err != nil {
		c.logger.Warn().Err(err).Msg("new pairs fetch failed")
		return nil
	}

	cutoff := c.now().Add(-time.Duration(hours) * time.Hour)
	var out []domain.TokenSnapshot
	for _, pair := range resp.Pairs {
		created, err := time.Parse(time.RFC3339, pair.PairCreatedAt)
		if err != nil {
			continue
		}
		if created.Before(cutoff) {
			continue
		}
		if !ValidAddress(pair.ChainID, pair.BaseToken.Address) {
			c.logger.Debug().Str("chain", pair.ChainID).Str("address", pair.BaseToken.Address).Msg("dropping pair with invalid address")
			continue
		}
		out = append(out, pair.snapshot())
	}
	return out
}

// GetGainersLosers returns the top movers, optionally filtered by chain.
func (c *Client) GetGainersLosers(ctx context.Context, chain string) domain.GainersLosers {
	path := "/latest/dex/tokens/gainers-losers"
	if chain != "" {
		path += "/" + url.PathEscape(chain)
	}

	var resp struct {
		Gainers []wireTokenEntry `json:"gainers"`
		Losers  []wireTokenEntry `json:"losers"`
	}
	if err := c.get(ctx, path, &resp); err != nil {
		c.logger.Warn().Err(err).Msg("gainers-losers fetch failed")
		return domain.GainersLosers{}
	}

	return domain.GainersLosers{
		Gainers: snapshotsFromEntries(resp.Gainers),
		Losers:  snapshotsFromEntries(resp.Losers),
	}
}

// GetPairInfo returns one specific pair. The second return is false when
// the pair is unknown or the fetch failed.
func (c *Client) GetPairInfo(ctx context.Context, chain, pairAddress string) (domain.TokenSnapshot, bool) {
	var resp struct {
		Pair *wirePair `json:"pair"`
	}
	path := "/latest/dex/pairs/" + url.PathEscape(chain) + "/" + url.PathEscape(pairAddress)
	if err := c.get(ctx, path, &resp); err != nil {
		c.logger.Warn().Err(err).Str("pair", pairAddress).Msg("pair info fetch failed")
		return domain.TokenSnapshot{}, false
	}
	if resp.Pair == nil {
		return domain.TokenSnapshot{}, false
	}
	return resp.Pair.snapshot(), true
}
