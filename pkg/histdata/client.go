// Package histdata is the broker-facing client used to pull historical
// candles and stream live bars. Session login is password + TOTP; the
// access token is carried on every subsequent request.
package histdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"

	"stockrobotv1/internal/model"
)

const (
	defaultBaseURL = "https://api.tradehistdata.example.com"
	defaultTimeout = 7 * time.Second
)

// Config holds broker credentials and connection settings.
type Config struct {
	APIKey     string
	ClientCode string
	Password   string
	TOTPSecret string // base32 secret used to mint login codes

	BaseURL string        // default: defaultBaseURL
	Timeout time.Duration // default: 7s
}

// Client is the authenticated historical data client.
type Client struct {
	cfg         Config
	httpClient  *http.Client
	accessToken string
	feedToken   string
}

// NewClient creates an unauthenticated client; call GenerateSession next.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// FeedToken returns the live-stream token issued at login.
func (c *Client) FeedToken() string { return c.feedToken }

type sessionResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AccessToken string `json:"access_token"`
		FeedToken   string `json:"feed_token"`
	} `json:"data"`
}

// GenerateSession logs in with password plus a freshly minted TOTP code and
// stores the returned tokens on the client.
func (c *Client) GenerateSession(ctx context.Context) error {
	code, err := totp.GenerateCode(c.cfg.TOTPSecret, time.Now())
	if err != nil {
		return fmt.Errorf("histdata: totp generation: %w", err)
	}

	body := map[string]string{
		"clientcode": c.cfg.ClientCode,
		"password":   c.cfg.Password,
		"totp":       code,
	}
	var out sessionResponse
	if err := c.post(ctx, "/auth/v1/login", body, &out); err != nil {
		return fmt.Errorf("histdata: login: %w", err)
	}
	if !out.Status {
		return fmt.Errorf("histdata: login rejected: %s", out.Message)
	}

	c.accessToken = out.Data.AccessToken
	c.feedToken = out.Data.FeedToken
	log.Printf("[histdata] session established for %s", c.cfg.ClientCode)
	return nil
}

type candlesResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	// Rows: [epochSeconds, open, high, low, close, volume]
	Data [][]float64 `json:"data"`
}

// GetCandles fetches historical candles for one symbol over [from, to].
// interval is the broker's bar size label, e.g. "ONE_MINUTE".
func (c *Client) GetCandles(ctx context.Context, symbol, interval string, from, to time.Time) ([]model.Bar, error) {
	body := map[string]string{
		"symbol":   symbol,
		"interval": interval,
		"fromdate": from.UTC().Format("2006-01-02 15:04"),
		"todate":   to.UTC().Format("2006-01-02 15:04"),
	}
	var out candlesResponse
	if err := c.post(ctx, "/historical/v1/getCandleData", body, &out); err != nil {
		return nil, fmt.Errorf("histdata: candles %s: %w", symbol, err)
	}
	if !out.Status {
		return nil, fmt.Errorf("histdata: candles %s rejected: %s", symbol, out.Message)
	}

	bars := make([]model.Bar, 0, len(out.Data))
	for _, row := range out.Data {
		if len(row) < 6 {
			continue
		}
		bars = append(bars, model.Bar{
			Symbol: symbol,
			TS:     time.Unix(int64(row[0]), 0).UTC(),
			Open:   row[1],
			High:   row[2],
			Low:    row[3],
			Close:  row[4],
			Volume: int64(row[5]),
		})
	}
	return bars, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-PrivateKey", c.cfg.APIKey)
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(raw))
	}
	return json.Unmarshal(raw, out)
}
