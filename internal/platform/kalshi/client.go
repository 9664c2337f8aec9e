// Package kalshi is the signed REST client for the Kalshi exchange API.
// Every request carries three auth headers derived from an RSA-PSS signature
// over the timestamp, method, and URL path. Transient failures (network
// timeouts and 5xx responses) are retried with linear backoff; each retry
// re-signs with a fresh timestamp because the signature binds to it.
package kalshi

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/en-exe/calci-trade/internal/domain"
)

const maxAttempts = 3

// Config holds the parameters needed to construct a Client.
type Config struct {
	BaseURL           string
	ApiKeyID          string
	RsaPrivateKeyPath string
	Timeout           time.Duration // per-request HTTP timeout; defaults to 30s
}

// Client is the REST client for the Kalshi exchange API. It holds one
// long-lived HTTP connection pool and the loaded private key for the process
// lifetime, and assumes single-writer sequential use.
type Client struct {
	baseURL    string
	apiKeyID   string
	privateKey *rsa.PrivateKey
	httpClient *http.Client
	logger     *slog.Logger

	// sleep is swapped out in tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Client, loading and validating the RSA private key. It fails
// with domain.ErrAuthKey when the key material is missing or is not an RSA
// key; the process must not proceed past that.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	pemBytes, err := os.ReadFile(cfg.RsaPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("kalshi: read private key %s: %w: %w", cfg.RsaPrivateKeyPath, domain.ErrAuthKey, err)
	}

	key, err := parsePrivateKey(pemBytes)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		apiKeyID:   cfg.ApiKeyID,
		privateKey: key,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "kalshi_client")),
		sleep:      sleepCtx,
	}, nil
}

// parsePrivateKey decodes a PEM-encoded RSA private key, accepting both
// PKCS#8 and PKCS#1 encodings.
func parsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("kalshi: no PEM block in private key: %w", domain.ErrAuthKey)
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		pkcs1Key, pkcs1Err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if pkcs1Err != nil {
			return nil, fmt.Errorf("kalshi: parse private key: %v (pkcs1: %v): %w", err, pkcs1Err, domain.ErrAuthKey)
		}
		return pkcs1Key, nil
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("kalshi: expected RSA private key, got %T: %w", key, domain.ErrAuthKey)
	}
	return rsaKey, nil
}

// --------------------------------------------------------------------------
// Public API methods
// --------------------------------------------------------------------------

// GetBalance returns the portfolio balance in cents.
func (c *Client) GetBalance(ctx context.Context) (int64, error) {
	body, err := c.do(ctx, http.MethodGet, "/portfolio/balance", nil)
	if err != nil {
		return 0, fmt.Errorf("kalshi: get balance: %w", err)
	}

	var resp struct {
		Balance int64 `json:"balance"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("kalshi: decode balance: %w", err)
	}
	return resp.Balance, nil
}

// GetMarkets returns one page of markets with the given status. Pass the
// cursor from the previous page to continue; an empty returned cursor or an
// empty page ends pagination.
func (c *Client) GetMarkets(ctx context.Context, status string, limit int, cursor string) (MarketsPage, error) {
	params := url.Values{}
	if status != "" {
		params.Set("status", status)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	endpoint := "/markets"
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return MarketsPage{}, fmt.Errorf("kalshi: get markets: %w", err)
	}

	var page MarketsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return MarketsPage{}, fmt.Errorf("kalshi: decode markets: %w", err)
	}
	return page, nil
}

// GetMarket returns a single market by its ticker.
func (c *Client) GetMarket(ctx context.Context, ticker string) (Market, error) {
	endpoint := fmt.Sprintf("/markets/%s", url.PathEscape(ticker))

	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Market{}, fmt.Errorf("kalshi: get market %s: %w", ticker, err)
	}

	var resp struct {
		Market Market `json:"market"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Market{}, fmt.Errorf("kalshi: decode market: %w", err)
	}
	return resp.Market, nil
}

// GetOrderbook returns the current orderbook for the given market ticker.
func (c *Client) GetOrderbook(ctx context.Context, ticker string) (Orderbook, error) {
	endpoint := fmt.Sprintf("/markets/%s/orderbook", url.PathEscape(ticker))

	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Orderbook{}, fmt.Errorf("kalshi: get orderbook %s: %w", ticker, err)
	}

	var resp struct {
		Orderbook Orderbook `json:"orderbook"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Orderbook{}, fmt.Errorf("kalshi: decode orderbook: %w", err)
	}
	return resp.Orderbook, nil
}

// GetPositions returns open portfolio positions.
func (c *Client) GetPositions(ctx context.Context) ([]MarketPosition, error) {
	body, err := c.do(ctx, http.MethodGet, "/portfolio/positions", nil)
	if err != nil {
		return nil, fmt.Errorf("kalshi: get positions: %w", err)
	}

	var resp struct {
		MarketPositions []MarketPosition `json:"market_positions"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("kalshi: decode positions: %w", err)
	}
	return resp.MarketPositions, nil
}

// CreateOrder submits a buy limit order and returns the broker's order
// record. Exactly one of yes_price/no_price is set on the wire based on the
// requested side.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	if req.Side != string(domain.SideYes) && req.Side != string(domain.SideNo) {
		return Order{}, fmt.Errorf("kalshi: invalid order side %q", req.Side)
	}
	if req.Price < 1 || req.Price > 99 {
		return Order{}, fmt.Errorf("kalshi: order price %d out of range [1,99]", req.Price)
	}
	if req.Count < 1 {
		return Order{}, fmt.Errorf("kalshi: order count must be >= 1, got %d", req.Count)
	}
	if req.ClientOrderID == "" {
		return Order{}, fmt.Errorf("kalshi: client_order_id must not be empty")
	}

	payload := orderPayload{
		Ticker:        req.Ticker,
		Action:        "buy",
		Side:          req.Side,
		Count:         req.Count,
		Type:          "limit",
		ClientOrderID: req.ClientOrderID,
	}
	price := req.Price
	if req.Side == string(domain.SideYes) {
		payload.YesPrice = &price
	} else {
		payload.NoPrice = &price
	}

	body, err := c.do(ctx, http.MethodPost, "/portfolio/orders", payload)
	if err != nil {
		return Order{}, fmt.Errorf("kalshi: create order %s: %w", req.Ticker, err)
	}

	var resp struct {
		Order Order `json:"order"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Order{}, fmt.Errorf("kalshi: decode order response: %w", err)
	}
	return resp.Order, nil
}

// CancelOrder cancels an open order by its broker-assigned id.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	endpoint := fmt.Sprintf("/portfolio/orders/%s", url.PathEscape(orderID))

	if _, err := c.do(ctx, http.MethodDelete, endpoint, nil); err != nil {
		return fmt.Errorf("kalshi: cancel order %s: %w", orderID, err)
	}
	return nil
}

// GetFills returns the trade fill history.
func (c *Client) GetFills(ctx context.Context) ([]Fill, error) {
	body, err := c.do(ctx, http.MethodGet, "/portfolio/fills", nil)
	if err != nil {
		return nil, fmt.Errorf("kalshi: get fills: %w", err)
	}

	var resp struct {
		Fills []Fill `json:"fills"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("kalshi: decode fills: %w", err)
	}
	return resp.Fills, nil
}

// GetSettlements returns settlement records.
func (c *Client) GetSettlements(ctx context.Context) ([]Settlement, error) {
	body, err := c.do(ctx, http.MethodGet, "/portfolio/settlements", nil)
	if err != nil {
		return nil, fmt.Errorf("kalshi: get settlements: %w", err)
	}

	var resp struct {
		Settlements []Settlement `json:"settlements"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("kalshi: decode settlements: %w", err)
	}
	return resp.Settlements, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// do builds, signs, and sends a request, retrying transient failures up to
// maxAttempts with linear backoff (2s, 4s). Every attempt is signed fresh.
// After exhausting attempts the last transient error is returned.
func (c *Client) do(ctx context.Context, method, endpoint string, reqBody any) ([]byte, error) {
	var jsonBody []byte
	if reqBody != nil {
		var err error
		jsonBody, err = json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	fullURL := c.baseURL + endpoint
	u, err := url.Parse(fullURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", fullURL, err)
	}
	// The signed message covers the path only, never the query string.
	signPath := u.Path

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		body, err := c.attempt(ctx, method, fullURL, signPath, jsonBody)
		if err == nil {
			return body, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isRetryable(err) {
			return nil, err
		}

		lastErr = err
		if attempt < maxAttempts {
			backoff := time.Duration(2*attempt) * time.Second
			c.logger.WarnContext(ctx, "transient request failure, retrying",
				slog.String("method", method),
				slog.String("endpoint", endpoint),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff),
				slog.String("error", err.Error()),
			)
			if err := c.sleep(ctx, backoff); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

// attempt performs a single signed request/response round trip.
func (c *Client) attempt(ctx context.Context, method, fullURL, signPath string, jsonBody []byte) ([]byte, error) {
	var bodyReader io.Reader
	if jsonBody != nil {
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if jsonBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if err := c.signRequest(req, method, signPath); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr errorResponse
		_ = json.Unmarshal(respBody, &apiErr)
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Code:       apiErr.Code,
			Message:    apiErr.Message,
		}
	}

	return respBody, nil
}

// signRequest adds the three auth headers. The signed message is
// timestamp_ms + METHOD + path, signed with RSA-PSS over the SHA-256 digest
// (MGF1-SHA256, salt length equal to the digest length), base64 encoded.
func (c *Client) signRequest(req *http.Request, method, path string) error {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	sig, err := signMessage(c.privateKey, ts, method, path)
	if err != nil {
		return err
	}

	req.Header.Set("KALSHI-ACCESS-KEY", c.apiKeyID)
	req.Header.Set("KALSHI-ACCESS-TIMESTAMP", ts)
	req.Header.Set("KALSHI-ACCESS-SIGNATURE", sig)
	return nil
}

// signMessage produces the base64 RSA-PSS signature for one request. Split
// out from signRequest so the signature scheme is directly testable.
func signMessage(key *rsa.PrivateKey, timestamp, method, path string) (string, error) {
	message := timestamp + method + path
	digest := sha256.Sum256([]byte(message))

	sig, err := rsa.SignPSS(rand.Reader, key, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return "", fmt.Errorf("rsa sign: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
