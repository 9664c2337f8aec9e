package kalshi

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/en-exe/calci-trade/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

// newTestClient builds a client pointing at baseURL with a sleep function
// that records backoff durations instead of waiting.
func newTestClient(t *testing.T, baseURL string, key *rsa.PrivateKey, backoffs *[]time.Duration) *Client {
	t.Helper()
	return &Client{
		baseURL:    baseURL,
		apiKeyID:   "test-key-id",
		privateKey: key,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     testLogger(),
		sleep: func(ctx context.Context, d time.Duration) error {
			if backoffs != nil {
				*backoffs = append(*backoffs, d)
			}
			return nil
		},
	}
}

func TestSignMessageVerifies(t *testing.T) {
	key := generateTestKey(t)

	ts := "1700000000000"
	sigB64, err := signMessage(key, ts, http.MethodGet, "/trade-api/v2/portfolio/balance")
	if err != nil {
		t.Fatalf("signMessage: %v", err)
	}

	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		t.Fatalf("signature is not valid base64: %v", err)
	}

	digest := sha256.Sum256([]byte(ts + "GET" + "/trade-api/v2/portfolio/balance"))
	err = rsa.VerifyPSS(&key.PublicKey, crypto.SHA256, digest[:], sig, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		t.Fatalf("signature does not verify: %v", err)
	}

	// A different path must not verify against the same signature.
	other := sha256.Sum256([]byte(ts + "GET" + "/trade-api/v2/markets"))
	err = rsa.VerifyPSS(&key.PublicKey, crypto.SHA256, other[:], sig, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err == nil {
		t.Fatal("signature verified against the wrong message")
	}
}

func TestSignRequestExcludesQuery(t *testing.T) {
	key := generateTestKey(t)

	verified := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts := r.Header.Get("KALSHI-ACCESS-TIMESTAMP")
		sigB64 := r.Header.Get("KALSHI-ACCESS-SIGNATURE")
		if r.Header.Get("KALSHI-ACCESS-KEY") != "test-key-id" {
			t.Errorf("missing or wrong access key header")
		}
		sig, err := base64.StdEncoding.DecodeString(sigB64)
		if err != nil {
			t.Errorf("signature not base64: %v", err)
		}
		// The signed message covers the path only; the query string is
		// excluded.
		digest := sha256.Sum256([]byte(ts + r.Method + r.URL.Path))
		if err := rsa.VerifyPSS(&key.PublicKey, crypto.SHA256, digest[:], sig, &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthEqualsHash,
		}); err != nil {
			t.Errorf("signature does not verify against path-only message: %v", err)
		} else {
			verified = true
		}
		w.Write([]byte(`{"markets":[],"cursor":""}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, key, nil)
	if _, err := c.GetMarkets(context.Background(), "open", 100, "abc"); err != nil {
		t.Fatalf("GetMarkets: %v", err)
	}
	if !verified {
		t.Fatal("server never verified a signature")
	}
}

func TestDoRetriesTransientFailures(t *testing.T) {
	key := generateTestKey(t)

	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"code":"unavailable","message":"try later"}`))
			return
		}
		w.Write([]byte(`{"balance":123456}`))
	}))
	defer srv.Close()

	var backoffs []time.Duration
	c := newTestClient(t, srv.URL, key, &backoffs)

	balance, err := c.GetBalance(context.Background())
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance != 123456 {
		t.Fatalf("balance = %d, want 123456", balance)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(backoffs) != len(want) {
		t.Fatalf("backoffs = %v, want %v", backoffs, want)
	}
	for i := range want {
		if backoffs[i] != want[i] {
			t.Fatalf("backoff[%d] = %v, want %v", i, backoffs[i], want[i])
		}
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	key := generateTestKey(t)

	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, key, nil)

	_, err := c.GetBalance(context.Background())
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != maxAttempts {
		t.Fatalf("attempts = %d, want %d", attempts, maxAttempts)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", apiErr.StatusCode)
	}
}

func TestDoNoRetryOnClientError(t *testing.T) {
	key := generateTestKey(t)

	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"bad_request","message":"nope"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, key, nil)

	_, err := c.GetBalance(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (4xx must not retry)", attempts)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Transient() {
		t.Fatal("4xx error reported as transient")
	}
}

func TestDoStopsWhenContextCancelled(t *testing.T) {
	key := generateTestKey(t)

	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := newTestClient(t, srv.URL, key, nil)
	c.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := c.GetBalance(ctx)
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (no retry after cancellation)", attempts)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	key := generateTestKey(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("validation failure must not reach the network")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, key, nil)

	valid := OrderRequest{
		Ticker:        "KXTEST-26DEC31",
		Side:          "yes",
		Count:         10,
		Price:         95,
		ClientOrderID: "cid-1",
	}

	cases := []struct {
		name   string
		mutate func(*OrderRequest)
	}{
		{"bad side", func(r *OrderRequest) { r.Side = "maybe" }},
		{"price zero", func(r *OrderRequest) { r.Price = 0 }},
		{"price 100", func(r *OrderRequest) { r.Price = 100 }},
		{"count zero", func(r *OrderRequest) { r.Count = 0 }},
		{"empty client order id", func(r *OrderRequest) { r.ClientOrderID = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid
			tc.mutate(&req)
			if _, err := c.CreateOrder(context.Background(), req); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestCreateOrderWirePayload(t *testing.T) {
	key := generateTestKey(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s := string(body)
		for _, want := range []string{
			`"action":"buy"`, `"type":"limit"`, `"side":"no"`, `"no_price":88`,
		} {
			if !strings.Contains(s, want) {
				t.Errorf("payload missing %s: %s", want, s)
			}
		}
		if strings.Contains(s, "yes_price") {
			t.Errorf("no-side order must not carry yes_price: %s", s)
		}
		w.Write([]byte(`{"order":{"order_id":"ord-1","status":"resting"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, key, nil)

	order, err := c.CreateOrder(context.Background(), OrderRequest{
		Ticker:        "KXTEST-26DEC31",
		Side:          "no",
		Count:         5,
		Price:         88,
		ClientOrderID: "cid-2",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.OrderID != "ord-1" {
		t.Fatalf("order id = %q, want ord-1", order.OrderID)
	}
}

func TestNewRejectsMissingKey(t *testing.T) {
	_, err := New(Config{
		BaseURL:           "https://example.invalid",
		ApiKeyID:          "k",
		RsaPrivateKeyPath: filepath.Join(t.TempDir(), "missing.pem"),
	}, testLogger())
	if !errors.Is(err, domain.ErrAuthKey) {
		t.Fatalf("expected ErrAuthKey, got %v", err)
	}
}

func TestNewLoadsPKCS8AndPKCS1Keys(t *testing.T) {
	key := generateTestKey(t)

	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal pkcs8: %v", err)
	}

	cases := []struct {
		name  string
		block *pem.Block
	}{
		{"pkcs8", &pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8}},
		{"pkcs1", &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "key.pem")
			if err := os.WriteFile(path, pem.EncodeToMemory(tc.block), 0o600); err != nil {
				t.Fatalf("write key: %v", err)
			}
			c, err := New(Config{
				BaseURL:           "https://example.invalid",
				ApiKeyID:          "k",
				RsaPrivateKeyPath: path,
			}, testLogger())
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if c.privateKey == nil {
				t.Fatal("private key not loaded")
			}
		})
	}
}
