package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"concord/internal/platform/metrics"
)

// ExpiryBuffer is subtracted from the token lifetime so a token that is
// about to expire is refreshed before the next admin call, absorbing the
// network latency between the check and the call.
const ExpiryBuffer = 10 * time.Second

// TokenConfig holds the client-credentials grant configuration.
type TokenConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// TokenManager owns the single access token for the IdP admin API. It
// authenticates with a client-credentials grant, tracks expiry with a safety
// buffer, and refreshes lazily. One instance is shared by every IdP-facing
// component in the process.
type TokenManager struct {
	cfg        TokenConfig
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time

	group singleflight.Group

	mu          sync.RWMutex
	accessToken string
	expiresAt   time.Time
}

// TokenOption configures the TokenManager.
type TokenOption func(*TokenManager)

// WithTokenHTTPClient sets a custom HTTP client (for testing).
func WithTokenHTTPClient(client *http.Client) TokenOption {
	return func(m *TokenManager) {
		m.httpClient = client
	}
}

// WithTokenLogger sets a structured logger.
func WithTokenLogger(logger *slog.Logger) TokenOption {
	return func(m *TokenManager) {
		m.logger = logger
	}
}

// WithTokenMetrics sets the metrics sink.
func WithTokenMetrics(m *metrics.Metrics) TokenOption {
	return func(tm *TokenManager) {
		tm.metrics = m
	}
}

// WithTokenClock overrides the time source (for testing expiry).
func WithTokenClock(now func() time.Time) TokenOption {
	return func(m *TokenManager) {
		m.now = now
	}
}

// NewTokenManager creates a token manager. It does not authenticate; the
// first EnsureValid or Authenticate call does.
func NewTokenManager(cfg TokenConfig, opts ...TokenOption) *TokenManager {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	m := &TokenManager{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Token returns the current access token, empty if never authenticated.
func (m *TokenManager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accessToken
}

// IsExpired reports whether the token is absent or within the expiry buffer.
func (m *TokenManager) IsExpired() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.expiresAt.IsZero() {
		return true
	}
	return !m.now().Before(m.expiresAt.Add(-ExpiryBuffer))
}

// EnsureValid refreshes the token if it is expired or near expiry.
// Concurrent callers share a single refresh.
func (m *TokenManager) EnsureValid(ctx context.Context) error {
	if !m.IsExpired() {
		return nil
	}
	return m.refresh(ctx, false)
}

// Authenticate performs the grant unconditionally, discarding any current
// token. It is used when a call failed with 401 and the token is known bad.
func (m *TokenManager) Authenticate(ctx context.Context) error {
	return m.refresh(ctx, true)
}

// Reset discards the token, returning the manager to the unauthenticated
// state. Intended for tests and credential rotation.
func (m *TokenManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accessToken = ""
	m.expiresAt = time.Time{}
}

func (m *TokenManager) refresh(ctx context.Context, force bool) error {
	_, err, _ := m.group.Do("token", func() (any, error) {
		// A concurrent caller may have refreshed while we waited.
		if !force && !m.IsExpired() {
			return nil, nil
		}
		return nil, m.authenticate(ctx)
	})
	return err
}

// authenticate performs the client-credentials grant and stores the result.
// On any failure the token state is left unauthenticated.
func (m *TokenManager) authenticate(ctx context.Context) error {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {m.cfg.ClientID},
		"client_secret": {m.cfg.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return &AuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	m.metrics.IncReauthentication()

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return &AuthError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &AuthError{Err: fmt.Errorf("read token response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &AuthError{Err: fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return &AuthError{Err: fmt.Errorf("decode token response: %w", err)}
	}
	if tr.AccessToken == "" {
		return &AuthError{Err: fmt.Errorf("token response missing access_token")}
	}

	expiresAt, err := m.resolveExpiry(tr)
	if err != nil {
		return &AuthError{Err: err}
	}

	m.mu.Lock()
	m.accessToken = tr.AccessToken
	m.expiresAt = expiresAt
	m.mu.Unlock()

	m.logger.Debug("idp token refreshed", "expires_at", expiresAt)
	return nil
}

// resolveExpiry derives the expiry instant from expires_in, falling back to
// the token's exp claim when the endpoint omits it.
func (m *TokenManager) resolveExpiry(tr tokenResponse) (time.Time, error) {
	if tr.ExpiresIn > 0 {
		return m.now().Add(time.Duration(tr.ExpiresIn) * time.Second), nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tr.AccessToken, claims); err != nil {
		return time.Time{}, fmt.Errorf("token response missing expires_in and exp claim: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, fmt.Errorf("token response missing expires_in and exp claim")
	}
	return exp.Time, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}
