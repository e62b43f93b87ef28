package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tunebridge/tunebridge/internal/shared"
)

const (
	appleMusicTokenKey        = "apple_music_token"
	appleMusicTokenExpiresKey = "apple_music_token_expires_at"
)

// DeveloperTokenSource provides Apple Music developer tokens.
//
// Tokens are signed JWTs issued by a backend endpoint. A fetched token is
// cached in the SecretStore until its expiration; when the endpoint is
// unreachable a configured fallback token is used as a last resort.
type DeveloperTokenSource struct {
	endpoint   string
	fallback   string
	fallbackAt time.Time
	secrets    SecretStore
	httpClient *http.Client
	logger     *log.Logger

	token     string
	expiresAt time.Time
}

// NewDeveloperTokenSource creates a token source from the configured Apple
// Music settings.
func NewDeveloperTokenSource(config shared.AppleMusicConfig, secrets SecretStore, logger *log.Logger) *DeveloperTokenSource {
	return &DeveloperTokenSource{
		endpoint:   config.TokenEndpoint,
		fallback:   config.FallbackToken,
		fallbackAt: time.Unix(config.FallbackExpiresAt, 0),
		secrets:    secrets,
		httpClient: http.DefaultClient,
		logger:     logger,
	}
}

// Token returns a non-expired developer token, fetching a new one when the
// cached token is missing or stale. Returns shared.ErrAuthToken when no
// valid token can be obtained.
func (t *DeveloperTokenSource) Token(ctx context.Context) (string, error) {
	if t.token != "" && time.Now().Before(t.expiresAt) {
		return t.token, nil
	}

	if token, expiresAt, ok := t.stored(); ok && time.Now().Before(expiresAt) {
		t.token = token
		t.expiresAt = expiresAt
		return token, nil
	}

	token, expiresAt, err := t.fetch(ctx)
	if err != nil {
		t.logger.Warn("token endpoint unavailable, trying fallback token", "error", err)

		if t.fallback != "" && time.Now().Before(t.fallbackAt) {
			t.token = t.fallback
			t.expiresAt = t.fallbackAt
			return t.fallback, nil
		}

		return "", fmt.Errorf("%w: %v", shared.ErrAuthToken, err)
	}

	t.token = token
	t.expiresAt = expiresAt
	t.store(token, expiresAt)

	return token, nil
}

// Invalidate discards the current token so the next call fetches a new one.
// Called when the catalog API rejects the token before its expected expiry.
func (t *DeveloperTokenSource) Invalidate() {
	t.token = ""
	t.expiresAt = time.Time{}
	if err := t.secrets.Delete(appleMusicTokenKey); err != nil {
		t.logger.Warn("failed to clear stored token", "error", err)
	}
}

func (t *DeveloperTokenSource) fetch(ctx context.Context) (string, time.Time, error) {
	if t.endpoint == "" {
		return "", time.Time{}, fmt.Errorf("no token endpoint configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint, nil)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, fmt.Errorf("token endpoint status %d", resp.StatusCode)
	}

	var payload struct {
		Token     string  `json:"token"`
		ExpiresAt float64 `json:"expiresAt"` // unix seconds
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to decode token response: %w", err)
	}

	if payload.Token == "" {
		return "", time.Time{}, fmt.Errorf("token endpoint returned empty token")
	}

	return payload.Token, time.Unix(int64(payload.ExpiresAt), 0), nil
}

func (t *DeveloperTokenSource) stored() (string, time.Time, bool) {
	token, ok, err := t.secrets.Get(appleMusicTokenKey)
	if err != nil || !ok {
		return "", time.Time{}, false
	}

	expires, ok, err := t.secrets.Get(appleMusicTokenExpiresKey)
	if err != nil || !ok {
		return "", time.Time{}, false
	}

	timestamp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}

	return token, time.Unix(timestamp, 0), true
}

func (t *DeveloperTokenSource) store(token string, expiresAt time.Time) {
	if err := t.secrets.Set(appleMusicTokenKey, token); err != nil {
		t.logger.Warn("failed to store token", "error", err)
		return
	}
	if err := t.secrets.Set(appleMusicTokenExpiresKey, strconv.FormatInt(expiresAt.Unix(), 10)); err != nil {
		t.logger.Warn("failed to store token expiry", "error", err)
	}
}
