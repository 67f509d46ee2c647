package kroger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	pkgerrors "github.com/angelmondragon/basketcase/pkg/errors"
)

// ErrCredentials marks failures of the client-credentials exchange. Callers treat it as
// fatal for the whole operation rather than for one product.
var ErrCredentials = errors.New("kroger credential exchange failed")

// TokenCache shares access tokens between processes. *redis.Client satisfies it.
type TokenCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type accessToken struct {
	Value     string    `json:"access_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (t accessToken) validAt(now time.Time) bool {
	return t.Value != "" && now.Before(t.ExpiresAt)
}

// TokenSource owns the bearer credential: it caches the token until expires_in minus a
// safety margin and collapses concurrent refreshes into one exchange.
type TokenSource struct {
	httpClient   *http.Client
	tokenURL     string
	clientID     string
	clientSecret string
	scope        string
	margin       time.Duration
	now          func() time.Time

	cache    TokenCache
	cacheKey string

	mu      sync.RWMutex
	current accessToken
	group   singleflight.Group
}

func newTokenSource(httpClient *http.Client, baseURL, clientID, clientSecret, scope string, margin time.Duration) *TokenSource {
	return &TokenSource{
		httpClient:   httpClient,
		tokenURL:     strings.TrimRight(baseURL, "/") + "/connect/oauth2/token",
		clientID:     clientID,
		clientSecret: clientSecret,
		scope:        scope,
		margin:       margin,
		now:          time.Now,
	}
}

// Token returns a valid access token, exchanging credentials when the cached one is stale.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	if tok, ok := s.cached(); ok {
		return tok, nil
	}
	v, err, _ := s.group.Do("token", func() (any, error) {
		if tok, ok := s.cached(); ok {
			return tok, nil
		}
		if tok, ok := s.fromSharedCache(ctx); ok {
			s.store(tok)
			return tok.Value, nil
		}
		tok, err := s.exchange(ctx)
		if err != nil {
			return "", err
		}
		s.store(tok)
		s.toSharedCache(ctx, tok)
		return tok.Value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token so the next call re-authenticates.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	s.current = accessToken{}
	s.mu.Unlock()
}

func (s *TokenSource) cached() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current.validAt(s.now()) {
		return s.current.Value, true
	}
	return "", false
}

func (s *TokenSource) store(tok accessToken) {
	s.mu.Lock()
	s.current = tok
	s.mu.Unlock()
}

func (s *TokenSource) fromSharedCache(ctx context.Context) (accessToken, bool) {
	if s.cache == nil {
		return accessToken{}, false
	}
	raw, err := s.cache.Get(ctx, s.cacheKey)
	if err != nil || raw == "" {
		return accessToken{}, false
	}
	var tok accessToken
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return accessToken{}, false
	}
	if !tok.validAt(s.now()) {
		return accessToken{}, false
	}
	return tok, true
}

func (s *TokenSource) toSharedCache(ctx context.Context, tok accessToken) {
	if s.cache == nil {
		return
	}
	ttl := tok.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(tok)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, s.cacheKey, string(raw), ttl)
}

func (s *TokenSource) exchange(ctx context.Context) (accessToken, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", s.scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return accessToken{}, credentialError(err, "build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.clientID, s.clientSecret)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return accessToken{}, credentialError(err, "execute token request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return accessToken{}, credentialError(fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "token request failed")
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return accessToken{}, credentialError(err, "decode token response")
	}
	if payload.AccessToken == "" {
		return accessToken{}, credentialError(errors.New("empty access_token"), "token request failed")
	}

	lifetime := time.Duration(payload.ExpiresIn)*time.Second - s.margin
	if lifetime < 0 {
		lifetime = 0
	}
	return accessToken{Value: payload.AccessToken, ExpiresAt: s.now().Add(lifetime)}, nil
}

func credentialError(err error, message string) error {
	return pkgerrors.Wrap(pkgerrors.CodeUpstream, fmt.Errorf("%w: %w", ErrCredentials, err), message)
}
