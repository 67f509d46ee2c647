package kroger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/basketcase/pkg/config"
	pkgerrors "github.com/angelmondragon/basketcase/pkg/errors"
	"github.com/angelmondragon/basketcase/pkg/logger"
)

const (
	defaultBaseURL              = "https://api.kroger.com/v1"
	defaultScope                = "product.compact"
	defaultRequestTimeout       = 10 * time.Second
	defaultTokenMargin          = 60 * time.Second
	responseBodyReadLimit int64 = 1024

	// MaxStoresPerRequest is the /locations filter.limit ceiling.
	MaxStoresPerRequest = 200
	// MaxProductsPerRequest is the /products filter.limit ceiling.
	MaxProductsPerRequest = 50
	// StoreIDLength is the fixed length of a location code.
	StoreIDLength = 8

	minSearchTermLength = 3
	defaultLimit        = 10
)

var errCredentialsRequired = errors.New("kroger client id and secret are required")

// Client wraps the catalog endpoints used for store lookup, product search and pricing.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	tokens     *TokenSource
	logg       *logger.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured catalog base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTokenCache shares access tokens through cache (normally Redis) under a per-client key.
func WithTokenCache(cache TokenCache, key string) Option {
	return func(c *Client) {
		if cache != nil && key != "" {
			c.tokens.cache = cache
			c.tokens.cacheKey = key
		}
	}
}

// WithLogger attaches a logger for per-product fetch warnings.
func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		if logg != nil {
			c.logg = logg
		}
	}
}

// WithClock overrides the clock used for token expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.tokens.now = now
		}
	}
}

// NewClient builds the catalog client from configuration.
func NewClient(cfg config.KrogerConfig, opts ...Option) (*Client, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	secret := strings.TrimSpace(cfg.ClientSecret)
	if clientID == "" || secret == "" {
		return nil, errCredentialsRequired
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	margin := cfg.TokenMargin
	if margin <= 0 {
		margin = defaultTokenMargin
	}
	scope := strings.TrimSpace(cfg.Scope)
	if scope == "" {
		scope = defaultScope
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	client := &Client{
		httpClient: &http.Client{},
		baseURL:    baseURL,
		timeout:    timeout,
		logg:       logger.Nop(),
	}
	client.tokens = newTokenSource(client.httpClient, baseURL, clientID, secret, scope, margin)

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	// options may have replaced the transport or base URL after the token source was built
	client.tokens.httpClient = client.httpClient
	client.tokens.tokenURL = strings.TrimRight(client.baseURL, "/") + "/connect/oauth2/token"

	return client, nil
}

// Tokens exposes the credential source, mainly for health checks.
func (c *Client) Tokens() *TokenSource {
	return c.tokens
}

// FindStores lists locations near a postal code. limit defaults to 10 and is capped at 200.
func (c *Client) FindStores(ctx context.Context, postalCode string, limit int) ([]StoreRecord, error) {
	postalCode = strings.TrimSpace(postalCode)
	if postalCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "postal code is required")
	}
	params := url.Values{}
	params.Set("filter.zipCode.near", postalCode)
	params.Set("filter.limit", strconv.Itoa(clampLimit(limit, MaxStoresPerRequest)))

	var resp struct {
		Data []StoreRecord `json:"data"`
	}
	if err := c.get(ctx, "locations", params, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// SearchProducts searches the catalog at one location. term needs at least three characters
// and storeID exactly eight.
func (c *Client) SearchProducts(ctx context.Context, term, storeID string, limit int) ([]ProductRecord, error) {
	term = strings.TrimSpace(term)
	if len(term) < minSearchTermLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "search term must be at least 3 characters")
	}
	if err := ValidateStoreID(storeID); err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("filter.term", term)
	params.Set("filter.locationId", storeID)
	params.Set("filter.limit", strconv.Itoa(clampLimit(limit, MaxProductsPerRequest)))

	var resp struct {
		Data []ProductRecord `json:"data"`
	}
	if err := c.get(ctx, "products", params, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetPrice fetches one product's items at a location. Every failure is returned.
func (c *Client) GetPrice(ctx context.Context, productID, storeID string) (PriceRecord, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return PriceRecord{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if err := ValidateStoreID(storeID); err != nil {
		return PriceRecord{}, err
	}
	params := url.Values{}
	params.Set("filter.locationId", storeID)

	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.get(ctx, "products/"+url.PathEscape(productID), params, &resp); err != nil {
		return PriceRecord{}, err
	}
	record, err := decodePriceData(resp.Data)
	if err != nil {
		return PriceRecord{}, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "decode product response")
	}
	record.ProductID = productID
	return record, nil
}

// GetPrices fetches each product in turn. A transport failure or timeout for one product
// yields an empty record for it; credential failures and caller cancellation abort the batch.
func (c *Client) GetPrices(ctx context.Context, productIDs []string, storeID string) ([]PriceRecord, error) {
	if err := ValidateStoreID(storeID); err != nil {
		return nil, err
	}
	records := make([]PriceRecord, 0, len(productIDs))
	for _, productID := range productIDs {
		if err := ctx.Err(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "price batch canceled")
		}
		record, err := c.GetPrice(ctx, productID, storeID)
		if err != nil {
			if errors.Is(err, ErrCredentials) {
				return nil, err
			}
			warnCtx := c.logg.WithFields(ctx, map[string]any{"product_id": productID, "store_id": storeID, "error": err.Error()})
			c.logg.Warn(warnCtx, "price fetch failed; treating as no usable price")
			record = PriceRecord{ProductID: productID}
		}
		records = append(records, record)
	}
	return records, nil
}

// ValidateStoreID enforces the fixed location code length.
func ValidateStoreID(storeID string) error {
	if len(storeID) != StoreIDLength {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("store id must be %d characters", StoreIDLength))
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	err := c.doGet(ctx, path, params, out)
	if errors.Is(err, errUnauthorized) {
		// the cached token may have been revoked early; retry once with a fresh one
		c.tokens.Invalidate()
		err = c.doGet(ctx, path, params, out)
	}
	return err
}

var errUnauthorized = errors.New("unauthorized")

func (c *Client) doGet(ctx context.Context, path string, params url.Values, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.buildURL(path)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "build catalog request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "execute catalog request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, errUnauthorized, "catalog rejected access token")
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "catalog request failed")
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "decode catalog response")
	}
	return nil
}

// /products/{id} answers with either an object or a one-element array depending on the
// API revision.
func decodePriceData(raw json.RawMessage) (PriceRecord, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return PriceRecord{}, nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var list []PriceRecord
		if err := json.Unmarshal(raw, &list); err != nil {
			return PriceRecord{}, err
		}
		if len(list) == 0 {
			return PriceRecord{}, nil
		}
		return list[0], nil
	}
	var record PriceRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return PriceRecord{}, err
	}
	return record, nil
}

func clampLimit(limit, max int) int {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > max {
		return max
	}
	return limit
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
