package marketplaceapi

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

	"go.uber.org/zap"

	"github.com/sellerbridge/backend/internal/domain/marketplace"
)

// maxResponseSize caps reads of platform responses (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Config holds the platform endpoints and app credentials
type Config struct {
	APIBaseURL     string
	TokenURL       string
	ClientID       string
	ClientSecret   string
	TimeoutSeconds int
}

// Validate checks the configuration is usable
func (c *Config) Validate() error {
	if c.APIBaseURL == "" || c.TokenURL == "" {
		return errors.New("marketplaceapi: API and token URLs are required")
	}
	if c.ClientID == "" || c.ClientSecret == "" {
		return errors.New("marketplaceapi: client credentials are required")
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}

// Client is the outbound REST adapter for the marketplace platform. All
// responses are decoded into validated envelopes at this boundary; callers
// never see raw JSON shapes.
type Client struct {
	config     *Config
	httpClient *http.Client
	retry      *RetryPolicy
	logger     *zap.Logger
}

// NewClient creates a platform client with the given configuration.
func NewClient(config *Config, retry *RetryPolicy, logger *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if retry == nil {
		retry = DefaultRetryPolicy(logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: time.Duration(config.TimeoutSeconds) * time.Second},
		retry:      retry,
		logger:     logger,
	}, nil
}

// ---------------------------------------------------------------------------
// Catalog Operations
// ---------------------------------------------------------------------------

// SearchItemIDs fetches one page of the seller's item ids. Pages are
// inherently sequential: each offset depends on the previously reported
// total, so callers must not parallelize enumeration.
func (c *Client) SearchItemIDs(ctx context.Context, token, sellerID string, offset, limit int) (*SearchPage, error) {
	query := url.Values{}
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, token, fmt.Sprintf("/users/%s/items/search", url.PathEscape(sellerID)), query)
	if err != nil {
		return nil, err
	}

	var page SearchPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("%w: failed to parse search page: %v", marketplace.ErrInvalidResponse, err)
	}
	if err := page.Validate(); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetItems fetches item details through the multi-get endpoint. The response
// is positionally aligned with the requested ids; per-id failures appear as
// non-2xx codes in their slot and never fail the call.
func (c *Client) GetItems(ctx context.Context, token string, ids []string) ([]ItemResult, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))

	body, err := c.get(ctx, token, "/items", query)
	if err != nil {
		return nil, err
	}

	var results []ItemResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("%w: failed to parse multi-get response: %v", marketplace.ErrInvalidResponse, err)
	}
	if len(results) != len(ids) {
		return nil, fmt.Errorf("%w: multi-get returned %d slots for %d ids",
			marketplace.ErrInvalidResponse, len(results), len(ids))
	}
	return results, nil
}

// ---------------------------------------------------------------------------
// Token Operations
// ---------------------------------------------------------------------------

// RefreshToken exchanges a refresh token for a new access/refresh pair.
// An invalid_grant rejection maps to ErrAuthRevoked and must not be retried:
// the provider has invalidated the credential and every further attempt with
// it will fail the same way.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return c.exchangeToken(ctx, form)
}

// ExchangeCode performs the initial authorization_code exchange at connect
// time.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	return c.exchangeToken(ctx, form)
}

func (c *Client) exchangeToken(ctx context.Context, form url.Values) (*TokenResponse, error) {
	form.Set("client_id", c.config.ClientID)
	form.Set("client_secret", c.config.ClientSecret)

	var tokenResp *TokenResponse
	err := c.retry.Do(ctx, "token_exchange", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.TokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return fmt.Errorf("failed to create token request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", marketplace.ErrTransientNetwork, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return fmt.Errorf("%w: failed to read token response: %v", marketplace.ErrTransientNetwork, err)
		}

		if resp.StatusCode >= 400 {
			var oerr oauthError
			if json.Unmarshal(body, &oerr) == nil && oerr.Error == "invalid_grant" {
				return fmt.Errorf("%w: %s", marketplace.ErrAuthRevoked, oerr.Message)
			}
			if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
				return fmt.Errorf("%w: token endpoint rejected exchange (%d)", marketplace.ErrAuthRevoked, resp.StatusCode)
			}
			return statusToError(resp.StatusCode)
		}

		var tr TokenResponse
		if err := json.Unmarshal(body, &tr); err != nil {
			return fmt.Errorf("%w: failed to parse token response: %v", marketplace.ErrInvalidResponse, err)
		}
		if err := tr.Validate(); err != nil {
			return err
		}
		tokenResp = &tr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tokenResp, nil
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

// get performs an authenticated GET against a platform path and returns the
// raw body, with status codes mapped to the error taxonomy.
func (c *Client) get(ctx context.Context, token, path string, query url.Values) ([]byte, error) {
	var body []byte
	err := c.retry.Do(ctx, "GET "+path, func(ctx context.Context) error {
		u := c.config.APIBaseURL + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", marketplace.ErrTransientNetwork, err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return fmt.Errorf("%w: failed to read response: %v", marketplace.ErrTransientNetwork, err)
		}

		if resp.StatusCode >= 400 {
			return statusToError(resp.StatusCode)
		}
		body = raw
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}
