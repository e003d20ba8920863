package marketplaceapi

import (
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/sellerbridge/backend/internal/domain/marketplace"
)

// Paging is the pagination envelope on listing responses
type Paging struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// SearchPage is one page of the seller's item id listing
type SearchPage struct {
	Results []string `json:"results"`
	Paging  Paging   `json:"paging"`
}

// Validate checks the envelope shape at the system boundary so internal code
// never operates on unchecked payloads.
func (p *SearchPage) Validate() error {
	if p.Paging.Total < 0 || p.Paging.Limit <= 0 {
		return fmt.Errorf("%w: search paging envelope malformed", marketplace.ErrInvalidResponse)
	}
	return nil
}

// ItemDetail is the catalog item body returned by the multi-get endpoint
type ItemDetail struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	Price             decimal.Decimal `json:"price"`
	CurrencyID        string          `json:"currency_id"`
	AvailableQuantity int             `json:"available_quantity"`
	SoldQuantity      int             `json:"sold_quantity"`
	Status            string          `json:"status"`
	CategoryID        string          `json:"category_id"`
	Permalink         string          `json:"permalink"`
}

// Validate rejects structurally unusable item payloads. A failing item is
// counted against the batch, never aborts it.
func (d *ItemDetail) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: item id missing", marketplace.ErrItemValidation)
	}
	if d.Title == "" {
		return fmt.Errorf("%w: item %s has no title", marketplace.ErrItemValidation, d.ID)
	}
	if d.Price.IsNegative() {
		return fmt.Errorf("%w: item %s has negative price", marketplace.ErrItemValidation, d.ID)
	}
	return nil
}

// ItemResult is one positional slot of a multi-get response
type ItemResult struct {
	Code int        `json:"code"`
	Body ItemDetail `json:"body"`
}

// OK reports whether the slot carries a usable item
func (r *ItemResult) OK() bool {
	return r.Code >= 200 && r.Code < 300
}

// TokenResponse is the token endpoint's success body for both
// authorization_code and refresh_token grants
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	UserID       int64  `json:"user_id"`
	RefreshToken string `json:"refresh_token"`
}

// Validate checks the exchange produced a usable credential pair.
func (t *TokenResponse) Validate() error {
	if t.AccessToken == "" || t.RefreshToken == "" {
		return fmt.Errorf("%w: token response missing credentials", marketplace.ErrInvalidResponse)
	}
	if t.ExpiresIn <= 0 {
		return fmt.Errorf("%w: token response has no expiry", marketplace.ErrInvalidResponse)
	}
	return nil
}

// oauthError is the token endpoint's error body
type oauthError struct {
	Error       string `json:"error"`
	Message     string `json:"message"`
	Description string `json:"error_description"`
}

// statusToError maps an HTTP status onto the error taxonomy.
func statusToError(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return marketplace.ErrAuthExpired
	case status == http.StatusTooManyRequests:
		return marketplace.ErrRateLimited
	case status >= 500:
		return marketplace.ErrTransientNetwork
	default:
		return fmt.Errorf("%w: unexpected status %d", marketplace.ErrInvalidResponse, status)
	}
}
