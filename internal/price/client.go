// Package price looks up spot prices from an external oracle. Lookups are
// best effort: an unknown token yields a zero quote, not an error the caller
// has to special-case.
package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a token's spot price in the base asset and in USD. Either field
// may be zero when the oracle has no answer.
type Quote struct {
	PriceNative decimal.Decimal
	PriceUSD    decimal.Decimal
}

// Client is an HTTP spot-price client.
type Client struct {
	baseURL string
	httpc   *http.Client
	timeout time.Duration
}

// NewClient builds a price client for the given oracle endpoint.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("price oracle base url is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{},
		timeout: timeout,
	}, nil
}

type quoteResponse struct {
	PriceNative string `json:"priceNative"`
	PriceUSD    string `json:"priceUsd"`
}

// Spot returns the token's current price. Missing or malformed price fields
// decode to zero.
func (c *Client) Spot(ctx context.Context, token string) (Quote, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + "/price?token=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Quote{}, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Quote{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Quote{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("price oracle http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Quote{}, err
	}

	var decoded quoteResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Quote{}, fmt.Errorf("decode quote: %w", err)
	}

	return Quote{
		PriceNative: parseDecimal(decoded.PriceNative),
		PriceUSD:    parseDecimal(decoded.PriceUSD),
	}, nil
}

func parseDecimal(value string) decimal.Decimal {
	if value == "" {
		return decimal.Zero
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return parsed
}
