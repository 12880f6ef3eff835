// Package shopify is a thin client for the commerce platform's GraphQL
// Admin API: product listing, bulk variant price updates and the app
// subscription billing mutations.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PricePilot/PricePilot/internal/pkg/env"
)

const defaultAPIVersion = "2024-07"

// Client talks to one shop's Admin GraphQL endpoint.
type Client struct {
	Shop        string
	AccessToken string
	APIVersion  string

	// EndpointOverride replaces the shop-derived endpoint; used by tests.
	EndpointOverride string

	HTTPClient *http.Client
}

// NewClientFromEnv builds an API client for the given shop using the
// app-wide Admin API token. Per-shop OAuth token storage is handled by the
// session layer outside this package.
func NewClientFromEnv(shop string) *Client {
	return &Client{
		Shop:             strings.TrimSpace(shop),
		AccessToken:      strings.TrimSpace(env.GetEnv("COMMERCE_API_TOKEN", "")),
		APIVersion:       strings.TrimSpace(env.GetEnv("COMMERCE_API_VERSION", defaultAPIVersion)),
		EndpointOverride: strings.TrimSpace(env.GetEnv("COMMERCE_API_ENDPOINT", "")),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) endpoint() string {
	if c.EndpointOverride != "" {
		return c.EndpointOverride
	}
	return fmt.Sprintf("https://%s/admin/api/%s/graphql.json", c.Shop, c.APIVersion)
}

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// UserError is a field-scoped error returned inside a mutation payload. The
// field path identifies which input (e.g. which variant index) was
// rejected.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// execute posts one GraphQL document and unmarshals the data payload into
// out. Top-level GraphQL errors become a single Go error.
func (c *Client) execute(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	if strings.TrimSpace(c.Shop) == "" && c.EndpointOverride == "" {
		return errors.New("shop domain is required")
	}
	if strings.TrimSpace(c.AccessToken) == "" {
		return errors.New("COMMERCE_API_TOKEN is not configured")
	}

	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.AccessToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("admin api request failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var raw graphqlResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return fmt.Errorf("admin api returned invalid json: %w", err)
	}
	if len(raw.Errors) > 0 {
		msgs := make([]string, 0, len(raw.Errors))
		for _, e := range raw.Errors {
			msgs = append(msgs, e.Message)
		}
		return fmt.Errorf("admin api errors: %s", strings.Join(msgs, "; "))
	}
	if out != nil {
		if err := json.Unmarshal(raw.Data, out); err != nil {
			return fmt.Errorf("admin api data has unexpected shape: %w", err)
		}
	}
	return nil
}

func joinUserErrors(errs []UserError) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		if len(e.Field) > 0 {
			msgs = append(msgs, strings.Join(e.Field, ".")+": "+e.Message)
		} else {
			msgs = append(msgs, e.Message)
		}
	}
	return strings.Join(msgs, "; ")
}
