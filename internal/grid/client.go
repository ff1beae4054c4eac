// Package grid adapts the GRID live-data feed into domain snapshots.
// It hides the GraphQL shape, the schema-discovery handshake, and all
// transport details behind a single FetchSnapshot call.
package grid

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"valorant-scout/internal/config"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

const (
	centralURL     = "https://api-op.grid.gg/central-data/graphql"
	seriesStateURL = "https://api-op.grid.gg/live-data-feed/series-state/graphql"
)

type Client struct {
	apiKey   string
	seriesID string
	client   *fasthttp.Client
	logger   zerolog.Logger

	// Resolved once at startup by DiscoverInventoryField.
	playerType string
	invField   string
	query      string
}

func NewClient(cfg *config.Config, logger zerolog.Logger) *Client {
	return &Client{
		apiKey:   cfg.GridAPIKey,
		seriesID: cfg.GridSeriesID,
		client: &fasthttp.Client{
			MaxConnsPerHost:     16,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		logger: logger,
	}
}

type gqlRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// runGQL posts one GraphQL operation and decodes data into out.
func (c *Client) runGQL(ctx context.Context, url, query, operationName string, variables map[string]any, out any) error {
	body, err := json.Marshal(gqlRequest{Query: query, OperationName: operationName, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal graphql request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.SetBody(body)

	if deadline, ok := ctx.Deadline(); ok {
		err = c.client.DoDeadline(req, resp, deadline)
	} else {
		err = c.client.Do(req, resp)
	}
	if err != nil {
		return fmt.Errorf("graphql request failed: %w", err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return fmt.Errorf("graphql HTTP %d: %s", resp.StatusCode(), truncate(resp.Body(), 300))
	}

	var envelope gqlEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return fmt.Errorf("failed to decode graphql response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}
	if out != nil && envelope.Data != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode graphql data: %w", err)
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
