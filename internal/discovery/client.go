package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/quietridge/boxmaker/pkg/types"
)

// Client is an HTTP client for the Polymarket Gamma market-discovery API,
// built on resty.
type Client struct {
	baseURL string
	rest    *resty.Client
	logger  *zap.Logger
}

// NewClient creates a new Gamma API client.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	rest := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "boxmaker/1.0")

	return &Client{baseURL: baseURL, rest: rest, logger: logger}
}

// ListMarkets fetches a page of markets, matching the exchange client
// contract's list_markets(cursor) -> {data, next_cursor}.
func (c *Client) ListMarkets(ctx context.Context, cursor string, limit int) (*types.MarketsResponse, error) {
	var markets []types.Market

	req := c.rest.R().
		SetContext(ctx).
		SetQueryParam("closed", "false").
		SetQueryParam("active", "true").
		SetQueryParam("limit", fmt.Sprintf("%d", limit)).
		SetQueryParam("order", "volume24hr").
		SetQueryParam("ascending", "false").
		SetResult(&markets)

	offset := 0
	if cursor != "" {
		req.SetQueryParam("offset", cursor)
		_, _ = fmt.Sscanf(cursor, "%d", &offset)
	}

	resp, err := req.Get("/markets")
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode(), resp.String())
	}

	nextCursor := ""
	if len(markets) == limit {
		nextCursor = fmt.Sprintf("%d", offset+limit)
	}

	c.logger.Debug("fetched-markets", zap.Int("count", len(markets)))

	return &types.MarketsResponse{
		Data:     markets,
		Count:    len(markets),
		Limit:    limit,
		NextPage: nextCursor,
	}, nil
}
