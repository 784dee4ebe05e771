// Package indexer implements the client for the external chain-indexer event
// feed that drives ingestion.
package indexer

import (
	"context"
	"fmt"
	"net/url"

	"github.com/LavonTMCQ/bundledatabase-sub001/internal/adapter"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/domain"
)

// Client defines an interface for the indexer event feed to enable mocking
type Client interface {
	// FetchEvents requests ledger events after the given checkpoint. An empty
	// slice is a valid response meaning no new events.
	FetchEvents(ctx context.Context, since domain.Point) ([]domain.LedgerEvent, error)
}

type client struct {
	baseURL    string
	batchSize  int
	httpClient adapter.HTTPClient
}

// NewClient creates a new indexer event feed client
func NewClient(baseURL string, batchSize int, httpClient adapter.HTTPClient) Client {
	return &client{
		baseURL:    baseURL,
		batchSize:  batchSize,
		httpClient: httpClient,
	}
}

// FetchEvents requests ledger events after the given checkpoint
func (c *client) FetchEvents(ctx context.Context, since domain.Point) ([]domain.LedgerEvent, error) {
	q := url.Values{}
	if !since.IsOrigin() {
		q.Set("since", since.String())
	}
	if c.batchSize > 0 {
		q.Set("limit", fmt.Sprintf("%d", c.batchSize))
	}

	endpoint := fmt.Sprintf("%s/events", c.baseURL)
	if encoded := q.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var events []domain.LedgerEvent
	if err := c.httpClient.Get(ctx, endpoint, nil, &events); err != nil {
		return nil, fmt.Errorf("failed to fetch events since %s: %w", since, err)
	}

	return events, nil
}
