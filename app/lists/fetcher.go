package lists

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/badge-comb/app/dom"
	"github.com/lysyi3m/badge-comb/app/page"
)

const FetchTimeout = 5 * time.Second

// Fetcher loads the page of a list that is not on screen.
type Fetcher struct {
	client  *dom.Client
	adapter *page.Adapter
	timeout time.Duration
}

func NewFetcher(client *dom.Client, adapter *page.Adapter) *Fetcher {
	return &Fetcher{
		client:  client,
		adapter: adapter,
		timeout: FetchTimeout,
	}
}

// Run fetches and parses the list page. The returned document is detached.
// Timeouts, transport errors and non-2xx statuses are returned as errors.
func (f *Fetcher) Run(ctx context.Context, listID string) (*dom.Document, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	path := f.adapter.ListPath(listID)
	start := time.Now()

	doc, err := f.client.Get(timeoutCtx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch list %s: %w", listID, err)
	}

	slog.Debug("List page fetched", "list", listID, "path", path, "duration", time.Since(start))
	return doc, nil
}
