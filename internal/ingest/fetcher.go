// Osiris - Global OSINT Event Reconciliation and Live Map Feed
// Copyright 2026 The Osiris Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osiris-osint/osiris

package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/osiris-osint/osiris/internal/models"
)

// Fetcher is the snapshot-fetch collaborator contract: a bulk point-in-time
// read of recent events, bounded by limit. Any transport or parse failure
// surfaces as an error with the store left untouched; there is no partial
// result.
type Fetcher interface {
	FetchSnapshot(ctx context.Context, limit int) ([]models.Event, error)
}

// snapshotResponse is the upstream events envelope.
type snapshotResponse struct {
	Events []json.RawMessage `json:"events"`
	Total  int               `json:"total"`
}

// HTTPFetcher fetches snapshots from the upstream aggregator's events
// endpoint.
type HTTPFetcher struct {
	base   string
	client *http.Client
}

// NewHTTPFetcher creates a fetcher for the given base URL (scheme://host).
// The client's timeout is the per-request bound; a hung upstream is cut off
// there rather than blocking the fetch schedule.
func NewHTTPFetcher(base string, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{
		base:   base,
		client: &http.Client{Timeout: timeout},
	}
}

// FetchSnapshot requests up to limit recent events. Individual records that
// fail to decode are skipped (MalformedRecord policy); only an undecodable
// envelope fails the fetch.
func (f *HTTPFetcher) FetchSnapshot(ctx context.Context, limit int) ([]models.Event, error) {
	u, err := url.Parse(f.base + "/api/events")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchTransport, err)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d", ErrFetchStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchTransport, err)
	}

	var envelope snapshotResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchDecode, err)
	}

	events := make([]models.Event, 0, len(envelope.Events))
	for _, raw := range envelope.Events {
		var ev models.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue // MalformedRecord: skip, never fail the batch
		}
		events = append(events, ev)
	}
	return events, nil
}
