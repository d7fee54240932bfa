// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

/*
presence_client.go - Presence HTTP Client

Pull-channel client for the presence REST resource. Responses use an envelope
of the form {"success": bool, "data": {...}, "error": {"code", "message"}}.

Endpoint: GET {presence_url}/{identity}?_={nanos}
*/

package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/presencesync/internal/models"
)

// NotMonitoredCode is the provider error code for an identity the gateway does not track.
const NotMonitoredCode = "user_not_monitored"

var (
	// ErrNotMonitored is terminal: the watched identity is not tracked by the provider.
	ErrNotMonitored = errors.New("identity is not monitored by the presence provider")

	// ErrUnexpectedStatus is returned for non-2xx responses without a recognised envelope.
	ErrUnexpectedStatus = errors.New("unexpected presence response status")

	// ErrProviderError is returned when the envelope reports a non-terminal failure.
	ErrProviderError = errors.New("presence provider error")
)

// PresenceFetcher fetches the current presence payload.
// Both PresenceClient and CircuitBreakerFetcher implement this interface.
type PresenceFetcher interface {
	FetchPresence(ctx context.Context) (*models.PresenceData, error)
}

// Ensure PresenceClient implements PresenceFetcher
var _ PresenceFetcher = (*PresenceClient)(nil)

// PresenceClient provides access to the presence REST resource.
type PresenceClient struct {
	baseURL    string
	identity   string
	httpClient *http.Client
	now        func() time.Time
}

// NewPresenceClient creates a client for baseURL (e.g. https://api.lanyard.rest/v1/users).
func NewPresenceClient(baseURL, identity string, timeout time.Duration) *PresenceClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PresenceClient{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		identity: identity,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}
}

// FetchPresence performs one GET and unwraps the envelope.
//
// A "not monitored" envelope returns ErrNotMonitored regardless of the HTTP
// status. A successful envelope with no data returns an empty payload, which
// decodes to an inactive snapshot.
func (c *PresenceClient) FetchPresence(ctx context.Context) (*models.PresenceData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache, no-store")
	req.Header.Set("Pragma", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("presence request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read presence response: %w", err)
	}

	var envelope models.PresenceEnvelope
	decodeErr := json.Unmarshal(body, &envelope)

	if decodeErr == nil && envelope.Error != nil && envelope.Error.Code == NotMonitoredCode {
		return nil, fmt.Errorf("%w: %s", ErrNotMonitored, envelope.Error.Message)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode presence envelope: %w", decodeErr)
	}
	if !envelope.Success {
		if envelope.Error != nil {
			return nil, fmt.Errorf("%w: %s: %s", ErrProviderError, envelope.Error.Code, envelope.Error.Message)
		}
		return nil, ErrProviderError
	}
	if envelope.Data == nil {
		return &models.PresenceData{}, nil
	}
	return envelope.Data, nil
}

// requestURL builds the resource URL with a cache-busting query parameter.
func (c *PresenceClient) requestURL() string {
	q := url.Values{}
	q.Set("_", strconv.FormatInt(c.now().UnixNano(), 10))
	return c.baseURL + "/" + url.PathEscape(c.identity) + "?" + q.Encode()
}
