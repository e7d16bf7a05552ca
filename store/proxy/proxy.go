// Package proxy implements store.Transport against the thin backend
// served by this repository's api package. The backend hides the
// repository token from clients and exposes each document over GET/PUT
// with ETag version tags and If-Match conditioned writes.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/oriolbns/despesa/store"
)

// Transport is a store.Transport talking to the despesa proxy API.
type Transport struct {
	baseURL string
	token   string
	client  *http.Client
}

var _ store.Transport = (*Transport)(nil)

// Option configures the transport.
type Option func(*Transport)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) { t.client = c }
}

// New returns a Transport for the proxy at baseURL (e.g.
// "https://despesa.example.com/api"), authenticated with the given
// bearer token.
func New(baseURL, token string, opts ...Option) *Transport {
	t := &Transport{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Fetch retrieves the document body; the version tag travels in the
// ETag response header.
func (t *Transport) Fetch(ctx context.Context, name string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.docURL(name), nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+t.token)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", store.ErrConnectivity, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", mapStatus(resp, name)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("reading %s: %w", name, err)
	}
	return string(body), unquoteETag(resp.Header.Get("ETag")), nil
}

// Commit writes the document conditioned on the tag via If-Match. An
// empty tag omits the header, which the backend treats as create.
func (t *Transport) Commit(ctx context.Context, name, content, tag string) (string, error) {
	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, t.docURL(name), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("Content-Type", "application/json")
	if tag != "" {
		req.Header.Set("If-Match", strconv.Quote(tag))
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", store.ErrConnectivity, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", mapStatus(resp, name)
	}
	io.Copy(io.Discard, resp.Body)
	return unquoteETag(resp.Header.Get("ETag")), nil
}

func (t *Transport) docURL(name string) string {
	return t.baseURL + "/" + strings.TrimSuffix(name, ".json")
}

func mapStatus(resp *http.Response, name string) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("the proxy rejected the API token: %w", store.ErrAuth)
	case http.StatusForbidden:
		return fmt.Errorf("the API token lacks access to %s: %w", name, store.ErrPermission)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", name, store.ErrNotFound)
	case http.StatusConflict, http.StatusPreconditionFailed:
		return fmt.Errorf("%s was modified concurrently: %w", name, store.ErrConflict)
	case http.StatusTooManyRequests:
		var retryAfter time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return fmt.Errorf("proxy rate limit exceeded: %w", &store.RateLimitError{RetryAfter: retryAfter})
	default:
		return fmt.Errorf("proxy returned status %d for %s", resp.StatusCode, name)
	}
}

func unquoteETag(etag string) string {
	if unquoted, err := strconv.Unquote(etag); err == nil {
		return unquoted
	}
	return etag
}
