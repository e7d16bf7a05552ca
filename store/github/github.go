// Package github implements store.Transport against the GitHub contents
// API. The file's blob SHA is the version tag: GitHub rejects an update
// whose sha no longer matches the branch head, which is exactly the
// stale-tag conflict the store's retry protocol handles.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/oriolbns/despesa/store"
)

const defaultBaseURL = "https://api.github.com"

// Config identifies the repository and file layout backing the store.
type Config struct {
	Owner  string
	Repo   string
	Branch string

	// Token is a personal access token. Optional: public repositories
	// can be read without one.
	Token string
}

// Transport is a store.Transport backed by a GitHub repository.
type Transport struct {
	cfg     Config
	baseURL string
	client  *http.Client
}

var _ store.Transport = (*Transport)(nil)

// Option configures the transport.
type Option func(*Transport)

// WithHTTPClient overrides the HTTP client (tests, custom timeouts).
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) { t.client = c }
}

// WithBaseURL overrides the API endpoint (tests, GitHub Enterprise).
func WithBaseURL(u string) Option {
	return func(t *Transport) { t.baseURL = strings.TrimRight(u, "/") }
}

// New returns a Transport for the given repository.
func New(cfg Config, opts ...Option) *Transport {
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	t := &Transport{
		cfg:     cfg,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type fileResponse struct {
	Content  string `json:"content"`
	SHA      string `json:"sha"`
	Encoding string `json:"encoding"`
}

type commitRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

type commitResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

// Fetch retrieves the file's decoded content and its blob SHA.
func (t *Transport) Fetch(ctx context.Context, name string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.contentsURL(name), nil)
	if err != nil {
		return "", "", err
	}
	t.setHeaders(req)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", store.ErrConnectivity, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", t.mapStatus(resp, name)
	}

	var file fileResponse
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
		return "", "", fmt.Errorf("decoding contents response: %w", err)
	}

	content, err := decodeContent(file.Content)
	if err != nil {
		return "", "", fmt.Errorf("decoding %s: %w", name, err)
	}
	return content, file.SHA, nil
}

// Commit writes content conditioned on the given blob SHA. An empty tag
// creates the file.
func (t *Transport) Commit(ctx context.Context, name, content, tag string) (string, error) {
	body := commitRequest{
		Message: fmt.Sprintf("Update %s - %s", name, time.Now().UTC().Format(time.RFC3339)),
		Content: base64.StdEncoding.EncodeToString([]byte(content)),
		Branch:  t.cfg.Branch,
		SHA:     tag,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, t.contentsURL(name), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	t.setHeaders(req)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", store.ErrConnectivity, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", t.mapStatus(resp, name)
	}

	var commit commitResponse
	if err := json.NewDecoder(resp.Body).Decode(&commit); err != nil {
		return "", fmt.Errorf("decoding commit response: %w", err)
	}
	return commit.Content.SHA, nil
}

func (t *Transport) contentsURL(name string) string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", t.baseURL, t.cfg.Owner, t.cfg.Repo, name)
}

func (t *Transport) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("Content-Type", "application/json")
	if t.cfg.Token != "" {
		req.Header.Set("Authorization", "token "+t.cfg.Token)
	}
}

func (t *Transport) mapStatus(resp *http.Response, name string) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("GitHub rejected the access token: %w", store.ErrAuth)
	case http.StatusForbidden:
		// GitHub also reports exhausted rate limits as 403 with a
		// zeroed remaining-quota header.
		if resp.Header.Get("X-RateLimit-Remaining") == "0" {
			return rateLimitError(resp)
		}
		return fmt.Errorf("the access token lacks the required repository permissions: %w", store.ErrPermission)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", name, store.ErrNotFound)
	case http.StatusConflict, http.StatusUnprocessableEntity:
		// 409 for branch-head races; 422 "does not match" for a stale
		// blob SHA. Both mean the tag we conditioned on is no longer
		// current.
		return fmt.Errorf("%s was modified concurrently: %w", name, store.ErrConflict)
	case http.StatusTooManyRequests:
		return rateLimitError(resp)
	default:
		return fmt.Errorf("GitHub API returned status %d for %s", resp.StatusCode, name)
	}
}

func rateLimitError(resp *http.Response) error {
	var retryAfter time.Duration
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			retryAfter = time.Duration(secs) * time.Second
		}
	}
	return fmt.Errorf("GitHub API rate limit exceeded: %w", &store.RateLimitError{RetryAfter: retryAfter})
}

// decodeContent unwraps the base64 payload of a contents response.
// GitHub inserts line breaks every 60 characters.
func decodeContent(content string) (string, error) {
	compact := strings.ReplaceAll(strings.ReplaceAll(content, "\n", ""), "\r", "")
	raw, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return "", fmt.Errorf("decoding base64 content: %w", err)
	}
	return string(raw), nil
}
