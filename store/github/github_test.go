package github

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oriolbns/despesa/store"
)

func newTransport(t *testing.T, handler http.HandlerFunc) *Transport {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{Owner: "alice", Repo: "ledger", Branch: "main", Token: "tok"},
		WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
}

func TestFetch(t *testing.T) {
	tr := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/repos/alice/ledger/contents/expenses.json", r.URL.Path)
		require.Equal(t, "token tok", r.Header.Get("Authorization"))

		// GitHub wraps base64 at 60 columns.
		content := base64.StdEncoding.EncodeToString([]byte(`[{"id":"e1"}]`))
		wrapped := content[:8] + "\n" + content[8:]
		json.NewEncoder(w).Encode(map[string]string{
			"content": wrapped, "sha": "abc123", "encoding": "base64",
		})
	})

	content, tag, err := tr.Fetch(t.Context(), "expenses.json")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"e1"}]`, content)
	assert.Equal(t, "abc123", tag)
}

func TestFetchAbsent(t *testing.T) {
	tr := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, _, err := tr.Fetch(t.Context(), "expenses.json")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCommit(t *testing.T) {
	var gotBody commitRequest
	tr := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"content": map[string]string{"sha": "def456"},
		})
	})

	newTag, err := tr.Commit(t.Context(), "expenses.json", `[{"id":"e1"}]`, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "def456", newTag)
	assert.Equal(t, "abc123", gotBody.SHA)
	assert.Equal(t, "main", gotBody.Branch)

	decoded, err := base64.StdEncoding.DecodeString(gotBody.Content)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"e1"}]`, string(decoded))
}

func TestCommitCreateOmitsSHA(t *testing.T) {
	tr := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, hasSHA := raw["sha"]
		assert.False(t, hasSHA, "create must not send a sha field")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"content": map[string]string{"sha": "first"},
		})
	})

	newTag, err := tr.Commit(t.Context(), "settings.json", `{}`, "")
	require.NoError(t, err)
	assert.Equal(t, "first", newTag)
}

func TestStatusMapping(t *testing.T) {
	for _, tc := range []struct {
		name   string
		status int
		header http.Header
		want   error
	}{
		{"Unauthorized", http.StatusUnauthorized, nil, store.ErrAuth},
		{"Forbidden", http.StatusForbidden, nil, store.ErrPermission},
		{"ForbiddenRateLimit", http.StatusForbidden,
			http.Header{"X-Ratelimit-Remaining": []string{"0"}}, store.ErrRateLimited},
		{"Conflict", http.StatusConflict, nil, store.ErrConflict},
		{"StaleSHA", http.StatusUnprocessableEntity, nil, store.ErrConflict},
		{"RateLimited", http.StatusTooManyRequests, nil, store.ErrRateLimited},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tr := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
				for k, vs := range tc.header {
					for _, v := range vs {
						w.Header().Add(k, v)
					}
				}
				w.WriteHeader(tc.status)
			})

			_, err := tr.Commit(t.Context(), "expenses.json", "x", "tag")
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestRetryAfterHint(t *testing.T) {
	tr := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, _, err := tr.Fetch(t.Context(), "expenses.json")
	require.ErrorIs(t, err, store.ErrRateLimited)

	var rle *store.RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, 2*time.Minute, rle.RetryAfter)
}

func TestConnectivityFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	tr := New(Config{Owner: "alice", Repo: "ledger"}, WithBaseURL(srv.URL))
	_, _, err := tr.Fetch(t.Context(), "expenses.json")
	assert.ErrorIs(t, err, store.ErrConnectivity)
}
