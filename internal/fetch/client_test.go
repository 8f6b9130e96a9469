package fetch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/smith-horn/skillsmith/internal/logging"
	"github.com/smith-horn/skillsmith/internal/skill"
)

// newTestClient builds a Client pointed at an httptest server, bypassing the
// SSRF-guarded dialer (loopback test servers would otherwise be blocked,
// which is exactly the production behavior we want but not what the test
// needs to exercise here).
func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	cfg := Config{BaseURL: srv.URL, MaxRetries: 2}.withDefaults()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	cfg.AllowedHosts = []string{u.Hostname()}
	return &Client{
		cfg:     cfg,
		http:    srv.Client(),
		limiter: rate.NewLimiter(rate.Limit(1000), 10),
		logger:  logging.Get(logging.CategoryFetch),
	}
}

func TestFetchDocumentDecodesBase64Content(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/skills/contents/SKILL.md", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{
			"content":  base64.StdEncoding.EncodeToString([]byte("# Hello\nskill body")),
			"encoding": "base64",
			"sha":      "abc123",
		}
		json.NewEncoder(w).Encode(body)
	})
	mux.HandleFunc("/repos/acme/skills", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"stargazers_count": 42,
			"license":          map[string]string{"spdx_id": "MIT"},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv)
	content, meta, err := c.FetchDocument(context.Background(), "acme/skills", "SKILL.md", "")
	require.NoError(t, err)
	assert.Equal(t, "# Hello\nskill body", string(content))
	assert.Equal(t, "abc123", meta.UpstreamRevision)
	assert.Equal(t, 42, meta.Signals.Stars)
}

func TestFetchDocumentNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/skills/contents/missing.md", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv)
	_, _, err := c.FetchDocument(context.Background(), "acme/skills", "missing.md", "")
	require.Error(t, err)
	var se *skill.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, skill.KindNotFound, se.Kind)
}

func TestFetchDocumentRateLimitedSurfacesAfterRetries(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/skills/contents/SKILL.md", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "60")
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", "9999999999")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := c.FetchDocument(ctx, "acme/skills", "SKILL.md", "")
	require.Error(t, err)
	var se *skill.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, skill.KindRateLimited, se.Kind)
}

func TestSearchCandidatesPaginatesAndAdvancesQuery(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/search/code", func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"total_count": 1,
			"items": []map[string]interface{}{
				{"path": "SKILL.md", "repository": map[string]string{"full_name": "acme/skills"}},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv)
	page, err := c.SearchCandidates(context.Background(), SearchFilters{Topics: []string{"agent-skill"}, PerPage: 30}, Cursor{})
	require.NoError(t, err)
	require.Len(t, page.Candidates, 1)
	assert.Equal(t, "acme/skills", page.Candidates[0].RepoID)
	assert.Equal(t, 1, page.NextCursor.QueryIndex, "single short page should advance to the next query")
}

func TestCursorRoundTrip(t *testing.T) {
	c := Cursor{QueryIndex: 2, Page: 5}
	decoded, err := DecodeCursor(c.Encode())
	require.NoError(t, err)
	assert.Equal(t, c, decoded)
}

func TestDecodeCursorEmptyStringIsZeroValue(t *testing.T) {
	c, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Equal(t, Cursor{}, c)
}
