// Package fetch implements the rate-limited, auth-aware upstream HTTP
// client (C1): candidate search, document retrieval, and rate-limit
// introspection, with an SSRF guard and exponential backoff on transient
// upstream failures.
package fetch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/smith-horn/skillsmith/internal/logging"
	"github.com/smith-horn/skillsmith/internal/skill"
)

// AuthMode names how a request is authenticated, in priority order.
type AuthMode int

const (
	AuthNone AuthMode = iota
	AuthStaticToken
	AuthInstallationToken
)

// Credentials carries the optional GitHub App installation credentials and
// static token. Authentication selector priority: installation-token
// exchange (app credentials) > static token > unauthenticated.
type Credentials struct {
	AppID               string
	AppInstallationID   string
	AppPrivateKeyPath   string
	StaticToken         string
}

func (c Credentials) mode() AuthMode {
	if c.AppID != "" && c.AppInstallationID != "" && c.AppPrivateKeyPath != "" {
		return AuthInstallationToken
	}
	if c.StaticToken != "" {
		return AuthStaticToken
	}
	return AuthNone
}

// RateLimit mirrors the upstream provider's rate-limit window.
type RateLimit struct {
	Limit         int
	Remaining     int
	ResetAt       time.Time
	Authenticated bool
}

// RepositorySignals are the popularity/activity indicators scoring consumes.
type RepositorySignals struct {
	Stars             int
	Forks             int
	Watchers          int
	LastUpdated       time.Time
	ContributorCount  int
	License           string
	OpenIssueCount    int
	RecentCommitCount int
}

// DocumentMetadata accompanies a fetched document's raw bytes.
type DocumentMetadata struct {
	UpstreamRevision string
	Repository       string
	Path             string
	Signals          RepositorySignals
}

// Candidate is one (repository, path) pair surfaced by search_candidates.
type Candidate struct {
	RepoID string
	Path   string
}

// SearchFilters narrows the fixed set of indexing queries used to discover
// candidates (topic tags, filename patterns).
type SearchFilters struct {
	Topics        []string
	FilenamePattern string
	PerPage       int
}

// Cursor is an opaque, restartable pagination position.
type Cursor struct {
	QueryIndex int    `json:"query_index"`
	Page       int    `json:"page"`
}

func (c Cursor) Encode() string {
	b, _ := json.Marshal(c)
	return base64.URLEncoding.EncodeToString(b)
}

// DecodeCursor parses an opaque cursor string. An empty string yields the
// zero cursor (start from the beginning).
func DecodeCursor(s string) (Cursor, error) {
	if s == "" {
		return Cursor{}, nil
	}
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid cursor: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, fmt.Errorf("invalid cursor: %w", err)
	}
	return c, nil
}

// SearchPage is one page of candidates plus the cursor to resume after it.
type SearchPage struct {
	Candidates []Candidate
	NextCursor Cursor
	Done       bool
}

// Config configures a Client.
type Config struct {
	BaseURL         string // defaults to https://api.github.com
	RequestTimeout  time.Duration
	MaxRetries      int
	RateLimitMargin int // requests held back below the remaining budget
	AllowedHosts    []string
	Credentials     Credentials
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.github.com"
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.RateLimitMargin <= 0 {
		c.RateLimitMargin = 50
	}
	if len(c.AllowedHosts) == 0 {
		c.AllowedHosts = []string{"github.com", "raw.githubusercontent.com", "api.github.com"}
	}
	return c
}

// Client is the fetch client (C1).
type Client struct {
	cfg        Config
	http       *http.Client
	limiter    *rate.Limiter
	logger     *zap.SugaredLogger
	lastLimit  RateLimit
}

// New constructs a Client with an SSRF-guarded transport.
func New(cfg Config) *Client {
	cfg = cfg.withDefaults()
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	transport := &http.Transport{
		DialContext: guardDialContext(dialer),
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.RequestTimeout, Transport: transport},
		limiter: rate.NewLimiter(rate.Limit(2), 5),
		logger:  logging.Get(logging.CategoryFetch),
	}
}

func (c *Client) hostAllowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	for _, allowed := range c.cfg.AllowedHosts {
		if host == allowed {
			return true
		}
	}
	return false
}

func (c *Client) authHeader() (string, string, bool) {
	switch c.cfg.Credentials.mode() {
	case AuthInstallationToken:
		// Installation token exchange requires signing a JWT with the app's
		// private key and calling the installations access_tokens endpoint;
		// abstracted behind exchangeInstallationToken so the request path
		// below is agnostic to how the bearer token was obtained.
		token, err := exchangeInstallationToken(c.cfg.Credentials)
		if err != nil {
			c.logger.Warnf("installation token exchange failed, falling back: %v", err)
			break
		}
		return "Authorization", "Bearer " + token, true
	case AuthStaticToken:
		return "Authorization", "token " + c.cfg.Credentials.StaticToken, true
	}
	return "", "", false
}

func (c *Client) doRequest(ctx context.Context, method, rawURL string) (*http.Response, error) {
	if !c.hostAllowed(rawURL) {
		return nil, skill.NewError(skill.KindBlockedHost, "host not in allowlist", "url", rawURL)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var resp *http.Response
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("User-Agent", "skillsmith/1.0")
		if key, val, ok := c.authHeader(); ok {
			req.Header.Set(key, val)
		}

		r, err := c.http.Do(req)
		if err != nil {
			var blocked *skill.Error
			if asBlockedHost(err, &blocked) {
				return backoff.Permanent(blocked)
			}
			return err // transient network error, retry
		}

		c.updateRateLimit(r.Header)

		switch {
		case r.StatusCode == http.StatusNotFound:
			r.Body.Close()
			return backoff.Permanent(skill.NewError(skill.KindNotFound, "resource not found", "url", rawURL))
		case r.StatusCode == http.StatusTooManyRequests, r.StatusCode == http.StatusForbidden && c.lastLimit.Remaining == 0:
			r.Body.Close()
			return skill.NewError(skill.KindRateLimited, "rate limited", "url", rawURL)
		case r.StatusCode >= 500:
			r.Body.Close()
			return fmt.Errorf("upstream %d", r.StatusCode)
		case r.StatusCode >= 400:
			r.Body.Close()
			return backoff.Permanent(fmt.Errorf("upstream %d", r.StatusCode))
		}
		resp = r
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.RandomizationFactor = 0.5

	boff := backoff.WithMaxRetries(b, uint64(c.cfg.MaxRetries))
	if err := backoff.Retry(withJitteredNotify(op, c.logger), backoff.WithContext(boff, ctx)); err != nil {
		return nil, classifyRetryExhausted(err)
	}
	return resp, nil
}

func withJitteredNotify(op backoff.Operation, logger *zap.SugaredLogger) backoff.Operation {
	return func() error {
		err := op()
		if err != nil {
			jitter := time.Duration(rand.Int63n(int64(100 * time.Millisecond)))
			time.Sleep(jitter)
		}
		return err
	}
}

func classifyRetryExhausted(err error) error {
	var se *skill.Error
	if asErr(err, &se) {
		return se
	}
	return skill.NewError(skill.KindUpstreamUnavailable, err.Error())
}

func asBlockedHost(err error, target **skill.Error) bool {
	return asErr(err, target) && (*target).Kind == skill.KindBlockedHost
}

func asErr(err error, target **skill.Error) bool {
	for err != nil {
		if se, ok := err.(*skill.Error); ok {
			*target = se
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func (c *Client) updateRateLimit(h http.Header) {
	limit, _ := strconv.Atoi(h.Get("X-RateLimit-Limit"))
	remaining, _ := strconv.Atoi(h.Get("X-RateLimit-Remaining"))
	resetUnix, _ := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64)
	if limit == 0 {
		return
	}
	c.lastLimit = RateLimit{
		Limit:         limit,
		Remaining:     remaining,
		ResetAt:       time.Unix(resetUnix, 0),
		Authenticated: c.cfg.Credentials.mode() != AuthNone,
	}
	if remaining < c.cfg.RateLimitMargin {
		c.limiter.SetLimit(rate.Limit(0.2))
	}
}

// GetRateLimit returns the last observed rate-limit window.
func (c *Client) GetRateLimit() RateLimit {
	return c.lastLimit
}

// FetchDocument retrieves a single file's content and repository signals.
func (c *Client) FetchDocument(ctx context.Context, repoID, path, revision string) ([]byte, DocumentMetadata, error) {
	ref := revision
	if ref == "" {
		ref = "HEAD"
	}
	rawURL := fmt.Sprintf("%s/repos/%s/contents/%s?ref=%s", c.cfg.BaseURL, repoID, path, url.QueryEscape(ref))

	resp, err := c.doRequest(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, DocumentMetadata{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Content string `json:"content"`
		Encoding string `json:"encoding"`
		SHA     string `json:"sha"`
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, DocumentMetadata{}, err
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, DocumentMetadata{}, fmt.Errorf("decode content response: %w", err)
	}

	var content []byte
	if payload.Encoding == "base64" {
		content, err = base64.StdEncoding.DecodeString(strings.ReplaceAll(payload.Content, "\n", ""))
		if err != nil {
			return nil, DocumentMetadata{}, fmt.Errorf("decode base64 content: %w", err)
		}
	} else {
		content = []byte(payload.Content)
	}

	signals, err := c.fetchRepositorySignals(ctx, repoID)
	if err != nil {
		c.logger.Warnf("failed to fetch repository signals for %s: %v", repoID, err)
	}

	return content, DocumentMetadata{
		UpstreamRevision: payload.SHA,
		Repository:       repoID,
		Path:             path,
		Signals:          signals,
	}, nil
}

func (c *Client) fetchRepositorySignals(ctx context.Context, repoID string) (RepositorySignals, error) {
	rawURL := fmt.Sprintf("%s/repos/%s", c.cfg.BaseURL, repoID)
	resp, err := c.doRequest(ctx, http.MethodGet, rawURL)
	if err != nil {
		return RepositorySignals{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		StargazersCount int    `json:"stargazers_count"`
		ForksCount      int    `json:"forks_count"`
		WatchersCount   int    `json:"watchers_count"`
		UpdatedAt       time.Time `json:"updated_at"`
		OpenIssuesCount int    `json:"open_issues_count"`
		License         struct {
			SPDXID string `json:"spdx_id"`
		} `json:"license"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return RepositorySignals{}, err
	}
	return RepositorySignals{
		Stars:          payload.StargazersCount,
		Forks:          payload.ForksCount,
		Watchers:       payload.WatchersCount,
		LastUpdated:    payload.UpdatedAt,
		License:        payload.License.SPDXID,
		OpenIssueCount: payload.OpenIssuesCount,
	}, nil
}

// defaultQueries is the fixed set of indexing queries searched in order.
func (c *Client) defaultQueries(filters SearchFilters) []string {
	pattern := filters.FilenamePattern
	if pattern == "" {
		pattern = "SKILL.md"
	}
	queries := make([]string, 0, len(filters.Topics)+1)
	for _, topic := range filters.Topics {
		queries = append(queries, fmt.Sprintf("filename:%s topic:%s", pattern, topic))
	}
	queries = append(queries, fmt.Sprintf("filename:%s", pattern))
	return queries
}

// SearchCandidates returns one page of candidates starting at cursor,
// resuming a prior search using a fixed, ordered set of indexing queries.
func (c *Client) SearchCandidates(ctx context.Context, filters SearchFilters, cursor Cursor) (SearchPage, error) {
	queries := c.defaultQueries(filters)
	if cursor.QueryIndex >= len(queries) {
		return SearchPage{Done: true}, nil
	}

	perPage := filters.PerPage
	if perPage <= 0 {
		perPage = 30
	}
	page := cursor.Page
	if page <= 0 {
		page = 1
	}

	rawURL := fmt.Sprintf("%s/search/code?q=%s&per_page=%d&page=%d",
		c.cfg.BaseURL, url.QueryEscape(queries[cursor.QueryIndex]), perPage, page)

	resp, err := c.doRequest(ctx, http.MethodGet, rawURL)
	if err != nil {
		return SearchPage{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		TotalCount int `json:"total_count"`
		Items      []struct {
			Path       string `json:"path"`
			Repository struct {
				FullName string `json:"full_name"`
			} `json:"repository"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return SearchPage{}, fmt.Errorf("decode search response: %w", err)
	}

	candidates := make([]Candidate, 0, len(payload.Items))
	for _, item := range payload.Items {
		candidates = append(candidates, Candidate{RepoID: item.Repository.FullName, Path: item.Path})
	}

	next := Cursor{QueryIndex: cursor.QueryIndex, Page: page + 1}
	done := len(payload.Items) < perPage
	if done {
		next = Cursor{QueryIndex: cursor.QueryIndex + 1, Page: 1}
		done = next.QueryIndex >= len(queries)
	}

	return SearchPage{Candidates: candidates, NextCursor: next, Done: done}, nil
}
