// Package anilist implements the GraphQL client for the primary catalog:
// paginated title search, batched multi-title search, and id-batch fetches,
// all behind one shared rate permit pool.
package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"tsundoku/internal/catalog"
	"tsundoku/internal/config"
	"tsundoku/internal/logging"
	"tsundoku/internal/services"
)

const (
	component = "anilist"

	maxRetries   = 3
	initialDelay = 1 * time.Second
	maxDelay     = 30 * time.Second

	// IDBatchLimit is the API's cap on id_in filter size per request.
	IDBatchLimit = 50
)

const mediaFields = `
id
title {
	english
	romaji
	native
}
synonyms
format
status
chapters
volumes
isAdult
coverImage {
	large
	medium
}`

// PageResult is one page of search results together with its pagination
// metadata.
type PageResult struct {
	Entries  []catalog.CatalogEntry
	PageInfo PageInfo
}

// Searcher defines the catalog operations the orchestrators consume.
type Searcher interface {
	SearchPage(ctx context.Context, title string, page int) (*PageResult, error)
	SearchBatched(ctx context.Context, titles []string) (map[string][]catalog.CatalogEntry, error)
	FetchByIDs(ctx context.Context, ids []int64) ([]catalog.CatalogEntry, error)
	BudgetHint() int
	PerPage() int
}

var _ Searcher = (*Client)(nil)

// Client provides access to the AniList GraphQL API. All request paths share
// one rate limiter so concurrent searches draw from the same permit pool.
type Client struct {
	baseURL    string
	token      string
	perPage    int
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger

	mu         sync.Mutex
	budgetHint int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates an AniList client from configuration.
func New(cfg config.AniList, logger *slog.Logger, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, component, "new", "base url required", nil)
	}
	perPage := cfg.PerPage
	if perPage <= 0 {
		perPage = 25
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 90
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      strings.TrimSpace(cfg.Token),
		perPage:    perPage,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 3),
		logger:     logging.NewComponentLogger(logger, component),
		budgetHint: -1,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// PerPage returns the configured page size.
func (c *Client) PerPage() int {
	return c.perPage
}

// BudgetHint returns the most recent X-RateLimit-Remaining value seen on any
// response, or -1 when no response has carried one yet. Callers use it to
// stretch inter-group delays when the budget runs low.
func (c *Client) BudgetHint() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.budgetHint
}

// SearchPage runs one page of a title search. A response without pagination
// metadata is rejected as malformed rather than treated as a final page.
func (c *Client) SearchPage(ctx context.Context, title string, page int) (*PageResult, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, services.Wrap(services.ErrValidation, component, "search", "title must not be empty", nil)
	}
	if page < 1 {
		page = 1
	}

	query := fmt.Sprintf(`
query ($search: String, $page: Int, $perPage: Int) {
	Page(page: $page, perPage: $perPage) {
		pageInfo {
			total
			currentPage
			lastPage
			hasNextPage
			perPage
		}
		media(search: $search, type: MANGA) {%s
		}
	}
}`, indent(mediaFields, 3))

	variables := map[string]any{
		"search":  title,
		"page":    page,
		"perPage": c.perPage,
	}

	var result struct {
		Page pageData `json:"Page"`
	}
	if err := c.doRequest(ctx, "search", query, variables, &result); err != nil {
		return nil, err
	}
	if result.Page.PageInfo == nil {
		return nil, services.Wrap(services.ErrValidation, component, "search",
			fmt.Sprintf("page %d response missing pageInfo", page), nil)
	}
	return &PageResult{
		Entries:  toCatalogEntries(result.Page.Media),
		PageInfo: *result.Page.PageInfo,
	}, nil
}

// SearchBatched runs one search per title in a single request by aliasing a
// Page sub-query per title. The result maps each input title to its first
// page of media; titles with no results map to an empty slice. One round trip
// consumes one rate permit regardless of group size.
func (c *Client) SearchBatched(ctx context.Context, titles []string) (map[string][]catalog.CatalogEntry, error) {
	cleaned := make([]string, 0, len(titles))
	for _, t := range titles {
		if t = strings.TrimSpace(t); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		return map[string][]catalog.CatalogEntry{}, nil
	}

	var params, body strings.Builder
	variables := make(map[string]any, len(cleaned))
	for i, title := range cleaned {
		name := fmt.Sprintf("q%d", i)
		if i > 0 {
			params.WriteString(", ")
		}
		fmt.Fprintf(&params, "$%s: String", name)
		fmt.Fprintf(&body, `
	%s: Page(page: 1, perPage: %d) {
		media(search: $%s, type: MANGA) {%s
		}
	}`, name, c.perPage, name, indent(mediaFields, 3))
		variables[name] = title
	}
	query := fmt.Sprintf("query (%s) {%s\n}", params.String(), body.String())

	var result map[string]struct {
		Media []mediaData `json:"media"`
	}
	if err := c.doRequest(ctx, "search_batched", query, variables, &result); err != nil {
		return nil, err
	}

	out := make(map[string][]catalog.CatalogEntry, len(cleaned))
	for i, title := range cleaned {
		alias := fmt.Sprintf("q%d", i)
		out[title] = toCatalogEntries(result[alias].Media)
	}
	return out, nil
}

// FetchByIDs fetches catalog entries by id in one request. The caller is
// responsible for grouping; a group above the API cap is rejected outright.
func (c *Client) FetchByIDs(ctx context.Context, ids []int64) ([]catalog.CatalogEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > IDBatchLimit {
		return nil, services.Wrap(services.ErrValidation, component, "fetch_by_ids",
			fmt.Sprintf("%d ids exceeds per-request cap of %d", len(ids), IDBatchLimit), nil)
	}

	query := fmt.Sprintf(`
query ($ids: [Int]) {
	Page(page: 1, perPage: %d) {
		media(id_in: $ids, type: MANGA) {%s
		}
	}
}`, len(ids), indent(mediaFields, 3))

	var result struct {
		Page pageData `json:"Page"`
	}
	if err := c.doRequest(ctx, "fetch_by_ids", query, map[string]any{"ids": ids}, &result); err != nil {
		return nil, err
	}
	return toCatalogEntries(result.Page.Media), nil
}

// doRequest executes one GraphQL round trip: wait for a rate permit, POST,
// retry transient failures with backoff, honoring Retry-After when the server
// provides one.
func (c *Client) doRequest(ctx context.Context, operation, query string, variables map[string]any, result any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return services.Wrap(services.ErrValidation, component, operation, "marshal request", err)
	}

	var lastErr error
	delay := initialDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return services.Wrap(services.ErrCanceled, component, operation, "rate permit", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return services.Wrap(services.ErrValidation, component, operation, "build request", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		requestStart := time.Now()
		resp, err := c.httpClient.Do(req)
		latency := time.Since(requestStart)
		if err != nil {
			if ctx.Err() != nil {
				return services.Wrap(services.ErrCanceled, component, operation, "request", ctx.Err())
			}
			lastErr = err
			if attempt < maxRetries {
				c.logger.Warn("request failed, retrying",
					logging.String("operation", operation),
					logging.Int("attempt", attempt+1),
					logging.Duration("delay", delay),
					logging.Error(err))
				if err := sleepCtx(ctx, delay); err != nil {
					return services.Wrap(services.ErrCanceled, component, operation, "retry wait", err)
				}
				delay = min(delay*2, maxDelay)
				continue
			}
			break
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		c.recordBudget(resp.Header.Get("X-RateLimit-Remaining"))
		if readErr != nil {
			return services.Wrap(services.ErrTransient, component, operation, "read response", readErr)
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
			if retryableStatus(resp.StatusCode) && attempt < maxRetries {
				if after := parseRetryAfter(resp.Header.Get("Retry-After")); after > 0 {
					delay = after
				}
				c.logger.Warn("retryable status, backing off",
					logging.String("operation", operation),
					logging.Int("status", resp.StatusCode),
					logging.Int("attempt", attempt+1),
					logging.Duration("delay", delay))
				if err := sleepCtx(ctx, delay); err != nil {
					return services.Wrap(services.ErrCanceled, component, operation, "retry wait", err)
				}
				delay = min(delay*2, maxDelay)
				continue
			}
			marker := services.ErrTransient
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				marker = services.ErrValidation
			}
			return services.Wrap(marker, component, operation,
				fmt.Sprintf("http %d", resp.StatusCode), lastErr)
		}

		var envelope graphqlResponse
		if err := json.Unmarshal(respBody, &envelope); err != nil {
			return services.Wrap(services.ErrValidation, component, operation, "decode response", err)
		}
		if len(envelope.Errors) > 0 {
			msgs := make([]string, len(envelope.Errors))
			for i, e := range envelope.Errors {
				msgs[i] = e.Message
			}
			return services.Wrap(services.ErrValidation, component, operation,
				"graphql errors: "+strings.Join(msgs, "; "), nil)
		}
		if err := json.Unmarshal(envelope.Data, result); err != nil {
			return services.Wrap(services.ErrValidation, component, operation, "decode data", err)
		}

		c.logger.Debug("request complete",
			logging.String("operation", operation),
			logging.Duration("latency", latency))
		return nil
	}

	return services.Wrap(services.ErrTransient, component, operation,
		fmt.Sprintf("request failed after %d attempts", maxRetries+1), lastErr)
}

func (c *Client) recordBudget(remaining string) {
	n, err := strconv.Atoi(strings.TrimSpace(remaining))
	if err != nil {
		return
	}
	c.mu.Lock()
	c.budgetHint = n
	c.mu.Unlock()
}

func retryableStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

func parseRetryAfter(value string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func indent(block string, tabs int) string {
	prefix := strings.Repeat("\t", tabs)
	return strings.ReplaceAll(block, "\n", "\n"+prefix)
}
