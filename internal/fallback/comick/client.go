// Package comick implements the Comick fallback catalog source.
package comick

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tsundoku/internal/catalog"
	"tsundoku/internal/logging"
	"tsundoku/internal/services"
)

const component = "comick"

// Client queries the Comick REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Comick client.
func New(baseURL string, timeoutSeconds int, logger *slog.Logger) *Client {
	timeout := time.Duration(timeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger(logger, component),
	}
}

// Name identifies the source in candidate provenance.
func (c *Client) Name() string {
	return component
}

type comicData struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	MDTitles      []altTitle `json:"md_titles"`
	Status        int        `json:"status"`
	LastChapter   float64    `json:"last_chapter"`
	ContentRating string     `json:"content_rating"`
}

type altTitle struct {
	Title string `json:"title"`
	Lang  string `json:"lang"`
}

// Search runs a title search and converts the hits to catalog entries.
func (c *Client) Search(ctx context.Context, title string, limit int) ([]catalog.CatalogEntry, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, services.Wrap(services.ErrValidation, component, "search", "title must not be empty", nil)
	}
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{}
	params.Set("q", title)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("type", "comic")

	endpoint := c.baseURL + "/v1.0/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, component, "search", "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		if ctx.Err() != nil {
			return nil, services.Wrap(services.ErrCanceled, component, "search", "request", ctx.Err())
		}
		return nil, services.Wrap(services.ErrTransient, component, "search", "request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, services.Wrap(services.ErrTransient, component, "search",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var payload []comicData
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, services.Wrap(services.ErrValidation, component, "search", "decode response", err)
	}

	entries := make([]catalog.CatalogEntry, 0, len(payload))
	for _, comic := range payload {
		entries = append(entries, comic.toCatalogEntry())
	}
	c.logger.Debug("fallback search complete",
		logging.String("title", title),
		logging.Int("result_count", len(entries)),
		logging.Duration("latency", latency))
	return entries, nil
}

func (d comicData) toCatalogEntry() catalog.CatalogEntry {
	entry := catalog.CatalogEntry{
		ID:       d.ID,
		Format:   catalog.FormatManga,
		Status:   comicStatus(d.Status),
		Chapters: int(d.LastChapter),
		IsAdult:  d.ContentRating == "erotica",
	}
	entry.Title.English = d.Title
	for _, alt := range d.MDTitles {
		switch {
		case alt.Lang == "ja-ro" && entry.Title.Romaji == "":
			entry.Title.Romaji = alt.Title
		case alt.Lang == "ja" && entry.Title.Native == "":
			entry.Title.Native = alt.Title
		case alt.Title != "":
			entry.Synonyms = append(entry.Synonyms, alt.Title)
		}
	}
	return entry
}

func comicStatus(status int) string {
	switch status {
	case 1:
		return "RELEASING"
	case 2:
		return "FINISHED"
	case 3:
		return "CANCELLED"
	case 4:
		return "HIATUS"
	default:
		return ""
	}
}
