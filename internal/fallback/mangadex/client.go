// Package mangadex implements the MangaDex fallback catalog source.
package mangadex

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
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

const component = "mangadex"

// Client queries the MangaDex REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a MangaDex client.
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

type mangaListResponse struct {
	Result string      `json:"result"`
	Data   []mangaData `json:"data"`
	Total  int         `json:"total"`
}

type mangaData struct {
	ID         string          `json:"id"`
	Attributes mangaAttributes `json:"attributes"`
}

type mangaAttributes struct {
	Title         map[string]string   `json:"title"`
	AltTitles     []map[string]string `json:"altTitles"`
	Status        string              `json:"status"`
	ContentRating string              `json:"contentRating"`
	LastChapter   string              `json:"lastChapter"`
	LastVolume    string              `json:"lastVolume"`
	Tags          []tag               `json:"tags"`
}

type tag struct {
	Attributes tagAttributes `json:"attributes"`
}

type tagAttributes struct {
	Name  map[string]string `json:"name"`
	Group string            `json:"group"`
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
	params.Set("title", title)
	params.Set("limit", strconv.Itoa(limit))
	params.Add("contentRating[]", "safe")
	params.Add("contentRating[]", "suggestive")
	params.Add("contentRating[]", "erotica")

	endpoint := c.baseURL + "/manga?" + params.Encode()
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

	var payload mangaListResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, services.Wrap(services.ErrValidation, component, "search", "decode response", err)
	}

	entries := make([]catalog.CatalogEntry, 0, len(payload.Data))
	for _, m := range payload.Data {
		entries = append(entries, m.toCatalogEntry())
	}
	c.logger.Debug("fallback search complete",
		logging.String("title", title),
		logging.Int("result_count", len(entries)),
		logging.Duration("latency", latency))
	return entries, nil
}

func (m mangaData) toCatalogEntry() catalog.CatalogEntry {
	attrs := m.Attributes
	entry := catalog.CatalogEntry{
		ID:      syntheticID(m.ID),
		Format:  catalog.FormatManga,
		Status:  strings.ToUpper(attrs.Status),
		IsAdult: attrs.ContentRating == "erotica" || attrs.ContentRating == "pornographic",
	}
	entry.Title.English = attrs.Title["en"]
	entry.Title.Romaji = firstAltTitle(attrs.AltTitles, "ja-ro")
	entry.Title.Native = firstAltTitle(attrs.AltTitles, "ja")
	for _, alt := range attrs.AltTitles {
		for lang, t := range alt {
			if lang == "ja-ro" || lang == "ja" || t == "" {
				continue
			}
			entry.Synonyms = append(entry.Synonyms, t)
		}
	}
	if entry.Title.English == "" {
		// Some records only carry a romanized primary title.
		for _, t := range attrs.Title {
			entry.Title.English = t
			break
		}
	}
	entry.Chapters = parseCount(attrs.LastChapter)
	entry.Volumes = parseCount(attrs.LastVolume)
	for _, tg := range attrs.Tags {
		if tg.Attributes.Group == "format" && tg.Attributes.Name["en"] == "Oneshot" {
			entry.Format = catalog.FormatOneShot
			break
		}
	}
	return entry
}

func firstAltTitle(altTitles []map[string]string, lang string) string {
	for _, alt := range altTitles {
		if t := alt[lang]; t != "" {
			return t
		}
	}
	return ""
}

func parseCount(raw string) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || f < 0 {
		return 0
	}
	return int(f)
}

// syntheticID derives a stable int64 id from the API's UUID so dedup across
// repeated fallback hits works against the integer-keyed data model. The high
// bit is cleared to keep the id positive.
func syntheticID(nativeID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(nativeID))
	return int64(h.Sum64() &^ (1 << 63))
}
