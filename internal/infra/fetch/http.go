package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/minhct/harvesterd/internal/core/domain"
)

// Config holds the scraper service client settings.
type Config struct {
	BaseURL  string        `yaml:"base_url"`
	APIToken string        `yaml:"api_token"`
	Timeout  time.Duration `yaml:"timeout"`
}

// HTTPFetcher implements Fetcher against the scraper service's REST API.
type HTTPFetcher struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

// NewHTTPFetcher creates a fetcher speaking to the scraper service.
func NewHTTPFetcher(cfg Config) *HTTPFetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{
		baseURL:  cfg.BaseURL,
		apiToken: cfg.APIToken,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (f *HTTPFetcher) FetchBookmarks(ctx context.Context, profile *domain.Profile, maxItems int) ([]Item, error) {
	return f.fetchItems(ctx, profile, "/v1/bookmarks", url.Values{}, maxItems)
}

func (f *HTTPFetcher) FetchHomeTimeline(ctx context.Context, profile *domain.Profile, maxItems int) ([]Item, error) {
	return f.fetchItems(ctx, profile, "/v1/timeline/home", url.Values{}, maxItems)
}

func (f *HTTPFetcher) FetchLists(ctx context.Context, profile *domain.Profile) ([]List, error) {
	body, err := f.get(ctx, profile, "/v1/lists", url.Values{})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Lists []List `json:"lists"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewNetworkError("parse lists response", err)
	}
	return resp.Lists, nil
}

func (f *HTTPFetcher) FetchListTimeline(ctx context.Context, profile *domain.Profile, listID string, maxItems int) ([]Item, error) {
	params := url.Values{}
	params.Set("list_id", listID)
	return f.fetchItems(ctx, profile, "/v1/timeline/list", params, maxItems)
}

func (f *HTTPFetcher) fetchItems(ctx context.Context, profile *domain.Profile, path string, params url.Values, maxItems int) ([]Item, error) {
	if maxItems > 0 {
		params.Set("max_items", strconv.Itoa(maxItems))
	}

	body, err := f.get(ctx, profile, path, params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Items []Item `json:"items"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewNetworkError("parse items response", err)
	}
	return resp.Items, nil
}

// get performs one authenticated GET and maps error statuses onto the
// processing error taxonomy: 401/403 are credential failures, 429 is a
// rate limit, everything else (and transport errors) is a network error.
func (f *HTTPFetcher) get(ctx context.Context, profile *domain.Profile, path string, params url.Values) ([]byte, error) {
	params.Set("handle", profile.Handle)

	endpoint := f.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, domain.NewNetworkError("create request", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiToken)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewNetworkError(fmt.Sprintf("fetch %s", path), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, domain.NewCredentialError(fmt.Sprintf("scraper rejected credentials (%d) for %s", resp.StatusCode, profile.Handle))
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := resp.Header.Get("Retry-After")
		return nil, domain.NewRateLimitError(fmt.Sprintf("rate limited (429), retry after: %s", retryAfter))
	case resp.StatusCode != http.StatusOK:
		return nil, domain.NewNetworkError(fmt.Sprintf("http %d from %s", resp.StatusCode, path), errors.New(http.StatusText(resp.StatusCode)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewNetworkError("read response", err)
	}
	return body, nil
}
