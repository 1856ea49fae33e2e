package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// BraveSearchBackend queries the Brave web search API.
type BraveSearchBackend struct {
	client *http.Client
	apiKey string
}

const braveSearchEndpoint = "https://api.search.brave.com/res/v1/web/search"

func NewBraveSearchBackend(client *http.Client, apiKey string) *BraveSearchBackend {
	if client == nil {
		client = http.DefaultClient
	}
	return &BraveSearchBackend{client: client, apiKey: apiKey}
}

type braveWebResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

type braveResponse struct {
	Web *struct {
		Results []braveWebResult `json:"results"`
	} `json:"web"`
}

func (b *BraveSearchBackend) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	if count > 0 {
		params.Set("count", strconv.Itoa(count))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, braveSearchEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave search returned status %d", resp.StatusCode)
	}

	var decoded braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding brave search response: %w", err)
	}

	var results []SearchResult
	if decoded.Web != nil {
		for _, result := range decoded.Web.Results {
			results = append(results, SearchResult{
				Title:   result.Title,
				URL:     result.URL,
				Snippet: result.Description,
			})
		}
	}
	return results, nil
}
