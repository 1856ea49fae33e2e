package tools

import (
	"context"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// SearchBackend is the external web-search collaborator.
type SearchBackend interface {
	Search(ctx context.Context, query string, count int) ([]SearchResult, error)
}

// SearchResult is one hit from a search backend.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// NewWebSearchTool queries backend and hands the raw results to the model.
func NewWebSearchTool(backend SearchBackend) Tool {
	return Tool{
		Name:    "web_search",
		Summary: "Searching the web.",
		Description: "Search the web for a search query. You should use the `web_fetch` tool to gather more information " +
			"on the search results' urls if the returned data is not enough.",
		Parameters: mcptypes.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The query to search for. Should follow web search best practices.",
				},
			},
			Required: []string{"query"},
		},

		MockOutput: []ImageMock{},

		IsSupported: func(ctx context.Context, sc SupportContext) (bool, error) {
			return backend != nil, nil
		},

		Execute: func(ctx context.Context, params map[string]any, tc Context) (Output, error) {
			query, ok := toString(params["query"])
			if !ok {
				return Output{}, &ToolCallError{Reason: "parameter 'query' must be a string"}
			}

			results, err := backend.Search(ctx, query, 8)
			if err != nil {
				return Output{}, err
			}

			return Output{Data: results}, nil
		},
	}
}
