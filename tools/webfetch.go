package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	readability "github.com/go-shiori/go-readability"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// webFetchContentLimit bounds how much extracted page text is handed to
// the summarizer model.
const webFetchContentLimit = 48_000

// NewWebFetchTool fetches a page, extracts its readable content, and runs
// the caller's query over it with a small summarizer model. Fetch or
// extraction failures degrade to a plain failure message for the model
// rather than aborting the turn.
func NewWebFetchTool(client *http.Client, summarizer Summarizer) Tool {
	if client == nil {
		client = http.DefaultClient
	}

	return Tool{
		Name:        "web_fetch",
		Summary:     "Fetching a website.",
		Description: "Get the summary of a website's contents.",
		Parameters: mcptypes.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "The url of the website.",
				},
				"query": map[string]any{
					"type":        "string",
					"description": "An optional query a summarizer LLM will execute on the website's content.",
				},
			},
			Required: []string{"url"},
		},

		IsSupported: func(ctx context.Context, sc SupportContext) (bool, error) {
			return summarizer != nil, nil
		},

		Execute: func(ctx context.Context, params map[string]any, tc Context) (Output, error) {
			pageURL, ok := toString(params["url"])
			if !ok {
				return Output{}, &ToolCallError{Reason: "parameter 'url' must be a string"}
			}
			query, _ := toString(params["query"])
			if query == "" {
				query = "Summarize this web page."
			}

			title, content, err := fetchReadable(ctx, client, pageURL)
			if err != nil {
				return Output{Data: "Fetching website failed."}, nil
			}

			if len(content) > webFetchContentLimit {
				content = content[:webFetchContentLimit]
			}

			extracted, err := summarizer.Complete(ctx, buildWebFetchPrompt(query, content))
			if err != nil {
				return Output{}, err
			}

			return Output{
				Data: map[string]any{
					"url":     pageURL,
					"title":   title,
					"content": extracted,
				},
			}, nil
		},
	}
}

func fetchReadable(ctx context.Context, client *http.Client, pageURL string) (title, content string, err error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return "", "", fmt.Errorf("failed to extract page content: %w", err)
	}

	title = article.Title
	if title == "" {
		title = "Unnamed Page"
	}
	return title, article.TextContent, nil
}

func buildWebFetchPrompt(query, content string) string {
	return fmt.Sprintf(`You are an assistant that applies the user's query to a large document.

User query:
"%s"

Document:
%s

Instructions:
1. Identify only the information in the document that directly relates to the user's query.
2. Ignore unrelated content; do not invent answers.
3. Provide the extracted information in a concise, structured manner suitable for the main model to use.

Output only the extracted information.`, query, content)
}
