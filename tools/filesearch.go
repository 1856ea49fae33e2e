package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"ollmui/rag"
)

// literalMatchScore ranks a plain substring hit between weak and strong
// embedding matches.
const literalMatchScore = 0.75

// NewFileSearchTool searches uploaded documents by embedding similarity,
// boosted by literal substring matches, and extracts the relevant pieces
// with a small summarizer model.
func NewFileSearchTool(embedder rag.Embedder, summarizer Summarizer) Tool {
	return Tool{
		Name:    "file_search",
		Summary: "Searching inside a document.",
		Description: "Search for relevant information inside an uploaded document. Should be used when you need to reference " +
			"a document to answer one of the user's questions, requests, or tasks. You must generate multiple search queries " +
			"that capture different ways the relevant information might appear in the document, including synonyms, paraphrases, " +
			"and related concepts. This helps ensure semantic search can find the most relevant chunks.",
		Parameters: mcptypes.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"document_id": map[string]any{
					"type":        "number",
					"description": "The document id to search for the provided query or queries.",
				},
				"query": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
					"description": "The user's question or topic to search for in the document. You should generate around 5 " +
						"semantically varied queries that cover different ways the relevant information might appear. Queries " +
						"should focus on meaning rather than exact wording, and avoid including instructions or filler text. " +
						"These queries will be used for embedding-based search.",
				},
			},
			Required: []string{"document_id", "query"},
		},

		IsSupported: func(ctx context.Context, sc SupportContext) (bool, error) {
			return embedder != nil && summarizer != nil, nil
		},

		Execute: func(ctx context.Context, params map[string]any, tc Context) (Output, error) {
			document, ok := documentParam(params, tc)
			if !ok {
				return Output{Data: "Invalid `document_id` provided. Please check if the user has provided a document with that id."}, nil
			}

			queries := stringListParam(params["query"])
			if len(queries) == 0 {
				return Output{}, &ToolCallError{Reason: "parameter 'query' must be a string or list of strings"}
			}

			var matches []rag.QueryResult
			for _, query := range queries {
				vector, err := embedder.Embed(ctx, query)
				if err != nil {
					return Output{}, err
				}
				matches = append(matches, document.Vectors.Query(vector, 5)...)

				for i, chunk := range document.Chunks {
					if strings.Contains(chunk, query) {
						matches = append(matches, rag.QueryResult{Key: i, Score: literalMatchScore})
					}
				}
			}

			sort.SliceStable(matches, func(a, b int) bool {
				return matches[a].Score > matches[b].Score
			})

			var top []string
			seen := make(map[int]bool)
			for _, match := range matches {
				if len(top) >= 8 {
					break
				}
				if seen[match.Key] {
					continue
				}
				seen[match.Key] = true
				top = append(top, document.Chunks[match.Key])
			}

			extracted, err := summarizer.Complete(ctx, buildFileSearchPrompt(tc.LastMessage, top))
			if err != nil {
				return Output{}, err
			}

			return Output{Data: extracted}, nil
		},
	}
}

// documentParam resolves the document_id parameter against the session's
// uploaded documents.
func documentParam(params map[string]any, tc Context) (*rag.Document, bool) {
	id, ok := toNumber(params["document_id"])
	if !ok {
		return nil, false
	}
	index := int(id)
	if index < 0 || index >= len(tc.Documents) {
		return nil, false
	}
	return tc.Documents[index], true
}

// stringListParam accepts both dialects' shapes: a JSON array of strings
// from structured calls, or a single string from the XML dialect.
func stringListParam(value any) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		var list []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				list = append(list, s)
			}
		}
		return list
	default:
		return nil
	}
}

func buildFileSearchPrompt(lastMessage string, chunks []string) string {
	var numbered strings.Builder
	for i, chunk := range chunks {
		fmt.Fprintf(&numbered, "%d. %s\n", i+1, chunk)
	}

	return fmt.Sprintf(`You are an assistant that extracts relevant information from document chunks.

User query:
"%s"

Document chunks:
%s
Instructions:
1. Identify only the information in the chunks that directly relates to the user's query.
2. Ignore unrelated content; do not invent answers.
3. Provide the extracted information in a concise, structured manner suitable for the main model to use.
4. If no chunks contain relevant information, respond with "No relevant information found."

Output only the extracted information.`, lastMessage, numbered.String())
}
