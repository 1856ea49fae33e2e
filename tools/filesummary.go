package tools

import (
	"context"
	"fmt"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// NewFileSummaryTool summarizes a whole uploaded document with a small
// summarizer model. Only meant for explicit summary requests; the
// description steers the model towards file_search otherwise.
func NewFileSummaryTool(summarizer Summarizer) Tool {
	return Tool{
		Name:    "file_summary",
		Summary: "Summarizing a document",
		Description: "Summarize an user uploaded document. Should only be used when the user explicitly asks for a document " +
			"summary. Do not summarize a document only when explicitly asked to, otherwise refer to the file_search tool.",
		Parameters: mcptypes.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"document_id": map[string]any{
					"type":        "number",
					"description": "The document id to summarize.",
				},
			},
			Required: []string{"document_id"},
		},

		IsSupported: func(ctx context.Context, sc SupportContext) (bool, error) {
			return summarizer != nil, nil
		},

		Execute: func(ctx context.Context, params map[string]any, tc Context) (Output, error) {
			document, ok := documentParam(params, tc)
			if !ok {
				return Output{Data: "Invalid `document_id` provided. Please check if the user has provided a document with that id."}, nil
			}

			stitched := strings.Join(document.Chunks, "")
			prompt := fmt.Sprintf(`Summarize the following document in english, keeping important facts and information. Do not leave out important information like task numbers or markers. Respond ONLY with the summary. Don't reaffirm or provide any other commentary.

Document:
%s`, stitched)

			summary, err := summarizer.Complete(ctx, prompt)
			if err != nil {
				return Output{}, err
			}

			return Output{Data: summary}, nil
		},
	}
}
