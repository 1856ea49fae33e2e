package chat

import (
	"context"
	"strings"
)

// ModelSummarizer runs one-shot prompts through a small helper model,
// serving the tools that condense fetched pages and documents.
type ModelSummarizer struct {
	Provider Provider
	Model    string
}

// Complete collects a full non-streaming answer. Thinking output is
// discarded; only the answer text is returned.
func (s *ModelSummarizer) Complete(ctx context.Context, prompt string) (string, error) {
	messages := []NativeMessage{{Role: RoleUser, Content: prompt}}

	var out strings.Builder
	err := s.Provider.Generate(ctx, s.Model, messages, nil, func(chunk Chunk) error {
		if chunk.Kind == ChunkText {
			out.WriteString(chunk.Content)
		}
		return nil
	}, ThinkingOff)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(out.String()), nil
}
