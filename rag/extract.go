package rag

import (
	"bytes"
	"fmt"
	"net/url"

	readability "github.com/go-shiori/go-readability"
)

// Extractor turns an uploaded file into embeddable chunks. Extractors are
// keyed by lowercase file extension, dot included.
type Extractor func(name string, content []byte) ([]string, error)

// NewTextExtractor chunks a plain-text upload.
func NewTextExtractor(chunker *Chunker) Extractor {
	return func(name string, content []byte) ([]string, error) {
		chunks := chunker.ChunkText(string(content))
		if len(chunks) == 0 {
			return nil, fmt.Errorf("document '%s' contains no text", name)
		}
		return chunks, nil
	}
}

// NewHTMLExtractor strips an HTML upload down to its readable text before
// chunking it.
func NewHTMLExtractor(chunker *Chunker) Extractor {
	return func(name string, content []byte) ([]string, error) {
		article, err := readability.FromReader(bytes.NewReader(content), &url.URL{Path: name})
		if err != nil {
			return nil, fmt.Errorf("extracting readable text from '%s': %w", name, err)
		}

		chunks := chunker.ChunkText(article.TextContent)
		if len(chunks) == 0 {
			return nil, fmt.Errorf("document '%s' contains no readable text", name)
		}
		return chunks, nil
	}
}

// DefaultExtractors wires the built-in extractors over one chunker.
func DefaultExtractors(chunker *Chunker) map[string]Extractor {
	text := NewTextExtractor(chunker)
	html := NewHTMLExtractor(chunker)

	return map[string]Extractor{
		".txt":  text,
		".md":   text,
		".html": html,
		".htm":  html,
	}
}
