package rag

import "strings"

// Chunker splits plain text into overlapping segments for embedding.
// PDF uploads arrive pre-chunked per page; this covers text uploads.
type Chunker struct {
	ChunkSize int // target runes per chunk
	Overlap   int // runes shared between neighboring chunks
}

func NewChunker(chunkSize, overlap int) *Chunker {
	return &Chunker{ChunkSize: chunkSize, Overlap: overlap}
}

// ChunkText splits text into chunks with overlap, slicing on runes so
// multi-byte characters never split mid-sequence.
func (c *Chunker) ChunkText(text string) []string {
	var chunks []string
	runes := []rune(text)

	step := c.ChunkSize - c.Overlap
	if step < 1 {
		step = 1
	}

	for i := 0; i < len(runes); i += step {
		end := i + c.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}

		if chunk := strings.TrimSpace(string(runes[i:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end == len(runes) {
			break
		}
	}

	return chunks
}
