// Package rag holds the retrieval side of document-aware chats: chunked
// uploaded documents, the embedding similarity index over their chunks,
// and the embedding client used to populate it.
package rag

// Document is a named, chunked upload with a similarity index over
// per-chunk embeddings. It is created once at upload and immutable
// afterwards, except for index population during ingestion.
type Document struct {
	Name    string
	Chunks  []string
	Vectors *VectorIndex
}
