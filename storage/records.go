package storage

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// SavedChat is the persisted form of one chat: the display transcript, the
// native transcript, the string pool both reference into, and the RAG
// documents uploaded to the chat. Content and thinking strings are stored
// as pool indices; decoding must resolve them before any other read.
type SavedChat struct {
	Messages   []SavedDisplayMessage `json:"messages"`
	Data       []SavedNativeMessage  `json:"data"`
	StringPool []string              `json:"stringPool"`
	Documents  []SavedDocument       `json:"documents"`
}

// SavedNativeMessage mirrors the model-facing transcript entry with string
// fields swapped for pool indices.
type SavedNativeMessage struct {
	ID        string          `json:"id"`
	Role      string          `json:"role"`
	Content   int             `json:"content"`
	Thinking  *int            `json:"thinking,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	ToolCalls []SavedToolCall `json:"tool_calls,omitempty"`
	Images    [][]byte        `json:"images,omitempty"`
}

type SavedToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// SavedDisplayMessage is a user or assistant entry of the display
// transcript. User entries carry Content (pool index) and Files; assistant
// entries carry Messages.
type SavedDisplayMessage struct {
	ID       string            `json:"id"`
	Role     string            `json:"role"`
	Content  *int              `json:"content,omitempty"`
	Files    []SavedFile       `json:"files,omitempty"`
	Messages []SavedSubMessage `json:"messages,omitempty"`
}

// SavedSubMessage is a flattened assistant output fragment, discriminated
// by Kind. Text fragments store their buffer as a pool index; attachments
// store their image as a data URL.
type SavedSubMessage struct {
	Kind string `json:"kind"`

	Content   *int  `json:"content,omitempty"`
	Thinking  bool  `json:"thinking,omitempty"`
	Finished  bool  `json:"finished,omitempty"`
	TimeStart int64 `json:"timeStart,omitempty"`
	TimeEnd   int64 `json:"timeEnd,omitempty"`

	Summary  string `json:"summary,omitempty"`
	ToolName string `json:"toolName,omitempty"`

	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`

	Attachment string `json:"attachment,omitempty"`

	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}

// SavedFile is a user upload. Content round-trips through base64 via
// encoding/json's []byte handling.
type SavedFile struct {
	Kind     string  `json:"kind"`
	Name     string  `json:"name,omitempty"`
	Content  []byte  `json:"content"`
	Progress float64 `json:"progress,omitempty"`
}

// SavedDocument persists a chunked RAG document and its vector index.
type SavedDocument struct {
	Name    string       `json:"name"`
	Chunks  []string     `json:"chunks"`
	Vectors SavedVectors `json:"vectors"`
}

// SavedVectors are parallel arrays: Keys[i] is the chunk index owning
// Vectors[i]. One chunk may own several vectors.
type SavedVectors struct {
	Keys    []int       `json:"keys"`
	Vectors [][]float32 `json:"vectors"`
}

// IndexEntry is one row of the chat index, kept separately from the chat
// records themselves.
type IndexEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Model    string `json:"model"`
	Provider string `json:"provider"`
}

// EncodeDataURL renders binary content as a data URL for persistence.
func EncodeDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL reverses EncodeDataURL.
func DecodeDataURL(url string) (mimeType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data URL")
	}
	mimeType, _ = strings.CutSuffix(meta, ";base64")
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode data URL payload: %w", err)
	}
	return mimeType, data, nil
}
