package chat

import (
	"context"

	"ollmui/tools"
)

// Provider abstracts an LLM backend. The interface lives in the chat
// package (not the provider package) so implementations can import chat
// without a cycle, in the same way the engine consumes it.
type Provider interface {
	// ListModels enumerates the models this backend offers.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// ListRunningModels enumerates models currently resident in backend
	// memory.
	ListRunningModels(ctx context.Context) ([]string, error)

	// QueryModel fetches static capability metadata for one model.
	QueryModel(ctx context.Context, model string) (ModelMetadata, error)

	// FreeModel asks the backend to evict a model from memory.
	// Best-effort; remote backends may treat it as a no-op.
	FreeModel(ctx context.Context, model string) error

	// Generate runs one streaming generation, invoking onChunk for every
	// text delta, thinking delta, or structured tool-call batch, in wire
	// order. An error returned by onChunk stops the stream and is
	// propagated unchanged. Cancellation through ctx surfaces as
	// ErrAborted, never as a generic failure. Providers without
	// reasoning support ignore thinking silently.
	Generate(ctx context.Context, model string, messages []NativeMessage, toolset []tools.Tool, onChunk StreamFunc, thinking ThinkingMode) error

	// Translate streams a translation of text. sourceLang may be empty
	// to mean "detect".
	Translate(ctx context.Context, model, text, sourceLang, targetLang string, onChunk StreamFunc) error
}

// StreamFunc receives stream chunks in wire order.
type StreamFunc func(Chunk) error

// ChunkKind discriminates stream chunks; the three kinds are mutually
// exclusive per chunk.
type ChunkKind int

const (
	ChunkText ChunkKind = iota
	ChunkThinking
	ChunkToolCalls
)

// Chunk is one streamed event from a generation.
type Chunk struct {
	Kind      ChunkKind
	Content   string
	ToolCalls []ToolCall
}

// ToolCall is the normalized structured tool request shared by every
// provider dialect.
type ToolCall struct {
	Name      string
	Arguments map[string]any
}

// ThinkingMode hints how much reasoning the model should emit.
type ThinkingMode string

const (
	ThinkingUnset  ThinkingMode = ""
	ThinkingOff    ThinkingMode = "off"
	ThinkingOn     ThinkingMode = "on"
	ThinkingLow    ThinkingMode = "low"
	ThinkingMedium ThinkingMode = "medium"
	ThinkingHigh   ThinkingMode = "high"
)

// ModelInfo identifies one model offered by a provider.
type ModelInfo struct {
	Name     string
	Size     int64
	Provider string // provider id, e.g. "ollama"
}

// ModelCapabilities are the capability flags the engine branches on.
type ModelCapabilities struct {
	Tools    bool
	Thinking bool
}

// ModelDetails are informational backend-reported attributes.
type ModelDetails struct {
	Family            string
	ParameterSize     string
	QuantizationLevel string
}

// ModelMetadata is the static metadata for one model.
type ModelMetadata struct {
	Capabilities ModelCapabilities
	Details      ModelDetails
}
