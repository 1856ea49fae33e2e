// Package tools is the static catalogue of capabilities a model may
// invoke during a turn: each tool declares a machine-readable parameter
// schema, optional placeholder output shown while it runs, an optional
// support predicate, and an execution function. Dispatch, validation and
// the mock lifecycle live in Registry.
package tools

import (
	"context"
	"encoding/json"
	"math"
	"strconv"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"ollmui/rag"
)

// Tool declares one invocable capability. Name is the stable key used in
// both structured tool-call payloads and the embedded XML dialect.
type Tool struct {
	Name        string
	Summary     string // short gerund phrase shown while the tool runs
	Description string // full text sent to the model
	Parameters  mcptypes.ToolInputSchema

	// MockOutput describes placeholder fragments pushed before Execute
	// runs and removed once it settles.
	MockOutput []ImageMock

	// IsSupported gates availability; a nil predicate means always
	// enabled. Polled once per model-metadata change.
	IsSupported func(ctx context.Context, sc SupportContext) (bool, error)

	Execute func(ctx context.Context, params map[string]any, tc Context) (Output, error)
}

// MCPTool exposes the declaration in the schema currency providers consume.
func (t Tool) MCPTool() mcptypes.Tool {
	return mcptypes.Tool{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: t.Parameters,
	}
}

// SupportContext carries what support predicates may inspect about the
// currently selected model.
type SupportContext struct {
	Model    string
	Tools    bool // model natively supports structured tool calling
	Thinking bool // model emits a reasoning trace
}

// Context is handed to every Execute call.
type Context struct {
	Model       string // active model identifier
	LastMessage string // the user message that started this generation
	Documents   []*rag.Document

	// FreeModel asks the active provider to evict a model from backend
	// memory. Best-effort; used to reclaim device memory before heavy
	// side work like image generation.
	FreeModel func(ctx context.Context, model string) error
}

// Output is the tool result contract: Data is serialized as pretty JSON
// into the native transcript; Images become attachment fragments in the
// display transcript.
type Output struct {
	Data   any
	Images [][]byte
}

// Sink receives display-side fragments produced while a tool call runs.
type Sink interface {
	// PushImageMock shows an image placeholder and returns its remover.
	PushImageMock(width, height int) (remove func())
	// PushAttachment appends a produced image to the assistant output.
	PushAttachment(image []byte)
}

// Summarizer runs a prompt through a small helper model. Tools that
// condense fetched pages or document chunks depend on it.
type Summarizer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ToolCallError marks a malformed invocation: unknown tool, missing
// required parameter, or an unparseable tool block. Execute never runs
// when one of these is raised.
type ToolCallError struct {
	Reason string
}

func (e *ToolCallError) Error() string {
	return "model produced invalid tool call (" + e.Reason + ")"
}

// ToolExecutionError wraps a failure inside a tool's Execute.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return "tool '" + e.Tool + "' failed: " + e.Err.Error()
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// ImageMock describes an image placeholder whose dimensions resolve from
// the call parameters.
type ImageMock struct {
	Width  MockDim
	Height MockDim
}

// MockDim resolves to a number one of three ways: a literal value, a
// parameter name to read, or a parameter name with a fallback default.
type MockDim struct {
	Literal float64
	Param   string   // when set, read this parameter instead of Literal
	Default *float64 // fallback when Param is absent from the call
}

// Resolve returns the dimension value, or ok=false when it cannot be
// turned into a number.
func (d MockDim) Resolve(params map[string]any) (float64, bool) {
	if d.Param == "" {
		return d.Literal, true
	}
	value, present := params[d.Param]
	if !present {
		if d.Default != nil {
			return *d.Default, true
		}
		return 0, false
	}
	return toNumber(value)
}

// toNumber coerces the loosely typed parameter values both dialects
// produce: JSON numbers from structured calls, strings from XML.
func toNumber(value any) (float64, bool) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toString(value any) (string, bool) {
	s, ok := value.(string)
	return s, ok
}

func floatPtr(f float64) *float64 { return &f }
