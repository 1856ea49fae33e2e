package tools

import (
	"context"
	"errors"
	"testing"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// recordingSink captures mock and attachment pushes for assertions.
type recordingSink struct {
	mocksPushed  int
	mocksRemoved int
	attachments  [][]byte
}

func (s *recordingSink) PushImageMock(width, height int) func() {
	s.mocksPushed++
	return func() { s.mocksRemoved++ }
}

func (s *recordingSink) PushAttachment(image []byte) {
	s.attachments = append(s.attachments, image)
}

func testTool(name string, execute func(ctx context.Context, params map[string]any, tc Context) (Output, error)) Tool {
	return Tool{
		Name:    name,
		Summary: "Testing.",
		Parameters: mcptypes.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"value": map[string]any{"type": "string"}},
			Required:   []string{"value"},
		},
		Execute: execute,
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	registry := NewRegistry(nil)

	_, err := registry.Dispatch(context.Background(), "nope", nil, Context{}, nil)

	var callErr *ToolCallError
	if !errors.As(err, &callErr) {
		t.Fatalf("expected ToolCallError, got %v", err)
	}
}

func TestDispatchMissingRequiredParameter(t *testing.T) {
	executed := false
	registry := NewRegistry(nil, testTool("echo", func(ctx context.Context, params map[string]any, tc Context) (Output, error) {
		executed = true
		return Output{}, nil
	}))

	_, err := registry.Dispatch(context.Background(), "echo", map[string]any{}, Context{}, nil)

	var callErr *ToolCallError
	if !errors.As(err, &callErr) {
		t.Fatalf("expected ToolCallError, got %v", err)
	}
	if executed {
		t.Error("execute ran despite failed validation")
	}
}

func TestDispatchWrapsExecutionError(t *testing.T) {
	boom := errors.New("boom")
	registry := NewRegistry(nil, testTool("echo", func(ctx context.Context, params map[string]any, tc Context) (Output, error) {
		return Output{}, boom
	}))

	_, err := registry.Dispatch(context.Background(), "echo", map[string]any{"value": "x"}, Context{}, nil)

	var execErr *ToolExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ToolExecutionError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Error("expected wrapped error to unwrap to the cause")
	}
}

func TestDispatchMockLifecycle(t *testing.T) {
	tool := testTool("gen", func(ctx context.Context, params map[string]any, tc Context) (Output, error) {
		return Output{Images: [][]byte{{1, 2, 3}}}, nil
	})
	tool.MockOutput = []ImageMock{{
		Width:  MockDim{Param: "width", Default: floatPtr(512)},
		Height: MockDim{Param: "height", Default: floatPtr(512)},
	}}

	registry := NewRegistry(nil, tool)
	sink := &recordingSink{}

	_, err := registry.Dispatch(context.Background(), "gen", map[string]any{"value": "x"}, Context{}, sink)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sink.mocksPushed != 1 {
		t.Errorf("expected 1 mock pushed, got %d", sink.mocksPushed)
	}
	if sink.mocksRemoved != 1 {
		t.Errorf("expected mock removed after execute, got %d removals", sink.mocksRemoved)
	}
	if len(sink.attachments) != 1 {
		t.Errorf("expected 1 attachment, got %d", len(sink.attachments))
	}
}

func TestDispatchMockRemovedOnFailure(t *testing.T) {
	tool := testTool("gen", func(ctx context.Context, params map[string]any, tc Context) (Output, error) {
		return Output{}, errors.New("backend down")
	})
	tool.MockOutput = []ImageMock{{
		Width:  MockDim{Literal: 256},
		Height: MockDim{Literal: 256},
	}}

	registry := NewRegistry(nil, tool)
	sink := &recordingSink{}

	_, err := registry.Dispatch(context.Background(), "gen", map[string]any{"value": "x"}, Context{}, sink)
	if err == nil {
		t.Fatal("expected execution error")
	}
	if sink.mocksRemoved != sink.mocksPushed {
		t.Errorf("mock leaked on failure: %d pushed, %d removed", sink.mocksPushed, sink.mocksRemoved)
	}
}

func TestDispatchSkipsUnresolvableMock(t *testing.T) {
	tool := testTool("gen", func(ctx context.Context, params map[string]any, tc Context) (Output, error) {
		return Output{}, nil
	})
	tool.MockOutput = []ImageMock{{
		Width:  MockDim{Param: "width"}, // no default, not in params
		Height: MockDim{Literal: 512},
	}}

	registry := NewRegistry(nil, tool)
	sink := &recordingSink{}

	_, err := registry.Dispatch(context.Background(), "gen", map[string]any{"value": "x"}, Context{}, sink)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sink.mocksPushed != 0 {
		t.Errorf("expected unresolvable mock to be skipped, got %d pushes", sink.mocksPushed)
	}
}

func TestDispatchSkipsNaNMockDimension(t *testing.T) {
	tool := testTool("gen", func(ctx context.Context, params map[string]any, tc Context) (Output, error) {
		return Output{}, nil
	})
	tool.MockOutput = []ImageMock{{
		Width:  MockDim{Param: "width"},
		Height: MockDim{Literal: 512},
	}}

	registry := NewRegistry(nil, tool)
	sink := &recordingSink{}

	params := map[string]any{"value": "x", "width": "not-a-number"}
	if _, err := registry.Dispatch(context.Background(), "gen", params, Context{}, sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sink.mocksPushed != 0 {
		t.Errorf("expected NaN mock to be hidden, got %d pushes", sink.mocksPushed)
	}
}

func TestSupportedFiltersByPredicate(t *testing.T) {
	always := testTool("always", nil)
	never := testTool("never", nil)
	never.IsSupported = func(ctx context.Context, sc SupportContext) (bool, error) {
		return false, nil
	}
	failing := testTool("failing", nil)
	failing.IsSupported = func(ctx context.Context, sc SupportContext) (bool, error) {
		return false, errors.New("probe failed")
	}

	registry := NewRegistry(nil, always, never, failing)

	supported := registry.Supported(context.Background(), SupportContext{Model: "test"})
	if len(supported) != 1 || supported[0].Name != "always" {
		t.Errorf("expected only the unconditional tool, got %v", supported)
	}
}

func TestMockDimResolve(t *testing.T) {
	tests := []struct {
		name   string
		dim    MockDim
		params map[string]any
		want   float64
		ok     bool
	}{
		{"literal", MockDim{Literal: 256}, nil, 256, true},
		{"param number", MockDim{Param: "w"}, map[string]any{"w": 640.0}, 640, true},
		{"param string", MockDim{Param: "w"}, map[string]any{"w": "320"}, 320, true},
		{"default fallback", MockDim{Param: "w", Default: floatPtr(512)}, map[string]any{}, 512, true},
		{"missing no default", MockDim{Param: "w"}, map[string]any{}, 0, false},
		{"unparseable", MockDim{Param: "w"}, map[string]any{"w": "abc"}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.dim.Resolve(tt.params)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Resolve() = (%f, %v), want (%f, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}
