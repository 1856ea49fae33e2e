package tools

import (
	"context"
	"log"
)

// Registry is the catalogue tool calls dispatch through.
type Registry struct {
	tools  []Tool
	logger *log.Logger
}

// NewRegistry builds a registry over the given tools. logger may be nil.
func NewRegistry(logger *log.Logger, tools ...Tool) *Registry {
	return &Registry{tools: tools, logger: logger}
}

// All returns every registered tool regardless of support state.
func (r *Registry) All() []Tool {
	return r.tools
}

// Find looks a tool up by name.
func (r *Registry) Find(name string) (Tool, bool) {
	for _, tool := range r.tools {
		if tool.Name == name {
			return tool, true
		}
	}
	return Tool{}, false
}

// Supported polls each tool's support predicate against the current model
// and returns the enabled subset. Tools without a predicate are always
// enabled; a predicate error disables the tool for this poll.
func (r *Registry) Supported(ctx context.Context, sc SupportContext) []Tool {
	var supported []Tool
	for _, tool := range r.tools {
		if tool.IsSupported != nil {
			ok, err := tool.IsSupported(ctx, sc)
			if err != nil {
				if r.logger != nil {
					r.logger.Printf("[tools] support probe for %q failed: %v", tool.Name, err)
				}
				continue
			}
			if !ok {
				continue
			}
		}
		supported = append(supported, tool)
	}
	return supported
}

// Dispatch validates and runs one tool call.
//
// Order of operations: required-parameter validation, mock placeholder
// push, Execute, mock removal (success or failure — mocks never persist
// alongside or after the real result), attachment push. A mock whose
// dimensions cannot be resolved to a number is skipped with a warning
// rather than failing the call.
func (r *Registry) Dispatch(ctx context.Context, name string, params map[string]any, tc Context, sink Sink) (Output, error) {
	tool, ok := r.Find(name)
	if !ok {
		return Output{}, &ToolCallError{Reason: "unknown tool '" + name + "'"}
	}

	for _, required := range tool.Parameters.Required {
		if _, present := params[required]; !present {
			return Output{}, &ToolCallError{Reason: "missing required parameter '" + required + "'"}
		}
	}

	var removers []func()
	if sink != nil {
		for _, mock := range tool.MockOutput {
			width, okW := mock.Width.Resolve(params)
			height, okH := mock.Height.Resolve(params)
			if !okW || !okH {
				if r.logger != nil {
					r.logger.Printf("[tools] image mock for %q had unresolvable dimensions, hiding it", name)
				}
				continue
			}
			removers = append(removers, sink.PushImageMock(int(width), int(height)))
		}
	}

	out, err := tool.Execute(ctx, params, tc)

	for _, remove := range removers {
		remove()
	}

	if err != nil {
		return Output{}, &ToolExecutionError{Tool: name, Err: err}
	}

	if sink != nil {
		for _, image := range out.Images {
			sink.PushAttachment(image)
		}
	}

	return out, nil
}
