// Package provider holds the LLM backend implementations behind the
// chat.Provider interface: a local Ollama server plus the OpenAI and
// Anthropic APIs, and the factory that builds one from configuration.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"ollmui/chat"
	"ollmui/tools"
)

// ollamaContextWindow is the num_ctx sent with every chat request.
const ollamaContextWindow = 16_000

// OllamaProvider speaks to a local Ollama server through its official
// API client.
type OllamaProvider struct {
	client *api.Client
}

// NewOllamaProvider connects to the Ollama server at baseURL, defaulting
// to the standard local port.
func NewOllamaProvider(baseURL string) (*OllamaProvider, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	return &OllamaProvider{
		client: api.NewClient(parsedURL, http.DefaultClient),
	}, nil
}

func (p *OllamaProvider) ListModels(ctx context.Context) ([]chat.ModelInfo, error) {
	resp, err := p.client.List(ctx)
	if err != nil {
		return nil, backendErr("ollama", "list models", err)
	}

	models := make([]chat.ModelInfo, 0, len(resp.Models))
	for _, model := range resp.Models {
		models = append(models, chat.ModelInfo{
			Name:     model.Name,
			Size:     model.Size,
			Provider: "ollama",
		})
	}
	return models, nil
}

func (p *OllamaProvider) ListRunningModels(ctx context.Context) ([]string, error) {
	resp, err := p.client.ListRunning(ctx)
	if err != nil {
		return nil, backendErr("ollama", "list running models", err)
	}

	running := make([]string, 0, len(resp.Models))
	for _, model := range resp.Models {
		running = append(running, model.Model)
	}
	return running, nil
}

func (p *OllamaProvider) QueryModel(ctx context.Context, model string) (chat.ModelMetadata, error) {
	resp, err := p.client.Show(ctx, &api.ShowRequest{Model: model})
	if err != nil {
		return chat.ModelMetadata{}, backendErr("ollama", "query model "+model, err)
	}

	metadata := chat.ModelMetadata{
		Details: chat.ModelDetails{
			Family:            resp.Details.Family,
			ParameterSize:     resp.Details.ParameterSize,
			QuantizationLevel: resp.Details.QuantizationLevel,
		},
	}
	for _, capability := range resp.Capabilities {
		switch string(capability) {
		case "tools":
			metadata.Capabilities.Tools = true
		case "thinking":
			metadata.Capabilities.Thinking = true
		}
	}
	return metadata, nil
}

// FreeModel evicts a model by issuing an empty generation with zero
// keep-alive, then grants the server a moment to release memory.
func (p *OllamaProvider) FreeModel(ctx context.Context, model string) error {
	err := p.client.Generate(ctx, &api.GenerateRequest{
		Model:     model,
		KeepAlive: &api.Duration{Duration: 0},
	}, func(api.GenerateResponse) error { return nil })
	if err != nil {
		return backendErr("ollama", "free model "+model, err)
	}

	select {
	case <-time.After(time.Second):
		return nil
	case <-ctx.Done():
		return chat.ErrAborted
	}
}

func (p *OllamaProvider) Generate(ctx context.Context, model string, messages []chat.NativeMessage, toolset []tools.Tool, onChunk chat.StreamFunc, thinking chat.ThinkingMode) error {
	req := &api.ChatRequest{
		Model:    model,
		Messages: convertToOllamaMessages(messages),
		Stream:   boolPtr(true),
		Think:    convertThink(thinking),
		Options: map[string]any{
			"num_ctx": ollamaContextWindow,
		},
	}
	if len(toolset) > 0 {
		req.Tools = tools.ConvertToOllama(toolset)
	}

	err := p.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		if len(resp.Message.ToolCalls) > 0 {
			calls := make([]chat.ToolCall, 0, len(resp.Message.ToolCalls))
			for _, call := range resp.Message.ToolCalls {
				calls = append(calls, chat.ToolCall{
					Name:      call.Function.Name,
					Arguments: call.Function.Arguments,
				})
			}
			if err := onChunk(chat.Chunk{Kind: chat.ChunkToolCalls, ToolCalls: calls}); err != nil {
				return err
			}
		}

		if resp.Message.Content != "" {
			if err := onChunk(chat.Chunk{Kind: chat.ChunkText, Content: resp.Message.Content}); err != nil {
				return err
			}
		}

		if resp.Message.Thinking != "" {
			if err := onChunk(chat.Chunk{Kind: chat.ChunkThinking, Content: resp.Message.Thinking}); err != nil {
				return err
			}
		}

		return nil
	})
	return normalizeAbort(err)
}

func (p *OllamaProvider) Translate(ctx context.Context, model, text, sourceLang, targetLang string, onChunk chat.StreamFunc) error {
	prompt, err := buildTranslatePrompt(text, sourceLang, targetLang)
	if err != nil {
		return err
	}

	messages := []chat.NativeMessage{{Role: chat.RoleUser, Content: prompt}}
	return p.Generate(ctx, model, messages, nil, onChunk, chat.ThinkingOff)
}

func convertToOllamaMessages(messages []chat.NativeMessage) []api.Message {
	out := make([]api.Message, 0, len(messages))
	for _, msg := range messages {
		converted := api.Message{
			Role:     msg.Role,
			Content:  msg.Content,
			Thinking: msg.Thinking,
			ToolName: msg.ToolName,
		}
		for _, image := range msg.Images {
			converted.Images = append(converted.Images, api.ImageData(image))
		}
		for _, call := range msg.ToolCalls {
			converted.ToolCalls = append(converted.ToolCalls, api.ToolCall{
				Function: api.ToolCallFunction{
					Name:      call.Name,
					Arguments: api.ToolCallFunctionArguments(call.Arguments),
				},
			})
		}
		out = append(out, converted)
	}
	return out
}

// convertThink maps the thinking mode to Ollama's think value: a bool for
// plain on/off, a level string for graded models.
func convertThink(thinking chat.ThinkingMode) *api.ThinkValue {
	switch thinking {
	case chat.ThinkingUnset:
		return nil
	case chat.ThinkingOff:
		return &api.ThinkValue{Value: false}
	case chat.ThinkingOn:
		return &api.ThinkValue{Value: true}
	default:
		return &api.ThinkValue{Value: string(thinking)}
	}
}

func boolPtr(b bool) *bool { return &b }
