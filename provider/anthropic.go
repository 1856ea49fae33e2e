package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"ollmui/chat"
	"ollmui/tools"
)

// anthropicMaxTokens caps each response; the API requires an explicit
// limit.
const anthropicMaxTokens = 4096

// AnthropicProvider speaks to the Anthropic API through the official SDK.
type AnthropicProvider struct {
	client *anthropic.Client
}

// NewAnthropicProvider builds a client for baseURL. apiKey is required.
func NewAnthropicProvider(baseURL, apiKey string) (*AnthropicProvider, error) {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	client := anthropic.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &AnthropicProvider{client: &client}, nil
}

// ListModels returns a curated list; the API has no model enumeration
// endpoint.
func (p *AnthropicProvider) ListModels(ctx context.Context) ([]chat.ModelInfo, error) {
	models := []anthropic.Model{
		anthropic.ModelClaudeSonnet4_5_20250929,
		anthropic.ModelClaude3_5Haiku20241022,
		anthropic.ModelClaude_3_Opus_20240229,
		anthropic.ModelClaude_3_Haiku_20240307,
	}

	result := make([]chat.ModelInfo, 0, len(models))
	for _, model := range models {
		result = append(result, chat.ModelInfo{
			Name:     string(model),
			Provider: "anthropic",
		})
	}
	return result, nil
}

// ListRunningModels reports nothing; hosted models have no residency.
func (p *AnthropicProvider) ListRunningModels(ctx context.Context) ([]string, error) {
	return nil, nil
}

// QueryModel returns static capabilities; every Claude model takes tools
// and produces a reasoning trace when asked.
func (p *AnthropicProvider) QueryModel(ctx context.Context, model string) (chat.ModelMetadata, error) {
	return chat.ModelMetadata{
		Capabilities: chat.ModelCapabilities{Tools: true, Thinking: true},
		Details:      chat.ModelDetails{Family: "claude"},
	}, nil
}

// FreeModel is a no-op; there is no memory to reclaim on a hosted API.
func (p *AnthropicProvider) FreeModel(ctx context.Context, model string) error {
	return nil
}

func (p *AnthropicProvider) Generate(ctx context.Context, model string, messages []chat.NativeMessage, toolset []tools.Tool, onChunk chat.StreamFunc, thinking chat.ThinkingMode) error {
	anthropicMessages, systemBlocks := convertToAnthropicMessages(messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  anthropicMessages,
		MaxTokens: anthropicMaxTokens,
	}
	if len(systemBlocks) > 0 {
		params.System = systemBlocks
	}
	if len(toolset) > 0 {
		params.Tools = tools.ConvertToAnthropic(toolset)
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	msg := anthropic.Message{}

	for stream.Next() {
		event := stream.Current()
		if err := msg.Accumulate(event); err != nil {
			return fmt.Errorf("error accumulating message: %w", err)
		}

		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if err := onChunk(chat.Chunk{Kind: chat.ChunkText, Content: deltaVariant.Text}); err != nil {
					return err
				}
			case anthropic.ThinkingDelta:
				if err := onChunk(chat.Chunk{Kind: chat.ChunkThinking, Content: deltaVariant.Thinking}); err != nil {
					return err
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return normalizeAbort(fmt.Errorf("Anthropic streaming error: %w", err))
	}

	if batch := extractAnthropicToolCalls(msg.Content); len(batch) > 0 {
		if err := onChunk(chat.Chunk{Kind: chat.ChunkToolCalls, ToolCalls: batch}); err != nil {
			return err
		}
	}

	return nil
}

func (p *AnthropicProvider) Translate(ctx context.Context, model, text, sourceLang, targetLang string, onChunk chat.StreamFunc) error {
	prompt, err := buildTranslatePrompt(text, sourceLang, targetLang)
	if err != nil {
		return err
	}

	messages := []chat.NativeMessage{{Role: chat.RoleUser, Content: prompt}}
	return p.Generate(ctx, model, messages, nil, onChunk, chat.ThinkingOff)
}

// convertToAnthropicMessages splits system content out into system blocks;
// the API takes it as a separate parameter.
func convertToAnthropicMessages(messages []chat.NativeMessage) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var systemBlocks []anthropic.TextBlockParam
	anthropicMsgs := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleSystem:
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: msg.Content})

		case chat.RoleAssistant:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))

		case chat.RoleTool:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewUserMessage(anthropic.NewTextBlock(
					fmt.Sprintf("The output of tool '%s':\n\n%s", msg.ToolName, msg.Content))))

		default:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	return anthropicMsgs, systemBlocks
}

func extractAnthropicToolCalls(content []anthropic.ContentBlockUnion) []chat.ToolCall {
	var calls []chat.ToolCall
	for _, block := range content {
		toolUse, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok {
			continue
		}

		var args map[string]any
		if err := json.Unmarshal(toolUse.Input, &args); err != nil {
			continue
		}

		calls = append(calls, chat.ToolCall{Name: toolUse.Name, Arguments: args})
	}
	return calls
}
