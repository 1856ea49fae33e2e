package provider

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"ollmui/chat"
	"ollmui/tools"
)

// OpenAIProvider speaks to the OpenAI API (or any compatible endpoint)
// through the official SDK.
type OpenAIProvider struct {
	client openai.Client
}

// NewOpenAIProvider builds a client for baseURL. apiKey is required.
func NewOpenAIProvider(baseURL, apiKey string) (*OpenAIProvider, error) {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &OpenAIProvider{client: client}, nil
}

func (p *OpenAIProvider) ListModels(ctx context.Context) ([]chat.ModelInfo, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, backendErr("openai", "list models", err)
	}

	models := make([]chat.ModelInfo, 0, len(page.Data))
	for _, model := range page.Data {
		models = append(models, chat.ModelInfo{
			Name:     model.ID,
			Provider: "openai",
		})
	}
	return models, nil
}

// ListRunningModels reports nothing: hosted models have no residency the
// client could observe.
func (p *OpenAIProvider) ListRunningModels(ctx context.Context) ([]string, error) {
	return nil, nil
}

// QueryModel returns static capabilities: every chat model takes tools,
// and reasoning traces are not streamed by the API.
func (p *OpenAIProvider) QueryModel(ctx context.Context, model string) (chat.ModelMetadata, error) {
	return chat.ModelMetadata{
		Capabilities: chat.ModelCapabilities{Tools: true},
		Details:      chat.ModelDetails{Family: "openai"},
	}, nil
}

// FreeModel is a no-op; there is no memory to reclaim on a hosted API.
func (p *OpenAIProvider) FreeModel(ctx context.Context, model string) error {
	return nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, model string, messages []chat.NativeMessage, toolset []tools.Tool, onChunk chat.StreamFunc, thinking chat.ThinkingMode) error {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: convertToOpenAIMessages(messages),
	}
	if len(toolset) > 0 {
		params.Tools = tools.ConvertToOpenAI(toolset)
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	acc := openai.ChatCompletionAccumulator{}

	var batch []chat.ToolCall

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if call, ok := acc.JustFinishedToolCall(); ok {
			batch = append(batch, chat.ToolCall{
				Name:      call.Name,
				Arguments: tools.ParseToolArguments(call.Arguments),
			})
		}

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			if err := onChunk(chat.Chunk{Kind: chat.ChunkText, Content: chunk.Choices[0].Delta.Content}); err != nil {
				return err
			}
		}
	}

	if err := stream.Err(); err != nil {
		return normalizeAbort(fmt.Errorf("OpenAI streaming error: %w", err))
	}

	// Tool calls arrive interleaved with text; the engine expects one
	// batch, so they are delivered after the stream drains.
	if len(batch) > 0 {
		if err := onChunk(chat.Chunk{Kind: chat.ChunkToolCalls, ToolCalls: batch}); err != nil {
			return err
		}
	}

	return nil
}

func (p *OpenAIProvider) Translate(ctx context.Context, model, text, sourceLang, targetLang string, onChunk chat.StreamFunc) error {
	prompt, err := buildTranslatePrompt(text, sourceLang, targetLang)
	if err != nil {
		return err
	}

	messages := []chat.NativeMessage{{Role: chat.RoleUser, Content: prompt}}
	return p.Generate(ctx, model, messages, nil, onChunk, chat.ThinkingOff)
}

func convertToOpenAIMessages(messages []chat.NativeMessage) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, len(messages))

	for i, msg := range messages {
		switch msg.Role {
		case chat.RoleSystem:
			result[i] = openai.SystemMessage(msg.Content)
		case chat.RoleAssistant:
			result[i] = openai.AssistantMessage(msg.Content)
		case chat.RoleTool:
			// Fed back as a user message; the transcript carries no call
			// ids to pair a proper tool message with.
			result[i] = openai.UserMessage(fmt.Sprintf("The output of tool '%s':\n\n%s", msg.ToolName, msg.Content))
		default:
			result[i] = openai.UserMessage(msg.Content)
		}
	}

	return result
}
