package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ollmui/tools"
)

// scriptedProvider plays back a fixed sequence of generation turns and
// records what the engine sent it.
type scriptedProvider struct {
	resident []string
	script   []func(onChunk StreamFunc) error

	calls     int
	messages  [][]NativeMessage
	toolsets  [][]tools.Tool
	thinkings []ThinkingMode
}

func (p *scriptedProvider) ListModels(ctx context.Context) ([]ModelInfo, error) { return nil, nil }

func (p *scriptedProvider) ListRunningModels(ctx context.Context) ([]string, error) {
	return p.resident, nil
}

func (p *scriptedProvider) QueryModel(ctx context.Context, model string) (ModelMetadata, error) {
	return ModelMetadata{}, nil
}

func (p *scriptedProvider) FreeModel(ctx context.Context, model string) error { return nil }

func (p *scriptedProvider) Translate(ctx context.Context, model, text, sourceLang, targetLang string, onChunk StreamFunc) error {
	return nil
}

func (p *scriptedProvider) Generate(ctx context.Context, model string, messages []NativeMessage, toolset []tools.Tool, onChunk StreamFunc, thinking ThinkingMode) error {
	p.messages = append(p.messages, messages)
	p.toolsets = append(p.toolsets, toolset)
	p.thinkings = append(p.thinkings, thinking)

	if p.calls >= len(p.script) {
		return errors.New("generation requested past end of script")
	}
	step := p.script[p.calls]
	p.calls++
	return step(onChunk)
}

// textTurn streams each part as one text chunk, honoring callback errors
// the way real providers do.
func textTurn(parts ...string) func(StreamFunc) error {
	return func(onChunk StreamFunc) error {
		for _, part := range parts {
			if err := onChunk(Chunk{Kind: ChunkText, Content: part}); err != nil {
				return err
			}
		}
		return nil
	}
}

func newTestEngine(p *scriptedProvider) *Engine {
	return &Engine{
		Provider: p,
		Registry: tools.NewRegistry(nil, tools.NewCalculatorTool()),
	}
}

func newTestSession(model string, caps ModelCapabilities) *Session {
	s := NewSession("test-chat", "test", model)
	s.SetModel(model, &ModelMetadata{Capabilities: caps})
	return s
}

func lastAssistant(t *testing.T, s *Session) *AssistantMessage {
	t.Helper()
	msgs := s.DisplayMessages()
	if len(msgs) == 0 {
		t.Fatal("display transcript is empty")
	}
	assistant, ok := msgs[len(msgs)-1].(*AssistantMessage)
	if !ok {
		t.Fatalf("last display message is %T, not an assistant message", msgs[len(msgs)-1])
	}
	return assistant
}

func findErrorSub(a *AssistantMessage) *ErrorSubMessage {
	for _, sub := range a.SubMessages() {
		if errSub, ok := sub.(*ErrorSubMessage); ok {
			return errSub
		}
	}
	return nil
}

func TestRunEmbeddedToolCall(t *testing.T) {
	block := `<tool><name>calculator</name><parameters><parameter name="expression">2 + 2</parameter></parameters></tool>`
	provider := &scriptedProvider{
		resident: []string{"llama3:8b"},
		script: []func(StreamFunc) error{
			textTurn("Let me compute.\n\n<tool><name>calculator</name>",
				`<parameters><parameter name="expression">2 + 2</parameter></parameters></tool>`),
			textTurn("The answer is 4."),
		},
	}
	engine := newTestEngine(provider)
	s := newTestSession("llama3:8b", ModelCapabilities{})

	if !engine.Run(context.Background(), s, "What is 2 + 2?", nil, nil) {
		t.Fatal("run refused to start")
	}

	assistant := lastAssistant(t, s)
	if assistant.State() != StateFinished {
		t.Errorf("assistant state = %q", assistant.State())
	}
	if errSub := findErrorSub(assistant); errSub != nil {
		t.Fatalf("unexpected error fragment: %s: %s", errSub.Title, errSub.Message)
	}

	subs := assistant.SubMessages()
	if len(subs) != 3 {
		t.Fatalf("expected prose, tool call and answer fragments, got %d", len(subs))
	}
	if text, ok := subs[0].(*TextSubMessage); !ok || text.Content != "Let me compute." {
		t.Errorf("prose fragment = %#v", subs[0])
	}
	if call, ok := subs[1].(*ToolCallSubMessage); !ok || call.ToolName != "calculator" {
		t.Errorf("tool call fragment = %#v", subs[1])
	} else if call.Summary != "Executing tool 'calculator'." {
		t.Errorf("summary = %q", call.Summary)
	}
	if text, ok := subs[2].(*TextSubMessage); !ok || text.Content != "The answer is 4." {
		t.Errorf("answer fragment = %#v", subs[2])
	}

	native := s.NativeMessages()
	if len(native) != 6 {
		t.Fatalf("expected 6 native messages, got %d", len(native))
	}
	if native[0].Role != RoleSystem {
		t.Errorf("native[0] role = %q", native[0].Role)
	}
	if !strings.Contains(native[0].Content, "calculator") {
		t.Error("system prompt for a non-native-tools model must describe the tools")
	}
	if native[1].Role != RoleUser || native[1].Content != "What is 2 + 2?" {
		t.Errorf("native[1] = %+v", native[1])
	}
	if native[2].Role != RoleAssistant || native[2].Content != "Let me compute." {
		t.Errorf("native[2] = %+v", native[2])
	}
	if native[3].Content != "```xml\n"+block+"\n```" {
		t.Errorf("native[3] content = %q", native[3].Content)
	}
	if native[4].Role != RoleUser ||
		!strings.Contains(native[4].Content, "The output of tool 'calculator'") ||
		!strings.Contains(native[4].Content, "The user cannot see this message.") ||
		!strings.Contains(native[4].Content, "```json\n4\n```") {
		t.Errorf("native[4] content = %q", native[4].Content)
	}
	if native[5].Role != RoleAssistant || native[5].Content != "The answer is 4." {
		t.Errorf("native[5] = %+v", native[5])
	}

	// tools go into the prompt, never onto the wire, for this model
	for i, toolset := range provider.toolsets {
		if len(toolset) != 0 {
			t.Errorf("generation %d carried %d wire tools", i, len(toolset))
		}
	}
}

func TestRunStructuredToolCalls(t *testing.T) {
	provider := &scriptedProvider{
		resident: []string{"qwen3:8b"},
		script: []func(StreamFunc) error{
			func(onChunk StreamFunc) error {
				if err := onChunk(Chunk{Kind: ChunkText, Content: "Checking."}); err != nil {
					return err
				}
				return onChunk(Chunk{
					Kind:      ChunkToolCalls,
					ToolCalls: []ToolCall{{Name: "calculator", Arguments: map[string]any{"expression": "3 * 3"}}},
				})
			},
			textTurn("Nine."),
		},
	}
	engine := newTestEngine(provider)
	s := newTestSession("qwen3:8b", ModelCapabilities{Tools: true})

	if !engine.Run(context.Background(), s, "Square three.", nil, nil) {
		t.Fatal("run refused to start")
	}

	assistant := lastAssistant(t, s)
	if errSub := findErrorSub(assistant); errSub != nil {
		t.Fatalf("unexpected error fragment: %s: %s", errSub.Title, errSub.Message)
	}

	subs := assistant.SubMessages()
	if len(subs) != 3 {
		t.Fatalf("expected 3 fragments, got %d", len(subs))
	}
	if call, ok := subs[1].(*ToolCallSubMessage); !ok || call.Summary != "Executing an arithmetic expression." {
		t.Errorf("tool call fragment = %#v", subs[1])
	}

	native := s.NativeMessages()
	if len(native) != 5 {
		t.Fatalf("expected 5 native messages, got %d", len(native))
	}
	if native[2].Role != RoleAssistant || len(native[2].ToolCalls) != 1 || native[2].Content != "Checking." {
		t.Errorf("native[2] = %+v", native[2])
	}
	if native[3].Role != RoleTool || native[3].ToolName != "calculator" || native[3].Content != "9" {
		t.Errorf("native[3] = %+v", native[3])
	}
	if native[4].Content != "Nine." {
		t.Errorf("native[4] = %+v", native[4])
	}

	// a native-tools model gets declarations on the wire
	if len(provider.toolsets[0]) != 1 {
		t.Errorf("expected 1 wire tool, got %d", len(provider.toolsets[0]))
	}
}

func TestRunStructuredBatchExecutesInOrder(t *testing.T) {
	provider := &scriptedProvider{
		resident: []string{"qwen3:8b"},
		script: []func(StreamFunc) error{
			func(onChunk StreamFunc) error {
				return onChunk(Chunk{
					Kind: ChunkToolCalls,
					ToolCalls: []ToolCall{
						{Name: "calculator", Arguments: map[string]any{"expression": "1 + 1"}},
						{Name: "calculator", Arguments: map[string]any{"expression": "2 + 2"}},
					},
				})
			},
			textTurn("Two and four."),
		},
	}
	engine := newTestEngine(provider)
	s := newTestSession("qwen3:8b", ModelCapabilities{Tools: true})

	if !engine.Run(context.Background(), s, "Add things.", nil, nil) {
		t.Fatal("run refused to start")
	}

	assistant := lastAssistant(t, s)
	if errSub := findErrorSub(assistant); errSub != nil {
		t.Fatalf("unexpected error fragment: %s: %s", errSub.Title, errSub.Message)
	}

	native := s.NativeMessages()
	if len(native) != 6 {
		t.Fatalf("expected 6 native messages, got %d", len(native))
	}
	if len(native[2].ToolCalls) != 2 {
		t.Fatalf("expected both calls on one assistant message, got %+v", native[2])
	}
	// results feed back in declared batch order
	if native[3].Role != RoleTool || native[3].Content != "2" {
		t.Errorf("native[3] = %+v", native[3])
	}
	if native[4].Role != RoleTool || native[4].Content != "4" {
		t.Errorf("native[4] = %+v", native[4])
	}
	if native[5].Content != "Two and four." {
		t.Errorf("native[5] = %+v", native[5])
	}

	toolSubs := 0
	for _, sub := range assistant.SubMessages() {
		if _, ok := sub.(*ToolCallSubMessage); ok {
			toolSubs++
		}
	}
	if toolSubs != 2 {
		t.Errorf("expected 2 tool call fragments, got %d", toolSubs)
	}
}

func TestRunAbortKeepsPartialAnswer(t *testing.T) {
	provider := &scriptedProvider{
		resident: []string{"llama3:8b"},
		script: []func(StreamFunc) error{
			func(onChunk StreamFunc) error {
				if err := onChunk(Chunk{Kind: ChunkText, Content: "partial "}); err != nil {
					return err
				}
				if err := onChunk(Chunk{Kind: ChunkText, Content: "answer"}); err != nil {
					return err
				}
				return ErrAborted
			},
		},
	}
	engine := newTestEngine(provider)
	s := newTestSession("llama3:8b", ModelCapabilities{})

	if !engine.Run(context.Background(), s, "Tell me everything.", nil, nil) {
		t.Fatal("run refused to start")
	}

	assistant := lastAssistant(t, s)
	if assistant.State() != StateFinished {
		t.Errorf("assistant state = %q", assistant.State())
	}
	if errSub := findErrorSub(assistant); errSub != nil {
		t.Error("an abort must not surface as an error fragment")
	}
	if s.ModelState() != ModelIdle {
		t.Errorf("model state = %q", s.ModelState())
	}

	native := s.NativeMessages()
	last := native[len(native)-1]
	if last.Role != RoleAssistant || last.Content != "partial answer" {
		t.Errorf("partial answer not committed: %+v", last)
	}
}

func TestRunReportsProviderFailure(t *testing.T) {
	provider := &scriptedProvider{
		resident: []string{"llama3:8b"},
		script: []func(StreamFunc) error{
			func(onChunk StreamFunc) error {
				if err := onChunk(Chunk{Kind: ChunkText, Content: "Half"}); err != nil {
					return err
				}
				return errors.New("backend exploded")
			},
		},
	}
	engine := newTestEngine(provider)
	s := newTestSession("llama3:8b", ModelCapabilities{})

	if !engine.Run(context.Background(), s, "Hi.", nil, nil) {
		t.Fatal("run refused to start")
	}

	assistant := lastAssistant(t, s)
	errSub := findErrorSub(assistant)
	if errSub == nil {
		t.Fatal("expected an error fragment")
	}
	if errSub.Title != "Internal Error" {
		t.Errorf("title = %q", errSub.Title)
	}
	if !strings.Contains(errSub.Message, "backend exploded") {
		t.Errorf("message = %q", errSub.Message)
	}
	if assistant.State() != StateFinished {
		t.Errorf("assistant state = %q", assistant.State())
	}

	native := s.NativeMessages()
	last := native[len(native)-1]
	if last.Role != RoleAssistant || last.Content != "Half" {
		t.Errorf("partial answer not committed: %+v", last)
	}
}

func TestRunRejectsUnknownEmbeddedTool(t *testing.T) {
	provider := &scriptedProvider{
		resident: []string{"llama3:8b"},
		script: []func(StreamFunc) error{
			textTurn("<tool><name>bogus</name></tool>"),
		},
	}
	engine := newTestEngine(provider)
	s := newTestSession("llama3:8b", ModelCapabilities{})

	if !engine.Run(context.Background(), s, "Do the thing.", nil, nil) {
		t.Fatal("run refused to start")
	}

	assistant := lastAssistant(t, s)
	if errSub := findErrorSub(assistant); errSub == nil {
		t.Fatal("expected an error fragment for an unknown tool")
	}
	if assistant.State() != StateFinished {
		t.Errorf("assistant state = %q", assistant.State())
	}
}

func TestRunRefusesWithoutMetadata(t *testing.T) {
	engine := newTestEngine(&scriptedProvider{})
	s := NewSession("test-chat", "test", "llama3:8b")

	if engine.Run(context.Background(), s, "Hi.", nil, nil) {
		t.Fatal("run must refuse when model metadata is not loaded")
	}
	if len(s.DisplayMessages()) != 0 {
		t.Error("refused run must leave the transcript untouched")
	}
}

func TestRunRefusesWhileBusy(t *testing.T) {
	engine := newTestEngine(&scriptedProvider{})
	s := newTestSession("llama3:8b", ModelCapabilities{})

	if _, ok := s.beginRun(context.Background()); !ok {
		t.Fatal("failed to occupy the session")
	}
	defer s.endRun()

	if engine.Run(context.Background(), s, "Hi.", nil, nil) {
		t.Fatal("run must refuse while another run is in flight")
	}
}

func TestRerunReplaysExchange(t *testing.T) {
	provider := &scriptedProvider{
		resident: []string{"llama3:8b"},
		script: []func(StreamFunc) error{
			textTurn("First answer."),
			textTurn("Second answer."),
		},
	}
	engine := newTestEngine(provider)
	s := newTestSession("llama3:8b", ModelCapabilities{})

	if !engine.Run(context.Background(), s, "Question?", nil, nil) {
		t.Fatal("run refused to start")
	}

	user, ok := s.DisplayMessages()[0].(*UserMessage)
	if !ok {
		t.Fatal("first display message is not the user message")
	}

	if !engine.Rerun(context.Background(), s, user.ID) {
		t.Fatal("rerun refused to start")
	}

	display := s.DisplayMessages()
	if len(display) != 2 {
		t.Fatalf("expected 2 display messages after rerun, got %d", len(display))
	}
	if display[0] != DisplayMessage(user) {
		t.Error("rerun must keep the triggering user message in place")
	}

	native := s.NativeMessages()
	if len(native) != 3 {
		t.Fatalf("expected 3 native messages after rerun, got %d", len(native))
	}
	if native[1].ID != user.ID || native[1].Content != "Question?" {
		t.Errorf("native user message = %+v", native[1])
	}
	if native[2].Content != "Second answer." {
		t.Errorf("native assistant message = %+v", native[2])
	}
}

func TestRerunTargetsAssistantMessage(t *testing.T) {
	provider := &scriptedProvider{
		resident: []string{"llama3:8b"},
		script: []func(StreamFunc) error{
			textTurn("Answer A."),
			textTurn("Answer B."),
			textTurn("Answer B, again."),
		},
	}
	engine := newTestEngine(provider)
	s := newTestSession("llama3:8b", ModelCapabilities{})

	if !engine.Run(context.Background(), s, "First question.", nil, nil) {
		t.Fatal("first run refused to start")
	}
	tag := &InputTag{ID: TagSearchWeb, Prompt: "You should prefer executing a web search based on the user's query."}
	if !engine.Run(context.Background(), s, "Second question.", nil, tag) {
		t.Fatal("second run refused to start")
	}

	display := s.DisplayMessages()
	if len(display) != 4 {
		t.Fatalf("expected 4 display messages, got %d", len(display))
	}
	secondUser := display[2].(*UserMessage)
	secondAssistant := display[3].(*AssistantMessage)

	if !engine.Rerun(context.Background(), s, secondAssistant.ID) {
		t.Fatal("rerun refused to start")
	}

	display = s.DisplayMessages()
	if len(display) != 4 {
		t.Fatalf("expected 4 display messages after rerun, got %d", len(display))
	}
	// the first exchange and the triggering user message survive untouched
	if display[2] != DisplayMessage(secondUser) {
		t.Error("rerun must keep the triggering user message in place")
	}
	if display[3] == DisplayMessage(secondAssistant) {
		t.Error("rerun must replace the regenerated assistant message")
	}

	native := s.NativeMessages()
	if len(native) != 5 {
		t.Fatalf("expected 5 native messages after rerun, got %d", len(native))
	}
	if native[2].Content != "Answer A." {
		t.Errorf("earlier assistant answer lost: %+v", native[2])
	}
	if native[3].ID != secondUser.ID {
		t.Errorf("native user message identity changed: %+v", native[3])
	}
	if native[3].Content != tag.Prompt+"\n\nSecond question." {
		t.Errorf("tagged native content lost: %q", native[3].Content)
	}
	if native[4].Content != "Answer B, again." {
		t.Errorf("regenerated answer = %+v", native[4])
	}
}

func TestRerunUnknownMessage(t *testing.T) {
	engine := newTestEngine(&scriptedProvider{})
	s := newTestSession("llama3:8b", ModelCapabilities{})

	if engine.Rerun(context.Background(), s, "no-such-id") {
		t.Fatal("rerun must refuse for an unknown message id")
	}
}

func TestDeriveThinking(t *testing.T) {
	think := &InputTag{ID: TagThink}

	tests := []struct {
		name  string
		caps  ModelCapabilities
		model string
		tag   *InputTag
		want  ThinkingMode
	}{
		{"no thinking support", ModelCapabilities{}, "llama3:8b", nil, ThinkingOff},
		{"thinking model", ModelCapabilities{Thinking: true}, "qwen3:8b", nil, ThinkingOn},
		{"gpt-oss default", ModelCapabilities{Thinking: true}, "gpt-oss:20b", nil, ThinkingMedium},
		{"gpt-oss with think tag", ModelCapabilities{Thinking: true}, "gpt-oss:20b", think, ThinkingHigh},
		{"think tag without support", ModelCapabilities{}, "llama3:8b", think, ThinkingOff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deriveThinking(tt.caps, tt.model, tt.tag); got != tt.want {
				t.Errorf("deriveThinking() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestThinkingChunksStreamIntoThinkingFragment(t *testing.T) {
	provider := &scriptedProvider{
		resident: []string{"qwen3:8b"},
		script: []func(StreamFunc) error{
			func(onChunk StreamFunc) error {
				if err := onChunk(Chunk{Kind: ChunkThinking, Content: "hmm"}); err != nil {
					return err
				}
				return onChunk(Chunk{Kind: ChunkText, Content: "Answer."})
			},
		},
	}
	engine := newTestEngine(provider)
	s := newTestSession("qwen3:8b", ModelCapabilities{Thinking: true})

	if !engine.Run(context.Background(), s, "Hi.", nil, nil) {
		t.Fatal("run refused to start")
	}

	assistant := lastAssistant(t, s)
	subs := assistant.SubMessages()
	if len(subs) != 2 {
		t.Fatalf("expected thinking and answer fragments, got %d", len(subs))
	}
	thinking, ok := subs[0].(*TextSubMessage)
	if !ok || !thinking.Thinking || thinking.Content != "hmm" {
		t.Errorf("thinking fragment = %#v", subs[0])
	}
	answer, ok := subs[1].(*TextSubMessage)
	if !ok || answer.Thinking || answer.Content != "Answer." {
		t.Errorf("answer fragment = %#v", subs[1])
	}

	native := s.NativeMessages()
	last := native[len(native)-1]
	if last.Thinking != "hmm" || last.Content != "Answer." {
		t.Errorf("native assistant = %+v", last)
	}

	if provider.thinkings[0] != ThinkingOn {
		t.Errorf("thinking mode = %q", provider.thinkings[0])
	}
}
