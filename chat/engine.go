package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"ollmui/rag"
	"ollmui/tools"
)

// Engine drives one generation run: the streaming turn loop, structured
// and embedded tool dispatch, document ingestion, and error reporting
// into the display transcript.
type Engine struct {
	Provider   Provider
	Registry   *tools.Registry
	Embedder   rag.Embedder
	Extractors map[string]rag.Extractor
	Logger     *log.Logger
}

// Run executes one full exchange: it appends the user message to both
// transcripts, then loops turns until the model produces a final answer.
// It returns once the session is idle again; mid-run failures are
// reported into the display transcript, not returned.
func (e *Engine) Run(ctx context.Context, s *Session, userText string, files []*UserFile, tag *InputTag) bool {
	return e.run(ctx, s, userText, files, tag)
}

// Rerun rewinds the session to the exchange that produced the display
// message with the given id and replays it. The triggering user message
// stays in place with its identity and tagged content intact; documents
// ingested by the original send stay indexed.
func (e *Engine) Rerun(ctx context.Context, s *Session, messageID string) bool {
	lastUserText, ok := s.truncateForRegen(messageID)
	if !ok {
		return false
	}
	return e.resume(ctx, s, lastUserText)
}

func (e *Engine) run(ctx context.Context, s *Session, userText string, files []*UserFile, tag *InputTag) bool {
	runCtx, ok := s.beginRun(ctx)
	if !ok {
		return false
	}
	defer s.endRun()

	model := s.Model()
	caps, toolset, ok := e.prepare(runCtx, s, model)
	if !ok {
		return false
	}

	assistant := NewAssistantMessage(uuid.NewString())
	user := &UserMessage{ID: uuid.NewString(), Content: userText, Files: files}

	runErr := e.processUploads(runCtx, s, files)

	if runErr == nil {
		var images [][]byte
		for _, file := range files {
			if file.Kind == FileImage {
				images = append(images, file.Content)
			}
		}

		tagged := userText
		if tag != nil && tag.Prompt != "" {
			tagged = tag.Prompt + "\n\n" + userText
		}

		s.appendNative(NativeMessage{
			ID:      user.ID,
			Role:    RoleUser,
			Content: tagged,
			Images:  images,
		})

		s.appendDisplay(user)
		s.appendDisplay(assistant)

		runErr = e.runTurns(runCtx, s, assistant, toolset, caps, tag, userText)
	} else {
		s.appendDisplay(user)
		s.appendDisplay(assistant)
	}

	if runErr != nil && !IsAborted(runErr) {
		e.logf("run failed: %v", runErr)
		s.Mutate(func() {
			assistant.Push(&ErrorSubMessage{Title: "Internal Error", Message: runErr.Error()})
		})
	}

	s.Mutate(func() { assistant.SetState(StateFinished) })
	return true
}

// resume replays the turn loop over the existing transcripts. Nothing is
// ingested and no user message is appended; only the fresh assistant
// message joins the display transcript.
func (e *Engine) resume(ctx context.Context, s *Session, lastUserText string) bool {
	runCtx, ok := s.beginRun(ctx)
	if !ok {
		return false
	}
	defer s.endRun()

	model := s.Model()
	caps, toolset, ok := e.prepare(runCtx, s, model)
	if !ok {
		return false
	}

	assistant := NewAssistantMessage(uuid.NewString())
	s.appendDisplay(assistant)

	runErr := e.runTurns(runCtx, s, assistant, toolset, caps, nil, lastUserText)

	if runErr != nil && !IsAborted(runErr) {
		e.logf("run failed: %v", runErr)
		s.Mutate(func() {
			assistant.Push(&ErrorSubMessage{Title: "Internal Error", Message: runErr.Error()})
		})
	}

	s.Mutate(func() { assistant.SetState(StateFinished) })
	return true
}

// prepare resolves the model's capabilities and supported toolset and
// rebuilds the system prompt for this send.
func (e *Engine) prepare(ctx context.Context, s *Session, model string) (ModelCapabilities, []tools.Tool, bool) {
	metadata := s.Metadata()
	if metadata == nil {
		e.logf("model metadata for %q not loaded, refusing run", model)
		return ModelCapabilities{}, nil, false
	}
	caps := metadata.Capabilities

	toolset := e.Registry.Supported(ctx, tools.SupportContext{
		Model:    model,
		Tools:    caps.Tools,
		Thinking: caps.Thinking,
	})

	// Models with native tool calling get declarations on the wire; the
	// rest get them described in the system prompt and answer in the
	// embedded XML dialect.
	var promptTools []tools.Tool
	if !caps.Tools {
		promptTools = toolset
	}
	s.setSystemMessage(BuildSystemPrompt(timeNow(), promptTools))

	return caps, toolset, true
}

// runTurns is the turn loop. Each iteration streams one generation;
// a structured tool-call batch or an embedded tool block triggers another
// turn after the calls ran, otherwise the loop ends with the committed
// final answer.
func (e *Engine) runTurns(ctx context.Context, s *Session, assistant *AssistantMessage, toolset []tools.Tool, caps ModelCapabilities, tag *InputTag, lastUserText string) error {
	model := s.Model()
	sink := assistantSink{session: s, assistant: assistant}

	var nativeToolset []tools.Tool
	if caps.Tools {
		nativeToolset = toolset
	}

	newTurn := true
	for newTurn {
		newTurn = false

		resident, err := e.Provider.ListRunningModels(ctx)
		if err != nil {
			return err
		}
		if !containsModel(resident, model) {
			s.setModelState(ModelLoading)
			s.Mutate(func() { assistant.SetState(StateLoading) })
		}

		thinking := deriveThinking(caps, model, tag)

		var textContent, thinkingContent strings.Builder
		var current *TextSubMessage
		var batch []ToolCall
		embeddedCall := false

		onChunk := func(chunk Chunk) error {
			switch chunk.Kind {
			case ChunkToolCalls:
				batch = chunk.ToolCalls
				return errStopStream

			case ChunkThinking:
				if current == nil || !current.Thinking {
					s.setModelState(ModelBusy)
					s.Mutate(func() {
						assistant.SetState(StateThinking)
						current = assistant.PushText(true)
					})
				}
				thinkingContent.WriteString(chunk.Content)
				s.Mutate(func() { current.Stream(chunk.Content) })

			case ChunkText:
				if current == nil || current.Thinking {
					s.setModelState(ModelBusy)
					s.Mutate(func() {
						assistant.SetState(StateTyping)
						current = assistant.PushText(false)
					})
				}
				textContent.WriteString(chunk.Content)
				if caps.Tools || !embeddedCall {
					s.Mutate(func() { current.Stream(chunk.Content) })
				}

				if !caps.Tools && !embeddedCall {
					if at := strings.Index(textContent.String(), toolOpenTag); at >= 0 {
						// The answer turned into a tool invocation; stop
						// mirroring it to the display and cut the visible
						// text back to the prose before the block. The
						// stream keeps running so the block completes.
						embeddedCall = true
						s.Mutate(func() {
							assistant.SetState(StateToolCall)
							current.Replace(textContent.String()[:at])
						})
					}
				}
			}
			return nil
		}

		err = e.Provider.Generate(ctx, model, s.NativeMessages(), nativeToolset, onChunk, thinking)
		if err != nil && !errors.Is(err, errStopStream) {
			// Commit the partial answer so an aborted generation keeps
			// what was already streamed.
			s.appendNative(NativeMessage{
				ID:       uuid.NewString(),
				Role:     RoleAssistant,
				Content:  textContent.String(),
				Thinking: thinkingContent.String(),
			})
			return err
		}

		if batch != nil {
			if err := e.runStructuredCalls(ctx, s, assistant, sink, toolset, batch, model, lastUserText, textContent.String(), thinkingContent.String()); err != nil {
				return err
			}
			newTurn = true
			continue
		}

		if embeddedCall {
			if err := e.runEmbeddedCall(ctx, s, assistant, sink, current, toolset, model, lastUserText, textContent.String(), thinkingContent.String()); err != nil {
				return err
			}
			newTurn = true
			continue
		}

		s.appendNative(NativeMessage{
			ID:       uuid.NewString(),
			Role:     RoleAssistant,
			Content:  textContent.String(),
			Thinking: thinkingContent.String(),
		})
	}

	return nil
}

// runStructuredCalls executes one native tool-call batch sequentially in
// batch order, feeding each result back as a tool-role message.
func (e *Engine) runStructuredCalls(ctx context.Context, s *Session, assistant *AssistantMessage, sink assistantSink, toolset []tools.Tool, batch []ToolCall, model, lastUserText, textContent, thinkingContent string) error {
	s.appendNative(NativeMessage{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Content:   textContent,
		Thinking:  thinkingContent,
		ToolCalls: batch,
	})
	s.Mutate(func() { assistant.SetState(StateToolCall) })

	for _, call := range batch {
		summary := ""
		for _, tool := range toolset {
			if tool.Name == call.Name {
				summary = tool.Summary
				break
			}
		}
		s.Mutate(func() {
			assistant.Push(&ToolCallSubMessage{Summary: summary, ToolName: call.Name})
		})

		out, err := e.dispatch(ctx, s, call.Name, call.Arguments, model, lastUserText, sink)
		if err != nil {
			return err
		}

		encoded, err := json.MarshalIndent(out.Data, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding tool result: %w", err)
		}

		s.appendNative(NativeMessage{
			ID:       uuid.NewString(),
			Role:     RoleTool,
			ToolName: call.Name,
			Content:  string(encoded),
		})
	}

	return nil
}

// runEmbeddedCall handles the XML dialect: cut the block out of the
// streamed text, commit the prose, run the tool, then feed the block and
// its result back as an assistant/user message pair. The user message is
// marked hidden so the model knows the human never saw it.
func (e *Engine) runEmbeddedCall(ctx context.Context, s *Session, assistant *AssistantMessage, sink assistantSink, current *TextSubMessage, toolset []tools.Tool, model, lastUserText, textContent, thinkingContent string) error {
	prose, block, extractErr := extractToolBlock(textContent)

	// The prose commits even when the block is unusable, matching what
	// was left visible in the display transcript.
	if current != nil {
		s.Mutate(func() { current.Replace(prose) })
	}
	s.appendNative(NativeMessage{
		ID:       uuid.NewString(),
		Role:     RoleAssistant,
		Content:  prose,
		Thinking: thinkingContent,
	})

	if extractErr != nil {
		return extractErr
	}

	call, err := parseToolBlock(block)
	if err != nil {
		return err
	}

	s.Mutate(func() {
		assistant.Push(&ToolCallSubMessage{Summary: call.Summary, ToolName: call.Name})
	})

	out, err := e.dispatch(ctx, s, call.Name, call.Params, model, lastUserText, sink)
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(out.Data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding tool result: %w", err)
	}

	s.appendNative(NativeMessage{
		ID:      uuid.NewString(),
		Role:    RoleAssistant,
		Content: "```xml\n" + block + "\n```",
	})
	s.appendNative(NativeMessage{
		ID:   uuid.NewString(),
		Role: RoleUser,
		Content: fmt.Sprintf("The output of tool '%s'. The user cannot see this message.\n\n```json\n%s\n```",
			call.Name, encoded),
	})

	return nil
}

func (e *Engine) dispatch(ctx context.Context, s *Session, name string, params map[string]any, model, lastUserText string, sink assistantSink) (tools.Output, error) {
	return e.Registry.Dispatch(ctx, name, params, tools.Context{
		Model:       model,
		LastMessage: lastUserText,
		Documents:   s.Documents(),
		FreeModel:   e.Provider.FreeModel,
	}, sink)
}

// processUploads indexes document uploads: extract chunks by extension,
// embed them sequentially with progress updates, then announce each
// document to the model with its id.
func (e *Engine) processUploads(ctx context.Context, s *Session, files []*UserFile) error {
	for _, file := range files {
		if file.Kind != FileDocument {
			continue
		}

		ext := strings.ToLower(filepath.Ext(file.Name))
		extract, ok := e.Extractors[ext]
		if !ok {
			return fmt.Errorf("cannot parse document '%s'", file.Name)
		}

		chunks, err := extract(file.Name, file.Content)
		if err != nil {
			return err
		}

		index := rag.NewVectorIndex()
		for i, chunk := range chunks {
			vector, err := e.Embedder.Embed(ctx, chunk)
			if err != nil {
				return fmt.Errorf("embedding chunk %d of '%s': %w", i, file.Name, err)
			}
			index.Add(i, vector)

			progress := float64(i+1) / float64(len(chunks))
			s.Mutate(func() { file.Progress = progress })
		}

		doc := &rag.Document{Name: file.Name, Chunks: chunks, Vectors: index}

		s.appendNative(NativeMessage{
			ID:      uuid.NewString(),
			Role:    RoleUser,
			Content: fmt.Sprintf("[user uploaded document '%s', document id %d]", doc.Name, len(s.Documents())),
		})
		s.appendDocument(doc)
	}

	return nil
}

// deriveThinking picks the reasoning mode for one turn. The gpt-oss
// family takes graded levels; the think tag raises it to high.
func deriveThinking(caps ModelCapabilities, model string, tag *InputTag) ThinkingMode {
	if !caps.Thinking {
		return ThinkingOff
	}

	if strings.Contains(model, "gpt-oss") {
		if tag != nil && tag.ID == TagThink {
			return ThinkingHigh
		}
		return ThinkingMedium
	}

	return ThinkingOn
}

func containsModel(models []string, model string) bool {
	for _, m := range models {
		if m == model {
			return true
		}
	}
	return false
}

func (e *Engine) logf(format string, args ...any) {
	if e.Logger != nil {
		e.Logger.Printf("[chat] "+format, args...)
	}
}

// assistantSink routes tool display fragments into the assistant message
// under the session lock.
type assistantSink struct {
	session   *Session
	assistant *AssistantMessage
}

func (k assistantSink) PushImageMock(width, height int) func() {
	mock := &ImageMockSubMessage{Width: width, Height: height}
	k.session.Mutate(func() { k.assistant.Push(mock) })
	return func() {
		k.session.Mutate(func() { k.assistant.Remove(mock) })
	}
}

func (k assistantSink) PushAttachment(image []byte) {
	k.session.Mutate(func() { k.assistant.Push(&AttachmentSubMessage{Image: image}) })
}

// timeNow is swapped in tests to pin the system prompt.
var timeNow = time.Now
