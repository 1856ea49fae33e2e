// Package chat owns the conversation core: the dual native/display
// message model, the turn-execution engine that drives streaming
// generations and tool calls, and the session manager.
package chat

import "time"

// Message roles shared by both transcripts.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// NativeMessage is one turn of the model-facing transcript, sent verbatim
// to the provider. The first message, if present with role system, is
// exactly one: the engine replaces it rather than duplicating it on every
// send.
type NativeMessage struct {
	ID       string
	Role     string
	Content  string
	Thinking string
	ToolName string // when Role is tool: which tool produced this
	ToolCalls []ToolCall
	Images   [][]byte
}

// MessageState is the lifecycle of one assistant display message.
type MessageState string

const (
	StateLoading  MessageState = "loading"
	StateThinking MessageState = "thinking"
	StateTyping   MessageState = "typing"
	StateToolCall MessageState = "toolcall"
	StateFinished MessageState = "finished"
)

// ModelState tracks what the session's model is doing.
type ModelState string

const (
	ModelIdle    ModelState = "idle"
	ModelBusy    ModelState = "busy"
	ModelLoading ModelState = "loading"
)

// User file kinds.
const (
	FileImage    = "image"
	FileDocument = "document"
)

// UserFile is an upload attached to a user message. Documents carry an
// indexing progress fraction in [0,1] updated during ingestion.
type UserFile struct {
	Kind     string
	Name     string
	Content  []byte
	Progress float64
}

// DisplayMessage is one turn of the human-facing transcript, either a
// *UserMessage or an *AssistantMessage.
type DisplayMessage interface {
	Role() string
	MessageID() string
}

// UserMessage is a literal user turn plus its attachments.
type UserMessage struct {
	ID      string
	Content string
	Files   []*UserFile
}

func (m *UserMessage) Role() string      { return RoleUser }
func (m *UserMessage) MessageID() string { return m.ID }

// AssistantMessage is a streamed assistant turn: a state plus an ordered
// list of SubMessages.
type AssistantMessage struct {
	ID          string
	state       MessageState
	subMessages []SubMessage
}

func NewAssistantMessage(id string) *AssistantMessage {
	return &AssistantMessage{ID: id, state: StateLoading}
}

func (m *AssistantMessage) Role() string      { return RoleAssistant }
func (m *AssistantMessage) MessageID() string { return m.ID }

func (m *AssistantMessage) State() MessageState { return m.state }

// SetState transitions the message. Entering the terminal finished state
// finalizes a still-open trailing text fragment.
func (m *AssistantMessage) SetState(state MessageState) {
	if state == StateFinished {
		m.finalizeLastText()
	}
	m.state = state
}

// SubMessages returns the fragments in order.
func (m *AssistantMessage) SubMessages() []SubMessage {
	return m.subMessages
}

// Push appends a fragment. Appending anything finalizes the previous text
// fragment, so at most one text fragment is open at any time.
func (m *AssistantMessage) Push(sub SubMessage) SubMessage {
	m.finalizeLastText()
	m.subMessages = append(m.subMessages, sub)
	return sub
}

// PushText opens a fresh streaming text fragment.
func (m *AssistantMessage) PushText(thinking bool) *TextSubMessage {
	text := &TextSubMessage{
		Thinking:  thinking,
		TimeStart: time.Now().UnixMilli(),
	}
	m.Push(text)
	return text
}

// Remove detaches a fragment (used for mock placeholders).
func (m *AssistantMessage) Remove(sub SubMessage) {
	for i, existing := range m.subMessages {
		if existing == sub {
			m.subMessages = append(m.subMessages[:i], m.subMessages[i+1:]...)
			return
		}
	}
}

func (m *AssistantMessage) finalizeLastText() {
	if len(m.subMessages) == 0 {
		return
	}
	if text, ok := m.subMessages[len(m.subMessages)-1].(*TextSubMessage); ok {
		text.Finished = true
		if text.TimeEnd == 0 {
			text.TimeEnd = time.Now().UnixMilli()
		}
	}
}

// SubMessage is an assistant output fragment, discriminated by Kind.
type SubMessage interface {
	Kind() string
}

// TextSubMessage is a streamed content buffer. TimeEnd stays 0 while the
// fragment is still open.
type TextSubMessage struct {
	Thinking  bool // reasoning block vs. final-answer block
	Content   string
	Finished  bool
	TimeStart int64 // unix milliseconds
	TimeEnd   int64
}

func (m *TextSubMessage) Kind() string { return "text" }

// Stream appends a chunk to the buffer.
func (m *TextSubMessage) Stream(chunk string) { m.Content += chunk }

// Replace swaps the whole buffer, used when a tool block is cut out of
// already-streamed text.
func (m *TextSubMessage) Replace(content string) { m.Content = content }

// ToolCallSubMessage is shown while a tool runs.
type ToolCallSubMessage struct {
	Summary  string
	ToolName string
}

func (m *ToolCallSubMessage) Kind() string { return "toolcall" }

// ImageMockSubMessage is a placeholder shown until the real tool result
// replaces it.
type ImageMockSubMessage struct {
	Width  int
	Height int
}

func (m *ImageMockSubMessage) Kind() string { return "image-mock" }

// AttachmentSubMessage renders tool- or model-produced binary content
// (currently images).
type AttachmentSubMessage struct {
	Image []byte
}

func (m *AttachmentSubMessage) Kind() string { return "attachment" }

// ErrorSubMessage carries a user-visible, expandable error.
type ErrorSubMessage struct {
	Title   string
	Message string
}

func (m *ErrorSubMessage) Kind() string { return "error" }
