package chat

import (
	"context"
	"sync"

	"ollmui/rag"
)

// Session is one conversation: the native transcript sent to the model,
// the display transcript shown to the user, and the indexed documents
// uploaded into it. A session with an empty ID is ephemeral; it gets an
// identity on its first message.
type Session struct {
	mu sync.Mutex

	ID string

	name  string
	model string

	metadata *ModelMetadata

	native    []NativeMessage
	display   []DisplayMessage
	documents []*rag.Document

	modelState ModelState
	loaded     bool

	cancel context.CancelFunc

	// onMutate fires after every transcript or state mutation. The
	// manager hooks debounced persistence into it.
	onMutate func(*Session)
}

func NewSession(id, name, model string) *Session {
	return &Session{
		ID:         id,
		name:       name,
		model:      model,
		modelState: ModelIdle,
	}
}

func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *Session) SetName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
	s.notify()
}

func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// SetModel records the selected model and its freshly queried metadata.
func (s *Session) SetModel(model string, metadata *ModelMetadata) {
	s.mu.Lock()
	s.model = model
	s.metadata = metadata
	s.mu.Unlock()
	s.notify()
}

func (s *Session) Metadata() *ModelMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadata
}

func (s *Session) ModelState() ModelState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modelState
}

// Ephemeral reports whether the session has not been persisted yet.
func (s *Session) Ephemeral() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ID == ""
}

// Loaded reports whether the persisted transcript was restored. Saving is
// gated on it so a failed load cannot clobber the stored chat.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

func (s *Session) markLoaded() {
	s.mu.Lock()
	s.loaded = true
	s.mu.Unlock()
}

// NativeMessages returns a snapshot of the model-facing transcript.
func (s *Session) NativeMessages() []NativeMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]NativeMessage, len(s.native))
	copy(out, s.native)
	return out
}

// DisplayMessages returns a snapshot of the human-facing transcript.
func (s *Session) DisplayMessages() []DisplayMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DisplayMessage, len(s.display))
	copy(out, s.display)
	return out
}

// Documents returns the session's indexed uploads, ordered by document id.
func (s *Session) Documents() []*rag.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*rag.Document, len(s.documents))
	copy(out, s.documents)
	return out
}

// Mutate runs fn under the session lock, then fires the mutation hook.
// All engine-side transcript edits go through it.
func (s *Session) Mutate(fn func()) {
	s.mu.Lock()
	fn()
	s.mu.Unlock()
	s.notify()
}

func (s *Session) appendNative(msg NativeMessage) {
	s.Mutate(func() { s.native = append(s.native, msg) })
}

func (s *Session) appendDisplay(msg DisplayMessage) {
	s.Mutate(func() { s.display = append(s.display, msg) })
}

func (s *Session) appendDocument(doc *rag.Document) {
	s.Mutate(func() { s.documents = append(s.documents, doc) })
}

// setSystemMessage replaces the leading system message, or inserts one if
// the transcript has none. There is never more than one.
func (s *Session) setSystemMessage(content string) {
	s.Mutate(func() {
		if len(s.native) > 0 && s.native[0].Role == RoleSystem {
			s.native[0].Content = content
			return
		}
		s.native = append([]NativeMessage{{Role: RoleSystem, Content: content}}, s.native...)
	})
}

func (s *Session) setModelState(state ModelState) {
	s.Mutate(func() { s.modelState = state })
}

// beginRun transitions the session into a run, minting the cancelation
// context. It fails when a run is already in flight.
func (s *Session) beginRun(parent context.Context) (context.Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.modelState != ModelIdle {
		return nil, false
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.modelState = ModelLoading
	return ctx, true
}

func (s *Session) endRun() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.modelState = ModelIdle
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.notify()
}

// Abort cancels the in-flight run, if any. The engine observes the
// cancelation and finalizes the transcript before going idle.
func (s *Session) Abort() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// truncateForRegen rewinds both transcripts so the exchange that produced
// the message with the given id can be replayed. The target may be any
// display message; the cut lands after the nearest preceding user message,
// which stays in place untouched (same id, tagged content, images), so
// regeneration never changes the message being answered. It returns that
// user message's display content, or ok=false when the id is unknown.
func (s *Session) truncateForRegen(messageID string) (lastUserText string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := -1
	for i, msg := range s.display {
		if msg.MessageID() == messageID {
			target = i
			break
		}
	}
	if target < 0 {
		return "", false
	}

	userAt := -1
	var user *UserMessage
	for i := target; i >= 0; i-- {
		if u, isUser := s.display[i].(*UserMessage); isUser {
			userAt = i
			user = u
			break
		}
	}
	if userAt < 0 {
		return "", false
	}

	nativeAt := -1
	for i, msg := range s.native {
		if msg.Role == RoleUser && msg.ID == user.ID {
			nativeAt = i
			break
		}
	}
	if nativeAt < 0 {
		return "", false
	}

	s.display = s.display[:userAt+1]
	s.native = s.native[:nativeAt+1]
	return user.Content, true
}

func (s *Session) setOnMutate(hook func(*Session)) {
	s.mu.Lock()
	s.onMutate = hook
	s.mu.Unlock()
}

func (s *Session) notify() {
	s.mu.Lock()
	hook := s.onMutate
	s.mu.Unlock()
	if hook != nil {
		hook(s)
	}
}
