package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"ollmui/storage"
)

// saveDebounce coalesces the per-chunk mutation storm during streaming
// into one write.
const saveDebounce = 500 * time.Millisecond

var (
	ErrModelBusy    = errors.New("a generation is already running")
	ErrEmptyMessage = errors.New("message is empty")
	ErrChatNotFound = errors.New("chat not found")
)

// Manager owns the set of sessions, their persistence, and the run entry
// points. All dependencies are injected; there is exactly one manager per
// process by construction, not by a package-level instance.
type Manager struct {
	mu sync.Mutex

	store  *storage.Store
	engine *Engine
	tags   []InputTag
	logger *log.Logger

	providerName string
	prefs        map[string]string

	sessions []*Session
	saves    map[string]*time.Timer
	closed   bool

	// OnUpdate, when set, fires after every session mutation. The CLI
	// hooks live rendering into it.
	OnUpdate func(*Session)
}

// NewManager loads preferences and the chat index and builds session
// stubs for every persisted chat. Transcripts load lazily on open.
func NewManager(ctx context.Context, store *storage.Store, engine *Engine, tags []InputTag, logger *log.Logger) (*Manager, error) {
	prefs, err := store.LoadPreferences(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading preferences: %w", err)
	}

	entries, err := store.LoadIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading chat index: %w", err)
	}

	m := &Manager{
		store:        store,
		engine:       engine,
		tags:         tags,
		logger:       logger,
		providerName: prefs[storage.PrefDefaultProvider],
		prefs:        prefs,
		saves:        make(map[string]*time.Timer),
	}

	for _, entry := range entries {
		session := NewSession(entry.ID, entry.Name, entry.Model)
		session.setOnMutate(m.sessionMutated)
		m.sessions = append(m.sessions, session)
	}

	return m, nil
}

// Preference returns one preference value.
func (m *Manager) Preference(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prefs[key]
}

// SetPreference persists one preference value.
func (m *Manager) SetPreference(ctx context.Context, key, value string) error {
	if err := m.store.SetPreference(ctx, key, value); err != nil {
		return err
	}
	m.mu.Lock()
	m.prefs[key] = value
	m.mu.Unlock()
	return nil
}

// InputTags returns the configured input tags.
func (m *Manager) InputTags() []InputTag {
	return m.tags
}

// ListModels enumerates the models of the active provider.
func (m *Manager) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return m.engine.Provider.ListModels(ctx)
}

// Sessions returns the persisted sessions in index order.
func (m *Manager) Sessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, len(m.sessions))
	copy(out, m.sessions)
	return out
}

// NewChat builds an ephemeral session on the preferred default model. It
// joins the persisted set once its first message is sent.
func (m *Manager) NewChat() *Session {
	session := NewSession("", "", m.Preference(storage.PrefDefaultModel))
	session.setOnMutate(m.sessionMutated)
	return session
}

// OpenChat restores a persisted session's transcripts. Opening an already
// loaded session is a no-op.
func (m *Manager) OpenChat(ctx context.Context, id string) (*Session, error) {
	session := m.findSession(id)
	if session == nil {
		return nil, ErrChatNotFound
	}
	if session.Loaded() {
		return session, nil
	}

	saved, exists, err := m.store.LoadChat(ctx, id)
	if err != nil {
		// Keep the session usable; an unreadable record should not brick
		// the chat list. Saving stays disabled so the record survives.
		m.logf("failed to load chat %s: %v", id, err)
		return session, nil
	}
	if exists {
		if err := decodeSession(session, saved); err != nil {
			m.logf("failed to decode chat %s: %v", id, err)
			return session, nil
		}
	}

	session.markLoaded()
	return session, nil
}

// DeleteChat aborts and removes a persisted chat.
func (m *Manager) DeleteChat(ctx context.Context, id string) error {
	session := m.findSession(id)
	if session == nil {
		return ErrChatNotFound
	}
	session.Abort()

	m.mu.Lock()
	if timer, ok := m.saves[id]; ok {
		timer.Stop()
		delete(m.saves, id)
	}
	for i, existing := range m.sessions {
		if existing == session {
			m.sessions = append(m.sessions[:i], m.sessions[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	if err := m.store.DeleteChat(ctx, id); err != nil {
		return err
	}
	return m.saveIndex(ctx)
}

// SelectModel switches the session's model, querying its capabilities.
func (m *Manager) SelectModel(ctx context.Context, s *Session, model string) error {
	metadata, err := m.engine.Provider.QueryModel(ctx, model)
	if err != nil {
		return fmt.Errorf("querying model %q: %w", model, err)
	}
	s.SetModel(model, &metadata)
	return nil
}

// SendMessage runs one exchange. It blocks until the session is idle
// again; streaming progress is observable through OnUpdate. tagID may be
// empty.
func (m *Manager) SendMessage(ctx context.Context, s *Session, text string, files []*UserFile, tagID string) error {
	if text == "" {
		return ErrEmptyMessage
	}
	if s.ModelState() != ModelIdle {
		return ErrModelBusy
	}

	if s.Metadata() == nil {
		if err := m.SelectModel(ctx, s, s.Model()); err != nil {
			return err
		}
	}

	var tag *InputTag
	if tagID != "" {
		if found, ok := FindInputTag(m.tags, tagID); ok {
			tag = &found
		}
	}

	if s.Ephemeral() {
		if err := m.promote(ctx, s, text); err != nil {
			return err
		}
	}

	if !m.engine.Run(ctx, s, text, files, tag) {
		return ErrModelBusy
	}
	return nil
}

// Regenerate rewinds the session to the exchange that produced the given
// display message and replays it. The triggering user message stays in
// place; everything after it, in both transcripts, is discarded.
func (m *Manager) Regenerate(ctx context.Context, s *Session, messageID string) error {
	if s.ModelState() != ModelIdle {
		return ErrModelBusy
	}
	if s.Metadata() == nil {
		if err := m.SelectModel(ctx, s, s.Model()); err != nil {
			return err
		}
	}
	if !m.engine.Rerun(ctx, s, messageID) {
		return fmt.Errorf("message %s does not belong to this chat", messageID)
	}
	return nil
}

// Translate streams a translation through the active provider.
func (m *Manager) Translate(ctx context.Context, model, text, sourceLang, targetLang string, onChunk StreamFunc) error {
	return m.engine.Provider.Translate(ctx, model, text, sourceLang, targetLang, onChunk)
}

// Close flushes pending saves and releases the store.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	for id, timer := range m.saves {
		timer.Stop()
		delete(m.saves, id)
	}
	sessions := make([]*Session, len(m.sessions))
	copy(sessions, m.sessions)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, session := range sessions {
		session.Abort()
		if session.Loaded() {
			m.saveNow(ctx, session)
		}
	}
	return m.store.Close()
}

// promote gives an ephemeral session its identity: a fresh id, a name cut
// from the first message, and a slot in the persisted index.
func (m *Manager) promote(ctx context.Context, s *Session, firstMessage string) error {
	s.Mutate(func() {
		s.ID = uuid.NewString()
		s.name = chatName(firstMessage)
		s.loaded = true
	})

	m.mu.Lock()
	m.sessions = append(m.sessions, s)
	m.mu.Unlock()

	return m.saveIndex(ctx)
}

func (m *Manager) saveIndex(ctx context.Context) error {
	m.mu.Lock()
	entries := make([]storage.IndexEntry, 0, len(m.sessions))
	for _, session := range m.sessions {
		entries = append(entries, storage.IndexEntry{
			ID:       session.ID,
			Name:     session.Name(),
			Model:    session.Model(),
			Provider: m.providerName,
		})
	}
	m.mu.Unlock()

	if err := m.store.SaveIndex(ctx, entries); err != nil {
		return fmt.Errorf("saving chat index: %w", err)
	}
	return nil
}

// sessionMutated is every session's mutation hook: debounce a save and
// forward to the rendering callback.
func (m *Manager) sessionMutated(s *Session) {
	if s.Loaded() && !s.Ephemeral() {
		m.mu.Lock()
		if !m.closed {
			if timer, ok := m.saves[s.ID]; ok {
				timer.Stop()
			}
			m.saves[s.ID] = time.AfterFunc(saveDebounce, func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				m.saveNow(ctx, s)
			})
		}
		m.mu.Unlock()
	}

	if m.OnUpdate != nil {
		m.OnUpdate(s)
	}
}

func (m *Manager) saveNow(ctx context.Context, s *Session) {
	if err := m.store.SaveChat(ctx, s.ID, encodeSession(s)); err != nil {
		m.logf("failed to save chat %s: %v", s.ID, err)
	}
}

func (m *Manager) findSession(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, session := range m.sessions {
		if session.ID == id {
			return session
		}
	}
	return nil
}

func (m *Manager) logf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf("[chat] "+format, args...)
	}
}

// chatName cuts a chat title from the first message.
func chatName(message string) string {
	runes := []rune(message)
	if len(runes) > 40 {
		runes = runes[:40]
	}
	return string(runes)
}
