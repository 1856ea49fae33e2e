package chat

import (
	"fmt"

	"ollmui/rag"
	"ollmui/storage"
)

// encodeSession flattens a session into its persisted record. Content and
// thinking strings are interned through the string pool, repeated strings
// (system prompts, tool outputs fed back verbatim) are stored once.
func encodeSession(s *Session) *storage.SavedChat {
	s.mu.Lock()
	defer s.mu.Unlock()

	pool := storage.NewStringPool()
	saved := &storage.SavedChat{}

	for _, msg := range s.native {
		record := storage.SavedNativeMessage{
			ID:       msg.ID,
			Role:     msg.Role,
			Content:  pool.Add(msg.Content),
			ToolName: msg.ToolName,
			Images:   msg.Images,
		}
		if msg.Thinking != "" {
			idx := pool.Add(msg.Thinking)
			record.Thinking = &idx
		}
		for _, call := range msg.ToolCalls {
			record.ToolCalls = append(record.ToolCalls, storage.SavedToolCall{
				Name:      call.Name,
				Arguments: call.Arguments,
			})
		}
		saved.Data = append(saved.Data, record)
	}

	for _, msg := range s.display {
		switch m := msg.(type) {
		case *UserMessage:
			idx := pool.Add(m.Content)
			record := storage.SavedDisplayMessage{
				ID:      m.ID,
				Role:    RoleUser,
				Content: &idx,
			}
			for _, file := range m.Files {
				record.Files = append(record.Files, storage.SavedFile{
					Kind:     file.Kind,
					Name:     file.Name,
					Content:  file.Content,
					Progress: file.Progress,
				})
			}
			saved.Messages = append(saved.Messages, record)

		case *AssistantMessage:
			record := storage.SavedDisplayMessage{
				ID:   m.ID,
				Role: RoleAssistant,
			}
			for _, sub := range m.subMessages {
				record.Messages = append(record.Messages, encodeSubMessage(pool, sub))
			}
			saved.Messages = append(saved.Messages, record)
		}
	}

	for _, doc := range s.documents {
		serialized := doc.Vectors.Serialize()
		saved.Documents = append(saved.Documents, storage.SavedDocument{
			Name:   doc.Name,
			Chunks: doc.Chunks,
			Vectors: storage.SavedVectors{
				Keys:    serialized.Keys,
				Vectors: serialized.Vectors,
			},
		})
	}

	saved.StringPool = pool.Finalize()
	return saved
}

func encodeSubMessage(pool *storage.StringPool, sub SubMessage) storage.SavedSubMessage {
	switch m := sub.(type) {
	case *TextSubMessage:
		idx := pool.Add(m.Content)
		return storage.SavedSubMessage{
			Kind:      "text",
			Content:   &idx,
			Thinking:  m.Thinking,
			Finished:  m.Finished,
			TimeStart: m.TimeStart,
			TimeEnd:   m.TimeEnd,
		}
	case *ToolCallSubMessage:
		return storage.SavedSubMessage{Kind: "toolcall", Summary: m.Summary, ToolName: m.ToolName}
	case *ImageMockSubMessage:
		return storage.SavedSubMessage{Kind: "image-mock", Width: m.Width, Height: m.Height}
	case *AttachmentSubMessage:
		return storage.SavedSubMessage{
			Kind:       "attachment",
			Attachment: storage.EncodeDataURL("image/png", m.Image),
		}
	case *ErrorSubMessage:
		return storage.SavedSubMessage{Kind: "error", Title: m.Title, Message: m.Message}
	default:
		return storage.SavedSubMessage{Kind: "error", Title: "Internal Error", Message: "unknown fragment"}
	}
}

// decodeSession restores a session's transcripts and documents from its
// persisted record.
func decodeSession(s *Session, saved *storage.SavedChat) error {
	resolve := func(idx int) (string, error) {
		if idx < 0 || idx >= len(saved.StringPool) {
			return "", fmt.Errorf("string pool index %d out of range", idx)
		}
		return saved.StringPool[idx], nil
	}

	var native []NativeMessage
	for _, record := range saved.Data {
		content, err := resolve(record.Content)
		if err != nil {
			return err
		}
		msg := NativeMessage{
			ID:       record.ID,
			Role:     record.Role,
			Content:  content,
			ToolName: record.ToolName,
			Images:   record.Images,
		}
		if record.Thinking != nil {
			thinking, err := resolve(*record.Thinking)
			if err != nil {
				return err
			}
			msg.Thinking = thinking
		}
		for _, call := range record.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{Name: call.Name, Arguments: call.Arguments})
		}
		native = append(native, msg)
	}

	var display []DisplayMessage
	for _, record := range saved.Messages {
		switch record.Role {
		case RoleUser:
			msg := &UserMessage{ID: record.ID}
			if record.Content != nil {
				content, err := resolve(*record.Content)
				if err != nil {
					return err
				}
				msg.Content = content
			}
			for _, file := range record.Files {
				msg.Files = append(msg.Files, &UserFile{
					Kind:     file.Kind,
					Name:     file.Name,
					Content:  file.Content,
					Progress: file.Progress,
				})
			}
			display = append(display, msg)

		case RoleAssistant:
			msg := NewAssistantMessage(record.ID)
			for _, sub := range record.Messages {
				decoded, err := decodeSubMessage(saved.StringPool, sub)
				if err != nil {
					return err
				}
				msg.subMessages = append(msg.subMessages, decoded)
			}
			msg.state = StateFinished
			display = append(display, msg)

		default:
			return fmt.Errorf("unknown display role %q", record.Role)
		}
	}

	var documents []*rag.Document
	for _, record := range saved.Documents {
		index := rag.NewVectorIndex()
		index.Load(rag.SerializedIndex{Keys: record.Vectors.Keys, Vectors: record.Vectors.Vectors})
		documents = append(documents, &rag.Document{
			Name:    record.Name,
			Chunks:  record.Chunks,
			Vectors: index,
		})
	}

	s.mu.Lock()
	s.native = native
	s.display = display
	s.documents = documents
	s.mu.Unlock()
	return nil
}

func decodeSubMessage(pool []string, record storage.SavedSubMessage) (SubMessage, error) {
	switch record.Kind {
	case "text":
		msg := &TextSubMessage{
			Thinking:  record.Thinking,
			Finished:  record.Finished,
			TimeStart: record.TimeStart,
			TimeEnd:   record.TimeEnd,
		}
		if record.Content != nil {
			if *record.Content < 0 || *record.Content >= len(pool) {
				return nil, fmt.Errorf("string pool index %d out of range", *record.Content)
			}
			msg.Content = pool[*record.Content]
		}
		return msg, nil
	case "toolcall":
		return &ToolCallSubMessage{Summary: record.Summary, ToolName: record.ToolName}, nil
	case "image-mock":
		return &ImageMockSubMessage{Width: record.Width, Height: record.Height}, nil
	case "attachment":
		_, data, err := storage.DecodeDataURL(record.Attachment)
		if err != nil {
			return nil, fmt.Errorf("decoding attachment: %w", err)
		}
		return &AttachmentSubMessage{Image: data}, nil
	case "error":
		return &ErrorSubMessage{Title: record.Title, Message: record.Message}, nil
	default:
		return nil, fmt.Errorf("unknown fragment kind %q", record.Kind)
	}
}
