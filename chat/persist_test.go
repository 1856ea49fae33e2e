package chat

import (
	"testing"

	"ollmui/rag"
	"ollmui/storage"
)

func TestSessionRoundTrip(t *testing.T) {
	s := NewSession("chat-1", "test", "llama3:8b")

	prompt := "You are a helpful assistant."
	s.setSystemMessage(prompt)
	s.appendNative(NativeMessage{ID: "u1", Role: RoleUser, Content: "What is 2 + 2?"})
	s.appendNative(NativeMessage{
		ID:       "a1",
		Role:     RoleAssistant,
		Content:  "Four.",
		Thinking: "simple arithmetic",
		ToolCalls: []ToolCall{
			{Name: "calculator", Arguments: map[string]any{"expression": "2 + 2"}},
		},
	})
	s.appendNative(NativeMessage{ID: "t1", Role: RoleTool, ToolName: "calculator", Content: "4"})

	user := &UserMessage{
		ID:      "u1",
		Content: "What is 2 + 2?",
		Files: []*UserFile{
			{Kind: FileDocument, Name: "notes.txt", Content: []byte("notes"), Progress: 1},
		},
	}
	s.appendDisplay(user)

	assistant := NewAssistantMessage("a1")
	thinking := assistant.PushText(true)
	thinking.Stream("simple arithmetic")
	assistant.Push(&ToolCallSubMessage{Summary: "Executing an arithmetic expression.", ToolName: "calculator"})
	assistant.Push(&AttachmentSubMessage{Image: []byte{0x89, 'P', 'N', 'G'}})
	answer := assistant.PushText(false)
	answer.Stream("Four.")
	assistant.Push(&ErrorSubMessage{Title: "Internal Error", Message: "nothing actually"})
	assistant.SetState(StateFinished)
	s.appendDisplay(assistant)

	index := rag.NewVectorIndex()
	index.Add(0, []float32{1, 0})
	index.Add(1, []float32{0, 1})
	s.appendDocument(&rag.Document{Name: "notes.txt", Chunks: []string{"alpha", "beta"}, Vectors: index})

	saved := encodeSession(s)

	restored := NewSession("chat-1", "test", "llama3:8b")
	if err := decodeSession(restored, saved); err != nil {
		t.Fatalf("failed to decode session: %v", err)
	}

	native := restored.NativeMessages()
	if len(native) != 4 {
		t.Fatalf("expected 4 native messages, got %d", len(native))
	}
	if native[0].Role != RoleSystem || native[0].Content != prompt {
		t.Errorf("system message = %+v", native[0])
	}
	if native[2].Thinking != "simple arithmetic" {
		t.Errorf("thinking did not round-trip: %+v", native[2])
	}
	if len(native[2].ToolCalls) != 1 || native[2].ToolCalls[0].Name != "calculator" {
		t.Errorf("tool calls did not round-trip: %+v", native[2])
	}
	if native[3].ToolName != "calculator" {
		t.Errorf("tool name did not round-trip: %+v", native[3])
	}

	display := restored.DisplayMessages()
	if len(display) != 2 {
		t.Fatalf("expected 2 display messages, got %d", len(display))
	}

	restoredUser, ok := display[0].(*UserMessage)
	if !ok {
		t.Fatalf("display[0] is %T", display[0])
	}
	if restoredUser.Content != user.Content {
		t.Errorf("user content = %q", restoredUser.Content)
	}
	if len(restoredUser.Files) != 1 || restoredUser.Files[0].Name != "notes.txt" || restoredUser.Files[0].Progress != 1 {
		t.Errorf("files did not round-trip: %+v", restoredUser.Files)
	}

	restoredAssistant, ok := display[1].(*AssistantMessage)
	if !ok {
		t.Fatalf("display[1] is %T", display[1])
	}
	if restoredAssistant.State() != StateFinished {
		t.Errorf("restored assistant state = %q", restoredAssistant.State())
	}
	subs := restoredAssistant.SubMessages()
	if len(subs) != 5 {
		t.Fatalf("expected 5 fragments, got %d", len(subs))
	}
	if text, ok := subs[0].(*TextSubMessage); !ok || !text.Thinking || text.Content != "simple arithmetic" || !text.Finished {
		t.Errorf("thinking fragment = %#v", subs[0])
	}
	if call, ok := subs[1].(*ToolCallSubMessage); !ok || call.ToolName != "calculator" {
		t.Errorf("tool call fragment = %#v", subs[1])
	}
	if attachment, ok := subs[2].(*AttachmentSubMessage); !ok || string(attachment.Image) != string([]byte{0x89, 'P', 'N', 'G'}) {
		t.Errorf("attachment fragment = %#v", subs[2])
	}
	if text, ok := subs[3].(*TextSubMessage); !ok || text.Thinking || text.Content != "Four." {
		t.Errorf("answer fragment = %#v", subs[3])
	}
	if errSub, ok := subs[4].(*ErrorSubMessage); !ok || errSub.Title != "Internal Error" {
		t.Errorf("error fragment = %#v", subs[4])
	}

	documents := restored.Documents()
	if len(documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(documents))
	}
	if documents[0].Name != "notes.txt" || len(documents[0].Chunks) != 2 {
		t.Errorf("document = %+v", documents[0])
	}
	results := documents[0].Vectors.Query([]float32{0, 1}, 1)
	if len(results) != 1 || results[0].Key != 1 {
		t.Errorf("restored index gave wrong answer: %v", results)
	}
}

func TestEncodeSessionDeduplicatesStrings(t *testing.T) {
	s := NewSession("chat-1", "test", "llama3:8b")
	// the same user text appears in both transcripts; the pool stores it once
	s.appendNative(NativeMessage{ID: "u1", Role: RoleUser, Content: "hello"})
	s.appendNative(NativeMessage{ID: "a1", Role: RoleAssistant, Content: "hello"})
	s.appendDisplay(&UserMessage{ID: "u1", Content: "hello"})

	saved := encodeSession(s)

	if len(saved.StringPool) != 1 {
		t.Fatalf("expected 1 pooled string, got %d: %v", len(saved.StringPool), saved.StringPool)
	}
	if saved.Data[0].Content != saved.Data[1].Content {
		t.Error("identical contents must share a pool index")
	}
	if saved.Messages[0].Content == nil || *saved.Messages[0].Content != saved.Data[0].Content {
		t.Error("display content must reference the same pool entry")
	}
}

func TestDecodeSessionRejectsBadPoolIndex(t *testing.T) {
	saved := &storage.SavedChat{
		StringPool: []string{"only"},
		Data:       []storage.SavedNativeMessage{{ID: "m1", Role: RoleUser, Content: 5}},
	}

	s := NewSession("chat-1", "test", "llama3:8b")
	if err := decodeSession(s, saved); err == nil {
		t.Fatal("expected an error for an out-of-range pool index")
	}
}

func TestDecodeSessionRejectsUnknownFragmentKind(t *testing.T) {
	saved := &storage.SavedChat{
		StringPool: []string{""},
		Messages: []storage.SavedDisplayMessage{{
			ID:       "a1",
			Role:     RoleAssistant,
			Messages: []storage.SavedSubMessage{{Kind: "hologram"}},
		}},
	}

	s := NewSession("chat-1", "test", "llama3:8b")
	if err := decodeSession(s, saved); err == nil {
		t.Fatal("expected an error for an unknown fragment kind")
	}
}
