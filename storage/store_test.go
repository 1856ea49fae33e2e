package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := OpenStore(filepath.Join(t.TempDir(), "chats.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndLoadChat(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	thinking := 1
	chat := &SavedChat{
		StringPool: []string{"hello", "pondering"},
		Data: []SavedNativeMessage{
			{ID: "m1", Role: "user", Content: 0},
			{ID: "m2", Role: "assistant", Content: 0, Thinking: &thinking},
		},
		Messages: []SavedDisplayMessage{
			{ID: "m1", Role: "user", Content: intPtr(0)},
		},
	}

	if err := store.SaveChat(ctx, "chat-1", chat); err != nil {
		t.Fatalf("failed to save chat: %v", err)
	}

	loaded, exists, err := store.LoadChat(ctx, "chat-1")
	if err != nil {
		t.Fatalf("failed to load chat: %v", err)
	}
	if !exists {
		t.Fatal("expected chat to exist")
	}
	if len(loaded.Data) != 2 || len(loaded.Messages) != 1 {
		t.Fatalf("unexpected transcript lengths: %d native, %d display", len(loaded.Data), len(loaded.Messages))
	}
	if loaded.Data[1].Thinking == nil || *loaded.Data[1].Thinking != 1 {
		t.Error("thinking pool index did not round-trip")
	}
	if loaded.StringPool[0] != "hello" {
		t.Errorf("unexpected string pool: %v", loaded.StringPool)
	}
}

func TestLoadChatMissing(t *testing.T) {
	store := openTestStore(t)

	_, exists, err := store.LoadChat(context.Background(), "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Error("expected missing chat to report exists=false")
	}
}

func TestSaveChatOverwrites(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.SaveChat(ctx, "chat-1", &SavedChat{StringPool: []string{"a"}}); err != nil {
		t.Fatalf("failed to save chat: %v", err)
	}
	if err := store.SaveChat(ctx, "chat-1", &SavedChat{StringPool: []string{"b"}}); err != nil {
		t.Fatalf("failed to overwrite chat: %v", err)
	}

	loaded, _, err := store.LoadChat(ctx, "chat-1")
	if err != nil {
		t.Fatalf("failed to load chat: %v", err)
	}
	if len(loaded.StringPool) != 1 || loaded.StringPool[0] != "b" {
		t.Errorf("expected overwritten record, got pool %v", loaded.StringPool)
	}
}

func TestDeleteChatRemovesIndexEntry(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.SaveChat(ctx, "chat-1", &SavedChat{}); err != nil {
		t.Fatalf("failed to save chat: %v", err)
	}
	entries := []IndexEntry{{ID: "chat-1", Name: "First", Model: "llama3.1:latest", Provider: "ollama"}}
	if err := store.SaveIndex(ctx, entries); err != nil {
		t.Fatalf("failed to save index: %v", err)
	}

	if err := store.DeleteChat(ctx, "chat-1"); err != nil {
		t.Fatalf("failed to delete chat: %v", err)
	}

	loaded, err := store.LoadIndex(ctx)
	if err != nil {
		t.Fatalf("failed to load index: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("expected empty index after delete, got %v", loaded)
	}
}

func TestIndexPreservesOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	entries := []IndexEntry{
		{ID: "c", Name: "third", Model: "m", Provider: "ollama"},
		{ID: "a", Name: "first", Model: "m", Provider: "ollama"},
		{ID: "b", Name: "second", Model: "m", Provider: "ollama"},
	}
	if err := store.SaveIndex(ctx, entries); err != nil {
		t.Fatalf("failed to save index: %v", err)
	}

	loaded, err := store.LoadIndex(ctx)
	if err != nil {
		t.Fatalf("failed to load index: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(loaded))
	}
	for i := range entries {
		if loaded[i].ID != entries[i].ID {
			t.Errorf("entry %d: expected id %s, got %s", i, entries[i].ID, loaded[i].ID)
		}
	}
}

func TestPreferencesSelfHeal(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	prefs, err := store.LoadPreferences(ctx)
	if err != nil {
		t.Fatalf("failed to load preferences: %v", err)
	}
	for key, def := range basePreferences {
		if prefs[key] != def {
			t.Errorf("expected %s to default to %q, got %q", key, def, prefs[key])
		}
	}

	if err := store.SetPreference(ctx, PrefDefaultModel, "custom:latest"); err != nil {
		t.Fatalf("failed to set preference: %v", err)
	}

	prefs, err = store.LoadPreferences(ctx)
	if err != nil {
		t.Fatalf("failed to reload preferences: %v", err)
	}
	if prefs[PrefDefaultModel] != "custom:latest" {
		t.Errorf("expected custom model to persist, got %q", prefs[PrefDefaultModel])
	}
	if prefs[PrefDefaultProvider] != basePreferences[PrefDefaultProvider] {
		t.Errorf("expected untouched key to keep its default")
	}
}

func TestDataURLRoundTrip(t *testing.T) {
	data := []byte{0x89, 'P', 'N', 'G', 0, 1, 2}

	url := EncodeDataURL("image/png", data)
	mimeType, decoded, err := DecodeDataURL(url)
	if err != nil {
		t.Fatalf("failed to decode data URL: %v", err)
	}
	if mimeType != "image/png" {
		t.Errorf("expected image/png, got %q", mimeType)
	}
	if string(decoded) != string(data) {
		t.Error("payload did not round-trip")
	}

	if _, _, err := DecodeDataURL("not-a-data-url"); err == nil {
		t.Error("expected error for malformed input")
	}
}

func intPtr(i int) *int { return &i }
