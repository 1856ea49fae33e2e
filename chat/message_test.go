package chat

import "testing"

func TestPushFinalizesPreviousText(t *testing.T) {
	m := NewAssistantMessage("a1")

	first := m.PushText(false)
	first.Stream("hello")
	if first.Finished {
		t.Fatal("open fragment must not be finished")
	}

	m.Push(&ToolCallSubMessage{Summary: "Working.", ToolName: "calculator"})

	if !first.Finished {
		t.Error("pushing a new fragment must finalize the previous text")
	}
	if first.TimeEnd == 0 {
		t.Error("finalized text must carry an end timestamp")
	}

	// at most one open text fragment at any time
	second := m.PushText(false)
	if second.Finished {
		t.Error("fresh fragment must start open")
	}
	open := 0
	for _, sub := range m.SubMessages() {
		if text, ok := sub.(*TextSubMessage); ok && !text.Finished {
			open++
		}
	}
	if open != 1 {
		t.Errorf("expected exactly one open text fragment, got %d", open)
	}
}

func TestSetStateFinishedFinalizesTrailingText(t *testing.T) {
	m := NewAssistantMessage("a1")
	text := m.PushText(true)
	text.Stream("pondering")

	m.SetState(StateFinished)

	if m.State() != StateFinished {
		t.Errorf("state = %q", m.State())
	}
	if !text.Finished || text.TimeEnd == 0 {
		t.Error("finishing the message must close the trailing text fragment")
	}
}

func TestSetStateFinishedKeepsExistingTimeEnd(t *testing.T) {
	m := NewAssistantMessage("a1")
	text := m.PushText(false)
	text.Finished = true
	text.TimeEnd = 42

	m.SetState(StateFinished)

	if text.TimeEnd != 42 {
		t.Errorf("existing end timestamp overwritten: %d", text.TimeEnd)
	}
}

func TestRemoveDetachesFragment(t *testing.T) {
	m := NewAssistantMessage("a1")
	m.Push(&ToolCallSubMessage{Summary: "Working.", ToolName: "gen"})
	mock := m.Push(&ImageMockSubMessage{Width: 512, Height: 512})
	m.Push(&AttachmentSubMessage{Image: []byte{1}})

	m.Remove(mock)

	subs := m.SubMessages()
	if len(subs) != 2 {
		t.Fatalf("expected 2 fragments after remove, got %d", len(subs))
	}
	for _, sub := range subs {
		if sub == mock {
			t.Error("removed fragment still present")
		}
	}
}

func TestTextReplace(t *testing.T) {
	m := NewAssistantMessage("a1")
	text := m.PushText(false)
	text.Stream("prose <tool>partial")

	text.Replace("prose")

	if text.Content != "prose" {
		t.Errorf("content = %q", text.Content)
	}
}
