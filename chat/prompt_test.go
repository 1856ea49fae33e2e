package chat

import (
	"strings"
	"testing"
	"time"

	"ollmui/tools"
)

func TestBuildSystemPromptDate(t *testing.T) {
	now := time.Date(2026, time.March, 7, 9, 5, 0, 0, time.UTC)

	prompt := BuildSystemPrompt(now, nil)

	if !strings.Contains(prompt, "2026/03/07") {
		t.Errorf("prompt missing zero-padded date:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Saturday") {
		t.Errorf("prompt missing weekday:\n%s", prompt)
	}
	if !strings.Contains(prompt, "09:05") {
		t.Errorf("prompt missing zero-padded time:\n%s", prompt)
	}
	if strings.Contains(prompt, "<tool>") {
		t.Error("prompt without tools must not describe the tool dialect")
	}
}

func TestBuildSystemPromptToolDeclarations(t *testing.T) {
	prompt := BuildSystemPrompt(time.Now(), []tools.Tool{tools.NewCalculatorTool()})

	if !strings.Contains(prompt, "<tool>") || !strings.Contains(prompt, "<parameters>") {
		t.Error("prompt must describe the embedded XML dialect")
	}
	if !strings.Contains(prompt, `"name": "calculator"`) {
		t.Errorf("prompt missing tool declaration:\n%s", prompt)
	}
	if !strings.Contains(prompt, "expression") {
		t.Error("prompt missing the tool's parameter schema")
	}
}
