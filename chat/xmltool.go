package chat

import (
	"encoding/xml"
	"fmt"
	"strings"

	"ollmui/tools"
)

const (
	toolOpenTag  = "<tool>"
	toolCloseTag = "</tool>"
)

// parsedToolCall is an embedded XML tool request cut out of streamed text.
type parsedToolCall struct {
	Name    string
	Summary string
	Params  map[string]any
}

type xmlToolBlock struct {
	XMLName    xml.Name `xml:"tool"`
	Name       string   `xml:"name"`
	Summary    string   `xml:"summary"`
	Parameters struct {
		Parameter []struct {
			Name  string `xml:"name,attr"`
			Value string `xml:",chardata"`
		} `xml:"parameter"`
	} `xml:"parameters"`
}

// extractToolBlock splits streamed text into the prose preceding the first
// tool block and the block itself. The prose has trailing newlines and a
// dangling "```xml" fence opener stripped, since models tend to fence the
// block. An unterminated block still yields the prose so the partial text
// can be committed before the call is rejected.
func extractToolBlock(text string) (prose, block string, err error) {
	start := strings.Index(text, toolOpenTag)
	if start < 0 {
		return "", "", &tools.ToolCallError{Reason: "missing tool block"}
	}

	prose = text[:start]
	prose = strings.TrimRight(prose, "\n")
	prose = strings.TrimSuffix(prose, "```xml")

	end := strings.LastIndex(text, toolCloseTag)
	if end < start {
		return prose, "", &tools.ToolCallError{Reason: "unterminated tool block"}
	}

	block = text[start : end+len(toolCloseTag)]
	return prose, block, nil
}

// parseToolBlock decodes one <tool> element. A missing <name> or a
// parameter without a name attribute is a malformed call.
func parseToolBlock(block string) (parsedToolCall, error) {
	var decoded xmlToolBlock
	if err := xml.Unmarshal([]byte(block), &decoded); err != nil {
		return parsedToolCall{}, &tools.ToolCallError{Reason: fmt.Sprintf("malformed tool block: %v", err)}
	}

	name := strings.TrimSpace(decoded.Name)
	if name == "" {
		return parsedToolCall{}, &tools.ToolCallError{Reason: "missing name"}
	}

	summary := strings.TrimSpace(decoded.Summary)
	if summary == "" {
		summary = fmt.Sprintf("Executing tool '%s'.", name)
	}

	params := make(map[string]any)
	for _, parameter := range decoded.Parameters.Parameter {
		if parameter.Name == "" {
			return parsedToolCall{}, &tools.ToolCallError{Reason: "parameter missing name attribute"}
		}
		params[parameter.Name] = parameter.Value
	}

	return parsedToolCall{Name: name, Summary: summary, Params: params}, nil
}
