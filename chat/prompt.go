package chat

import (
	"encoding/json"
	"fmt"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"ollmui/tools"
)

const baseSystemPrompt = `You are a helpful assistant. You are currently running in the Open LLM UI chat application.

General **live updating** information so you can provide the user with accurate help:
- Today's date is: %d/%02d/%02d
- Today is a: %s
- The current time is: %02d:%02d

You should prioritize using the english language, unless explicitly asked to speak a different language.

Don't announce to the user the current date, time or weekday unless explicitly asked to.

The chat interface you are running under correctly handles markdown with LaTeX extensions.`

const toolSystemPrompt = "At each turn, you have the ability to call to an external tool by responding in the format below.\n\n" +
	"```xml\n" +
	"<tool>\n" +
	"  <name>{tool name}</name>\n" +
	"  <summary>{short explanation of what the tool is executing, shown to the user}</summary>\n" +
	"  <parameters>\n" +
	"    <parameter name=\"{parameter name}\">{parameter value}</parameter>\n" +
	"  </parameters>\n" +
	"</tool>\n" +
	"```\n\n" +
	"After executing a tool it's output will be fed back to your message stream in json form, so you will be able to rely on information returned by it.\n" +
	"Remember, tools should be called when you are uncertain of something, or if the user references events/news/information your training data did not\n" +
	"include. You can always trust the output of tool calls, they never provide false values, unless the user explicitly tells you they do.\n\n" +
	"Things you should not do when calling tools:\n" +
	"- Do not call tools unless they explicitly help you accomplish your task that was given to you by the user, or help you accomplish a subtask in a thought\n" +
	"process you are currently in.\n" +
	"- Do not explain why you choose a tool to the user, or what parameters you are passing/passed into it unless explicitly asked.\n\n" +
	"You should NOT call tools that are not explicitly defined under this message.\n\n" +
	"Your currently available tools are:\n" +
	"```json\n%s\n```"

// promptTool is the declaration shape embedded into the system prompt for
// models without native tool calling.
type promptTool struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Parameters  mcptypes.ToolInputSchema `json:"parameters"`
}

// BuildSystemPrompt renders the system message. toolset is non-empty only
// for models lacking native tool support; their tools are described in
// the prompt so the model can use the embedded XML dialect instead.
func BuildSystemPrompt(now time.Time, toolset []tools.Tool) string {
	prompt := fmt.Sprintf(baseSystemPrompt,
		now.Year(), int(now.Month()), now.Day(),
		now.Weekday().String(),
		now.Hour(), now.Minute())

	if len(toolset) == 0 {
		return prompt
	}

	declarations := make([]promptTool, 0, len(toolset))
	for _, tool := range toolset {
		declarations = append(declarations, promptTool{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
		})
	}

	encoded, err := json.MarshalIndent(declarations, "", "  ")
	if err != nil {
		// Schemas are static data; this cannot fail in practice.
		encoded = []byte("[]")
	}

	return prompt + "\n\n" + fmt.Sprintf(toolSystemPrompt, encoded)
}
