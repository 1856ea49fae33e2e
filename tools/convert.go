package tools

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
)

// ConvertToOllama converts tool declarations to the Ollama API tool format.
func ConvertToOllama(tools []Tool) []api.Tool {
	ollamaTools := make([]api.Tool, 0, len(tools))

	for _, tool := range tools {
		ollamaTools = append(ollamaTools, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  convertSchemaToOllamaParameters(tool),
			},
		})
	}

	return ollamaTools
}

func convertSchemaToOllamaParameters(tool Tool) api.ToolFunctionParameters {
	schema := tool.Parameters
	params := api.ToolFunctionParameters{
		Type:       schema.Type,
		Required:   schema.Required,
		Properties: make(map[string]api.ToolProperty),
	}

	if schema.Defs != nil {
		params.Defs = schema.Defs
	}

	for name, value := range schema.Properties {
		params.Properties[name] = convertPropertyValue(value)
	}

	return params
}

// convertPropertyValue maps one loosely typed JSON-Schema property to an
// Ollama ToolProperty.
func convertPropertyValue(value any) api.ToolProperty {
	toolProp := api.ToolProperty{}

	propMap, ok := value.(map[string]any)
	if !ok {
		bytes, err := json.Marshal(value)
		if err != nil {
			return toolProp
		}
		var m map[string]any
		if err := json.Unmarshal(bytes, &m); err != nil {
			return toolProp
		}
		propMap = m
	}

	if typeVal, ok := propMap["type"]; ok {
		switch t := typeVal.(type) {
		case string:
			toolProp.Type = api.PropertyType{t}
		case []string:
			toolProp.Type = api.PropertyType(t)
		case []any:
			types := make([]string, 0, len(t))
			for _, v := range t {
				if s, ok := v.(string); ok {
					types = append(types, s)
				}
			}
			toolProp.Type = api.PropertyType(types)
		}
	}

	if desc, ok := propMap["description"].(string); ok {
		toolProp.Description = desc
	}

	if enumVal, ok := propMap["enum"]; ok {
		if enumSlice, ok := enumVal.([]any); ok {
			toolProp.Enum = enumSlice
		}
	}

	if items, ok := propMap["items"]; ok {
		toolProp.Items = items
	}

	if anyOfVal, ok := propMap["anyOf"]; ok {
		if anyOfSlice, ok := anyOfVal.([]any); ok {
			anyOfProps := make([]api.ToolProperty, 0, len(anyOfSlice))
			for _, item := range anyOfSlice {
				anyOfProps = append(anyOfProps, convertPropertyValue(item))
			}
			toolProp.AnyOf = anyOfProps
		}
	}

	return toolProp
}

// ConvertToOpenAI converts tool declarations to the OpenAI function-tool
// format, shared by every OpenAI-compatible backend.
func ConvertToOpenAI(tools []Tool) []openai.ChatCompletionToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	result := make([]openai.ChatCompletionToolUnionParam, len(tools))

	for i, tool := range tools {
		schema := tool.Parameters
		params := openai.FunctionParameters{
			"type":       schema.Type,
			"properties": schema.Properties,
		}

		if len(schema.Required) > 0 {
			params["required"] = schema.Required
		}

		if schema.Defs != nil {
			params["$defs"] = schema.Defs
		}

		result[i] = openai.ChatCompletionFunctionTool(
			openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  params,
			},
		)
	}

	return result
}

// ConvertToAnthropic converts tool declarations to Anthropic's tool-use
// format.
func ConvertToAnthropic(tools []Tool) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	result := make([]anthropic.ToolUnionParam, len(tools))

	for i, tool := range tools {
		schema := tool.Parameters
		inputSchema := anthropic.ToolInputSchemaParam{
			Properties: schema.Properties,
		}

		if len(schema.Required) > 0 {
			inputSchema.Required = schema.Required
		}

		if schema.Defs != nil {
			inputSchema.ExtraFields = map[string]any{
				"$defs": schema.Defs,
			}
		}

		result[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Name)

		if tool.Description != "" {
			result[i].OfTool.Description = anthropic.String(tool.Description)
		}
	}

	return result
}

// ParseToolArguments parses a JSON arguments payload into a map, returning
// an empty map on malformed input.
func ParseToolArguments(argsJSON string) map[string]any {
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return make(map[string]any)
	}
	return args
}
