package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"

	"seekchat/model"
)

// toolDescription falls back to naming the tool and its server when the
// server sent no description.
func toolDescription(t model.ToolDescriptor) string {
	if t.Description != "" {
		return t.Description
	}
	return fmt.Sprintf("%s from %s", t.Name, t.ServerName)
}

// toolRequired never returns nil so "required" is always sent as a list.
func toolRequired(t model.ToolDescriptor) []string {
	if t.Parameters.Required == nil {
		return []string{}
	}
	return t.Parameters.Required
}

func toolProperties(t model.ToolDescriptor) map[string]any {
	if t.Parameters.Properties == nil {
		return map[string]any{}
	}
	return t.Parameters.Properties
}

// FormatToolsForOpenAI converts tools to the chat completions "tools" list.
// The function name is the tool id so a call can be resolved back to it.
//
//	{
//	  "type": "function",
//	  "function": {
//	    "name": "get_weather",
//	    "description": "Get weather data",
//	    "parameters": {"type": "object", "properties": {...}, "required": [...]}
//	  }
//	}
func FormatToolsForOpenAI(tools []model.ToolDescriptor) []openai.ChatCompletionToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	result := make([]openai.ChatCompletionToolUnionParam, len(tools))
	for i, tool := range tools {
		result[i] = openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        tool.ID,
			Description: openai.String(toolDescription(tool)),
			Parameters: openai.FunctionParameters{
				"type":       "object",
				"properties": toolProperties(tool),
				"required":   toolRequired(tool),
			},
		})
	}
	return result
}

// FormatToolsForAnthropic converts tools to the Messages API "tools" list
// with an input_schema per tool.
func FormatToolsForAnthropic(tools []model.ToolDescriptor) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	result := make([]anthropic.ToolUnionParam, len(tools))
	for i, tool := range tools {
		schema := anthropic.ToolInputSchemaParam{
			Properties: toolProperties(tool),
			Required:   toolRequired(tool),
		}
		result[i] = anthropic.ToolUnionParamOfTool(schema, tool.ID)
		result[i].OfTool.Description = anthropic.String(toolDescription(tool))
	}
	return result
}

// FormatToolsForOllama converts tools to the Ollama chat API tool list.
func FormatToolsForOllama(tools []model.ToolDescriptor) api.Tools {
	if len(tools) == 0 {
		return nil
	}

	result := make(api.Tools, 0, len(tools))
	for _, tool := range tools {
		params := api.ToolFunctionParameters{
			Type:       "object",
			Required:   toolRequired(tool),
			Properties: make(map[string]api.ToolProperty),
		}
		for name, value := range tool.Parameters.Properties {
			params.Properties[name] = convertPropertyValue(value)
		}
		result = append(result, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        tool.ID,
				Description: toolDescription(tool),
				Parameters:  params,
			},
		})
	}
	return result
}

// convertPropertyValue converts one JSON-schema property to an Ollama
// ToolProperty.
func convertPropertyValue(propValue any) api.ToolProperty {
	toolProp := api.ToolProperty{}

	propMap, ok := propValue.(map[string]any)
	if !ok {
		data, err := json.Marshal(propValue)
		if err != nil {
			return toolProp
		}
		if err := json.Unmarshal(data, &propMap); err != nil {
			return toolProp
		}
	}

	switch t := propMap["type"].(type) {
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

	if desc, ok := propMap["description"].(string); ok {
		toolProp.Description = desc
	}
	if enum, ok := propMap["enum"].([]any); ok {
		toolProp.Enum = enum
	}
	if items, ok := propMap["items"]; ok {
		toolProp.Items = items
	}
	if anyOf, ok := propMap["anyOf"].([]any); ok {
		props := make([]api.ToolProperty, 0, len(anyOf))
		for _, item := range anyOf {
			props = append(props, convertPropertyValue(item))
		}
		toolProp.AnyOf = props
	}
	return toolProp
}
