// Package mcp exposes the network assistant over the Model Context Protocol.
package mcp

import (
	"sort"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// param describes one tool argument.
type param struct {
	Type        string
	Description string
	Required    bool
	Enum        []string
}

// toolSpec describes a tool before it is converted to its MCP form.
type toolSpec struct {
	Name        string
	Description string
	Params      map[string]param
}

// toMCPTool converts a toolSpec to an mcp.Tool with JSON Schema.
func (spec toolSpec) toMCPTool() *mcpsdk.Tool {
	props := make(map[string]any, len(spec.Params))
	var required []string

	for name, p := range spec.Params {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		props[name] = prop

		if p.Required {
			required = append(required, name)
		}
	}

	sort.Strings(required)

	inputSchema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		inputSchema["required"] = required
	}

	return &mcpsdk.Tool{
		Name:        spec.Name,
		Description: spec.Description,
		InputSchema: inputSchema,
	}
}
