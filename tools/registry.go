package tools

import (
	"fmt"

	"github.com/fennelworks/claude-go/anthropic"
)

// Registry maps tool names to implementations, preserving registration
// order for the request's tools array.
type Registry struct {
	order  []Tool
	byName map[string]Tool
}

// NewRegistry builds a registry from the given tools. Duplicate names are
// an error: the model addresses tools by name, so a collision is ambiguous.
func NewRegistry(ts ...Tool) (*Registry, error) {
	r := &Registry{byName: make(map[string]Tool, len(ts))}
	for _, t := range ts {
		if _, ok := r.byName[t.Name()]; ok {
			return nil, fmt.Errorf("tools: duplicate tool name %q", t.Name())
		}
		r.byName[t.Name()] = t
		r.order = append(r.order, t)
	}
	return r, nil
}

// Get returns the tool registered under name, nil if none.
func (r *Registry) Get(name string) Tool { return r.byName[name] }

// Len reports the number of registered tools.
func (r *Registry) Len() int { return len(r.order) }

// Params returns the request descriptors in registration order.
func (r *Registry) Params() []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, t.ToParam())
	}
	return out
}
