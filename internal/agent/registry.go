package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ToolHandler executes a tool with loosely typed arguments and returns a
// JSON-encoded payload.
type ToolHandler func(ctx context.Context, args map[string]any) (json.RawMessage, error)

// ToolSpec contains metadata+handler for prompt construction and execution.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  string
	Handler     ToolHandler
}

// ToolRegistry is an immutable name→tool table shared by the prompt composer
// and the dispatcher.
type ToolRegistry struct {
	tools        map[string]ToolSpec
	specs        []ToolSpec
	descriptions string
}

// NewToolRegistry builds a registry from specs. Names must be unique and every
// tool needs a description and a handler.
func NewToolRegistry(specs ...ToolSpec) (*ToolRegistry, error) {
	reg := &ToolRegistry{tools: make(map[string]ToolSpec, len(specs))}
	var errs []error
	for _, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		switch {
		case name == "":
			errs = append(errs, errors.New("tool with empty name"))
			continue
		case strings.TrimSpace(spec.Description) == "":
			errs = append(errs, fmt.Errorf("tool %s: empty description", name))
			continue
		case spec.Handler == nil:
			errs = append(errs, fmt.Errorf("tool %s: nil handler", name))
			continue
		}
		if _, dup := reg.tools[name]; dup {
			errs = append(errs, fmt.Errorf("tool %s: registered twice", name))
			continue
		}
		spec.Name = name
		reg.tools[name] = spec
		reg.specs = append(reg.specs, spec)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("build tool registry: %w", errors.Join(errs...))
	}
	sort.Slice(reg.specs, func(i, j int) bool {
		return reg.specs[i].Name < reg.specs[j].Name
	})
	reg.descriptions = renderDescriptions(reg.specs)
	return reg, nil
}

// Lookup returns the tool registered under name.
func (r *ToolRegistry) Lookup(name string) (ToolSpec, bool) {
	spec, ok := r.tools[name]
	return spec, ok
}

// Has reports whether a tool is registered.
func (r *ToolRegistry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Specs returns all registered tool specs sorted by name.
func (r *ToolRegistry) Specs() []ToolSpec {
	out := make([]ToolSpec, len(r.specs))
	copy(out, r.specs)
	return out
}

// Descriptions returns the tool listing embedded in the decision prompt.
func (r *ToolRegistry) Descriptions() string {
	return r.descriptions
}

func renderDescriptions(specs []ToolSpec) string {
	var b strings.Builder
	for i, spec := range specs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- Function Name: %s\n", spec.Name)
		fmt.Fprintf(&b, "  Description: %s\n", strings.TrimSpace(spec.Description))
		if spec.Parameters != "" {
			fmt.Fprintf(&b, "  Parameters (JSON Schema): %s\n", spec.Parameters)
		}
	}
	return b.String()
}
