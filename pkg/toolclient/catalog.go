package toolclient

import (
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ParamSpec describes one tool parameter.
type ParamSpec struct {
	Name        string        `json:"name" mapstructure:"name"`
	Type        string        `json:"type" mapstructure:"type"` // string, number, integer, boolean
	Description string        `json:"description" mapstructure:"description"`
	Required    bool          `json:"required" mapstructure:"required"`
	Enum        []interface{} `json:"enum,omitempty" mapstructure:"enum"`
}

// ToolDefinition maps a tool handle to its HTTP endpoint and parameter
// schema. The catalog is static, read-only configuration.
type ToolDefinition struct {
	Handle      string      `json:"handle" mapstructure:"handle"`
	Description string      `json:"description" mapstructure:"description"`
	Endpoint    string      `json:"endpoint" mapstructure:"endpoint"`
	Parameters  []ParamSpec `json:"parameters" mapstructure:"parameters"`
}

// Catalog holds tool definitions with their compiled validation schemas.
type Catalog struct {
	tools   map[string]*ToolDefinition
	schemas map[string]*gojsonschema.Schema
	mu      sync.RWMutex
}

// NewCatalog compiles a catalog from tool definitions.
func NewCatalog(defs []ToolDefinition) (*Catalog, error) {
	c := &Catalog{
		tools:   make(map[string]*ToolDefinition, len(defs)),
		schemas: make(map[string]*gojsonschema.Schema, len(defs)),
	}

	for i := range defs {
		def := defs[i]
		if def.Handle == "" {
			return nil, fmt.Errorf("tool definition %d: handle is required", i)
		}
		if def.Endpoint == "" {
			return nil, fmt.Errorf("tool %s: endpoint is required", def.Handle)
		}

		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def.InputSchema()))
		if err != nil {
			return nil, fmt.Errorf("tool %s: failed to compile parameter schema: %w", def.Handle, err)
		}

		c.tools[def.Handle] = &def
		c.schemas[def.Handle] = schema
	}

	return c, nil
}

// Get returns the definition for a handle, or nil when unknown.
func (c *Catalog) Get(handle string) *ToolDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tools[handle]
}

// Handles returns all known tool handles.
func (c *Catalog) Handles() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.tools))
	for handle := range c.tools {
		out = append(out, handle)
	}
	return out
}

// Validate checks params against the tool's compiled schema: required-field
// presence, primitive type match and enum membership. Returns a list of
// violation messages; empty means valid.
func (c *Catalog) Validate(handle string, params map[string]interface{}) ([]string, error) {
	c.mu.RLock()
	schema, ok := c.schemas[handle]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", handle)
	}

	if params == nil {
		params = map[string]interface{}{}
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	if result.Valid() {
		return nil, nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return violations, nil
}

// InputSchema renders the parameter list as a JSON-schema object, the shape
// both gojsonschema and the LLM tool declarations consume.
func (d *ToolDefinition) InputSchema() map[string]interface{} {
	properties := make(map[string]interface{}, len(d.Parameters))
	required := []string{}

	for _, p := range d.Parameters {
		prop := map[string]interface{}{
			"type":        p.Type,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
