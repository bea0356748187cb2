package tool

import (
	"encoding/json"
	"fmt"
)

// Config describes a typed tool's identity and declared behavior.
type Config struct {
	Name        string
	Description string
	Rule        UsageRule
	Examples    []Example
}

// typedTool adapts a typed Go function into Tool, generating its schema
// by reflection off In. Package functiontool follows the same pattern with
// its own implementation; built-in tools use this one.
type typedTool[In any] struct {
	cfg    Config
	schema map[string]any
	fn     func(Context, In) (map[string]any, error)
}

// New creates a Tool from a typed function. In must be a struct with
// json/jsonschema tags describing its parameters.
func New[In any](cfg Config, fn func(Context, In) (map[string]any, error)) (Tool, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("tool: name is required")
	}
	if cfg.Description == "" {
		return nil, fmt.Errorf("tool: description is required")
	}
	schema, err := GenerateSchema[In]()
	if err != nil {
		return nil, fmt.Errorf("tool: generate schema for %s: %w", cfg.Name, err)
	}
	return &typedTool[In]{cfg: cfg, schema: schema, fn: fn}, nil
}

func (t *typedTool[In]) Name() string           { return t.cfg.Name }
func (t *typedTool[In]) Description() string    { return t.cfg.Description }
func (t *typedTool[In]) UsageRule() UsageRule   { return t.cfg.Rule }
func (t *typedTool[In]) Examples() []Example    { return t.cfg.Examples }
func (t *typedTool[In]) Schema() map[string]any { return t.schema }

func (t *typedTool[In]) Call(ctx Context, params map[string]any) (map[string]any, error) {
	var in In
	if err := mapToStruct(params, &in); err != nil {
		return nil, &InvalidToolParametersError{
			Name:     t.cfg.Name,
			Schema:   t.schema,
			Provided: params,
			Errors:   []string{err.Error()},
		}
	}
	return t.fn(ctx, in)
}

// mapToStruct round-trips a map[string]any into a typed struct via JSON,
// the same conversion package functiontool uses for its typed arguments.
func mapToStruct(m map[string]any, target any) error {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	return json.Unmarshal(data, target)
}

var _ Tool = (*typedTool[struct{}])(nil)
