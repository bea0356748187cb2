package tool

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
)

// GenerateSchema reflects a typed Input struct into a JSON schema
// (no $ref, MCP-compatible), using the same jsonschema/struct-tag
// convention as package functiontool.
func GenerateSchema[In any]() (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(In))

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out, nil
}

// DecodeConfig decodes a raw YAML/JSON-shaped map into a typed tool
// configuration struct, with weakly typed input conversion. No package in
// this module calls it.
func DecodeConfig(raw map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}
