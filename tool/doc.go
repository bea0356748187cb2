// Package tool defines the Tool contract agents invoke, the registry that
// dispatches by name with JSON-schema-described parameters, and the
// permission gate mutations must clear before they run.
//
// A Tool carries a typed Input and typed Output; the registry wraps each
// tool behind a dynamic-dispatch adapter so callers (the agent runtime,
// the MCP server surface) only ever see JSON in and JSON out, with schemas
// generated by reflection off the typed Input via invopop/jsonschema, in
// the same style as the functiontool package's typed-function adapter.
package tool
