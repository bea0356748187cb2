package tool

import "fmt"

// ToolNotFoundError is returned by Registry.Execute when name is not
// registered.
type ToolNotFoundError struct {
	Name      string
	Available []string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool: %q not found (available: %v)", e.Name, e.Available)
}

// InvalidToolParametersError is returned by a tool built with New when
// params fail to deserialize into its typed input.
type InvalidToolParametersError struct {
	Name     string
	Schema   map[string]any
	Provided map[string]any
	Errors   []string
}

func (e *InvalidToolParametersError) Error() string {
	return fmt.Sprintf("tool: invalid parameters for %q: %v", e.Name, e.Errors)
}

// ToolExecutionFailedError wraps any error a tool's Call returns.
type ToolExecutionFailedError struct {
	Name       string
	Cause      error
	Parameters map[string]any
}

func (e *ToolExecutionFailedError) Error() string {
	return fmt.Sprintf("tool: %q execution failed: %v", e.Name, e.Cause)
}

func (e *ToolExecutionFailedError) Unwrap() error { return e.Cause }

// PermissionDeniedError is returned by a Registry's ACL check.
type PermissionDeniedError struct {
	Name         string
	CallerUserID string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("tool: %q denied for caller %q", e.Name, e.CallerUserID)
}

// All four taxonomy errors are recoverable at the agent level: the
// caller appends them as a tool-response message and presents them to
// the next model call rather than aborting the turn.
var (
	_ error = (*ToolNotFoundError)(nil)
	_ error = (*InvalidToolParametersError)(nil)
	_ error = (*ToolExecutionFailedError)(nil)
	_ error = (*PermissionDeniedError)(nil)
)
