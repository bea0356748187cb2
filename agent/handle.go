package agent

import (
	"github.com/patterncore/pattern/id"
	"github.com/patterncore/pattern/memory"
)

// Handle is the cheap, clonable reference to one agent's identity and
// private memory, passed into tool execution. Copying a Handle never
// copies the underlying Memory cache.
type Handle struct {
	AgentID id.AgentID
	Memory  *memory.Memory
}
