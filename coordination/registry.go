package coordination

import (
	"fmt"

	"github.com/patterncore/pattern/internal/registry"
)

// managers holds one long-lived GroupManager instance per built-in
// pattern — every implementation here is stateless beyond its default
// parser/evaluator wiring, so registering singletons once at package
// init avoids reconstructing one per RouteMessage call.
var managers = registry.NewBaseRegistry[GroupManager]()

func init() {
	register := func(pattern PatternKind, m GroupManager) {
		if err := managers.Register(string(pattern), m); err != nil {
			panic(fmt.Sprintf("coordination: %v", err))
		}
	}
	register(PatternRoundRobin, NewRoundRobin())
	register(PatternVoting, NewVoting())
	register(PatternPipeline, NewPipeline())
	register(PatternSupervisor, NewSupervisor())
	register(PatternSleeptime, NewSleeptime())
}

// NewManager returns the GroupManager for pattern, matching
// entity.Group.Pattern's string values.
func NewManager(pattern PatternKind) (GroupManager, error) {
	m, ok := managers.Get(string(pattern))
	if !ok {
		return nil, fmt.Errorf("coordination: unknown pattern %q (available: %v)", pattern, managers.Names())
	}
	return m, nil
}
