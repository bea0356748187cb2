package id

// Each kind below is a zero-size marker type satisfying Kind; the type
// itself is never instantiated, only used as ID[kind]'s generic parameter.

type agentKind struct{}

func (agentKind) Prefix() string { return "agent" }

type userKind struct{}

func (userKind) Prefix() string { return "user" }

type memoryBlockKind struct{}

func (memoryBlockKind) Prefix() string { return "mem" }

type groupKind struct{}

func (groupKind) Prefix() string { return "group" }

type toolCallKind struct{}

func (toolCallKind) Prefix() string { return "toolcall" }

type sessionKind struct{}

func (sessionKind) Prefix() string { return "session" }

type atprotoIdentityKind struct{}

func (atprotoIdentityKind) Prefix() string { return "atproto_identity" }

type relationKind struct{}

func (relationKind) Prefix() string { return "rel" }

// Exported type aliases, one per entity in the data model.
type (
	AgentID           = ID[agentKind]
	UserID            = ID[userKind]
	MemoryBlockID     = ID[memoryBlockKind]
	GroupID           = ID[groupKind]
	ToolCallID        = ID[toolCallKind]
	SessionID         = ID[sessionKind]
	AtprotoIdentityID = ID[atprotoIdentityKind]
	RelationID        = ID[relationKind]
)

// MessageID is defined separately in message_id.go: unlike the kinds
// above it must accept arbitrary provider-assigned strings, not just the
// bare UUID New[K] produces.

// The marker types backing each alias above are unexported (they carry no
// behavior beyond Prefix), so callers cannot name them to instantiate
// New[K]/FromString[K] directly. These per-kind constructors are the public
// entry points instead.

func NewAgentID() AgentID             { return New[agentKind]() }
func NewUserID() UserID               { return New[userKind]() }
func NewMemoryBlockID() MemoryBlockID { return New[memoryBlockKind]() }
func NewGroupID() GroupID             { return New[groupKind]() }
func NewToolCallID() ToolCallID       { return New[toolCallKind]() }
func NewSessionID() SessionID         { return New[sessionKind]() }
func NewRelationID() RelationID       { return New[relationKind]() }

func AgentIDFromString(s string) (AgentID, error)             { return FromString[agentKind](s) }
func UserIDFromString(s string) (UserID, error)               { return FromString[userKind](s) }
func MemoryBlockIDFromString(s string) (MemoryBlockID, error) { return FromString[memoryBlockKind](s) }
func GroupIDFromString(s string) (GroupID, error)             { return FromString[groupKind](s) }
func ToolCallIDFromString(s string) (ToolCallID, error)       { return FromString[toolCallKind](s) }
func SessionIDFromString(s string) (SessionID, error)         { return FromString[sessionKind](s) }
func AtprotoIdentityIDFromString(s string) (AtprotoIdentityID, error) {
	return FromString[atprotoIdentityKind](s)
}
