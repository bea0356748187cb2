package entity

import (
	"time"

	"github.com/patterncore/pattern/id"
)

// AgentKind identifies the behavioral role of an Agent. Kind is open —
// Custom carries an operator-defined tag the runtime treats opaquely.
type AgentKind struct {
	Tag    string // "assistant", "specialist", "supervisor", "custom", ...
	Custom string // set only when Tag == "custom"
}

// AgentLifecycle is the configured run state of an agent.
type AgentLifecycle struct {
	State         string // "ready", "processing", "cooldown", "suspended", "error"
	CooldownUntil time.Time
}

func (l AgentLifecycle) Ready() bool {
	return l.State == "ready" && time.Now().After(l.CooldownUntil)
}

// User is the owning principal for agents, memory blocks, and identities.
type User struct {
	ID        id.UserID
	Settings  map[string]any
	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string { return "users" }

// Agent is a configured, stateful participant. SystemPrompt and Config are
// the agent's own authored configuration; Lifecycle is mutated by the
// runtime as turns are processed.
type Agent struct {
	ID           id.AgentID
	UserID       id.UserID
	Kind         AgentKind
	Name         string
	SystemPrompt string
	Config       map[string]any
	Lifecycle    AgentLifecycle
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Agent) TableName() string { return "agents" }

// Relations declares Agent's outgoing edges for load_with_relations.
func (Agent) Relations() []Relation {
	return []Relation{
		{Label: "owns", Direction: DirectionIncoming, TargetTable: "users", Cardinality: CardinalityOne},
		{Label: "has_memory", Direction: DirectionOutgoing, TargetTable: "memory_blocks", Cardinality: CardinalityMany, EdgeEntity: "agent_memory_edges"},
	}
}

// MemoryBlockType distinguishes always-visible core blocks from
// searchable archival blocks and scratch working blocks.
type MemoryBlockType string

const (
	MemoryBlockCore     MemoryBlockType = "core"
	MemoryBlockArchival MemoryBlockType = "archival"
	MemoryBlockWorking  MemoryBlockType = "working"
)

// Permission is an ordered access level; higher values subsume lower ones.
type Permission int

const (
	PermissionRead Permission = iota
	PermissionAppend
	PermissionReadWrite
	PermissionAdmin
)

func (p Permission) String() string {
	switch p {
	case PermissionRead:
		return "read"
	case PermissionAppend:
		return "append"
	case PermissionReadWrite:
		return "read_write"
	case PermissionAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// ParsePermission parses the on-the-wire strings used by MemoryBlock.Permission
// and AgentMemoryEdge.AccessLevel.
func ParsePermission(s string) (Permission, bool) {
	switch s {
	case "read":
		return PermissionRead, true
	case "append":
		return PermissionAppend, true
	case "read_write":
		return PermissionReadWrite, true
	case "admin":
		return PermissionAdmin, true
	default:
		return 0, false
	}
}

// MemoryBlock is a labeled unit of agent-visible memory.
type MemoryBlock struct {
	ID             id.MemoryBlockID
	UserID         id.UserID
	Label          string
	Value          string
	Description    string
	Type           MemoryBlockType
	Permission     Permission
	Embedding      []float32
	EmbeddingModel string
	Metadata       map[string]any
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (MemoryBlock) TableName() string { return "memory_blocks" }

// AgentMemoryEdge is the edge entity connecting an Agent to a MemoryBlock.
// Its AccessLevel may narrow, but never widen, the block's own Permission;
// see EffectivePermission.
type AgentMemoryEdge struct {
	AgentID       id.AgentID
	MemoryBlockID id.MemoryBlockID
	AccessLevel   Permission
	CreatedAt     time.Time
}

func (AgentMemoryEdge) TableName() string { return "agent_memory_edges" }

// EffectivePermission computes an agent's effective permission on a
// block, which never exceeds the block's declared permission.
func EffectivePermission(block MemoryBlock, edge AgentMemoryEdge) Permission {
	if edge.AccessLevel < block.Permission {
		return edge.AccessLevel
	}
	return block.Permission
}

// MessageRole is the speaker of a Message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// MessagePartKind discriminates the variant content carried by a Message.
type MessagePartKind string

const (
	PartText         MessagePartKind = "text"
	PartImage        MessagePartKind = "image"
	PartToolCall     MessagePartKind = "tool_call"
	PartToolResponse MessagePartKind = "tool_response"
)

// MessagePart is one element of a Message's part-sequence content.
type MessagePart struct {
	Kind         MessagePartKind
	Text         string
	ImageURL     string
	ToolCallID   id.ToolCallID
	ToolName     string
	ToolArgsJSON string
	ToolResult   string
	ToolError    string
}

// MessageContent is one of: plain text, a sequence of parts, a list of
// tool-call requests, or a list of tool responses — mirrored as a single
// struct with a discriminator rather than a Go sum type (no native
// variant types), matching the "tagged struct" approach used throughout
// this package for the original's enums.
type MessageContent struct {
	Kind  string // "text", "parts", "tool_calls", "tool_responses"
	Text  string
	Parts []MessagePart
}

// Message is append-only in the active window; compression moves it
// into the archived set without rewriting its ID.
type Message struct {
	ID          id.MessageID
	AgentID     id.AgentID
	UserID      id.UserID // zero value if the message has no owning user
	Role        MessageRole
	Content     MessageContent
	Metadata    map[string]any
	Position    int64
	Batch       id.SessionID
	SequenceNum int
	BatchType   string
	Embedding   []float32
	CreatedAt   time.Time
}

func (Message) TableName() string { return "messages" }

// MemberRole is the role a GroupMember holds within a Group.
type MemberRole struct {
	Tag    string // "regular", "supervisor", "specialist"
	Domain string // set only when Tag == "specialist"
}

// CanSelfSelect mirrors the Supervisor selector's self-selection rule:
// a routing specialist must always broadcast, never self-handle.
func (r MemberRole) CanSelfSelect() bool {
	return !(r.Tag == "specialist" && r.Domain == "routing")
}

// GroupMember is one (agent, membership) pair of a Group.
type GroupMember struct {
	AgentID      id.AgentID
	Role         MemberRole
	JoinedAt     time.Time
	IsActive     bool
	Capabilities []string
}

// Group owns a coordination pattern and opaque pattern state; the pattern
// behaviors themselves live in package coordination, which reads and
// writes this entity's PatternState through update_state.
type Group struct {
	ID            id.GroupID
	Name          string
	Description   string
	Pattern       string // "round_robin", "voting", "pipeline", "supervisor", "sleeptime"
	PatternConfig map[string]any
	PatternState  map[string]any
	Members       []GroupMember
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Group) TableName() string { return "groups" }

// AtprotoAuthMethod discriminates AtprotoIdentity's credential shape.
type AtprotoAuthMethod string

const (
	AuthOAuth       AtprotoAuthMethod = "oauth"
	AuthAppPassword AtprotoAuthMethod = "app_password"
)

// AtprotoIdentity is an illustrative external-identity entity: a Bluesky/
// AT Protocol account bound to a User.
type AtprotoIdentity struct {
	DID          string // primary key
	Handle       string
	PDSURL       string
	AuthMethod   AtprotoAuthMethod
	OAuthToken   string // set when AuthMethod == AuthOAuth
	OAuthExpiry  time.Time
	AppPassword  string // set when AuthMethod == AuthAppPassword
	UserID       id.UserID
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastAuthedAt time.Time
}

func (AtprotoIdentity) TableName() string { return "atproto_identities" }
