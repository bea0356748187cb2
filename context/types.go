package context

import (
	"time"

	"github.com/patterncore/pattern/entity"
	"github.com/patterncore/pattern/tool"
)

// CompressionStrategy names one of the three window-reduction strategies.
type CompressionStrategy string

const (
	StrategyTruncation CompressionStrategy = "truncation"
	StrategyRecursive  CompressionStrategy = "recursive"
	StrategyImportance CompressionStrategy = "importance"
)

// Config parameterizes one agent's context assembly.
type Config struct {
	BaseInstructions  string
	BlockCharLimit    int
	MaxActiveMessages int
	UseXMLTags        bool
	MaxContextTokens  int
	Strategy          CompressionStrategy
	TruncationKeep    int    // messages kept by StrategyTruncation
	Model             string // passed to the tiktoken encoder lookup
}

// SetDefaults fills zero fields with workable defaults.
func (c *Config) SetDefaults() {
	if c.BlockCharLimit <= 0 {
		c.BlockCharLimit = 5000
	}
	if c.MaxActiveMessages <= 0 {
		c.MaxActiveMessages = 50
	}
	if c.MaxContextTokens <= 0 {
		c.MaxContextTokens = 8000
	}
	if c.Strategy == "" {
		c.Strategy = StrategyTruncation
	}
	if c.TruncationKeep <= 0 {
		c.TruncationKeep = 20
	}
	if c.Model == "" {
		c.Model = "gpt-4o"
	}
}

// ToolInfo is the subset of a registered tool's presentation the context
// builder needs: its name, description, and continuation rule for the
// tool-usage-rules section.
type ToolInfo struct {
	Name        string
	Description string
	Rule        tool.UsageRule
}

// FromDescriptors adapts a tool.Registry's descriptors plus a rule lookup
// into the []ToolInfo the builder expects.
func FromDescriptors(descriptors []tool.Descriptor, ruleFor func(name string) tool.UsageRule) []ToolInfo {
	out := make([]ToolInfo, 0, len(descriptors))
	for _, d := range descriptors {
		var rule tool.UsageRule
		if ruleFor != nil {
			rule = ruleFor(d.Name)
		}
		out = append(out, ToolInfo{Name: d.Name, Description: d.Description, Rule: rule})
	}
	return out
}

// Metadata carries the counters surfaced in the memory-metadata system
// prompt section.
type Metadata struct {
	CurrentTime          time.Time
	LastMemoryModified   time.Time
	RecallMessageCount   int
	CompressionEvents    int
	OriginalMessageCount int
	FinalMessageCount    int
	EstimatedTokens      int
}

// AgentContext is the builder's output: everything needed to issue one
// model call.
type AgentContext struct {
	SystemPrompt string
	Tools        []ToolInfo
	Messages     []entity.Message
	Metadata     Metadata
}
