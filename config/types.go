package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure for a patterncore deployment.
type Config struct {
	Version string `yaml:"version,omitempty"`
	Name    string `yaml:"name,omitempty"`

	Store      StoreConfig                 `yaml:"store,omitempty"`
	LLMs       map[string]*LLMConfig       `yaml:"llms,omitempty"`
	Embedders  map[string]*EmbedderConfig  `yaml:"embedders,omitempty"`
	Agents     map[string]*AgentConfig     `yaml:"agents,omitempty"`
	Groups     map[string]*GroupConfig     `yaml:"groups,omitempty"`
	DataSources map[string]*DataSourceConfig `yaml:"data_sources,omitempty"`
	Endpoints  map[string]*EndpointConfig  `yaml:"endpoints,omitempty"`

	Server ServerConfig `yaml:"server,omitempty"`
	Logger LoggerConfig `yaml:"logger,omitempty"`
}

// StoreConfig configures the entity store's backing database.
type StoreConfig struct {
	// Driver selects the database/sql driver: "sqlite" (default), "postgres",
	// "pgx", or "mysql".
	Driver string `yaml:"driver,omitempty"`
	// DSN is the driver-specific connection string. For sqlite this is a
	// file path ("./pattern.db" or ":memory:").
	DSN string `yaml:"dsn,omitempty"`
}

func (s *StoreConfig) SetDefaults() {
	if s.Driver == "" {
		s.Driver = "sqlite"
	}
	if s.DSN == "" {
		s.DSN = "pattern.db"
	}
}

func (s *StoreConfig) Validate() error {
	switch s.Driver {
	case "sqlite", "postgres", "pgx", "mysql":
	default:
		return fmt.Errorf("unsupported driver %q", s.Driver)
	}
	return nil
}

// LLMConfig configures one named model.LLM instance.
type LLMConfig struct {
	// Provider selects the adapter: "anthropic" is the only one wired in
	// core today; other values are accepted so a composition root can
	// plug in its own adapter.
	Provider    string   `yaml:"provider,omitempty"`
	Model       string   `yaml:"model,omitempty"`
	APIKey      string   `yaml:"api_key,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   *int     `yaml:"max_tokens,omitempty"`
}

func (l *LLMConfig) SetDefaults() {
	if l.Provider == "" {
		l.Provider = "anthropic"
	}
}

func (l *LLMConfig) Validate() error {
	if l.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	return nil
}

// EmbedderConfig configures one named embeddings.Provider instance.
type EmbedderConfig struct {
	Provider   string `yaml:"provider,omitempty"`
	Model      string `yaml:"model,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
	Dimensions int    `yaml:"dimensions,omitempty"`
}

func (e *EmbedderConfig) SetDefaults() {
	if e.Provider == "" {
		e.Provider = "gemini"
	}
}

func (e *EmbedderConfig) Validate() error {
	return nil
}

// AgentConfig configures one agent.Agent instance.
type AgentConfig struct {
	LLM          string   `yaml:"llm,omitempty"`
	Tools        []string `yaml:"tools,omitempty"`
	SystemPrompt string   `yaml:"system_prompt,omitempty"`
}

func (a *AgentConfig) SetDefaults(llms map[string]*LLMConfig) {
	if a.LLM != "" {
		return
	}
	if _, ok := llms["default"]; ok {
		a.LLM = "default"
		return
	}
	for name := range llms {
		a.LLM = name
		break
	}
}

func (a *AgentConfig) Validate(llms map[string]*LLMConfig) error {
	if a.LLM != "" {
		if _, ok := llms[a.LLM]; !ok {
			return fmt.Errorf("references undefined llm %q", a.LLM)
		}
	}
	return nil
}

// GroupConfig configures one coordination pattern (entity.Group plus its
// PatternConfig).
type GroupConfig struct {
	Pattern string         `yaml:"pattern,omitempty"` // round_robin, voting, pipeline, supervisor, sleeptime
	Members []string       `yaml:"members,omitempty"`
	Config  map[string]any `yaml:"config,omitempty"` // decoded into the pattern's typed config by coordination
}

func (g *GroupConfig) Validate() error {
	switch g.Pattern {
	case "round_robin", "voting", "pipeline", "supervisor", "sleeptime":
	default:
		return fmt.Errorf("unsupported pattern %q", g.Pattern)
	}
	if len(g.Members) == 0 {
		return fmt.Errorf("at least one member is required")
	}
	return nil
}

// DataSourceConfig configures one datasource.DataSource instance.
type DataSourceConfig struct {
	Type   string         `yaml:"type,omitempty"` // file, discord, atproto
	Target string         `yaml:"target,omitempty"`
	Config map[string]any `yaml:"config,omitempty"`
}

func (d *DataSourceConfig) Validate() error {
	switch d.Type {
	case "file", "discord", "atproto":
	default:
		return fmt.Errorf("unsupported data source type %q", d.Type)
	}
	return nil
}

// EndpointConfig configures one endpoint.Endpoint instance.
type EndpointConfig struct {
	Type   string         `yaml:"type,omitempty"` // cli, discord, broadcast
	Config map[string]any `yaml:"config,omitempty"`
}

func (e *EndpointConfig) Validate() error {
	switch e.Type {
	case "cli", "discord", "broadcast":
	default:
		return fmt.Errorf("unsupported endpoint type %q", e.Type)
	}
	return nil
}

// ServerConfig configures the illustrative chi-based HTTP surface.
type ServerConfig struct {
	Address string `yaml:"address,omitempty"`
}

func (s *ServerConfig) SetDefaults() {
	if s.Address == "" {
		s.Address = ":8080"
	}
}

// LoggerConfig configures the package-level slog logger.
type LoggerConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"` // text or json
}

func (l *LoggerConfig) SetDefaults() {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

func (l *LoggerConfig) Validate() error {
	switch strings.ToLower(l.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q", l.Format)
	}
	return nil
}

// SetDefaults fills in unset fields across the whole config tree.
func (c *Config) SetDefaults() {
	c.Store.SetDefaults()
	c.Server.SetDefaults()
	c.Logger.SetDefaults()

	for _, llm := range c.LLMs {
		llm.SetDefaults()
	}
	for _, emb := range c.Embedders {
		emb.SetDefaults()
	}
	for _, a := range c.Agents {
		a.SetDefaults(c.LLMs)
	}
}

// Validate checks the configuration for errors, collecting as many as
// possible rather than stopping at the first.
func (c *Config) Validate() error {
	var errs []string

	if err := c.Store.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("store: %v", err))
	}
	for name, llm := range c.LLMs {
		if err := llm.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("llm %q: %v", name, err))
		}
	}
	for name, emb := range c.Embedders {
		if err := emb.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("embedder %q: %v", name, err))
		}
	}
	for name, a := range c.Agents {
		if err := a.Validate(c.LLMs); err != nil {
			errs = append(errs, fmt.Sprintf("agent %q: %v", name, err))
		}
	}
	for name, g := range c.Groups {
		if err := g.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("group %q: %v", name, err))
		}
	}
	for name, ds := range c.DataSources {
		if err := ds.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("data_source %q: %v", name, err))
		}
	}
	for name, ep := range c.Endpoints {
		if err := ep.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("endpoint %q: %v", name, err))
		}
	}
	if err := c.Logger.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logger: %v", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
