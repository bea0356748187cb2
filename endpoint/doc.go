// Package endpoint provides the write-only sink contract consumed by
// datasource.MessageRouter, plus a handful of illustrative implementations
// (CLI, Discord, group broadcast) for wiring a running coordinator to real
// output channels.
package endpoint
