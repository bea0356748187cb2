package main

import "github.com/patterncore/pattern/config"

// ValidateCmd loads and validates a config file without starting the
// server, useful in CI or before a deploy.
type ValidateCmd struct{}

func (v *ValidateCmd) Run(c *cli) error {
	if _, err := config.Load(c.Config); err != nil {
		return err
	}
	return nil
}
