package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GenerateDefault writes DefaultConfig() to path as YAML, for the CLI's
// `init` subcommand.
func GenerateDefault(path string) error {
	out, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("config: marshal default: %w", err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
