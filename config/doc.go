// Package config provides YAML configuration loading for cmd/patternd:
// typed structs with SetDefaults and Validate methods, ${VAR}/${VAR:-default}
// environment expansion, and optional .env loading via godotenv.
package config
