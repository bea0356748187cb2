package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
)

var (
	envVarWithDefault = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*):-(.*?)\}`)
	envVarBraced      = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	envVarSimple      = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// expandEnvVars replaces ${VAR}, ${VAR:-default}, and $VAR references in s
// with the matching environment variable's value.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}

	s = envVarWithDefault.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarWithDefault.FindStringSubmatch(match)
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		return parts[2]
	})

	s = envVarBraced.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarBraced.FindStringSubmatch(match)[1])
	})

	return envVarSimple.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarSimple.FindStringSubmatch(match)[1])
	})
}

// LoadDotEnv loads environment variables from a .env file, searching
// explicit paths first, then ".env" in the current directory. Missing
// files are not an error; existing environment variables are never
// overwritten (godotenv.Load's behavior).
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := loadIfExists(path); err != nil {
			return err
		}
	}
	return loadIfExists(".env")
}

// LoadDotEnvForConfig loads a ".env" file sitting next to configPath, for
// the common layout where secrets live alongside the YAML file they
// parameterize.
func LoadDotEnvForConfig(configPath string) error {
	if configPath == "" {
		return LoadDotEnv()
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return LoadDotEnv()
	}
	return LoadDotEnv(filepath.Join(filepath.Dir(abs), ".env"))
}

func loadIfExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}
