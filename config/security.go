package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/c360/eventlatency/errors"
)

// Limits applied to anything read from files or the environment
const (
	maxConfigSize = 1 << 20
	maxEnvVarLen  = 4096
	maxPathLen    = 4096
)

var allowedConfigExts = []string{".yaml", ".yml", ".json"}

func checkPath(path string) error {
	switch {
	case path == "":
		return fmt.Errorf("empty path")
	case len(path) > maxPathLen:
		return fmt.Errorf("path too long: %d > %d", len(path), maxPathLen)
	case strings.ContainsRune(path, 0):
		return fmt.Errorf("null byte in path")
	}
	return nil
}

// validateConfigPath accepts YAML or JSON files. A relative path must stay
// inside the working directory.
func validateConfigPath(path string) error {
	if err := checkPath(path); err != nil {
		return err
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("cannot get working directory: %w", err)
		}
		rel, err := filepath.Rel(cwd, filepath.Join(cwd, path))
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return fmt.Errorf("path traversal not allowed: %s resolves outside working directory", path)
		}
	}

	if !slices.Contains(allowedConfigExts, strings.ToLower(filepath.Ext(path))) {
		return fmt.Errorf("only YAML or JSON config files allowed: %s", path)
	}
	return nil
}

// safeReadFile reads a config file after validating its path, size and type
func safeReadFile(path string) ([]byte, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot stat config file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes > %d", info.Size(), maxConfigSize)
	}

	return os.ReadFile(path)
}

// validateOutputPath checks a file the process will create or append to.
// It may not exist yet, but it must not be a directory.
func validateOutputPath(field, path string) error {
	if err := checkPath(path); err != nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", fmt.Sprintf("%s: %v", field, err))
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", fmt.Sprintf("%s is a directory: %s", field, path))
	}
	return nil
}

// validateEnvVar rejects oversized values and values with null bytes
func validateEnvVar(key, value string) error {
	if len(value) > maxEnvVarLen {
		return fmt.Errorf("environment variable %s too long: %d > %d", key, len(value), maxEnvVarLen)
	}
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("null byte in environment variable %s", key)
	}
	return nil
}
