package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Save writes the document to path as YAML. The write goes through a
// temporary file and a rename so a crash mid-write never leaves a torn
// document behind.
func Save(path string, cfg *Configuration) error {
	content, err := MarshalYAML(cfg)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// Load reads and validates the document at path. A missing file is not an
// error; it returns (nil, nil) so callers can start with an empty registry.
func Load(path string) (*Configuration, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := ParseYAML(content)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
