package config

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// ParseYAML decodes a YAML configuration document. The result has defaults
// applied but has not been validated.
func ParseYAML(content []byte) (*Configuration, error) {
	var cfg Configuration
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// ParseJSON decodes a JSON configuration document.
func ParseJSON(content []byte) (*Configuration, error) {
	var cfg Configuration
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Parse detects the format from the content: documents opening with '{' are
// treated as JSON, everything else as YAML.
func Parse(content []byte) (*Configuration, error) {
	trimmed := strings.TrimLeft(string(content), " \t\r\n")
	if strings.HasPrefix(trimmed, "{") {
		return ParseJSON(content)
	}
	return ParseYAML(content)
}

// ParseForContentType picks the decoder from an HTTP Content-Type value,
// falling back to format detection when the type is absent or unknown.
func ParseForContentType(contentType string, content []byte) (*Configuration, error) {
	switch {
	case strings.Contains(contentType, "json"):
		return ParseJSON(content)
	case strings.Contains(contentType, "yaml"), strings.Contains(contentType, "yml"):
		return ParseYAML(content)
	default:
		return Parse(content)
	}
}

// MarshalYAML renders the document for export and persistence.
func MarshalYAML(cfg *Configuration) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	return out, nil
}

// MarshalJSON renders the document as indented JSON for export.
func MarshalJSON(cfg *Configuration) ([]byte, error) {
	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return out, nil
}
