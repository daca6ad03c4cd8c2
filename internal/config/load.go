package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// LoadPipeline reads a pipeline file. The format follows the extension:
// .toml is TOML, anything else is YAML. Defaults are applied but the result
// is not validated; use Store or Pipeline.Validate for that.
func LoadPipeline(path string) (*Pipeline, error) {
	// #nosec G304 -- path is provided by trusted source (CLI arg or env), not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParsePipeline(data, formatOf(path))
}

// Format is a pipeline file format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

func formatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// ParsePipeline decodes data in the given format and applies defaults.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func ParsePipeline(data []byte, format Format) (*Pipeline, error) {
	var p Pipeline

	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if p.Providers == nil {
		p.Providers = make(map[string]Provider)
	}
	if p.Fields == nil {
		p.Fields = make(map[string]Field)
	}
	p.ApplyDefaults()
	return &p, nil
}
