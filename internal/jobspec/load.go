// SPDX-License-Identifier: MPL-2.0

package jobspec

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

const (
	// FormatYAML is YAML (a superset of JSON).
	FormatYAML Format = "yaml"
	// FormatJSON is JSON.
	FormatJSON Format = "json"
	// FormatTOML is TOML.
	FormatTOML Format = "toml"

	// StdinPath is the path that selects standard input.
	StdinPath = "-"
)

// Format is the serialisation format of a job spec source.
type Format string

// FormatFromPath infers the format from a file extension. Standard input is
// read as YAML, which also accepts JSON.
func FormatFromPath(path string) (Format, error) {
	if path == StdinPath {
		return FormatYAML, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q (use .yaml, .yml, .json or .toml)", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// LoadFile reads a job spec from path, or from stdin when path is "-".
func LoadFile(path string) (*Spec, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	if path == StdinPath {
		return Load(os.Stdin, format)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open job spec: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Load(f, format)
}

// Load reads, canonicalises and validates a job spec.
func Load(r io.Reader, format Format) (*Spec, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read job spec: %w", err)
	}
	return Decode(data, format)
}

// Decode canonicalises data to JSON and validates it against the schema.
// Decoding failures and schema violations wrap ErrInvalidJobSpec.
func Decode(data []byte, format Format) (*Spec, error) {
	doc, err := canonicalize(data, format)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJobSpec, err)
	}

	spec, err := FromJSON(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJobSpec, err)
	}

	if err := validateSchema(spec.doc); err != nil {
		return nil, err
	}
	return spec, nil
}

func canonicalize(data []byte, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return data, nil
	case FormatYAML:
		doc, err := yaml.YAMLToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("parse YAML: %w", err)
		}
		return doc, nil
	case FormatTOML:
		var tree map[string]any
		if err := toml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("parse TOML: %w", err)
		}
		doc, err := json.Marshal(tree)
		if err != nil {
			return nil, fmt.Errorf("encode TOML as JSON: %w", err)
		}
		return doc, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
