package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// decodeStrict decodes config bytes into cfg, rejecting unknown fields and
// trailing documents. YAML files are unmarshaled into a generic tree and
// re-encoded as JSON first, so one strict json.Decoder covers both formats
// with identical field names and error behavior.
func decodeStrict(path string, data []byte, cfg *Config) error {
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		var tree any
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return fmt.Errorf("yaml: %w", err)
		}
		b, err := json.Marshal(stringifyKeys(tree))
		if err != nil {
			return fmt.Errorf("yaml: %w", err)
		}
		data = b
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	// A second document (concatenated JSON, stray tokens) is a broken edit,
	// not extra config.
	switch err := dec.Decode(&struct{}{}); err {
	case io.EOF:
		return nil
	case nil:
		return errors.New("trailing data after config document")
	default:
		return err
	}
}

// stringifyKeys rewrites every map key in the YAML tree to a string, since
// JSON objects allow nothing else. Group and camera names that YAML parsed
// as numbers ("groups: {123: ...}") come out as their decimal form.
func stringifyKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			t[k] = stringifyKeys(child)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[fmt.Sprint(k)] = stringifyKeys(child)
		}
		return out
	case []any:
		for i, child := range t {
			t[i] = stringifyKeys(child)
		}
		return t
	}
	return v
}
