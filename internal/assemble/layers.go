// SPDX-License-Identifier: MPL-2.0

package assemble

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/boltstep/boltstep/internal/jobspec"
)

const (
	// DefaultUser is the SSH user when the job spec names none.
	DefaultUser = "root"
	// DefaultRunAs is the escalation user when the job spec names none.
	DefaultRunAs = "root"
)

// TransportLayer returns the SSH transport settings under
// inventory-config.ssh. keyPath is omitted when empty.
func TransportLayer(spec *jobspec.Spec, keyPath string) map[string]any {
	ssh := map[string]any{
		"user":           spec.String(jobspec.PathTransportUsername, DefaultUser),
		"run-as":         spec.String(jobspec.PathTransportRunAs, DefaultRunAs),
		"host-key-check": false,
		"tty":            false,
	}
	if keyPath != "" {
		ssh["private-key"] = keyPath
	}
	return map[string]any{
		"inventory-config": map[string]any{
			"ssh": ssh,
		},
	}
}

// OverrideLayer returns the job spec's config map, or an empty map.
func OverrideLayer(spec *jobspec.Spec) (map[string]any, error) {
	cfg := spec.Get(jobspec.PathConfig)
	if !cfg.IsSet() {
		return map[string]any{}, nil
	}
	if !cfg.IsObject() {
		return nil, fmt.Errorf("%w: config must be an object", jobspec.ErrInvalidJobSpec)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(cfg.Raw())))
	dec.UseNumber()
	var layer map[string]any
	if err := dec.Decode(&layer); err != nil {
		return nil, fmt.Errorf("decode config overrides: %w", err)
	}
	return normalizeNumbers(layer).(map[string]any), nil
}

// SafetyLayer returns the settings that keep unattended runs quiet and free of
// side files. It is merged last so overrides cannot disable it.
func SafetyLayer() map[string]any {
	return map[string]any{
		"spinner":    false,
		"save-rerun": false,
	}
}

// normalizeNumbers turns json.Number into int64 when integral and float64
// otherwise, so the YAML encoder writes them as numbers.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeNumbers(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalizeNumbers(val)
		}
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return v
	}
}
