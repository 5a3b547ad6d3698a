package skillstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"

	"github.com/pkg/errors"
)

// ensurePluginListed patches the JSON config at path so its "plugin" array
// contains pluginName, creating the file (and parent directories) when
// absent and preserving every other field. Returns true when the file was
// changed.
func ensurePluginListed(path, pluginName string) (bool, error) {
	config := make(map[string]any)

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &config); err != nil {
			return false, errors.Wrapf(err, "failed to parse %s", path)
		}
	case os.IsNotExist(err):
		// fresh file
	default:
		return false, errors.Wrapf(err, "failed to read %s", path)
	}

	plugins := stringSlice(config["plugin"])
	if slices.Contains(plugins, pluginName) {
		return false, nil
	}
	config["plugin"] = append(plugins, pluginName)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, errors.Wrapf(err, "failed to create config directory for %s", path)
	}

	out, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return false, errors.Wrap(err, "failed to encode config")
	}
	if err := os.WriteFile(path, append(out, '\n'), 0o644); err != nil {
		return false, errors.Wrapf(err, "failed to write %s", path)
	}
	return true, nil
}

// stringSlice coerces a decoded JSON value into a deduplicated string
// slice, tolerating a missing field, a scalar, or mixed-type arrays.
func stringSlice(v any) []string {
	var out []string
	add := func(s string) {
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}

	switch val := v.(type) {
	case nil:
	case string:
		add(val)
	case []any:
		for _, item := range val {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	}
	return out
}
