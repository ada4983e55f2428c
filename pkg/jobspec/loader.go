package jobspec

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a job spec from path.
//
// .json files are parsed as JSON, everything else as YAML (a JSON superset).
// The raw document is validated against the embedded schema before it is
// decoded, then defaults are applied.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("job spec not found: %s", path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied reading job spec: %s", path)
		}
		return nil, fmt.Errorf("failed to read job spec: %w", err)
	}
	return LoadFromBytes(data, path)
}

// LoadFromReader reads and validates a job spec from r. path is only used
// for format detection and error messages.
func LoadFromReader(r io.Reader, path string) (*Spec, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read job spec: %w", err)
	}
	return LoadFromBytes(data, path)
}

// LoadFromBytes parses and validates a job spec from raw bytes.
func LoadFromBytes(data []byte, path string) (*Spec, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.New("job spec is empty")
	}

	isJSON := strings.EqualFold(filepath.Ext(path), ".json")

	jsonData, err := toJSON(data, isJSON)
	if err != nil {
		return nil, err
	}
	if err := ValidateRaw(jsonData); err != nil {
		return nil, err
	}

	var spec Spec
	if isJSON {
		err = json.Unmarshal(data, &spec)
	} else {
		err = yaml.Unmarshal(data, &spec)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid job spec %s: %w", path, err)
	}

	spec.ApplyDefaults()
	return &spec, nil
}

func toJSON(data []byte, isJSON bool) ([]byte, error) {
	if isJSON {
		var raw any
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid JSON in job spec: %w", err)
		}
		return data, nil
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML in job spec: %w", err)
	}
	out, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to convert job spec to JSON: %w", err)
	}
	return out, nil
}
