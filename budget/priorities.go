package budget

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type prioritiesFile struct {
	Models []ModelPriority `json:"models" yaml:"models"`
}

// LoadPriorities reads model priorities from a YAML or JSON file, chosen by
// extension. The document is either a list or an object with a "models" list.
func LoadPriorities(path string) ([]ModelPriority, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read priorities: %w", err)
	}

	var priorities []ModelPriority
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		priorities, err = decodePriorities(data, json.Unmarshal)
	case ".yaml", ".yml":
		priorities, err = decodePriorities(data, yaml.Unmarshal)
	default:
		return nil, fmt.Errorf("priorities %s: unsupported extension (want .yaml, .yml or .json)", path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse priorities %s: %w", path, err)
	}
	return priorities, nil
}

func decodePriorities(data []byte, unmarshal func([]byte, any) error) ([]ModelPriority, error) {
	var list []ModelPriority
	if err := unmarshal(data, &list); err == nil {
		return list, nil
	}
	var f prioritiesFile
	if err := unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f.Models, nil
}
