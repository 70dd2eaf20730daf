package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadManifest reads a pipeline definition from a YAML file.
func LoadManifest(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseManifest(data)
}

// ParseManifest decodes a pipeline definition from YAML bytes.
func ParseManifest(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse pipeline manifest: %w", err)
	}
	return &def, nil
}

// Validate checks the definition by attempting graph construction. It
// reports the same GraphError a Build call would.
func (d *Definition) Validate() error {
	_, err := Build(d)
	return err
}
