package workflow

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
)

// Load parses a workflow definition from YAML or JSON bytes and normalizes
// every node's data keys.
func Load(b []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(b, &def); err != nil {
		return nil, fmt.Errorf("failed to parse workflow definition: %w", err)
	}
	normalize(&def)
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadFile reads and parses a workflow definition file.
func LoadFile(path string) (*Definition, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}
	return Load(b)
}

// FromMap decodes a definition embedded in node data (meta-agent payloads).
func FromMap(m map[string]any) (*Definition, error) {
	var def Definition
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &def,
		TagName: "json",
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("invalid workflow definition: %w", err)
	}
	normalize(&def)
	return &def, nil
}

// ToMap converts a definition back to its external map form.
func (d *Definition) ToMap() map[string]any {
	b, err := json.Marshal(d)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}

func normalize(def *Definition) {
	for i := range def.Nodes {
		def.Nodes[i].Data = def.Nodes[i].Data.Normalize()
	}
}
