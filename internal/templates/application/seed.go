package application

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"

	templates "gelato-ops/internal/templates/domain"
)

// SeedFile is the yaml layout of the seed templates.
type SeedFile struct {
	Templates []templates.Template `yaml:"templates"`
}

// LoadSeed reads seed templates from a yaml file.
func LoadSeed(path string) ([]templates.Template, error) {
	if path == "" {
		return nil, errors.New("templates seed: path required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSeed(data)
}

// ParseSeed decodes and validates seed templates.
func ParseSeed(data []byte) ([]templates.Template, error) {
	var file SeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	defaults := make(map[templates.Kind]string)
	for i := range file.Templates {
		tpl := &file.Templates[i]
		tpl.Normalize()
		if tpl.ID == "" {
			return nil, errors.New("templates seed: template id required")
		}
		if err := tpl.Validate(); err != nil {
			return nil, err
		}
		if tpl.IsDefault {
			if other, ok := defaults[tpl.Kind]; ok {
				return nil, errors.New("templates seed: " + tpl.ID + " and " + other + " are both default " + string(tpl.Kind))
			}
			defaults[tpl.Kind] = tpl.ID
		}
	}
	return file.Templates, nil
}
