package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// LexiconConfig represents the structure of the lexicon YAML file.
// Each key lists the phrases for one crisis tier.
type LexiconConfig struct {
	High   []string `yaml:"high"`
	Medium []string `yaml:"medium"`
	Low    []string `yaml:"low"`
}

// LoadLexiconFile loads a lexicon override from path.
// Returns nil without error if path is empty or the file doesn't exist.
func LoadLexiconFile(path string) (*LexiconConfig, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Lexicon file is optional
			return nil, nil
		}
		return nil, err
	}

	var cfg LexiconConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// IsEmpty returns true if the file defines no phrases at all.
func (c *LexiconConfig) IsEmpty() bool {
	return c == nil || (len(c.High) == 0 && len(c.Medium) == 0 && len(c.Low) == 0)
}
