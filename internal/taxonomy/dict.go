package taxonomy

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// Dictionary is an externally maintained localized-text table keyed by
// full rule code. It supplements the curated translations with better
// descriptions for codes we have not hand-written yet.
type Dictionary map[string]string

// LoadDictionary reads a YAML dictionary file. An empty path returns an
// empty dictionary, not an error: the dictionary is optional data.
func LoadDictionary(path string) (Dictionary, error) {
	if path == "" {
		return Dictionary{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	dict := Dictionary{}
	if err := yaml.Unmarshal(data, &dict); err != nil {
		return nil, fmt.Errorf("parse dictionary: %w", err)
	}
	return dict, nil
}
