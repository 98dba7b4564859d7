package conversation

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LoadFromFile reads messages from a JSON or YAML file.
func LoadFromFile(filename string) (Conversation, error) {
	switch {
	case strings.HasSuffix(filename, ".json"):
		return loadFromJSONFile(filename)
	case strings.HasSuffix(filename, ".yaml"), strings.HasSuffix(filename, ".yml"):
		return loadFromYAMLFile(filename)
	default:
		return nil, errors.Errorf("unsupported conversation file %s, expected .json or .yaml", filename)
	}
}

func loadFromYAMLFile(filename string) (Conversation, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	var messages Conversation
	if err := yaml.NewDecoder(f).Decode(&messages); err != nil {
		return nil, errors.Wrapf(err, "could not decode %s", filename)
	}

	return messages, messages.Validate()
}

func loadFromJSONFile(filename string) (Conversation, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	var messages Conversation
	if err := json.NewDecoder(f).Decode(&messages); err != nil {
		return nil, errors.Wrapf(err, "could not decode %s", filename)
	}

	return messages, messages.Validate()
}

// SaveToFile writes the conversation as indented JSON or YAML, depending on the extension.
func (c Conversation) SaveToFile(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	if strings.HasSuffix(filename, ".yaml") || strings.HasSuffix(filename, ".yml") {
		encoder := yaml.NewEncoder(f)
		defer func() {
			_ = encoder.Close()
		}()
		return encoder.Encode(c)
	}

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(c)
}
