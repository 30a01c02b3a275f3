package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// FallbackAssistantModel backs assistants when the model list is empty
const FallbackAssistantModel = "gpt-4o"

// Model is one model assistants may be created with
type Model struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Tier     string `json:"tier"`
}

// ModelsConfig is the ordered assistant model list; the first entry is the default
type ModelsConfig struct {
	models []Model
}

var builtinModels = []Model{
	{ID: "gpt-4o", Name: "GPT-4o", Provider: "OpenAI", Tier: "paid"},
	{ID: "gpt-4o-mini", Name: "GPT-4o mini", Provider: "OpenAI", Tier: "paid"},
}

// LoadModelsConfig reads a JSON model list from path. An empty path selects the built-in list.
func LoadModelsConfig(path string) (*ModelsConfig, error) {
	if path == "" {
		return &ModelsConfig{models: append([]Model(nil), builtinModels...)}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return parseModels(data)
}

func parseModels(data []byte) (*ModelsConfig, error) {
	var models []Model
	if err := json.Unmarshal(data, &models); err != nil {
		return nil, fmt.Errorf("invalid model list: %w", err)
	}
	if len(models) == 0 {
		return nil, errors.New("model list is empty")
	}

	seen := make(map[string]bool, len(models))
	for i, m := range models {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			return nil, fmt.Errorf("model %d has no id", i)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate model id %q", id)
		}
		seen[id] = true
		models[i].ID = id
	}
	return &ModelsConfig{models: models}, nil
}

// GetAvailableModels returns the models in configured order
func (mc *ModelsConfig) GetAvailableModels() []Model {
	return mc.models
}

// GetDefaultModel returns the model new assistants are created with
func (mc *ModelsConfig) GetDefaultModel() string {
	if mc == nil || len(mc.models) == 0 {
		return FallbackAssistantModel
	}
	return mc.models[0].ID
}
