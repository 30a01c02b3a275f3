package app

import (
	"botdesk/internal/clock"
	"botdesk/internal/config"
	"botdesk/internal/repository/db"
	"botdesk/internal/service/assistant"
	"botdesk/internal/service/chatplatform"
)

// Config holds all application dependencies and configuration
type Config struct {
	// Database interface for data persistence
	DB db.Database
	// Centralized application configuration
	AppConfig *config.AppConfig
	// Assistants builds provider clients per API key
	Assistants assistant.Factory
	// Chat sends bot replies to the chat platform
	Chat chatplatform.Client
	// Clock paces run polling
	Clock clock.Clock
}

// NewConfig creates a new application configuration
func NewConfig(database db.Database, appConfig *config.AppConfig, factory assistant.Factory, chat chatplatform.Client, clk clock.Clock) *Config {
	return &Config{
		DB:         database,
		AppConfig:  appConfig,
		Assistants: factory,
		Chat:       chat,
		Clock:      clk,
	}
}

// ModelsConfig returns the assistant model list
func (c *Config) ModelsConfig() *config.ModelsConfig {
	return c.AppConfig.Models
}

// ClientFor builds a provider client for the user, falling back to the process-wide key
func (c *Config) ClientFor(user *db.User) (assistant.Client, error) {
	return assistant.ClientForUser(c.Assistants, user, c.AppConfig.Provider.FallbackAPIKey)
}

