package db

import "errors"

var (
	// ErrNotFound is returned when a row does not exist or is not visible to the caller
	ErrNotFound = errors.New("not found")
	// ErrEmailTaken is returned when registering an email that already has an account
	ErrEmailTaken = errors.New("email already registered")
)

// Database defines the interface for all database operations.
// Owner-scoped lookups return ErrNotFound for rows owned by someone else.
type Database interface {
	// Users
	CreateUser(name, email, password string) (*User, error)
	GetUserByEmail(email string) (*User, error)
	GetUserByID(id string) (*User, error)
	UpdateUserAPIKey(userID string, apiKey *string) error

	// Bots
	ListBotsByOwner(ownerID string) ([]Bot, error)
	GetBot(id string) (*Bot, error)
	GetBotForOwner(id, ownerID string) (*Bot, error)
	GetBotsForOwner(ids []string, ownerID string) ([]Bot, error)
	CreateBot(bot *Bot) (*Bot, error)
	UpdateBot(id, ownerID string, name, instruction *string) (*Bot, error)
	UpdateBotIntegration(id, ownerID string, integration ChatIntegration) (*Bot, error)
	DeleteBot(id, ownerID string) error

	// Files
	CreateFile(file *File) (*File, error)
	ListFilesWithBots(ownerID string) ([]FileWithBots, error)
	GetFileForOwner(remoteFileID, ownerID string) (*FileWithBots, error)
	DeleteFile(id string) error

	// File to bot associations
	AddFileToBot(fileID, botID string) (bool, error)
	RemoveFileFromBot(fileID, botID string) error
	RemoveFileAssociations(fileID string) error
	RemoveBotAssociations(botID string) error
}
