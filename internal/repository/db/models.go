package db

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User represents a user in the database
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	APIKey       *string // provider API key, nil until the user stores one
	CreatedAt    time.Time
}

// VerifyPassword checks if the provided password matches the user's hashed password
func (u *User) VerifyPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// ChatIntegration holds the chat platform credentials of a bot
type ChatIntegration struct {
	Enabled bool
	AppID   *string
	Region  *string
	APIKey  *string
	BotUID  *string
}

// Bot represents an assistant-backed bot owned by a single user
type Bot struct {
	ID            string
	OwnerID       string
	Name          string
	Instruction   string
	AssistantID   *string
	VectorStoreID *string
	Chat          ChatIntegration
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MissingRelayConfig lists the settings a bot lacks for chat relay, in a stable order
func (b *Bot) MissingRelayConfig() []string {
	var missing []string
	check := func(name string, v *string) {
		if v == nil || *v == "" {
			missing = append(missing, name)
		}
	}
	check("chatAppId", b.Chat.AppID)
	check("chatApiKey", b.Chat.APIKey)
	check("chatRegion", b.Chat.Region)
	check("chatBotUid", b.Chat.BotUID)
	check("assistantId", b.AssistantID)
	return missing
}

// File represents a document uploaded to the assistant provider
type File struct {
	ID           string
	RemoteFileID string
	Filename     string
	Purpose      string
	Bytes        int64
	OwnerID      string
	CreatedAt    time.Time
}

// BotRef is the minimal bot view attached to a file listing
type BotRef struct {
	ID            string
	Name          string
	VectorStoreID *string
}

// FileWithBots is a file together with the bots whose knowledge stores index it
type FileWithBots struct {
	File
	Bots []BotRef
}

// BotIDs returns the ids of the associated bots
func (f *FileWithBots) BotIDs() []string {
	ids := make([]string, 0, len(f.Bots))
	for _, b := range f.Bots {
		ids = append(ids, b.ID)
	}
	return ids
}
