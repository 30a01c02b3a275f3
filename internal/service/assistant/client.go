package assistant

import (
	"botdesk/internal/config"
	"botdesk/internal/repository/db"
	"context"
	"errors"
	"strings"
)

// Run status values reported by the provider
const (
	RunStatusQueued     = "queued"
	RunStatusInProgress = "in_progress"
	RunStatusCompleted  = "completed"
	RunStatusFailed     = "failed"
	RunStatusCancelled  = "cancelled"
	RunStatusExpired    = "expired"
)

// ErrAPIKeyMissing is returned when neither the user nor the process has a provider key
var ErrAPIKeyMissing = errors.New("no provider API key configured")

// AssistantSpec describes an assistant to create
type AssistantSpec struct {
	Name          string
	Instructions  string
	Model         string
	VectorStoreID string
}

// Run is the provider view of an assistant run
type Run struct {
	ID        string
	Status    string
	LastError string
}

// Message is a thread message reduced to its first content part
type Message struct {
	ID      string
	Role    string
	Text    string
	HasText bool
}

// RemoteFile is a file stored at the provider
type RemoteFile struct {
	ID       string
	Filename string
	Purpose  string
	Bytes    int64
}

// Client is the subset of the assistant provider API the service uses
type Client interface {
	CreateVectorStore(ctx context.Context, name string) (string, error)
	DeleteVectorStore(ctx context.Context, id string) error
	AddFileToVectorStore(ctx context.Context, storeID, fileID string) error
	RemoveFileFromVectorStore(ctx context.Context, storeID, fileID string) error

	CreateAssistant(ctx context.Context, spec AssistantSpec) (string, error)
	DeleteAssistant(ctx context.Context, id string) error

	UploadFile(ctx context.Context, filename string, data []byte) (*RemoteFile, error)
	DeleteFile(ctx context.Context, id string) error

	RetrieveThread(ctx context.Context, id string) (string, error)
	CreateThread(ctx context.Context) (string, error)
	CreateMessage(ctx context.Context, threadID, text string) error
	CreateRun(ctx context.Context, threadID, assistantID string) (*Run, error)
	RetrieveRun(ctx context.Context, threadID, runID string) (*Run, error)
	// LatestMessage returns the newest message of a thread, or nil when the thread is empty
	LatestMessage(ctx context.Context, threadID string) (*Message, error)

	ListModels(ctx context.Context) ([]string, error)
}

// Factory builds clients bound to a single API key
type Factory interface {
	NewClient(apiKey string) (Client, error)
}

// NewFactory returns the stub factory in stub mode and the OpenAI factory otherwise
func NewFactory(cfg config.ProviderConfig) Factory {
	if cfg.StubMode {
		return StubFactory{}
	}
	return &OpenAIFactory{BaseURL: cfg.BaseURL}
}

// ResolveKey picks the user's own key, falling back to the process-wide key
func ResolveKey(user *db.User, fallback string) (string, error) {
	if user != nil && user.APIKey != nil {
		if key := strings.TrimSpace(*user.APIKey); key != "" {
			return key, nil
		}
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", ErrAPIKeyMissing
}

// ClientForUser builds a client for the acting user
func ClientForUser(f Factory, user *db.User, fallback string) (Client, error) {
	key, err := ResolveKey(user, fallback)
	if err != nil {
		return nil, err
	}
	return f.NewClient(key)
}
