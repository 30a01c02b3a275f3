package testutil

import (
	"botdesk/internal/app"
	"botdesk/internal/config"
	"botdesk/internal/repository/db"
	"botdesk/internal/service/assistant"
	"botdesk/internal/service/chatplatform"
	"context"
	"errors"
	"sync"
	"time"
)

var errNotImplemented = errors.New("not implemented")

// MockDatabase is a mock implementation of db.Database for testing
type MockDatabase struct {
	// User mocks
	CreateUserFunc       func(name, email, password string) (*db.User, error)
	GetUserByEmailFunc   func(email string) (*db.User, error)
	GetUserByIDFunc      func(id string) (*db.User, error)
	UpdateUserAPIKeyFunc func(userID string, apiKey *string) error

	// Bot mocks
	ListBotsByOwnerFunc      func(ownerID string) ([]db.Bot, error)
	GetBotFunc               func(id string) (*db.Bot, error)
	GetBotForOwnerFunc       func(id, ownerID string) (*db.Bot, error)
	GetBotsForOwnerFunc      func(ids []string, ownerID string) ([]db.Bot, error)
	CreateBotFunc            func(bot *db.Bot) (*db.Bot, error)
	UpdateBotFunc            func(id, ownerID string, name, instruction *string) (*db.Bot, error)
	UpdateBotIntegrationFunc func(id, ownerID string, integration db.ChatIntegration) (*db.Bot, error)
	DeleteBotFunc            func(id, ownerID string) error

	// File mocks
	CreateFileFunc        func(file *db.File) (*db.File, error)
	ListFilesWithBotsFunc func(ownerID string) ([]db.FileWithBots, error)
	GetFileForOwnerFunc   func(remoteFileID, ownerID string) (*db.FileWithBots, error)
	DeleteFileFunc        func(id string) error

	// Association mocks
	AddFileToBotFunc           func(fileID, botID string) (bool, error)
	RemoveFileFromBotFunc      func(fileID, botID string) error
	RemoveFileAssociationsFunc func(fileID string) error
	RemoveBotAssociationsFunc  func(botID string) error
}

var _ db.Database = (*MockDatabase)(nil)

// User methods
func (m *MockDatabase) CreateUser(name, email, password string) (*db.User, error) {
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(name, email, password)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) GetUserByEmail(email string) (*db.User, error) {
	if m.GetUserByEmailFunc != nil {
		return m.GetUserByEmailFunc(email)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) GetUserByID(id string) (*db.User, error) {
	if m.GetUserByIDFunc != nil {
		return m.GetUserByIDFunc(id)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) UpdateUserAPIKey(userID string, apiKey *string) error {
	if m.UpdateUserAPIKeyFunc != nil {
		return m.UpdateUserAPIKeyFunc(userID, apiKey)
	}
	return errNotImplemented
}

// Bot methods
func (m *MockDatabase) ListBotsByOwner(ownerID string) ([]db.Bot, error) {
	if m.ListBotsByOwnerFunc != nil {
		return m.ListBotsByOwnerFunc(ownerID)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) GetBot(id string) (*db.Bot, error) {
	if m.GetBotFunc != nil {
		return m.GetBotFunc(id)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) GetBotForOwner(id, ownerID string) (*db.Bot, error) {
	if m.GetBotForOwnerFunc != nil {
		return m.GetBotForOwnerFunc(id, ownerID)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) GetBotsForOwner(ids []string, ownerID string) ([]db.Bot, error) {
	if m.GetBotsForOwnerFunc != nil {
		return m.GetBotsForOwnerFunc(ids, ownerID)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) CreateBot(bot *db.Bot) (*db.Bot, error) {
	if m.CreateBotFunc != nil {
		return m.CreateBotFunc(bot)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) UpdateBot(id, ownerID string, name, instruction *string) (*db.Bot, error) {
	if m.UpdateBotFunc != nil {
		return m.UpdateBotFunc(id, ownerID, name, instruction)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) UpdateBotIntegration(id, ownerID string, integration db.ChatIntegration) (*db.Bot, error) {
	if m.UpdateBotIntegrationFunc != nil {
		return m.UpdateBotIntegrationFunc(id, ownerID, integration)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) DeleteBot(id, ownerID string) error {
	if m.DeleteBotFunc != nil {
		return m.DeleteBotFunc(id, ownerID)
	}
	return errNotImplemented
}

// File methods
func (m *MockDatabase) CreateFile(file *db.File) (*db.File, error) {
	if m.CreateFileFunc != nil {
		return m.CreateFileFunc(file)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) ListFilesWithBots(ownerID string) ([]db.FileWithBots, error) {
	if m.ListFilesWithBotsFunc != nil {
		return m.ListFilesWithBotsFunc(ownerID)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) GetFileForOwner(remoteFileID, ownerID string) (*db.FileWithBots, error) {
	if m.GetFileForOwnerFunc != nil {
		return m.GetFileForOwnerFunc(remoteFileID, ownerID)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) DeleteFile(id string) error {
	if m.DeleteFileFunc != nil {
		return m.DeleteFileFunc(id)
	}
	return errNotImplemented
}

// Association methods
func (m *MockDatabase) AddFileToBot(fileID, botID string) (bool, error) {
	if m.AddFileToBotFunc != nil {
		return m.AddFileToBotFunc(fileID, botID)
	}
	return false, errNotImplemented
}

func (m *MockDatabase) RemoveFileFromBot(fileID, botID string) error {
	if m.RemoveFileFromBotFunc != nil {
		return m.RemoveFileFromBotFunc(fileID, botID)
	}
	return errNotImplemented
}

func (m *MockDatabase) RemoveFileAssociations(fileID string) error {
	if m.RemoveFileAssociationsFunc != nil {
		return m.RemoveFileAssociationsFunc(fileID)
	}
	return errNotImplemented
}

func (m *MockDatabase) RemoveBotAssociations(botID string) error {
	if m.RemoveBotAssociationsFunc != nil {
		return m.RemoveBotAssociationsFunc(botID)
	}
	return errNotImplemented
}

// MockAssistantClient is a mock implementation of assistant.Client that records every call by method name
type MockAssistantClient struct {
	CreateVectorStoreFunc         func(ctx context.Context, name string) (string, error)
	DeleteVectorStoreFunc         func(ctx context.Context, id string) error
	AddFileToVectorStoreFunc      func(ctx context.Context, storeID, fileID string) error
	RemoveFileFromVectorStoreFunc func(ctx context.Context, storeID, fileID string) error
	CreateAssistantFunc           func(ctx context.Context, spec assistant.AssistantSpec) (string, error)
	DeleteAssistantFunc           func(ctx context.Context, id string) error
	UploadFileFunc                func(ctx context.Context, filename string, data []byte) (*assistant.RemoteFile, error)
	DeleteFileFunc                func(ctx context.Context, id string) error
	RetrieveThreadFunc            func(ctx context.Context, id string) (string, error)
	CreateThreadFunc              func(ctx context.Context) (string, error)
	CreateMessageFunc             func(ctx context.Context, threadID, text string) error
	CreateRunFunc                 func(ctx context.Context, threadID, assistantID string) (*assistant.Run, error)
	RetrieveRunFunc               func(ctx context.Context, threadID, runID string) (*assistant.Run, error)
	LatestMessageFunc             func(ctx context.Context, threadID string) (*assistant.Message, error)
	ListModelsFunc                func(ctx context.Context) ([]string, error)

	mu    sync.Mutex
	calls []string
}

var _ assistant.Client = (*MockAssistantClient)(nil)

func (m *MockAssistantClient) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

// Calls returns the recorded method names in call order
func (m *MockAssistantClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// CallCount returns how many times the named method was called
func (m *MockAssistantClient) CallCount(name string) int {
	n := 0
	for _, c := range m.Calls() {
		if c == name {
			n++
		}
	}
	return n
}

func (m *MockAssistantClient) CreateVectorStore(ctx context.Context, name string) (string, error) {
	m.record("CreateVectorStore")
	if m.CreateVectorStoreFunc != nil {
		return m.CreateVectorStoreFunc(ctx, name)
	}
	return "", errNotImplemented
}

func (m *MockAssistantClient) DeleteVectorStore(ctx context.Context, id string) error {
	m.record("DeleteVectorStore")
	if m.DeleteVectorStoreFunc != nil {
		return m.DeleteVectorStoreFunc(ctx, id)
	}
	return errNotImplemented
}

func (m *MockAssistantClient) AddFileToVectorStore(ctx context.Context, storeID, fileID string) error {
	m.record("AddFileToVectorStore")
	if m.AddFileToVectorStoreFunc != nil {
		return m.AddFileToVectorStoreFunc(ctx, storeID, fileID)
	}
	return errNotImplemented
}

func (m *MockAssistantClient) RemoveFileFromVectorStore(ctx context.Context, storeID, fileID string) error {
	m.record("RemoveFileFromVectorStore")
	if m.RemoveFileFromVectorStoreFunc != nil {
		return m.RemoveFileFromVectorStoreFunc(ctx, storeID, fileID)
	}
	return errNotImplemented
}

func (m *MockAssistantClient) CreateAssistant(ctx context.Context, spec assistant.AssistantSpec) (string, error) {
	m.record("CreateAssistant")
	if m.CreateAssistantFunc != nil {
		return m.CreateAssistantFunc(ctx, spec)
	}
	return "", errNotImplemented
}

func (m *MockAssistantClient) DeleteAssistant(ctx context.Context, id string) error {
	m.record("DeleteAssistant")
	if m.DeleteAssistantFunc != nil {
		return m.DeleteAssistantFunc(ctx, id)
	}
	return errNotImplemented
}

func (m *MockAssistantClient) UploadFile(ctx context.Context, filename string, data []byte) (*assistant.RemoteFile, error) {
	m.record("UploadFile")
	if m.UploadFileFunc != nil {
		return m.UploadFileFunc(ctx, filename, data)
	}
	return nil, errNotImplemented
}

func (m *MockAssistantClient) DeleteFile(ctx context.Context, id string) error {
	m.record("DeleteFile")
	if m.DeleteFileFunc != nil {
		return m.DeleteFileFunc(ctx, id)
	}
	return errNotImplemented
}

func (m *MockAssistantClient) RetrieveThread(ctx context.Context, id string) (string, error) {
	m.record("RetrieveThread")
	if m.RetrieveThreadFunc != nil {
		return m.RetrieveThreadFunc(ctx, id)
	}
	return "", errNotImplemented
}

func (m *MockAssistantClient) CreateThread(ctx context.Context) (string, error) {
	m.record("CreateThread")
	if m.CreateThreadFunc != nil {
		return m.CreateThreadFunc(ctx)
	}
	return "", errNotImplemented
}

func (m *MockAssistantClient) CreateMessage(ctx context.Context, threadID, text string) error {
	m.record("CreateMessage")
	if m.CreateMessageFunc != nil {
		return m.CreateMessageFunc(ctx, threadID, text)
	}
	return errNotImplemented
}

func (m *MockAssistantClient) CreateRun(ctx context.Context, threadID, assistantID string) (*assistant.Run, error) {
	m.record("CreateRun")
	if m.CreateRunFunc != nil {
		return m.CreateRunFunc(ctx, threadID, assistantID)
	}
	return nil, errNotImplemented
}

func (m *MockAssistantClient) RetrieveRun(ctx context.Context, threadID, runID string) (*assistant.Run, error) {
	m.record("RetrieveRun")
	if m.RetrieveRunFunc != nil {
		return m.RetrieveRunFunc(ctx, threadID, runID)
	}
	return nil, errNotImplemented
}

func (m *MockAssistantClient) LatestMessage(ctx context.Context, threadID string) (*assistant.Message, error) {
	m.record("LatestMessage")
	if m.LatestMessageFunc != nil {
		return m.LatestMessageFunc(ctx, threadID)
	}
	return nil, errNotImplemented
}

func (m *MockAssistantClient) ListModels(ctx context.Context) ([]string, error) {
	m.record("ListModels")
	if m.ListModelsFunc != nil {
		return m.ListModelsFunc(ctx)
	}
	return nil, errNotImplemented
}

// NewConversationClient returns a client whose thread, message and run calls succeed and whose
// run reports the given statuses in order, repeating the last one. The reply text is reply.
func NewConversationClient(reply string, statuses ...string) *MockAssistantClient {
	var mu sync.Mutex
	polls := 0
	return &MockAssistantClient{
		RetrieveThreadFunc: func(ctx context.Context, id string) (string, error) { return id, nil },
		CreateThreadFunc:   func(ctx context.Context) (string, error) { return "thread_new", nil },
		CreateMessageFunc:  func(ctx context.Context, threadID, text string) error { return nil },
		CreateRunFunc: func(ctx context.Context, threadID, assistantID string) (*assistant.Run, error) {
			return &assistant.Run{ID: "run_1", Status: assistant.RunStatusQueued}, nil
		},
		RetrieveRunFunc: func(ctx context.Context, threadID, runID string) (*assistant.Run, error) {
			mu.Lock()
			defer mu.Unlock()
			i := polls
			if i >= len(statuses) {
				i = len(statuses) - 1
			}
			polls++
			return &assistant.Run{ID: runID, Status: statuses[i]}, nil
		},
		LatestMessageFunc: func(ctx context.Context, threadID string) (*assistant.Message, error) {
			return &assistant.Message{ID: "msg_1", Role: "assistant", Text: reply, HasText: true}, nil
		},
	}
}

// MockAssistantFactory returns Client for every key and records the keys it was asked for
type MockAssistantFactory struct {
	Client        assistant.Client
	NewClientFunc func(apiKey string) (assistant.Client, error)
	Keys          []string
}

func (f *MockAssistantFactory) NewClient(apiKey string) (assistant.Client, error) {
	f.Keys = append(f.Keys, apiKey)
	if f.NewClientFunc != nil {
		return f.NewClientFunc(apiKey)
	}
	if f.Client == nil {
		return nil, errNotImplemented
	}
	return f.Client, nil
}

// MockChatClient is a mock implementation of chatplatform.Client
type MockChatClient struct {
	SendMessageFunc func(ctx context.Context, creds chatplatform.Credentials, msg chatplatform.OutboundMessage) (map[string]any, error)

	mu   sync.Mutex
	Sent []chatplatform.OutboundMessage
}

func (m *MockChatClient) SendMessage(ctx context.Context, creds chatplatform.Credentials, msg chatplatform.OutboundMessage) (map[string]any, error) {
	m.mu.Lock()
	m.Sent = append(m.Sent, msg)
	m.mu.Unlock()
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, creds, msg)
	}
	return map[string]any{"data": map[string]any{"id": "1"}}, nil
}

// FakeClock records sleeps instead of waiting
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	Sleeps []time.Duration
}

func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.Sleeps = append(c.Sleeps, d)
	return nil
}

// SleepCount returns how many times Sleep completed
func (c *FakeClock) SleepCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Sleeps)
}

// NewMockConfig creates an app.Config wired to the given mocks with test-friendly settings
func NewMockConfig(database db.Database, factory assistant.Factory, chat chatplatform.Client, clk *FakeClock) *app.Config {
	modelsConfig, _ := config.LoadModelsConfig("")

	cfg := &app.Config{
		DB:         database,
		Assistants: factory,
		Chat:       chat,
		AppConfig: &config.AppConfig{
			Auth: config.AuthConfig{
				JWTSecret:       []byte("test-secret-that-is-at-least-32-characters"),
				TokenExpiration: time.Hour,
				CookieName:      "token",
			},
			Provider: config.ProviderConfig{
				MaxUploadBytes: 1 << 20,
			},
			Runs: config.RunConfig{
				PollInterval:           time.Second,
				MaxPollAttempts:        60,
				WebhookMaxPollAttempts: 60,
				ThreadFallback:         config.ThreadFallbackAny,
			},
			Chat: config.ChatConfig{
				DedupeTTL: 10 * time.Minute,
			},
			Models: modelsConfig,
		},
	}
	if clk != nil {
		cfg.Clock = clk
	}
	return cfg
}
