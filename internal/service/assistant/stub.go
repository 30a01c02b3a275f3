package assistant

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// StubFactory hands out StubClients regardless of the key
type StubFactory struct{}

func (StubFactory) NewClient(string) (Client, error) {
	return NewStubClient(), nil
}

// StubClient answers every call locally with canned data. Runs complete on the first poll
// and the reply echoes the last posted message.
type StubClient struct {
	mu   sync.Mutex
	last map[string]string
}

var _ Client = (*StubClient)(nil)

func NewStubClient() *StubClient {
	return &StubClient{last: make(map[string]string)}
}

func stubID(prefix string) string {
	return prefix + "_stub_" + uuid.NewString()[:8]
}

func (s *StubClient) CreateVectorStore(context.Context, string) (string, error) {
	return stubID("vs"), nil
}

func (s *StubClient) DeleteVectorStore(context.Context, string) error { return nil }

func (s *StubClient) AddFileToVectorStore(context.Context, string, string) error { return nil }

func (s *StubClient) RemoveFileFromVectorStore(context.Context, string, string) error { return nil }

func (s *StubClient) CreateAssistant(context.Context, AssistantSpec) (string, error) {
	return stubID("asst"), nil
}

func (s *StubClient) DeleteAssistant(context.Context, string) error { return nil }

func (s *StubClient) UploadFile(_ context.Context, filename string, data []byte) (*RemoteFile, error) {
	return &RemoteFile{ID: stubID("file"), Filename: filename, Purpose: "assistants", Bytes: int64(len(data))}, nil
}

func (s *StubClient) DeleteFile(context.Context, string) error { return nil }

func (s *StubClient) RetrieveThread(_ context.Context, id string) (string, error) {
	return id, nil
}

func (s *StubClient) CreateThread(context.Context) (string, error) {
	return stubID("thread"), nil
}

func (s *StubClient) CreateMessage(_ context.Context, threadID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[threadID] = text
	return nil
}

func (s *StubClient) CreateRun(context.Context, string, string) (*Run, error) {
	return &Run{ID: stubID("run"), Status: RunStatusQueued}, nil
}

func (s *StubClient) RetrieveRun(_ context.Context, _ string, runID string) (*Run, error) {
	return &Run{ID: runID, Status: RunStatusCompleted}, nil
}

func (s *StubClient) LatestMessage(_ context.Context, threadID string) (*Message, error) {
	s.mu.Lock()
	text, ok := s.last[threadID]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return &Message{
		ID:      stubID("msg"),
		Role:    "assistant",
		Text:    fmt.Sprintf("Stub reply to: %s", text),
		HasText: true,
	}, nil
}

func (s *StubClient) ListModels(context.Context) ([]string, error) {
	return []string{"gpt-4o", "gpt-4o-mini"}, nil
}
