package assistant

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

// OpenAIFactory builds go-openai backed clients
type OpenAIFactory struct {
	// BaseURL overrides the public API endpoint when set
	BaseURL string
}

func (f *OpenAIFactory) NewClient(apiKey string) (Client, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyMissing
	}
	cfg := openai.DefaultConfig(apiKey)
	if f.BaseURL != "" {
		cfg.BaseURL = f.BaseURL
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg)}, nil
}

// OpenAIClient adapts the go-openai Assistants API to Client
type OpenAIClient struct {
	client *openai.Client
}

var _ Client = (*OpenAIClient)(nil)

func (c *OpenAIClient) CreateVectorStore(ctx context.Context, name string) (string, error) {
	store, err := c.client.CreateVectorStore(ctx, openai.VectorStoreRequest{Name: name})
	if err != nil {
		return "", wrapErr("create vector store", err)
	}
	return store.ID, nil
}

func (c *OpenAIClient) DeleteVectorStore(ctx context.Context, id string) error {
	_, err := c.client.DeleteVectorStore(ctx, id)
	return wrapErr("delete vector store", err)
}

func (c *OpenAIClient) AddFileToVectorStore(ctx context.Context, storeID, fileID string) error {
	_, err := c.client.CreateVectorStoreFile(ctx, storeID, openai.VectorStoreFileRequest{FileID: fileID})
	return wrapErr("add file to vector store", err)
}

func (c *OpenAIClient) RemoveFileFromVectorStore(ctx context.Context, storeID, fileID string) error {
	return wrapErr("remove file from vector store", c.client.DeleteVectorStoreFile(ctx, storeID, fileID))
}

func (c *OpenAIClient) CreateAssistant(ctx context.Context, spec AssistantSpec) (string, error) {
	name := spec.Name
	instructions := spec.Instructions
	req := openai.AssistantRequest{
		Model:        spec.Model,
		Name:         &name,
		Instructions: &instructions,
		Tools:        []openai.AssistantTool{{Type: openai.AssistantToolTypeFileSearch}},
	}
	if spec.VectorStoreID != "" {
		req.ToolResources = &openai.AssistantToolResource{
			FileSearch: &openai.AssistantToolFileSearch{VectorStoreIDs: []string{spec.VectorStoreID}},
		}
	}

	asst, err := c.client.CreateAssistant(ctx, req)
	if err != nil {
		return "", wrapErr("create assistant", err)
	}
	return asst.ID, nil
}

func (c *OpenAIClient) DeleteAssistant(ctx context.Context, id string) error {
	_, err := c.client.DeleteAssistant(ctx, id)
	return wrapErr("delete assistant", err)
}

func (c *OpenAIClient) UploadFile(ctx context.Context, filename string, data []byte) (*RemoteFile, error) {
	f, err := c.client.CreateFileBytes(ctx, openai.FileBytesRequest{
		Name:    filename,
		Bytes:   data,
		Purpose: openai.PurposeAssistants,
	})
	if err != nil {
		return nil, wrapErr("upload file", err)
	}
	return &RemoteFile{ID: f.ID, Filename: f.FileName, Purpose: f.Purpose, Bytes: int64(f.Bytes)}, nil
}

func (c *OpenAIClient) DeleteFile(ctx context.Context, id string) error {
	return wrapErr("delete file", c.client.DeleteFile(ctx, id))
}

func (c *OpenAIClient) RetrieveThread(ctx context.Context, id string) (string, error) {
	thread, err := c.client.RetrieveThread(ctx, id)
	if err != nil {
		return "", wrapErr("retrieve thread", err)
	}
	return thread.ID, nil
}

func (c *OpenAIClient) CreateThread(ctx context.Context) (string, error) {
	thread, err := c.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", wrapErr("create thread", err)
	}
	return thread.ID, nil
}

func (c *OpenAIClient) CreateMessage(ctx context.Context, threadID, text string) error {
	_, err := c.client.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})
	return wrapErr("create message", err)
}

func (c *OpenAIClient) CreateRun(ctx context.Context, threadID, assistantID string) (*Run, error) {
	run, err := c.client.CreateRun(ctx, threadID, openai.RunRequest{AssistantID: assistantID})
	if err != nil {
		return nil, wrapErr("create run", err)
	}
	return toRun(run), nil
}

func (c *OpenAIClient) RetrieveRun(ctx context.Context, threadID, runID string) (*Run, error) {
	run, err := c.client.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return nil, wrapErr("retrieve run", err)
	}
	return toRun(run), nil
}

func (c *OpenAIClient) LatestMessage(ctx context.Context, threadID string) (*Message, error) {
	limit := 1
	order := "desc"
	list, err := c.client.ListMessage(ctx, threadID, &limit, &order, nil, nil, nil)
	if err != nil {
		return nil, wrapErr("list messages", err)
	}
	if len(list.Messages) == 0 {
		return nil, nil
	}

	m := list.Messages[0]
	msg := &Message{ID: m.ID, Role: m.Role}
	if len(m.Content) > 0 && m.Content[0].Type == "text" && m.Content[0].Text != nil {
		msg.Text = m.Content[0].Text.Value
		msg.HasText = true
	}
	return msg, nil
}

func (c *OpenAIClient) ListModels(ctx context.Context) ([]string, error) {
	list, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, wrapErr("list models", err)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func toRun(run openai.Run) *Run {
	r := &Run{ID: run.ID, Status: string(run.Status)}
	if run.LastError != nil {
		r.LastError = run.LastError.Message
	}
	return r
}
