package document

import (
	"botdesk/internal/repository/db"
	"botdesk/internal/service/assistant"
	"botdesk/internal/testutil"
	"botdesk/pkg/validation"
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

type fixture struct {
	db      *testutil.MockDatabase
	client  *testutil.MockAssistantClient
	service *DocumentService

	mu    sync.Mutex
	links map[string]bool
}

func newFixture() *fixture {
	f := &fixture{
		db:     &testutil.MockDatabase{},
		client: &testutil.MockAssistantClient{},
		links:  map[string]bool{},
	}
	f.db.GetUserByIDFunc = func(id string) (*db.User, error) {
		return &db.User{ID: id, APIKey: strPtr("sk-user-key-123456")}, nil
	}
	f.db.AddFileToBotFunc = func(fileID, botID string) (bool, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		created := !f.links[botID]
		f.links[botID] = true
		return created, nil
	}
	f.db.RemoveFileFromBotFunc = func(fileID, botID string) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.links, botID)
		return nil
	}
	cfg := testutil.NewMockConfig(f.db, &testutil.MockAssistantFactory{Client: f.client}, nil, nil)
	f.service = NewDocumentService(cfg)
	return f
}

func (f *fixture) withFile(bots ...db.BotRef) {
	f.db.GetFileForOwnerFunc = func(remoteFileID, ownerID string) (*db.FileWithBots, error) {
		if remoteFileID != "file-abc" || ownerID != "user-1" {
			return nil, db.ErrNotFound
		}
		return &db.FileWithBots{
			File: db.File{ID: "local-1", RemoteFileID: "file-abc", Filename: "faq.pdf", OwnerID: "user-1"},
			Bots: bots,
		}, nil
	}
}

func (f *fixture) withOwnedBots(bots ...db.Bot) {
	f.db.GetBotsForOwnerFunc = func(ids []string, ownerID string) ([]db.Bot, error) {
		var out []db.Bot
		for _, b := range bots {
			for _, id := range ids {
				if b.ID == id && ownerID == "user-1" {
					out = append(out, b)
				}
			}
		}
		return out, nil
	}
}

func sorted(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}

func TestUpload(t *testing.T) {
	f := newFixture()
	f.client.UploadFileFunc = func(ctx context.Context, filename string, data []byte) (*assistant.RemoteFile, error) {
		assert.Equal(t, "faq.pdf", filename)
		return &assistant.RemoteFile{ID: "file-abc", Filename: filename, Purpose: "assistants", Bytes: int64(len(data))}, nil
	}
	f.db.CreateFileFunc = func(file *db.File) (*db.File, error) {
		saved := *file
		saved.ID = "local-1"
		return &saved, nil
	}

	result, err := f.service.Upload(context.Background(), "user-1", "../../faq.pdf", []byte("hello"))
	require.NoError(t, err)
	assert.Empty(t, result.Warning)
	assert.Equal(t, "file-abc", result.File.RemoteFileID)
	assert.Equal(t, int64(5), result.File.Bytes)
	assert.Equal(t, "faq.pdf", result.File.Filename)
}

func TestUpload_LocalFailureIsWarning(t *testing.T) {
	f := newFixture()
	f.client.UploadFileFunc = func(ctx context.Context, filename string, data []byte) (*assistant.RemoteFile, error) {
		return &assistant.RemoteFile{ID: "file-abc", Purpose: "assistants", Bytes: 5}, nil
	}
	f.db.CreateFileFunc = func(file *db.File) (*db.File, error) { return nil, errors.New("db down") }

	result, err := f.service.Upload(context.Background(), "user-1", "faq.pdf", []byte("hello"))
	require.NoError(t, err)
	assert.NotEmpty(t, result.Warning)
	assert.Equal(t, "file-abc", result.RemoteFileID)
	assert.Nil(t, result.File)
}

func TestUpload_Rejects(t *testing.T) {
	f := newFixture()

	_, err := f.service.Upload(context.Background(), "user-1", "", []byte("x"))
	assert.ErrorIs(t, err, validation.ErrInvalid)

	_, err = f.service.Upload(context.Background(), "user-1", "big.bin", make([]byte, 2<<20))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	assert.Empty(t, f.client.Calls())
}

func TestAssociations(t *testing.T) {
	f := newFixture()
	f.withFile(db.BotRef{ID: "bot-1"}, db.BotRef{ID: "bot-2"})

	ids, err := f.service.Associations("user-1", "file-abc")
	require.NoError(t, err)
	assert.Equal(t, []string{"bot-1", "bot-2"}, ids)

	_, err = f.service.Associations("user-2", "file-abc")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestAssociate(t *testing.T) {
	f := newFixture()
	f.withFile(db.BotRef{ID: "bot-1", VectorStoreID: strPtr("vs_1")})
	f.withOwnedBots(
		db.Bot{ID: "bot-1", OwnerID: "user-1", VectorStoreID: strPtr("vs_1")},
		db.Bot{ID: "bot-2", OwnerID: "user-1", VectorStoreID: strPtr("vs_2")},
		db.Bot{ID: "bot-3", OwnerID: "user-1"},
	)
	f.links["bot-1"] = true

	var mu sync.Mutex
	var stores []string
	f.client.AddFileToVectorStoreFunc = func(ctx context.Context, storeID, fileID string) error {
		mu.Lock()
		defer mu.Unlock()
		stores = append(stores, storeID)
		return nil
	}

	result, err := f.service.Associate(context.Background(), "user-1", "file-abc", []string{"bot-1", "bot-2", "bot-3", "bot-2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"bot-1", "bot-2"}, sorted(result.AssociatedBots))
	assert.Equal(t, 1, result.FailedAssociations)
	assert.Equal(t, []string{"vs_2"}, stores, "already linked bot is not re-added remotely")
	assert.True(t, f.links["bot-2"])
}

func TestAssociate_IsIdempotent(t *testing.T) {
	f := newFixture()
	f.withFile()
	f.withOwnedBots(db.Bot{ID: "bot-2", OwnerID: "user-1", VectorStoreID: strPtr("vs_2")})
	f.client.AddFileToVectorStoreFunc = func(ctx context.Context, storeID, fileID string) error {
		return &assistant.ProviderError{StatusCode: 400, Message: "File already exists in vector store"}
	}

	for i := 0; i < 2; i++ {
		result, err := f.service.Associate(context.Background(), "user-1", "file-abc", []string{"bot-2"})
		require.NoError(t, err)
		assert.Equal(t, []string{"bot-2"}, result.AssociatedBots)
		assert.Zero(t, result.FailedAssociations)
	}
	assert.Len(t, f.links, 1)
}

func TestAssociate_UnownedBotAbortsBeforeMutation(t *testing.T) {
	f := newFixture()
	f.withFile()
	f.withOwnedBots(db.Bot{ID: "bot-1", OwnerID: "user-1", VectorStoreID: strPtr("vs_1")})

	_, err := f.service.Associate(context.Background(), "user-1", "file-abc", []string{"bot-1", "bot-of-someone-else"})
	assert.ErrorIs(t, err, ErrBotsNotFound)
	assert.Empty(t, f.client.Calls())
	assert.Empty(t, f.links)
}

func TestAssociate_RemoteFailureCountsAsFailed(t *testing.T) {
	f := newFixture()
	f.withFile()
	f.withOwnedBots(db.Bot{ID: "bot-1", OwnerID: "user-1", VectorStoreID: strPtr("vs_1")})
	f.client.AddFileToVectorStoreFunc = func(ctx context.Context, storeID, fileID string) error {
		return &assistant.ProviderError{StatusCode: 500, Message: "boom"}
	}

	result, err := f.service.Associate(context.Background(), "user-1", "file-abc", []string{"bot-1"})
	require.NoError(t, err)
	assert.Empty(t, result.AssociatedBots)
	assert.Equal(t, 1, result.FailedAssociations)
	assert.Empty(t, f.links)
}

func TestDisassociate(t *testing.T) {
	linked := []db.BotRef{
		{ID: "bot-1", VectorStoreID: strPtr("vs_1")},
		{ID: "bot-2", VectorStoreID: strPtr("vs_2")},
	}

	t.Run("all linked bots when none given", func(t *testing.T) {
		f := newFixture()
		f.withFile(linked...)
		f.links["bot-1"], f.links["bot-2"] = true, true
		f.client.RemoveFileFromVectorStoreFunc = func(ctx context.Context, storeID, fileID string) error {
			if storeID == "vs_2" {
				return &assistant.ProviderError{StatusCode: 404, Message: "not found"}
			}
			return nil
		}

		result, err := f.service.Disassociate(context.Background(), "user-1", "file-abc", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"bot-1", "bot-2"}, sorted(result.RemovedFromBots))
		assert.Zero(t, result.FailedRemovals)
		assert.Empty(t, f.links)
	})

	t.Run("only requested bots", func(t *testing.T) {
		f := newFixture()
		f.withFile(linked...)
		f.links["bot-1"], f.links["bot-2"] = true, true
		f.client.RemoveFileFromVectorStoreFunc = func(ctx context.Context, storeID, fileID string) error { return nil }

		result, err := f.service.Disassociate(context.Background(), "user-1", "file-abc", []string{"bot-2", "bot-unlinked"})
		require.NoError(t, err)
		assert.Equal(t, []string{"bot-2"}, result.RemovedFromBots)
		assert.True(t, f.links["bot-1"])
	})

	t.Run("remote failure keeps the link", func(t *testing.T) {
		f := newFixture()
		f.withFile(linked[0])
		f.links["bot-1"] = true
		f.client.RemoveFileFromVectorStoreFunc = func(ctx context.Context, storeID, fileID string) error {
			return &assistant.ProviderError{StatusCode: 500, Message: "boom"}
		}

		result, err := f.service.Disassociate(context.Background(), "user-1", "file-abc", nil)
		require.NoError(t, err)
		assert.Equal(t, 1, result.FailedRemovals)
		assert.True(t, f.links["bot-1"])
	})
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name       string
		remoteErr  error
		wantErr    bool
		wantRowDel bool
	}{
		{name: "deleted", wantRowDel: true},
		{name: "already gone remotely", remoteErr: &assistant.ProviderError{StatusCode: 404}, wantRowDel: true},
		{name: "remote outage", remoteErr: &assistant.ProviderError{StatusCode: 500}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.withFile(db.BotRef{ID: "bot-1"})

			var order []string
			f.db.RemoveFileAssociationsFunc = func(fileID string) error {
				order = append(order, "associations")
				return nil
			}
			f.client.DeleteFileFunc = func(ctx context.Context, id string) error {
				order = append(order, "remote")
				return tt.remoteErr
			}
			f.db.DeleteFileFunc = func(id string) error {
				assert.Equal(t, "local-1", id)
				order = append(order, "row")
				return nil
			}

			err := f.service.Delete(context.Background(), "user-1", "file-abc")
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			want := []string{"associations", "remote"}
			if tt.wantRowDel {
				want = append(want, "row")
			}
			assert.Equal(t, want, order)
		})
	}
}

func TestDelete_NotOwned(t *testing.T) {
	f := newFixture()
	f.withFile()

	err := f.service.Delete(context.Background(), "user-2", "file-abc")
	assert.ErrorIs(t, err, ErrFileNotFound)
}
