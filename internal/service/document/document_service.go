package document

import (
	"botdesk/internal/app"
	"botdesk/internal/logger"
	"botdesk/internal/repository/db"
	"botdesk/internal/service/assistant"
	"botdesk/pkg/validation"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// maxParallelStoreCalls bounds concurrent provider calls of one association request
const maxParallelStoreCalls = 4

var (
	// ErrFileNotFound is returned for missing files and for files owned by someone else
	ErrFileNotFound = errors.New("file not found")
	// ErrBotsNotFound is returned when any requested bot is missing or not owned by the caller
	ErrBotsNotFound = errors.New("one or more bots not found")
	// ErrFileTooLarge is returned when an upload exceeds the configured limit
	ErrFileTooLarge = errors.New("file too large")
)

// UploadResult is an uploaded file. Warning is set when the provider accepted the file
// but the local record could not be written; File is nil in that case.
type UploadResult struct {
	File         *db.File
	RemoteFileID string
	Warning      string
}

// AssociateResult lists the bots the file is now linked to
type AssociateResult struct {
	AssociatedBots     []string
	FailedAssociations int
}

// DisassociateResult lists the bots the file was removed from
type DisassociateResult struct {
	RemovedFromBots []string
	FailedRemovals  int
}

// DocumentService manages uploaded files and their presence in bot knowledge stores
type DocumentService struct {
	db     db.Database
	config *app.Config
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(config *app.Config) *DocumentService {
	return &DocumentService{
		db:     config.DB,
		config: config,
	}
}

func (s *DocumentService) clientFor(ownerID string) (assistant.Client, error) {
	owner, err := s.db.GetUserByID(ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return s.config.ClientFor(owner)
}

func (s *DocumentService) ownedFile(ownerID, remoteFileID string) (*db.FileWithBots, error) {
	if remoteFileID == "" {
		return nil, validation.Invalid(errors.New("file ID is required"))
	}
	f, err := s.db.GetFileForOwner(remoteFileID, ownerID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to load file: %w", err)
	}
	return f, nil
}

// Upload sends the file to the provider and records it locally
func (s *DocumentService) Upload(ctx context.Context, ownerID, filename string, data []byte) (*UploadResult, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == "/" {
		return nil, validation.Invalid(errors.New("file is required"))
	}
	if len(data) == 0 {
		return nil, validation.Invalid(errors.New("file is empty"))
	}
	if limit := s.config.AppConfig.Provider.MaxUploadBytes; limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFileTooLarge, len(data), limit)
	}

	client, err := s.clientFor(ownerID)
	if err != nil {
		return nil, err
	}

	remote, err := client.UploadFile(ctx, filename, data)
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}

	log := logger.Log.WithFields(logrus.Fields{"user_id": ownerID, "remote_file_id": remote.ID})

	purpose := remote.Purpose
	if purpose == "" {
		purpose = "assistants"
	}
	size := remote.Bytes
	if size == 0 {
		size = int64(len(data))
	}

	record, err := s.db.CreateFile(&db.File{
		RemoteFileID: remote.ID,
		Filename:     filename,
		Purpose:      purpose,
		Bytes:        size,
		OwnerID:      ownerID,
	})
	if err != nil {
		log.WithError(err).Error("File uploaded but database storage failed")
		return &UploadResult{
			RemoteFileID: remote.ID,
			Warning:      "File uploaded to provider but database storage failed",
		}, nil
	}

	log.WithField("bytes", size).Info("File uploaded")
	return &UploadResult{File: record, RemoteFileID: remote.ID}, nil
}

// List returns the owner's files with their bots, newest first
func (s *DocumentService) List(ownerID string) ([]db.FileWithBots, error) {
	files, err := s.db.ListFilesWithBots(ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	if files == nil {
		files = []db.FileWithBots{}
	}
	return files, nil
}

// Associations returns the ids of the bots a file is linked to
func (s *DocumentService) Associations(ownerID, remoteFileID string) ([]string, error) {
	f, err := s.ownedFile(ownerID, remoteFileID)
	if err != nil {
		return nil, err
	}
	return f.BotIDs(), nil
}

// Associate adds the file to each bot's knowledge store and records the link.
// Every bot must be owned by the caller before anything is changed.
func (s *DocumentService) Associate(ctx context.Context, ownerID, remoteFileID string, botIDs []string) (*AssociateResult, error) {
	botIDs = unique(botIDs)
	if len(botIDs) == 0 {
		return nil, validation.Invalid(errors.New("botIds is required"))
	}

	f, err := s.ownedFile(ownerID, remoteFileID)
	if err != nil {
		return nil, err
	}

	bots, err := s.db.GetBotsForOwner(botIDs, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bots: %w", err)
	}
	if len(bots) != len(botIDs) {
		return nil, ErrBotsNotFound
	}

	client, err := s.clientFor(ownerID)
	if err != nil {
		return nil, err
	}

	linked := make(map[string]bool, len(f.Bots))
	for _, b := range f.Bots {
		linked[b.ID] = true
	}

	log := logger.Log.WithFields(logrus.Fields{"user_id": ownerID, "file_id": f.ID, "remote_file_id": f.RemoteFileID})

	outcomes := make([]bool, len(bots))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelStoreCalls)
	for i := range bots {
		i := i
		b := bots[i]
		g.Go(func() error {
			blog := log.WithField("bot_id", b.ID)
			if b.VectorStoreID == nil || *b.VectorStoreID == "" {
				blog.Warn("Bot has no vector store")
				return nil
			}

			if !linked[b.ID] {
				err := client.AddFileToVectorStore(gctx, *b.VectorStoreID, f.RemoteFileID)
				if err != nil && !assistant.IsAlreadyExists(err) {
					blog.WithError(err).Error("Failed to add file to vector store")
					return nil
				}
			}

			if _, err := s.db.AddFileToBot(f.ID, b.ID); err != nil {
				blog.WithError(err).Error("Failed to record file association")
				return nil
			}
			outcomes[i] = true
			return nil
		})
	}
	g.Wait()

	result := &AssociateResult{AssociatedBots: []string{}}
	for i, ok := range outcomes {
		if ok {
			result.AssociatedBots = append(result.AssociatedBots, bots[i].ID)
		} else {
			result.FailedAssociations++
		}
	}

	log.WithFields(logrus.Fields{"associated": len(result.AssociatedBots), "failed": result.FailedAssociations}).Info("File associated")
	return result, nil
}

// Disassociate removes the file from the knowledge stores of the given linked bots.
// An empty botIDs removes it from every linked bot; ids that are not linked are ignored.
func (s *DocumentService) Disassociate(ctx context.Context, ownerID, remoteFileID string, botIDs []string) (*DisassociateResult, error) {
	f, err := s.ownedFile(ownerID, remoteFileID)
	if err != nil {
		return nil, err
	}

	targets := f.Bots
	if len(botIDs) > 0 {
		wanted := make(map[string]bool, len(botIDs))
		for _, id := range botIDs {
			wanted[id] = true
		}
		targets = nil
		for _, b := range f.Bots {
			if wanted[b.ID] {
				targets = append(targets, b)
			}
		}
	}

	result := &DisassociateResult{RemovedFromBots: []string{}}
	if len(targets) == 0 {
		return result, nil
	}

	client, err := s.clientFor(ownerID)
	if err != nil {
		return nil, err
	}

	log := logger.Log.WithFields(logrus.Fields{"user_id": ownerID, "file_id": f.ID, "remote_file_id": f.RemoteFileID})

	outcomes := make([]bool, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelStoreCalls)
	for i := range targets {
		i := i
		b := targets[i]
		g.Go(func() error {
			blog := log.WithField("bot_id", b.ID)
			if b.VectorStoreID == nil || *b.VectorStoreID == "" {
				blog.Warn("Bot has no vector store")
				return nil
			}

			err := client.RemoveFileFromVectorStore(gctx, *b.VectorStoreID, f.RemoteFileID)
			if err != nil && !assistant.IsNotFound(err) {
				blog.WithError(err).Error("Failed to remove file from vector store")
				return nil
			}

			if err := s.db.RemoveFileFromBot(f.ID, b.ID); err != nil {
				blog.WithError(err).Error("Failed to delete file association")
				return nil
			}
			outcomes[i] = true
			return nil
		})
	}
	g.Wait()

	for i, ok := range outcomes {
		if ok {
			result.RemovedFromBots = append(result.RemovedFromBots, targets[i].ID)
		} else {
			result.FailedRemovals++
		}
	}

	log.WithFields(logrus.Fields{"removed": len(result.RemovedFromBots), "failed": result.FailedRemovals}).Info("File disassociated")
	return result, nil
}

// Delete unlinks the file from every bot, deletes it at the provider and removes the record
func (s *DocumentService) Delete(ctx context.Context, ownerID, remoteFileID string) error {
	f, err := s.ownedFile(ownerID, remoteFileID)
	if err != nil {
		return err
	}

	if err := s.db.RemoveFileAssociations(f.ID); err != nil {
		return fmt.Errorf("failed to remove file associations: %w", err)
	}

	client, err := s.clientFor(ownerID)
	if err != nil {
		return err
	}
	if err := client.DeleteFile(ctx, f.RemoteFileID); err != nil && !assistant.IsNotFound(err) {
		return fmt.Errorf("failed to delete remote file: %w", err)
	}

	if err := s.db.DeleteFile(f.ID); err != nil && !errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("failed to delete file record: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"user_id": ownerID, "remote_file_id": f.RemoteFileID}).Info("File deleted")
	return nil
}

func unique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
