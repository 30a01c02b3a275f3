package bot

import (
	"botdesk/internal/app"
	"botdesk/internal/clock"
	"botdesk/internal/logger"
	"botdesk/internal/repository/db"
	"botdesk/internal/service/assistant"
	"botdesk/internal/service/orchestrator"
	"botdesk/pkg/validation"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	// ErrBotNotFound is returned for missing bots and for bots owned by someone else
	ErrBotNotFound = errors.New("bot not found")
	// ErrAPIKeyMissing is returned when creating a bot without a stored provider key
	ErrAPIKeyMissing = errors.New("provider API key not found")
	// ErrInvalidAPIKeyFormat is returned when the stored key does not look like a secret key
	ErrInvalidAPIKeyFormat = errors.New("invalid provider API key format")
	// ErrInvalidAPIKey is returned when the provider rejects the key
	ErrInvalidAPIKey = errors.New("provider rejected the API key")
	// ErrNoAssistant is returned when invoking a bot that has no assistant
	ErrNoAssistant = errors.New("bot has no assistant ID")
)

// DeleteResult reports remote teardown problems that did not stop the deletion
type DeleteResult struct {
	Warnings []string
}

// InvokeResult is an assistant reply and the thread to continue it on
type InvokeResult struct {
	Response string
	ThreadID string
}

// BotService manages bots, their remote assistant resources and their chat integration
type BotService struct {
	db            db.Database
	config        *app.Config
	clock         clock.Clock
	orchestrator  *orchestrator.Orchestrator
	validator     *validation.BotRequestValidator
	chatValidator *validation.ChatRequestValidator
}

// NewBotService creates a new BotService
func NewBotService(config *app.Config) *BotService {
	clk := config.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	return &BotService{
		db:            config.DB,
		config:        config,
		clock:         clk,
		orchestrator:  orchestrator.New(clk, config.AppConfig.Runs.ThreadFallback),
		validator:     validation.NewBotRequestValidator(),
		chatValidator: validation.NewChatRequestValidator(),
	}
}

// List returns the owner's bots, newest first
func (s *BotService) List(ownerID string) ([]db.Bot, error) {
	bots, err := s.db.ListBotsByOwner(ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bots: %w", err)
	}
	if bots == nil {
		bots = []db.Bot{}
	}
	return bots, nil
}

// Get returns a bot owned by ownerID
func (s *BotService) Get(ownerID, id string) (*db.Bot, error) {
	b, err := s.db.GetBotForOwner(id, ownerID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrBotNotFound
		}
		return nil, fmt.Errorf("failed to load bot: %w", err)
	}
	return b, nil
}

// Create provisions a knowledge store and an assistant with the owner's own key, then stores the bot.
// Remote resources created before a failure are deleted again on a best-effort basis.
func (s *BotService) Create(ctx context.Context, ownerID, name, instruction string) (*db.Bot, error) {
	name = strings.TrimSpace(name)
	if err := s.validator.ValidateCreateRequest(name, instruction); err != nil {
		return nil, validation.Invalid(err)
	}

	owner, err := s.db.GetUserByID(ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if owner.APIKey == nil || strings.TrimSpace(*owner.APIKey) == "" {
		return nil, ErrAPIKeyMissing
	}
	key := strings.TrimSpace(*owner.APIKey)
	if err := validation.ValidateAPIKeyFormat(key); err != nil {
		return nil, ErrInvalidAPIKeyFormat
	}

	client, err := s.config.Assistants.NewClient(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider client: %w", err)
	}

	log := logger.Log.WithFields(logrus.Fields{"user_id": ownerID, "bot_name": name})

	storeID, err := client.CreateVectorStore(ctx, name)
	if err != nil {
		return nil, providerFailure("create vector store", err)
	}
	log = log.WithField("vector_store_id", storeID)

	// The store is not always visible to assistant creation right away
	if err := s.clock.Sleep(ctx, s.config.AppConfig.Provider.ProvisionDelay); err != nil {
		s.compensate(ctx, client, "", storeID, log)
		return nil, err
	}

	assistantID, err := client.CreateAssistant(ctx, assistant.AssistantSpec{
		Name:          name,
		Instructions:  instruction,
		Model:         s.config.ModelsConfig().GetDefaultModel(),
		VectorStoreID: storeID,
	})
	if err != nil {
		s.compensate(ctx, client, "", storeID, log)
		return nil, providerFailure("create assistant", err)
	}
	log = log.WithField("assistant_id", assistantID)

	created, err := s.db.CreateBot(&db.Bot{
		OwnerID:       ownerID,
		Name:          name,
		Instruction:   instruction,
		AssistantID:   &assistantID,
		VectorStoreID: &storeID,
	})
	if err != nil {
		s.compensate(ctx, client, assistantID, storeID, log)
		return nil, fmt.Errorf("failed to save bot: %w", err)
	}

	log.WithField("bot_id", created.ID).Info("Bot created")
	return created, nil
}

// compensate deletes remote resources of a failed creation. Failures are only logged.
func (s *BotService) compensate(ctx context.Context, client assistant.Client, assistantID, storeID string, log *logrus.Entry) {
	ctx = context.WithoutCancel(ctx)
	if assistantID != "" {
		if err := client.DeleteAssistant(ctx, assistantID); err != nil {
			log.WithError(err).Error("Failed to clean up assistant after failed bot creation")
		}
	}
	if storeID != "" {
		if err := client.DeleteVectorStore(ctx, storeID); err != nil {
			log.WithError(err).Error("Failed to clean up vector store after failed bot creation")
		}
	}
}

func providerFailure(op string, err error) error {
	if assistant.IsUnauthorized(err) {
		return fmt.Errorf("%w: %v", ErrInvalidAPIKey, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// Update changes name and/or instruction locally. The remote assistant is not touched.
func (s *BotService) Update(ownerID, id string, name, instruction *string) (*db.Bot, error) {
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		name = &trimmed
	}
	if err := s.validator.ValidateUpdateRequest(name, instruction); err != nil {
		return nil, validation.Invalid(err)
	}

	b, err := s.db.UpdateBot(id, ownerID, name, instruction)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrBotNotFound
		}
		return nil, fmt.Errorf("failed to update bot: %w", err)
	}
	return b, nil
}

// Delete tears down the remote assistant and store, then removes the bot's file links and the bot.
// Remote teardown is best-effort: failures other than not-found come back as warnings.
func (s *BotService) Delete(ctx context.Context, ownerID, id string) (*DeleteResult, error) {
	b, err := s.Get(ownerID, id)
	if err != nil {
		return nil, err
	}

	log := logger.Log.WithFields(logrus.Fields{"user_id": ownerID, "bot_id": id})
	result := &DeleteResult{Warnings: []string{}}

	if b.AssistantID != nil || b.VectorStoreID != nil {
		result.Warnings = append(result.Warnings, s.teardown(ctx, ownerID, b, log)...)
	}

	if err := s.db.RemoveBotAssociations(b.ID); err != nil {
		return nil, fmt.Errorf("failed to remove file associations: %w", err)
	}
	if err := s.db.DeleteBot(b.ID, ownerID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrBotNotFound
		}
		return nil, fmt.Errorf("failed to delete bot: %w", err)
	}

	log.WithField("warnings", len(result.Warnings)).Info("Bot deleted")
	return result, nil
}

func (s *BotService) teardown(ctx context.Context, ownerID string, b *db.Bot, log *logrus.Entry) []string {
	var warnings []string

	owner, err := s.db.GetUserByID(ownerID)
	if err != nil {
		return append(warnings, fmt.Sprintf("remote resources not deleted: %v", err))
	}
	client, err := s.config.ClientFor(owner)
	if err != nil {
		return append(warnings, fmt.Sprintf("remote resources not deleted: %v", err))
	}

	remove := func(kind, id string, del func(context.Context, string) error) {
		if err := del(ctx, id); err != nil {
			if assistant.IsNotFound(err) {
				log.WithField(kind, id).Debug("Remote resource already gone")
				return
			}
			log.WithError(err).WithField(kind, id).Warn("Failed to delete remote resource")
			warnings = append(warnings, fmt.Sprintf("failed to delete %s %s: %v", kind, id, err))
		}
	}

	if b.AssistantID != nil && *b.AssistantID != "" {
		remove("assistant", *b.AssistantID, client.DeleteAssistant)
	}
	if b.VectorStoreID != nil && *b.VectorStoreID != "" {
		remove("vector_store", *b.VectorStoreID, client.DeleteVectorStore)
	}
	return warnings
}

// GetIntegration returns the chat platform settings of a bot
func (s *BotService) GetIntegration(ownerID, id string) (*db.ChatIntegration, error) {
	b, err := s.Get(ownerID, id)
	if err != nil {
		return nil, err
	}
	return &b.Chat, nil
}

// UpdateIntegration replaces the chat platform settings of a bot
func (s *BotService) UpdateIntegration(ownerID, id string, integration db.ChatIntegration) (*db.ChatIntegration, error) {
	integration.AppID = trimmed(integration.AppID)
	integration.Region = trimmed(integration.Region)
	integration.APIKey = trimmed(integration.APIKey)
	integration.BotUID = trimmed(integration.BotUID)

	if err := s.validator.ValidateIntegration(deref(integration.AppID), deref(integration.Region)); err != nil {
		return nil, validation.Invalid(err)
	}

	b, err := s.db.UpdateBotIntegration(id, ownerID, integration)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrBotNotFound
		}
		return nil, fmt.Errorf("failed to update integration: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"user_id": ownerID, "bot_id": id, "enabled": b.Chat.Enabled}).Info("Chat integration updated")
	return &b.Chat, nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

// Invoke sends one message to the bot's assistant and waits for the reply
func (s *BotService) Invoke(ctx context.Context, ownerID, id, message, threadID string) (*InvokeResult, error) {
	if err := s.chatValidator.ValidateMessage(message); err != nil {
		return nil, validation.Invalid(err)
	}

	b, err := s.Get(ownerID, id)
	if err != nil {
		return nil, err
	}
	if b.AssistantID == nil || *b.AssistantID == "" {
		return nil, ErrNoAssistant
	}

	owner, err := s.db.GetUserByID(ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	client, err := s.config.ClientFor(owner)
	if err != nil {
		return nil, err
	}

	runs := s.config.AppConfig.Runs
	result, err := s.orchestrator.Run(ctx, client, orchestrator.Request{
		AssistantID: *b.AssistantID,
		ThreadID:    threadID,
		Message:     message,
		Policy:      orchestrator.PollPolicy{Interval: runs.PollInterval, MaxAttempts: runs.MaxPollAttempts},
	})
	if err != nil {
		return nil, err
	}

	return &InvokeResult{Response: result.Text, ThreadID: result.ThreadID}, nil
}

// CreateThread starts an empty conversation thread with the caller's key
func (s *BotService) CreateThread(ctx context.Context, ownerID string) (string, error) {
	owner, err := s.db.GetUserByID(ownerID)
	if err != nil {
		return "", fmt.Errorf("failed to load user: %w", err)
	}
	client, err := s.config.ClientFor(owner)
	if err != nil {
		return "", err
	}

	threadID, err := client.CreateThread(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create thread: %w", err)
	}
	return threadID, nil
}
