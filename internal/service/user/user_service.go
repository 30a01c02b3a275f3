package user

import (
	"botdesk/internal/app"
	"botdesk/internal/auth"
	"botdesk/internal/logger"
	"botdesk/internal/repository/db"
	"botdesk/pkg/validation"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrInvalidCredentials is returned for an unknown email and a wrong password alike
var ErrInvalidCredentials = errors.New("invalid credentials")

// Settings is the user's provider key as shown to the user
type Settings struct {
	HasAPIKey    bool
	MaskedAPIKey string
}

// KeyTestResult is the outcome of checking a stored provider key against the provider
type KeyTestResult struct {
	Valid     bool   `json:"valid"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	Details   string `json:"details,omitempty"`
	MaskedKey string `json:"maskedKey,omitempty"`
}

// UserService handles accounts, sessions and provider key settings
type UserService struct {
	db        db.Database
	config    *app.Config
	tokens    *auth.TokenManager
	validator *validation.AuthRequestValidator
}

// NewUserService creates a new UserService
func NewUserService(config *app.Config, tokens *auth.TokenManager) *UserService {
	return &UserService{
		db:        config.DB,
		config:    config,
		tokens:    tokens,
		validator: validation.NewAuthRequestValidator(),
	}
}

// Register creates an account. The returned user never carries the password hash.
func (s *UserService) Register(name, email, password string) (*db.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if err := s.validator.ValidateRegisterRequest(name, email, password); err != nil {
		return nil, validation.Invalid(err)
	}

	u, err := s.db.CreateUser(name, email, password)
	if err != nil {
		if errors.Is(err, db.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logger.Log.WithField("user_id", u.ID).Info("User registered")
	u.PasswordHash = ""
	return u, nil
}

// Login checks credentials and issues a session token
func (s *UserService) Login(email, password string) (string, *db.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if err := s.validator.ValidateLoginRequest(email, password); err != nil {
		return "", nil, validation.Invalid(err)
	}

	u, err := s.db.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			logger.Log.Info("Login failed: unknown email")
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !u.VerifyPassword(password) {
		logger.Log.WithField("user_id", u.ID).Info("Login failed: invalid password")
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(u.ID, u.Email)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}

	logger.Log.WithField("user_id", u.ID).Info("User logged in")
	u.PasswordHash = ""
	return token, u, nil
}

// GetSettings returns the masked provider key of the user
func (s *UserService) GetSettings(userID string) (*Settings, error) {
	u, err := s.db.GetUserByID(userID)
	if err != nil {
		return nil, err
	}

	settings := &Settings{}
	if u.APIKey != nil && *u.APIKey != "" {
		settings.HasAPIKey = true
		settings.MaskedAPIKey = logger.MaskKey(*u.APIKey)
	}
	return settings, nil
}

// UpdateAPIKey stores the user's provider key. An empty key clears it.
func (s *UserService) UpdateAPIKey(userID, key string) (*Settings, error) {
	key = strings.TrimSpace(key)

	var stored *string
	if key != "" {
		stored = &key
	}

	if err := s.db.UpdateUserAPIKey(userID, stored); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update API key: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"user_id": userID, "has_api_key": stored != nil}).Info("API key updated")

	settings := &Settings{HasAPIKey: stored != nil}
	if stored != nil {
		settings.MaskedAPIKey = logger.MaskKey(key)
	}
	return settings, nil
}

// TestAPIKey lists models with the user's own key. Provider failures are reported in the
// result rather than as an error.
func (s *UserService) TestAPIKey(ctx context.Context, userID string) (*KeyTestResult, error) {
	u, err := s.db.GetUserByID(userID)
	if err != nil {
		return nil, err
	}

	if u.APIKey == nil || strings.TrimSpace(*u.APIKey) == "" {
		return &KeyTestResult{Valid: false, Error: "No API key found"}, nil
	}

	key := strings.TrimSpace(*u.APIKey)
	if err := validation.ValidateAPIKeyFormat(key); err != nil {
		return &KeyTestResult{Valid: false, Error: "Invalid API key format"}, nil
	}
	masked := logger.MaskKey(key)

	client, err := s.config.Assistants.NewClient(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider client: %w", err)
	}

	models, err := client.ListModels(ctx)
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Warn("API key test failed")
		return &KeyTestResult{
			Valid:     false,
			Error:     "API key validation failed",
			Details:   err.Error(),
			MaskedKey: masked,
		}, nil
	}

	return &KeyTestResult{
		Valid:     true,
		Message:   fmt.Sprintf("API key is valid. Found %d models.", len(models)),
		MaskedKey: masked,
	}, nil
}
