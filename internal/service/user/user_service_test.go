package user

import (
	"botdesk/internal/auth"
	"botdesk/internal/repository/db"
	"botdesk/internal/testutil"
	"botdesk/pkg/validation"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func strPtr(s string) *string { return &s }

func newTestService(mockDB *testutil.MockDatabase, client *testutil.MockAssistantClient) (*UserService, *auth.TokenManager) {
	cfg := testutil.NewMockConfig(mockDB, &testutil.MockAssistantFactory{Client: client}, nil, nil)
	tokens := auth.NewTokenManager(cfg.AppConfig.Auth)
	return NewUserService(cfg, tokens), tokens
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestRegister(t *testing.T) {
	mockDB := &testutil.MockDatabase{}
	var gotEmail string
	mockDB.CreateUserFunc = func(name, email, password string) (*db.User, error) {
		gotEmail = email
		return &db.User{ID: "user-1", Name: name, Email: email, PasswordHash: "hash"}, nil
	}
	service, _ := newTestService(mockDB, nil)

	u, err := service.Register(" Ada ", "Ada@Example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", gotEmail)
	assert.Equal(t, "Ada", u.Name)
	assert.Empty(t, u.PasswordHash)
}

func TestRegister_Errors(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		dbErr    error
		wantErr  error
	}{
		{name: "invalid email", email: "nope", password: "password123", wantErr: validation.ErrInvalid},
		{name: "short password", email: "a@example.com", password: "123", wantErr: validation.ErrInvalid},
		{name: "duplicate email", email: "a@example.com", password: "password123", dbErr: db.ErrEmailTaken, wantErr: db.ErrEmailTaken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockDB := &testutil.MockDatabase{
				CreateUserFunc: func(name, email, password string) (*db.User, error) {
					return nil, tt.dbErr
				},
			}
			service, _ := newTestService(mockDB, nil)

			_, err := service.Register("Ada", tt.email, tt.password)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLogin(t *testing.T) {
	mockDB := &testutil.MockDatabase{
		GetUserByEmailFunc: func(email string) (*db.User, error) {
			if email != "a@example.com" {
				return nil, db.ErrNotFound
			}
			return &db.User{ID: "user-1", Email: email, PasswordHash: hashed(t, "password123")}, nil
		},
	}
	service, tokens := newTestService(mockDB, nil)

	token, u, err := service.Login("A@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "user-1", u.ID)
	assert.Empty(t, u.PasswordHash)

	claims, err := tokens.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)

	_, _, err = service.Login("a@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = service.Login("b@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSettings(t *testing.T) {
	var stored *string
	mockDB := &testutil.MockDatabase{
		GetUserByIDFunc: func(id string) (*db.User, error) {
			return &db.User{ID: id, APIKey: stored}, nil
		},
		UpdateUserAPIKeyFunc: func(userID string, apiKey *string) error {
			stored = apiKey
			return nil
		},
	}
	service, _ := newTestService(mockDB, nil)

	settings, err := service.GetSettings("user-1")
	require.NoError(t, err)
	assert.False(t, settings.HasAPIKey)

	settings, err = service.UpdateAPIKey("user-1", "  sk-abcdefghijklmnop  ")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "sk-abcdefghijklmnop", *stored)
	assert.Equal(t, "sk-ab...mnop", settings.MaskedAPIKey)

	settings, err = service.GetSettings("user-1")
	require.NoError(t, err)
	assert.True(t, settings.HasAPIKey)
	assert.Equal(t, "sk-ab...mnop", settings.MaskedAPIKey)

	_, err = service.UpdateAPIKey("user-1", "")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestTestAPIKey(t *testing.T) {
	tests := []struct {
		name      string
		key       *string
		listErr   error
		wantValid bool
		wantError string
		wantCalls int
	}{
		{name: "no key", key: nil, wantError: "No API key found"},
		{name: "bad format", key: strPtr("pk-abcdefghijk"), wantError: "Invalid API key format"},
		{name: "rejected by provider", key: strPtr("sk-abcdefghijk"), listErr: errors.New("401 Unauthorized"), wantError: "API key validation failed", wantCalls: 1},
		{name: "valid", key: strPtr("sk-abcdefghijk"), wantValid: true, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockDB := &testutil.MockDatabase{
				GetUserByIDFunc: func(id string) (*db.User, error) {
					return &db.User{ID: id, APIKey: tt.key}, nil
				},
			}
			client := &testutil.MockAssistantClient{
				ListModelsFunc: func(ctx context.Context) ([]string, error) {
					if tt.listErr != nil {
						return nil, tt.listErr
					}
					return []string{"gpt-4o", "gpt-4o-mini", "o1"}, nil
				},
			}
			service, _ := newTestService(mockDB, client)

			result, err := service.TestAPIKey(context.Background(), "user-1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, result.Valid)
			assert.Equal(t, tt.wantError, result.Error)
			assert.Equal(t, tt.wantCalls, client.CallCount("ListModels"))
			if tt.wantValid {
				assert.Equal(t, "API key is valid. Found 3 models.", result.Message)
				assert.Equal(t, "sk-ab...hijk", result.MaskedKey)
			}
		})
	}
}
