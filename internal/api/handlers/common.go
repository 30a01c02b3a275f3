package handlers

import (
	"botdesk/internal/auth"
	"botdesk/internal/logger"
	"botdesk/internal/repository/db"
	"botdesk/internal/service/assistant"
	"botdesk/internal/service/bot"
	"botdesk/internal/service/document"
	"botdesk/internal/service/orchestrator"
	"botdesk/internal/service/user"
	"botdesk/pkg/validation"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Machine-readable error codes
const (
	CodeAPIKeyMissing       = "API_KEY_MISSING"
	CodeInvalidAPIKeyFormat = "INVALID_API_KEY_FORMAT"
	CodeInvalidAPIKey       = "INVALID_API_KEY"
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeProviderError       = "PROVIDER_ERROR"
	CodeRunFailed           = "RUN_FAILED"
	CodeRunTimeout          = "RUN_TIMEOUT"
	CodeNoReply             = "NO_REPLY"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL_ERROR"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode,omitempty"`
}

type SuccessResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Warning string   `json:"warning,omitempty"`
	Details []string `json:"details,omitempty"`
}

// sendError sends a standardized JSON error response
func sendError(w http.ResponseWriter, status int, message, code string, err error) {
	errResp := ErrorResponse{
		Code:      status,
		Message:   message,
		ErrorCode: code,
	}
	if err != nil {
		errResp.Error = err.Error()
	}
	writeJSON(w, status, errResp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.WithError(err).Warn("Failed to encode response")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body", CodeValidationFailed, err)
		return false
	}
	return true
}

// currentUserID returns the caller set by the session middleware
func currentUserID(r *http.Request) string {
	id, _ := auth.IdentityFromContext(r.Context())
	return id.UserID
}

// sendServiceError maps service errors to status codes, user-facing messages and error codes
func sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, message, code := classify(err)

	entry := logger.Log.WithError(err).WithFields(logrus.Fields{"path": r.URL.Path, "status": status})
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request rejected")
	}

	// internal details stay in the log
	if code == CodeInternal {
		err = nil
	}
	sendError(w, status, message, code, err)
}

func classify(err error) (int, string, string) {
	var runErr *orchestrator.RunError
	var providerErr *assistant.ProviderError

	switch {
	case errors.Is(err, validation.ErrInvalid):
		return http.StatusBadRequest, "Validation failed", CodeValidationFailed
	case errors.Is(err, bot.ErrBotNotFound):
		return http.StatusNotFound, "Bot not found", CodeNotFound
	case errors.Is(err, document.ErrFileNotFound):
		return http.StatusNotFound, "File not found", CodeNotFound
	case errors.Is(err, document.ErrBotsNotFound):
		return http.StatusNotFound, "One or more bots not found", CodeNotFound
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound, "Not found", CodeNotFound
	case errors.Is(err, document.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "File too large", CodeValidationFailed
	case errors.Is(err, db.ErrEmailTaken):
		return http.StatusConflict, "Email already registered", CodeConflict
	case errors.Is(err, user.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials", CodeUnauthorized
	case errors.Is(err, bot.ErrAPIKeyMissing), errors.Is(err, assistant.ErrAPIKeyMissing):
		return http.StatusBadRequest, "OpenAI API key not found. Please add your API key in the settings page.", CodeAPIKeyMissing
	case errors.Is(err, bot.ErrInvalidAPIKeyFormat):
		return http.StatusBadRequest, `Invalid OpenAI API key format. API keys should start with "sk-".`, CodeInvalidAPIKeyFormat
	case errors.Is(err, bot.ErrInvalidAPIKey), assistant.IsUnauthorized(err):
		return http.StatusUnauthorized, "Authentication failed with OpenAI: Invalid API key. Please check your API key in settings.", CodeInvalidAPIKey
	case errors.Is(err, bot.ErrNoAssistant):
		return http.StatusBadRequest, "Bot has no assistant ID", CodeValidationFailed
	case errors.Is(err, orchestrator.ErrRunTimeout):
		return http.StatusGatewayTimeout, "Assistant did not respond in time", CodeRunTimeout
	case errors.As(err, &runErr):
		return http.StatusBadGateway, "Failed to get response", CodeRunFailed
	case errors.Is(err, orchestrator.ErrNoTextReply):
		return http.StatusBadGateway, "No response received", CodeNoReply
	case errors.As(err, &providerErr):
		return http.StatusBadGateway, "Assistant provider request failed", CodeProviderError
	default:
		return http.StatusInternalServerError, "Internal server error", CodeInternal
	}
}
