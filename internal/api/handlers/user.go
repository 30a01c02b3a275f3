package handlers

import (
	"botdesk/internal/app"
	"botdesk/internal/auth"
	"botdesk/internal/config"
	userService "botdesk/internal/service/user"
	"net/http"
)

type SettingsRequest struct {
	APIKey string `json:"openaiApiKey"`
}

type SettingsResponse struct {
	HasAPIKey    bool   `json:"hasApiKey"`
	MaskedAPIKey string `json:"maskedApiKey,omitempty"`
}

type ModelsResponse struct {
	Models []config.Model `json:"models"`
}

// UserHandlers serves the caller's settings
type UserHandlers struct {
	config      *app.Config
	userService *userService.UserService
}

func NewUserHandlers(config *app.Config, tokens *auth.TokenManager) *UserHandlers {
	return &UserHandlers{
		config:      config,
		userService: userService.NewUserService(config, tokens),
	}
}

func toSettingsResponse(s *userService.Settings) SettingsResponse {
	return SettingsResponse{HasAPIKey: s.HasAPIKey, MaskedAPIKey: s.MaskedAPIKey}
}

// GetSettingsHandler returns whether a provider key is stored, masked
func (h *UserHandlers) GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	settings, err := h.userService.GetSettings(currentUserID(r))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(settings))
}

// UpdateSettingsHandler stores or clears the provider key
func (h *UserHandlers) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	settings, err := h.userService.UpdateAPIKey(currentUserID(r), req.APIKey)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(settings))
}

// TestAPIKeyHandler checks the stored key against the provider
func (h *UserHandlers) TestAPIKeyHandler(w http.ResponseWriter, r *http.Request) {
	result, err := h.userService.TestAPIKey(r.Context(), currentUserID(r))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ModelsHandler lists the models assistants are created with
func (h *UserHandlers) ModelsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ModelsResponse{Models: h.config.ModelsConfig().GetAvailableModels()})
}
