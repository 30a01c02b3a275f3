package handlers

import (
	"botdesk/internal/app"
	"botdesk/internal/logger"
	"botdesk/internal/repository/db"
	botService "botdesk/internal/service/bot"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type CreateBotRequest struct {
	Name        string `json:"name"`
	Instruction string `json:"instruction"`
}

type UpdateBotRequest struct {
	Name        *string `json:"name"`
	Instruction *string `json:"instruction"`
}

type BotResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Instruction   string    `json:"instruction"`
	AssistantID   *string   `json:"assistantId"`
	VectorStoreID *string   `json:"vectorStoreId"`
	ChatEnabled   bool      `json:"chatEnabled"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// IntegrationPayload is the chat integration as read and written by clients.
// APIKey is masked on the way out.
type IntegrationPayload struct {
	Enabled bool    `json:"enabled"`
	AppID   *string `json:"appId"`
	Region  *string `json:"region"`
	APIKey  *string `json:"apiKey"`
	BotUID  *string `json:"botUid"`
}

type InvokeRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"threadId"`
}

type InvokeResponse struct {
	Response string `json:"response"`
	ThreadID string `json:"threadId"`
}

type ThreadResponse struct {
	ThreadID string `json:"threadId"`
}

func toBotResponse(b *db.Bot) BotResponse {
	return BotResponse{
		ID:            b.ID,
		Name:          b.Name,
		Instruction:   b.Instruction,
		AssistantID:   b.AssistantID,
		VectorStoreID: b.VectorStoreID,
		ChatEnabled:   b.Chat.Enabled,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func toIntegrationPayload(c *db.ChatIntegration) IntegrationPayload {
	out := IntegrationPayload{Enabled: c.Enabled, AppID: c.AppID, Region: c.Region, BotUID: c.BotUID}
	if c.APIKey != nil && *c.APIKey != "" {
		masked := logger.MaskKey(*c.APIKey)
		out.APIKey = &masked
	}
	return out
}

// BotHandlers serves bot management, chat integration and invocation
type BotHandlers struct {
	config     *app.Config
	botService *botService.BotService
}

func NewBotHandlers(config *app.Config) *BotHandlers {
	return &BotHandlers{
		config:     config,
		botService: botService.NewBotService(config),
	}
}

// ListBotsHandler returns the caller's bots, newest first
func (h *BotHandlers) ListBotsHandler(w http.ResponseWriter, r *http.Request) {
	bots, err := h.botService.List(currentUserID(r))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	resp := make([]BotResponse, 0, len(bots))
	for i := range bots {
		resp = append(resp, toBotResponse(&bots[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateBotHandler provisions the remote assistant and stores the bot
func (h *BotHandlers) CreateBotHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateBotRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	b, err := h.botService.Create(r.Context(), currentUserID(r), req.Name, req.Instruction)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBotResponse(b))
}

// UpdateBotHandler changes name and/or instruction
func (h *BotHandlers) UpdateBotHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdateBotRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	b, err := h.botService.Update(currentUserID(r), chi.URLParam(r, "id"), req.Name, req.Instruction)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBotResponse(b))
}

// DeleteBotHandler removes the bot and its remote resources
func (h *BotHandlers) DeleteBotHandler(w http.ResponseWriter, r *http.Request) {
	result, err := h.botService.Delete(r.Context(), currentUserID(r), chi.URLParam(r, "id"))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	resp := SuccessResponse{Success: true}
	if len(result.Warnings) > 0 {
		resp.Warning = "Bot deleted but some remote resources could not be removed"
		resp.Details = result.Warnings
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetIntegrationHandler returns the chat integration with the api key masked
func (h *BotHandlers) GetIntegrationHandler(w http.ResponseWriter, r *http.Request) {
	integration, err := h.botService.GetIntegration(currentUserID(r), chi.URLParam(r, "id"))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toIntegrationPayload(integration))
}

// UpdateIntegrationHandler replaces the chat integration. Sending back the masked
// api key keeps the stored one.
func (h *BotHandlers) UpdateIntegrationHandler(w http.ResponseWriter, r *http.Request) {
	var req IntegrationPayload
	if !decodeJSON(w, r, &req) {
		return
	}

	ownerID, botID := currentUserID(r), chi.URLParam(r, "id")

	current, err := h.botService.GetIntegration(ownerID, botID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	apiKey := req.APIKey
	if apiKey != nil && current.APIKey != nil && *apiKey == logger.MaskKey(*current.APIKey) {
		apiKey = current.APIKey
	}

	updated, err := h.botService.UpdateIntegration(ownerID, botID, db.ChatIntegration{
		Enabled: req.Enabled,
		AppID:   req.AppID,
		Region:  req.Region,
		APIKey:  apiKey,
		BotUID:  req.BotUID,
	})
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toIntegrationPayload(updated))
}

// InvokeHandler sends one message to the bot and waits for the reply
func (h *BotHandlers) InvokeHandler(w http.ResponseWriter, r *http.Request) {
	var req InvokeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.botService.Invoke(r.Context(), currentUserID(r), chi.URLParam(r, "id"), req.Message, req.ThreadID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, InvokeResponse{Response: result.Response, ThreadID: result.ThreadID})
}

// CreateThreadHandler starts an empty conversation thread
func (h *BotHandlers) CreateThreadHandler(w http.ResponseWriter, r *http.Request) {
	threadID, err := h.botService.CreateThread(r.Context(), currentUserID(r))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ThreadResponse{ThreadID: threadID})
}
