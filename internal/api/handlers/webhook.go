package handlers

import (
	"botdesk/internal/app"
	"botdesk/internal/service/relay"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// maxWebhookBody bounds inbound chat platform events
const maxWebhookBody = 1 << 20

// WebhookHandlers serves inbound chat platform events
type WebhookHandlers struct {
	relay *relay.Relay
}

func NewWebhookHandlers(config *app.Config) *WebhookHandlers {
	return &WebhookHandlers{relay: relay.NewRelay(config)}
}

// ChatWebhookHandler relays one inbound message to the bot's assistant and answers with the outcome
func (h *WebhookHandlers) ChatWebhookHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid JSON payload"})
		return
	}

	outcome := h.relay.Handle(r.Context(), chi.URLParam(r, "botId"), body)
	writeJSON(w, outcome.HTTPStatus, outcome.Body())
}
