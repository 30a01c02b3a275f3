// Package relay answers chat platform webhooks by running the bot's assistant on the
// inbound message and posting the reply back through the platform's REST API.
package relay

import (
	"botdesk/internal/app"
	"botdesk/internal/clock"
	"botdesk/internal/dedupe"
	"botdesk/internal/logger"
	"botdesk/internal/repository/db"
	"botdesk/internal/service/chatplatform"
	"botdesk/internal/service/orchestrator"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Outcome is the terminal result of one webhook delivery
type Outcome struct {
	State      State
	HTTPStatus int
	// Status is "OK" for relayed and dropped events
	Status         string
	Message        string
	Error          string
	Details        any
	MissingConfigs []string
	RunStatus      string
	Result         map[string]any
}

// Body renders the outcome as the JSON body answered to the platform
func (o Outcome) Body() map[string]any {
	body := map[string]any{}
	if o.Status != "" {
		body["status"] = o.Status
	}
	if o.Message != "" {
		body["message"] = o.Message
	}
	if o.Result != nil {
		body["result"] = o.Result
	}
	if o.Error != "" {
		body["error"] = o.Error
	}
	if o.Details != nil {
		body["details"] = o.Details
	}
	if len(o.MissingConfigs) > 0 {
		body["missingConfigs"] = o.MissingConfigs
	}
	if o.RunStatus != "" {
		body["status"] = o.RunStatus
	}
	return body
}

func dropped(message string) Outcome {
	return Outcome{State: Dropped, HTTPStatus: http.StatusOK, Status: "OK", Message: message}
}

func errored(code int, msg string) Outcome {
	return Outcome{State: Errored, HTTPStatus: code, Error: msg}
}

// Relay processes inbound chat platform events
type Relay struct {
	db           db.Database
	config       *app.Config
	chat         chatplatform.Client
	orchestrator *orchestrator.Orchestrator
	seen         *dedupe.Cache
}

// NewRelay creates a Relay with a message-id cache sized from the chat config
func NewRelay(config *app.Config) *Relay {
	var clk clock.Clock = clock.Real{}
	if config.Clock != nil {
		clk = config.Clock
	}
	return &Relay{
		db:           config.DB,
		config:       config,
		chat:         config.Chat,
		orchestrator: orchestrator.New(clk, config.AppConfig.Runs.ThreadFallback),
		seen:         dedupe.New(config.AppConfig.Chat.DedupeTTL, dedupe.DefaultMaxSize, clk),
	}
}

// Handle runs one webhook delivery for the bot to completion. The delivery outlives the
// platform's connection: once the message is posted to the thread the reply is still sent
// even if the caller goes away, bounded by the webhook poll policy.
func (r *Relay) Handle(ctx context.Context, botID string, body []byte) Outcome {
	ctx = context.WithoutCancel(ctx)
	log := logger.Log.WithField("bot_id", botID)
	outcome := r.handle(ctx, botID, body, log)

	entry := log.WithFields(logrus.Fields{"state": outcome.State.String(), "http_status": outcome.HTTPStatus})
	if outcome.State == Errored {
		entry.WithField("error", outcome.Error).Warn("Webhook not relayed")
	} else {
		entry.Info("Webhook processed")
	}
	return outcome
}

func (r *Relay) handle(ctx context.Context, botID string, body []byte, log *logrus.Entry) Outcome {
	// Received
	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return errored(http.StatusBadRequest, "Invalid JSON payload")
	}
	if payload.Trigger != TriggerAfterMessage {
		log.WithField("trigger", payload.Trigger).Debug("Ignoring non-message event")
		return errored(http.StatusBadRequest, "Unsupported event type")
	}

	// Validated
	msg := payload.Data
	log = log.WithFields(logrus.Fields{"message_id": msg.ID, "sender": msg.Sender, "conversation_id": msg.ConversationID})

	bot, err := r.db.GetBot(botID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return errored(http.StatusNotFound, "Bot not found")
		}
		log.WithError(err).Error("Failed to load bot")
		return Outcome{State: Errored, HTTPStatus: http.StatusInternalServerError, Error: "Internal server error", Details: err.Error()}
	}
	if missing := bot.MissingRelayConfig(); len(missing) > 0 {
		out := errored(http.StatusBadRequest, "Bot configuration incomplete")
		out.MissingConfigs = missing
		return out
	}

	// ConfigResolved, SelfMessageCheck
	creds := chatplatform.Credentials{
		AppID:  *bot.Chat.AppID,
		Region: *bot.Chat.Region,
		APIKey: *bot.Chat.APIKey,
		BotUID: *bot.Chat.BotUID,
	}
	if msg.Sender == creds.BotUID {
		return dropped("Ignored message from bot itself")
	}
	if msg.Data.Text == "" {
		return dropped("Ignored message without text")
	}
	dedupeKey := ""
	if msg.ID != "" {
		dedupeKey = bot.ID + ":" + msg.ID
		if r.seen.CheckAndMark(dedupeKey) {
			return dropped("Ignored duplicate delivery")
		}
	}

	outcome := r.answer(ctx, bot, creds, msg, log)
	if outcome.State == Errored && dedupeKey != "" {
		// let the platform's retry try again
		r.seen.Forget(dedupeKey)
	}
	return outcome
}

func (r *Relay) answer(ctx context.Context, bot *db.Bot, creds chatplatform.Credentials, msg MessageData, log *logrus.Entry) Outcome {
	owner, err := r.db.GetUserByID(bot.OwnerID)
	if err != nil {
		log.WithError(err).Error("Failed to load bot owner")
		return Outcome{State: Errored, HTTPStatus: http.StatusInternalServerError, Error: "Internal server error", Details: err.Error()}
	}
	client, err := r.config.ClientFor(owner)
	if err != nil {
		return Outcome{State: Errored, HTTPStatus: http.StatusInternalServerError, Error: "Internal server error", Details: err.Error()}
	}

	runs := r.config.AppConfig.Runs
	result, err := r.orchestrator.Run(ctx, client, orchestrator.Request{
		AssistantID: *bot.AssistantID,
		ThreadID:    msg.ConversationID,
		Message:     msg.Data.Text,
		Policy:      orchestrator.PollPolicy{Interval: runs.PollInterval, MaxAttempts: runs.WebhookMaxPollAttempts},
	})
	if err != nil {
		out := Outcome{State: Errored, HTTPStatus: http.StatusInternalServerError}
		var runErr *orchestrator.RunError
		switch {
		case errors.As(err, &runErr):
			out.Error = "Failed to get response from assistant"
			out.RunStatus = runErr.Status
		case errors.Is(err, orchestrator.ErrNoTextReply):
			out.Error = "No response received from assistant"
		default:
			out.Error = "Failed to get response from assistant"
			out.Details = err.Error()
		}
		return out
	}

	// Orchestrated. Group messages are answered in the group, everything else to the sender.
	receiver, receiverType := msg.replyTarget()
	sent, err := r.chat.SendMessage(ctx, creds, chatplatform.OutboundMessage{
		Receiver:     receiver,
		ReceiverType: receiverType,
		Text:         result.Text,
	})
	if err != nil {
		var apiErr *chatplatform.APIError
		if errors.As(err, &apiErr) {
			log.WithField("platform_status", apiErr.StatusCode).Error("Chat platform rejected reply")
			return Outcome{State: Errored, HTTPStatus: http.StatusInternalServerError, Error: "Failed to send message via chat platform", Details: apiErr.Body}
		}
		log.WithError(err).Error("Failed to reach chat platform")
		return Outcome{State: Errored, HTTPStatus: http.StatusInternalServerError, Error: "Failed to communicate with chat platform", Details: err.Error()}
	}

	return Outcome{
		State:      Relayed,
		HTTPStatus: http.StatusOK,
		Status:     "OK",
		Message:    "Assistant response sent successfully",
		Result:     sent,
	}
}
