package handlers

import (
	"botdesk/internal/app"
	"botdesk/internal/auth"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires every handler under /api
func NewRouter(config *app.Config, tokens *auth.TokenManager) http.Handler {
	authHandlers := NewAuthHandlers(config, tokens)
	userHandlers := NewUserHandlers(config, tokens)
	botHandlers := NewBotHandlers(config)
	fileHandlers := NewFileHandlers(config)
	webhookHandlers := NewWebhookHandlers(config)

	authLimit := RateLimit(config.AppConfig.RateLimit)
	webhookLimit := WebhookRateLimit(config.AppConfig.RateLimit)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS(config.AppConfig.Server.CORSAllowedOrigin))

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", HealthHandler(config))
		r.Get("/models", userHandlers.ModelsHandler)

		r.Group(func(r chi.Router) {
			r.Use(authLimit)
			r.Post("/auth/register", authHandlers.RegisterHandler)
			r.Post("/auth/login", authHandlers.LoginHandler)
			r.Post("/auth/logout", authHandlers.LogoutHandler)
		})

		r.With(webhookLimit).Post("/webhook/chat/{botId}", webhookHandlers.ChatWebhookHandler)

		// Session-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(tokens.Middleware)
			r.Use(recordIdentity)

			r.Get("/user/settings", userHandlers.GetSettingsHandler)
			r.Post("/user/settings", userHandlers.UpdateSettingsHandler)
			r.Get("/user/test-api-key", userHandlers.TestAPIKeyHandler)

			r.Get("/bots", botHandlers.ListBotsHandler)
			r.Post("/bots", botHandlers.CreateBotHandler)
			r.Patch("/bots/{id}", botHandlers.UpdateBotHandler)
			r.Delete("/bots/{id}", botHandlers.DeleteBotHandler)
			r.Get("/bots/{id}/integrations", botHandlers.GetIntegrationHandler)
			r.Post("/bots/{id}/integrations", botHandlers.UpdateIntegrationHandler)
			r.Post("/bots/{id}/invoke", botHandlers.InvokeHandler)

			r.Post("/threads", botHandlers.CreateThreadHandler)

			r.Get("/files", fileHandlers.ListFilesHandler)
			r.Post("/files", fileHandlers.UploadFileHandler)
			r.Delete("/files", fileHandlers.DeleteFileHandler)
			r.Get("/files/associate", fileHandlers.GetAssociationsHandler)
			r.Post("/files/associate", fileHandlers.AssociateHandler)
			r.Delete("/files/associate", fileHandlers.DisassociateHandler)
		})
	})

	return r
}
