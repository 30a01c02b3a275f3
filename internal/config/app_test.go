package config

import (
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("ASSISTANT_MODELS_PATH", "")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if config.Server.Port != "8080" {
		t.Errorf("Server.Port = %s, want 8080", config.Server.Port)
	}
	if config.Auth.TokenExpiration != 24*time.Hour {
		t.Errorf("Auth.TokenExpiration = %s, want 24h", config.Auth.TokenExpiration)
	}
	if config.Auth.CookieName != "token" {
		t.Errorf("Auth.CookieName = %s, want token", config.Auth.CookieName)
	}
	if config.Runs.PollInterval != time.Second {
		t.Errorf("Runs.PollInterval = %s, want 1s", config.Runs.PollInterval)
	}
	if config.Runs.MaxPollAttempts != 60 || config.Runs.WebhookMaxPollAttempts != 60 {
		t.Errorf("poll attempts = %d/%d, want 60/60", config.Runs.MaxPollAttempts, config.Runs.WebhookMaxPollAttempts)
	}
	if config.Runs.ThreadFallback != ThreadFallbackAny {
		t.Errorf("Runs.ThreadFallback = %s, want %s", config.Runs.ThreadFallback, ThreadFallbackAny)
	}
	if config.RateLimit.RequestsPerMinute != 60 || config.RateLimit.WebhookPerBotPerMinute != 600 {
		t.Errorf("rate limits = %d/%d, want 60/600", config.RateLimit.RequestsPerMinute, config.RateLimit.WebhookPerBotPerMinute)
	}
	if config.Models.GetDefaultModel() != "gpt-4o" {
		t.Errorf("Models.GetDefaultModel() = %s, want gpt-4o", config.Models.GetDefaultModel())
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("PROVIDER_STUB_MODE", "true")
	t.Setenv("RUN_POLL_INTERVAL", "250ms")
	t.Setenv("WEBHOOK_MAX_POLL_ATTEMPTS", "30")
	t.Setenv("RUN_THREAD_FALLBACK", "not_found")
	t.Setenv("RATE_LIMIT_ENABLED", "not-a-bool")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if !config.Provider.StubMode {
		t.Error("Provider.StubMode = false, want true")
	}
	if config.Runs.PollInterval != 250*time.Millisecond {
		t.Errorf("Runs.PollInterval = %s, want 250ms", config.Runs.PollInterval)
	}
	if config.Runs.WebhookMaxPollAttempts != 30 {
		t.Errorf("Runs.WebhookMaxPollAttempts = %d, want 30", config.Runs.WebhookMaxPollAttempts)
	}
	if config.Runs.ThreadFallback != ThreadFallbackNotFound {
		t.Errorf("Runs.ThreadFallback = %s, want %s", config.Runs.ThreadFallback, ThreadFallbackNotFound)
	}
	if !config.RateLimit.Enabled {
		t.Error("RateLimit.Enabled = false, want default true for invalid value")
	}
}

func TestLoadConfig_JWTSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		errMsg string
	}{
		{name: "missing secret", secret: "", errMsg: "JWT_SECRET environment variable must be set"},
		{name: "short secret", secret: "too-short", errMsg: "JWT_SECRET must be at least 32 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", tt.secret)

			_, err := LoadConfig()
			if err == nil {
				t.Fatal("LoadConfig() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("LoadConfig() error = %v, want containing %q", err, tt.errMsg)
			}
		})
	}
}

func TestRunConfig_Validate(t *testing.T) {
	valid := RunConfig{PollInterval: time.Second, MaxPollAttempts: 60, WebhookMaxPollAttempts: 60, ThreadFallback: ThreadFallbackAny}

	tests := []struct {
		name    string
		mutate  func(*RunConfig)
		wantErr bool
	}{
		{name: "valid", mutate: func(*RunConfig) {}, wantErr: false},
		{name: "zero interval", mutate: func(r *RunConfig) { r.PollInterval = 0 }, wantErr: true},
		{name: "zero attempts", mutate: func(r *RunConfig) { r.MaxPollAttempts = 0 }, wantErr: true},
		{name: "negative webhook attempts", mutate: func(r *RunConfig) { r.WebhookMaxPollAttempts = -1 }, wantErr: true},
		{name: "unknown fallback", mutate: func(r *RunConfig) { r.ThreadFallback = "never" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			if err := r.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5433", User: "u", Password: "p", Name: "n", SSLMode: "require"}

	want := "host=db port=5433 user=u password=p dbname=n sslmode=require"
	if got := c.GetDSN(); got != want {
		t.Errorf("GetDSN() = %s, want %s", got, want)
	}
}
