package chatplatform

import (
	"botdesk/internal/config"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = Credentials{AppID: "app1", Region: "eu", APIKey: "chat-key", BotUID: "bot-uid"}

func newTestClient(srv *httptest.Server) *HTTPClient {
	return NewClient(config.ChatConfig{BaseURL: srv.URL + "/{appId}/{region}/v3", HTTPTimeout: 5 * time.Second})
}

func TestSendMessage_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/app1/eu/v3/bots/bot-uid/messages", r.URL.Path)
		assert.Equal(t, "chat-key", r.Header.Get("apikey"))
		assert.Equal(t, "application/json", r.Header.Get("content-type"))
		assert.Equal(t, "application/json", r.Header.Get("accept"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "message", body["category"])
		assert.Equal(t, "text", body["type"])
		assert.Equal(t, "user-1", body["receiver"])
		assert.Equal(t, "user", body["receiverType"])
		assert.Equal(t, map[string]any{"text": "hello"}, body["data"])

		fmt.Fprint(w, `{"data":{"id":"42"}}`)
	}))
	defer srv.Close()

	result, err := newTestClient(srv).SendMessage(context.Background(), testCreds,
		OutboundMessage{Receiver: "user-1", ReceiverType: "USER", Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "42"}, result["data"])
}

func TestSendMessage_ErrorStatus(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantBody map[string]any
	}{
		{
			name:     "json error body",
			response: `{"error":{"code":"ERR_UID_NOT_FOUND"}}`,
			wantBody: map[string]any{"error": map[string]any{"code": "ERR_UID_NOT_FOUND"}},
		},
		{
			name:     "plain text body",
			response: "bad gateway",
			wantBody: map[string]any{"rawResponse": "bad gateway"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				fmt.Fprint(w, tt.response)
			}))
			defer srv.Close()

			_, err := newTestClient(srv).SendMessage(context.Background(), testCreds,
				OutboundMessage{Receiver: "user-1", ReceiverType: "user", Text: "hi"})

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
			assert.Equal(t, tt.wantBody, apiErr.Body)
		})
	}
}

func TestMessagesURL_DefaultTemplate(t *testing.T) {
	c := NewClient(config.ChatConfig{BaseURL: "https://{appId}.api-{region}.cometchat.io/v3"})
	got, err := c.messagesURL(testCreds)
	require.NoError(t, err)
	assert.Equal(t, "https://app1.api-eu.cometchat.io/v3/bots/bot-uid/messages", got)
}

func TestMessagesURL_RejectsForeignHosts(t *testing.T) {
	c := NewClient(config.ChatConfig{BaseURL: "https://{appId}.api-{region}.cometchat.io/v3"})

	tests := []struct {
		name   string
		appID  string
		region string
	}{
		{name: "metadata address in app id", appID: "169.254.169.254/latest/meta-data#", region: "us"},
		{name: "fragment hides suffix", appID: "evil.example#", region: "us"},
		{name: "userinfo in app id", appID: "x@10.0.0.1", region: "us"},
		{name: "query in region", appID: "app1", region: "us?x="},
		{name: "empty app id", appID: "", region: "us"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.messagesURL(Credentials{AppID: tt.appID, Region: tt.region, BotUID: "bot-uid"})
			assert.ErrorIs(t, err, ErrUnsafeTarget)
		})
	}
}

func TestSendMessage_UnsafeTargetMakesNoRequest(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	creds := testCreds
	creds.AppID = "app1/../../internal#"
	_, err := newTestClient(srv).SendMessage(context.Background(), creds,
		OutboundMessage{Receiver: "user-1", ReceiverType: "user", Text: "hi"})

	assert.ErrorIs(t, err, ErrUnsafeTarget)
	assert.Zero(t, hits)
}

func TestTemplateHostSuffix(t *testing.T) {
	assert.Equal(t, ".cometchat.io", templateHostSuffix("https://{appId}.api-{region}.cometchat.io/v3"))
	assert.Equal(t, "127.0.0.1:8080", templateHostSuffix("http://127.0.0.1:8080/{appId}/{region}/v3"))
}
