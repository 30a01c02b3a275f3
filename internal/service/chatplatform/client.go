package chatplatform

import (
	"botdesk/internal/config"
	"botdesk/internal/logger"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

// Credentials identify a bot on the chat platform
type Credentials struct {
	AppID  string
	Region string
	APIKey string
	BotUID string
}

// OutboundMessage is a text message sent on behalf of a bot
type OutboundMessage struct {
	Receiver     string
	ReceiverType string
	Text         string
}

// Client sends bot messages to the chat platform
type Client interface {
	SendMessage(ctx context.Context, creds Credentials, msg OutboundMessage) (map[string]any, error)
}

// APIError is a non-2xx answer from the chat platform
type APIError struct {
	StatusCode int
	// Body is the decoded JSON body, or {"rawResponse": text} when it is not JSON
	Body map[string]any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat platform returned %d", e.StatusCode)
}

// ErrUnsafeTarget is returned when credentials would send the request outside the platform's hosts
var ErrUnsafeTarget = errors.New("chat platform credentials do not form a platform URL")

// placeholder values are spliced into the host name
var hostLabel = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// HTTPClient talks to the CometChat REST API
type HTTPClient struct {
	baseURL string
	// hostSuffix is the fixed part of the template host after its last placeholder
	hostSuffix string
	http       *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewClient creates an HTTPClient. cfg.BaseURL may carry {appId} and {region} placeholders.
func NewClient(cfg config.ChatConfig) *HTTPClient {
	base := strings.TrimRight(cfg.BaseURL, "/")
	return &HTTPClient{
		baseURL:    base,
		hostSuffix: templateHostSuffix(base),
		http:       &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

func templateHostSuffix(base string) string {
	host := base
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if i := strings.LastIndex(host, "}"); i >= 0 {
		host = host[i+1:]
	}
	return strings.ToLower(host)
}

type textData struct {
	Text string `json:"text"`
}

type sendMessageBody struct {
	Category     string   `json:"category"`
	Type         string   `json:"type"`
	Data         textData `json:"data"`
	Receiver     string   `json:"receiver"`
	ReceiverType string   `json:"receiverType"`
}

func (c *HTTPClient) messagesURL(creds Credentials) (string, error) {
	for _, v := range []string{creds.AppID, creds.Region} {
		if !hostLabel.MatchString(v) {
			return "", fmt.Errorf("%w: invalid host label %q", ErrUnsafeTarget, v)
		}
	}

	base := strings.NewReplacer("{appId}", creds.AppID, "{region}", creds.Region).Replace(c.baseURL)
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsafeTarget, err)
	}
	if !strings.HasSuffix(strings.ToLower(u.Host), c.hostSuffix) || u.User != nil {
		return "", fmt.Errorf("%w: host %q", ErrUnsafeTarget, u.Host)
	}
	return base + "/bots/" + url.PathEscape(creds.BotUID) + "/messages", nil
}

// SendMessage posts a text message as the bot and returns the decoded platform response
func (c *HTTPClient) SendMessage(ctx context.Context, creds Credentials, msg OutboundMessage) (map[string]any, error) {
	payload, err := json.Marshal(sendMessageBody{
		Category:     "message",
		Type:         "text",
		Data:         textData{Text: msg.Text},
		Receiver:     msg.Receiver,
		ReceiverType: strings.ToLower(msg.ReceiverType),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	endpoint, err := c.messagesURL(creds)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("content-type", "application/json")
	req.Header.Set("apikey", creds.APIKey)

	logger.Log.WithFields(logrus.Fields{
		"bot_uid":       creds.BotUID,
		"receiver":      msg.Receiver,
		"receiver_type": strings.ToLower(msg.ReceiverType),
		"text_chars":    len(msg.Text),
	}).Debug("Sending message to chat platform")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach chat platform: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read chat platform response: %w", err)
	}

	body := decodeBody(raw)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: body}
	}
	return body, nil
}

func decodeBody(raw []byte) map[string]any {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil || body == nil {
		return map[string]any{"rawResponse": string(raw)}
	}
	return body
}
