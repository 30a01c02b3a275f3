package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const maxMessageLength = 32768

// ChatRequestValidator validates bot invocation requests
type ChatRequestValidator struct{}

// NewChatRequestValidator creates a new ChatRequestValidator
func NewChatRequestValidator() *ChatRequestValidator {
	return &ChatRequestValidator{}
}

// ValidateMessage validates a chat message
func (v *ChatRequestValidator) ValidateMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return errors.New("message cannot be empty")
	}
	if n := utf8.RuneCountInString(message); n > maxMessageLength {
		return fmt.Errorf("message must be at most %d characters long, got %d", maxMessageLength, n)
	}
	return nil
}

// ValidateAPIKeyFormat checks that a provider key looks like a secret key
func ValidateAPIKeyFormat(key string) error {
	if !strings.HasPrefix(key, "sk-") {
		return errors.New(`API keys should start with "sk-"`)
	}
	return nil
}
