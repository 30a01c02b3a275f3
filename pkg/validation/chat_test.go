package validation

import (
	"strings"
	"testing"
)

func TestChatRequestValidator_ValidateMessage(t *testing.T) {
	validator := NewChatRequestValidator()

	tests := []struct {
		name    string
		message string
		wantErr bool
		errMsg  string
	}{
		{name: "valid message", message: "Hello, bot!", wantErr: false},
		{name: "empty message", message: "", wantErr: true, errMsg: "message cannot be empty"},
		{name: "whitespace message", message: " \n\t", wantErr: true, errMsg: "message cannot be empty"},
		{name: "message too long", message: strings.Repeat("a", maxMessageLength+1), wantErr: true, errMsg: "message must be at most"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateMessage(tt.message)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMessage() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && !contains(err.Error(), tt.errMsg) {
				t.Errorf("ValidateMessage() error message = %v, want to contain %v", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestValidateAPIKeyFormat(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "secret key", key: "sk-abc123", wantErr: false},
		{name: "project key", key: "sk-proj-abc123", wantErr: false},
		{name: "wrong prefix", key: "pk-abc123", wantErr: true},
		{name: "empty", key: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKeyFormat(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPIKeyFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
