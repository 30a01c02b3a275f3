package validation

import (
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestBotRequestValidator_ValidateCreateRequest(t *testing.T) {
	validator := NewBotRequestValidator()

	tests := []struct {
		name        string
		botName     string
		instruction string
		wantErr     bool
		errMsg      string
	}{
		{name: "valid bot", botName: "Support", instruction: "Answer politely.", wantErr: false},
		{name: "missing name", botName: "", instruction: "Answer politely.", wantErr: true, errMsg: "name cannot be empty"},
		{name: "missing instruction", botName: "Support", instruction: "  ", wantErr: true, errMsg: "instruction cannot be empty"},
		{name: "name too long", botName: strings.Repeat("n", maxBotNameLength+1), instruction: "x", wantErr: true, errMsg: "name must be at most"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateCreateRequest(tt.botName, tt.instruction)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCreateRequest() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && !contains(err.Error(), tt.errMsg) {
				t.Errorf("ValidateCreateRequest() error message = %v, want to contain %v", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestBotRequestValidator_ValidateUpdateRequest(t *testing.T) {
	validator := NewBotRequestValidator()

	tests := []struct {
		name        string
		botName     *string
		instruction *string
		wantErr     bool
	}{
		{name: "name only", botName: strPtr("Renamed"), wantErr: false},
		{name: "instruction only", instruction: strPtr("Be brief."), wantErr: false},
		{name: "both", botName: strPtr("Renamed"), instruction: strPtr("Be brief."), wantErr: false},
		{name: "nothing", wantErr: true},
		{name: "blank name", botName: strPtr(""), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateUpdateRequest(tt.botName, tt.instruction)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUpdateRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBotRequestValidator_ValidateIntegration(t *testing.T) {
	validator := NewBotRequestValidator()

	tests := []struct {
		name    string
		appID   string
		region  string
		wantErr bool
		errMsg  string
	}{
		{name: "empty settings", wantErr: false},
		{name: "complete", appID: "2501a7f3c9b4e", region: "eu", wantErr: false},
		{name: "uppercase region", appID: "app1", region: "EU", wantErr: true, errMsg: "region must be"},
		{name: "region url injection", appID: "app1", region: "eu.evil.com/", wantErr: true, errMsg: "region must be"},
		{name: "app id with path", appID: "169.254.169.254/latest/meta-data#", region: "us", wantErr: true, errMsg: "app id must be"},
		{name: "app id with userinfo", appID: "x@internal", region: "us", wantErr: true, errMsg: "app id must be"},
		{name: "app id with dot", appID: "evil.com", wantErr: true, errMsg: "app id must be"},
		{name: "app id too long", appID: strings.Repeat("a", 65), wantErr: true, errMsg: "app id must be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateIntegration(tt.appID, tt.region)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateIntegration() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && !contains(err.Error(), tt.errMsg) {
				t.Errorf("ValidateIntegration() error message = %v, want to contain %v", err.Error(), tt.errMsg)
			}
		})
	}
}
