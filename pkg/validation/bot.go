package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxBotNameLength     = 256
	maxInstructionLength = 256000
)

var (
	regionRegex = regexp.MustCompile(`^[a-z]{2,10}$`)
	// app ids become part of the platform host name
	appIDRegex = regexp.MustCompile(`^[A-Za-z0-9]{1,64}$`)
)

// BotRequestValidator validates bot and integration requests
type BotRequestValidator struct{}

// NewBotRequestValidator creates a new BotRequestValidator
func NewBotRequestValidator() *BotRequestValidator {
	return &BotRequestValidator{}
}

// ValidateName validates a bot name
func (v *BotRequestValidator) ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("name cannot be empty")
	}
	if n := utf8.RuneCountInString(name); n > maxBotNameLength {
		return fmt.Errorf("name must be at most %d characters long, got %d", maxBotNameLength, n)
	}
	return nil
}

// ValidateInstruction validates assistant instructions
func (v *BotRequestValidator) ValidateInstruction(instruction string) error {
	if strings.TrimSpace(instruction) == "" {
		return errors.New("instruction cannot be empty")
	}
	if n := utf8.RuneCountInString(instruction); n > maxInstructionLength {
		return fmt.Errorf("instruction must be at most %d characters long, got %d", maxInstructionLength, n)
	}
	return nil
}

// ValidateCreateRequest validates a bot creation request
func (v *BotRequestValidator) ValidateCreateRequest(name, instruction string) error {
	if err := v.ValidateName(name); err != nil {
		return err
	}
	return v.ValidateInstruction(instruction)
}

// ValidateUpdateRequest validates a partial bot update. Nil fields are left unchanged.
func (v *BotRequestValidator) ValidateUpdateRequest(name, instruction *string) error {
	if name == nil && instruction == nil {
		return errors.New("nothing to update: provide name or instruction")
	}
	if name != nil {
		if err := v.ValidateName(*name); err != nil {
			return err
		}
	}
	if instruction != nil {
		if err := v.ValidateInstruction(*instruction); err != nil {
			return err
		}
	}
	return nil
}

// ValidateIntegration validates chat platform settings. Empty values are allowed and
// reported later by the relay as missing configuration.
func (v *BotRequestValidator) ValidateIntegration(appID, region string) error {
	if appID != "" && !appIDRegex.MatchString(appID) {
		return fmt.Errorf("app id must be letters and digits only, got %q", appID)
	}
	if region != "" && !regionRegex.MatchString(region) {
		return fmt.Errorf("region must be a lowercase region code such as us or eu, got %q", region)
	}
	return nil
}
