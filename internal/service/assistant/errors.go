package assistant

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ProviderError is a failed provider call with the HTTP status the provider answered with.
// StatusCode is zero for transport failures.
type ProviderError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: provider returned %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// wrapErr converts go-openai errors into a ProviderError
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	pe := &ProviderError{Op: op, Message: err.Error(), Err: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		pe.StatusCode = apiErr.HTTPStatusCode
		pe.Message = apiErr.Message
	case errors.As(err, &reqErr):
		pe.StatusCode = reqErr.HTTPStatusCode
		if reqErr.Err != nil {
			pe.Message = reqErr.Err.Error()
		}
	}
	return pe
}

func statusOf(err error) int {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.StatusCode
	}
	return 0
}

// IsNotFound reports whether the provider answered 404
func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

// IsUnauthorized reports whether the provider rejected the API key
func IsUnauthorized(err error) bool {
	return statusOf(err) == http.StatusUnauthorized
}

// IsAlreadyExists reports whether the provider refused a duplicate, e.g. a file already in a store
func IsAlreadyExists(err error) bool {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	if pe.StatusCode == http.StatusConflict {
		return true
	}
	return pe.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(pe.Message), "already")
}
