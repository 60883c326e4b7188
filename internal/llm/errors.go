package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Yates-Labs/llmkit/internal/params"
)

var (
	// ErrConfig reports an invalid or missing setting at construction time.
	ErrConfig = params.ErrConfig

	// ErrIO reports a parameter persistence failure.
	ErrIO = params.ErrIO

	ErrValidation     = errors.New("invalid input")
	ErrResponseFormat = errors.New("invalid provider response")
	ErrEmptyResponse  = errors.New("empty provider response")
	ErrProvider       = errors.New("completion provider failed")
)

// ResponseError describes a structural problem in a provider response.
// It unwraps to ErrResponseFormat.
type ResponseError struct {
	// Prompt is the prompt index the problem belongs to, or -1.
	Prompt int

	// Choice is the position of the offending choice in the response, or -1.
	Choice int

	// Field names the missing or invalid response field.
	Field string

	Reason string
}

func (e *ResponseError) Error() string {
	parts := []string{ErrResponseFormat.Error()}
	if e.Prompt >= 0 {
		parts = append(parts, fmt.Sprintf("prompt %d", e.Prompt))
	}
	if e.Choice >= 0 {
		parts = append(parts, fmt.Sprintf("choice %d", e.Choice))
	}
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	return strings.Join(parts, ": ") + ": " + e.Reason
}

func (e *ResponseError) Unwrap() error {
	return ErrResponseFormat
}
