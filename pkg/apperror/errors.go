package apperror

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is checks across pipeline stages.
var (
	ErrIngestion     = errors.New("ingestion failed")
	ErrSynthesis     = errors.New("synthesis failed")
	ErrDelivery      = errors.New("delivery failed")
	ErrConfiguration = errors.New("invalid configuration")
	ErrEmptyOutput   = errors.New("model returned no text")
)

// SourceFailure records one source that could not be fetched.
type SourceFailure struct {
	Source string
	Err    error
}

// IngestionError is raised only when every configured source failed.
type IngestionError struct {
	Failures []SourceFailure
}

func (e *IngestionError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Source, f.Err))
	}
	return fmt.Sprintf("all %d sources failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

func (e *IngestionError) Unwrap() []error {
	errs := []error{ErrIngestion}
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// SynthesisError covers transport/model failures and empty model output.
type SynthesisError struct {
	Reason string
	Err    error
}

func NewSynthesisError(reason string, err error) *SynthesisError {
	return &SynthesisError{Reason: reason, Err: err}
}

func (e *SynthesisError) Error() string {
	if e.Err == nil {
		return "synthesis: " + e.Reason
	}
	return fmt.Sprintf("synthesis: %s: %v", e.Reason, e.Err)
}

func (e *SynthesisError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSynthesis}
	}
	return []error{ErrSynthesis, e.Err}
}

// DeliveryError carries the response status and body of a failed post.
// StatusCode is 0 when the request never got a response.
type DeliveryError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("delivery transport failure: %v", e.Err)
	}
	return fmt.Sprintf("delivery failed %d: %s", e.StatusCode, e.Body)
}

func (e *DeliveryError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDelivery}
	}
	return []error{ErrDelivery, e.Err}
}

// Retryable reports whether a later attempt could plausibly succeed.
func (e *DeliveryError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

// ConfigurationError is fatal at startup.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}
