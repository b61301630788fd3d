package model

import (
	"errors"
	"fmt"
)

type FailureKind string

const (
	KindCredential          FailureKind = "credential"
	KindNoModels            FailureKind = "no_models"
	KindProviderUnavailable FailureKind = "provider_unavailable"
	KindTranscription       FailureKind = "transcription"
	KindAnalysis            FailureKind = "analysis"
	KindPrecondition        FailureKind = "precondition"
)

const rateLimitHint = "The provider appears to be rate limiting this key; wait a minute or switch to a key with more quota, then retry."

// Failure is the error type surfaced by model selection and the session
// workflow. Kind tells the caller what the user should do next.
type Failure struct {
	Kind FailureKind
	Err  error
}

func NewFailure(kind FailureKind, err error) *Failure {
	return &Failure{Kind: kind, Err: err}
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func (f *Failure) RateLimited() bool {
	return errors.Is(f.Err, ErrRateLimited)
}

// Diagnostic is the message shown to the user.
func (f *Failure) Diagnostic() string {
	var msg string
	switch f.Kind {
	case KindCredential:
		if errors.Is(f.Err, ErrCredentialMissing) {
			msg = "Enter an API key before running this step."
		} else {
			msg = "The provider rejected the API key. Check the key and enter it again."
		}
	case KindNoModels:
		msg = "The API key was accepted but no content-generation models are available for it."
	case KindProviderUnavailable:
		msg = fmt.Sprintf("Could not reach the provider to list models: %v", f.Err)
	case KindTranscription:
		msg = fmt.Sprintf("Transcript extraction failed: %v", f.Err)
	case KindAnalysis:
		msg = fmt.Sprintf("Analysis failed: %v", f.Err)
	case KindPrecondition:
		msg = fmt.Sprintf("%v", f.Err)
	default:
		msg = f.Error()
	}

	if f.RateLimited() {
		msg += " " + rateLimitHint
	}
	return msg
}

// AsFailure returns the Failure in err's chain, if any.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// Diagnostic renders any error for display, preferring the Failure message.
func Diagnostic(err error) string {
	if err == nil {
		return ""
	}
	if f, ok := AsFailure(err); ok {
		return f.Diagnostic()
	}
	return err.Error()
}
