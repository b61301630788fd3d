package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Nephrolytics-ai/call-auditor/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapIfNotNilNilStaysNil(t *testing.T) {
	assert.NoError(t, WrapIfNotNil(nil, "ignored"))
}

func TestWrapIfNotNilKeepsChainAndCaller(t *testing.T) {
	base := errors.New("boom")
	err := WrapIfNotNil(base, "listing models")

	require.Error(t, err)
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "TestWrapIfNotNilKeepsChainAndCaller")
	assert.Contains(t, err.Error(), "listing models")
}

func TestContainsAnyErrorSubstringSeesWrappedText(t *testing.T) {
	err := fmt.Errorf("outer: %w", errors.New("RESOURCE_EXHAUSTED quota"))
	assert.True(t, ContainsAnyErrorSubstring(err, "resource_exhausted"))
	assert.False(t, ContainsAnyErrorSubstring(err, "PERMISSION_DENIED"))
}

func TestContainsAnyErrorSubstringIgnoresCase(t *testing.T) {
	err := errors.New("Error 429: Too Many Requests")
	assert.True(t, ContainsAnyErrorSubstring(err, "quota", "too many requests"))
	assert.False(t, ContainsAnyErrorSubstring(err, "api key"))
	assert.False(t, ContainsAnyErrorSubstring(nil, "anything"))
}

func TestStackFramesIncludesCaller(t *testing.T) {
	frames := StackFrames(1)
	require.NotEmpty(t, frames)
	assert.Contains(t, frames[0], "TestStackFramesIncludesCaller")
}

func TestLogPanicWritesValueAndStack(t *testing.T) {
	var buf bytes.Buffer
	factory, err := logging.NewLogrusFactory(&buf, "error", "text")
	require.NoError(t, err)
	log := factory.CreateLogger(context.Background())

	func() {
		defer func() {
			LogPanic(log, recover())
		}()
		panic("bad state")
	}()

	out := buf.String()
	assert.Contains(t, out, "panic recovered: bad state")
	assert.Contains(t, out, "TestLogPanicWritesValueAndStack")
}
