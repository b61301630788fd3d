package utils

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/Nephrolytics-ai/call-auditor/pkg/logging"
)

// ContainsAnyErrorSubstring reports whether the error text contains any of
// the targets, ignoring case. Provider SDKs often only expose status in text.
func ContainsAnyErrorSubstring(err error, targets ...string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, target := range targets {
		if target != "" && strings.Contains(msg, strings.ToLower(target)) {
			return true
		}
	}
	return false
}

func WrapIfNotNil(err error, context ...string) error {
	if err == nil {
		return nil
	}

	callerName := "unknown"
	if pc, _, _, ok := runtime.Caller(1); ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			callerName = fn.Name()
		}
	}

	parts := make([]string, 0, 1+len(context))
	parts = append(parts, callerName)
	parts = append(parts, context...)

	return fmt.Errorf("%s: %w", strings.Join(parts, " - "), err)
}

// LogPanic writes a recovered panic and the stack to log. Call it from the
// deferred recovery function.
func LogPanic(log logging.Logger, recovered any) {
	log.Errorf("panic recovered: %v", recovered)
	for _, frame := range StackFrames(3) {
		log.Errorf("     *** %s", frame)
	}
}

// StackFrames formats the caller's stack, skipping the first skip frames.
func StackFrames(skip int) []string {
	var frames []string
	for i := skip; ; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		name := "unknown"
		if fn := runtime.FuncForPC(pc); fn != nil {
			name = fn.Name()
		}
		frames = append(frames, fmt.Sprintf("%s (%s:%d)", name, file, line))
	}
	return frames
}
