package httputil

import (
	"errors"
	"testing"

	"github.com/Nephrolytics-ai/call-auditor/pkg/model"
	"github.com/stretchr/testify/require"
)

func TestStatusForFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind model.FailureKind
		want int
	}{
		{name: "credential", kind: model.KindCredential, err: errors.New("rejected"), want: 401},
		{name: "no models", kind: model.KindNoModels, err: errors.New("none"), want: 503},
		{name: "unavailable", kind: model.KindProviderUnavailable, err: errors.New("dial"), want: 503},
		{name: "transcription", kind: model.KindTranscription, err: errors.New("upload"), want: 502},
		{name: "analysis", kind: model.KindAnalysis, err: errors.New("timeout"), want: 502},
		{name: "precondition", kind: model.KindPrecondition, err: errors.New("no transcript"), want: 409},
		{name: "rate limited", kind: model.KindAnalysis, err: errors.Join(model.ErrRateLimited, errors.New("429")), want: 429},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, StatusForFailure(model.NewFailure(tt.kind, tt.err)))
		})
	}
}
