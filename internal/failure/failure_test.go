package failure

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"typed", New(TokenUnavailable, "no token"), TokenUnavailable},
		{"wrapped typed", fmt.Errorf("outer: %w", New(VerificationFailed, "x")), VerificationFailed},
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), UpstreamTimeout},
		{"plain", errors.New("boom"), UpstreamHTTPError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := Wrap(ExtractionEmpty, errors.New("no anchors"), "extracting links")
	assert.Equal(t, "extracting links: no anchors", err.Error())
	assert.True(t, Is(err, ExtractionEmpty))
	assert.Nil(t, Wrap(InvalidKey, nil, "unused"))
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(InvalidKey))
	assert.True(t, Retryable(UpstreamTimeout))
}
