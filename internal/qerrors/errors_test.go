package qerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransientPermanentClassification(t *testing.T) {
	base := errors.New("connection reset")

	tr := Transient("llm", base)
	assert.True(t, IsTransient(tr))
	assert.False(t, IsPermanent(tr))
	assert.True(t, errors.Is(tr, base))

	pe := Permanent("router", base)
	assert.True(t, IsPermanent(pe))
	assert.False(t, IsTransient(pe))
	assert.True(t, errors.Is(pe, base))
}

func TestWrappedClassificationSurvives(t *testing.T) {
	inner := Transient("llm", errors.New("timeout"))
	wrapped := fmt.Errorf("invoke failed: %w", inner)
	assert.True(t, IsTransient(wrapped))
}

func TestIsRateLimit(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"429 Too Many Requests", true},
		{"rate limit exceeded", true},
		{"rate_limit_exceeded for model", true},
		{"quota exhausted for today", true},
		{"500 internal server error", false},
		{"connection refused", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsRateLimit(errors.New(tc.msg)), "message %q", tc.msg)
	}
	assert.False(t, IsRateLimit(nil))
}

func TestHTTPStatusCode(t *testing.T) {
	assert.Equal(t, 429, HTTPStatusCode(errors.New("status 429: slow down")))
	assert.Equal(t, 500, HTTPStatusCode(errors.New("error, status code: 500")))
	assert.Equal(t, 0, HTTPStatusCode(errors.New("no status here")))
	assert.Equal(t, 0, HTTPStatusCode(nil))
}
