package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetReturnsLogger(t *testing.T) {
	l := Get()
	require.NotNil(t, l)
	assert.Same(t, l, Get(), "logger is initialized once")
}

func TestHelpersDoNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		Debug("debug message", "key", "value")
		Info("info message", "key", "value")
		Warn("warn message", "key", "value")
		Error("error message", "key", "value")
	})
}

func TestWithReturnsChildLogger(t *testing.T) {
	child := With("component", "test")
	require.NotNil(t, child)
	assert.NotSame(t, Get(), child)
}
