package logging

import (
	"testing"

	"github.com/rs/zerolog"
)

// NewTesting returns a logger that writes through t.Log so output is attached
// to the test that produced it.
func NewTesting(t *testing.T) zerolog.Logger {
	return New(testWriter{t}, zerolog.DebugLevel, false)
}

type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
