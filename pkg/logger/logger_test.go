package logger

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newBufferLogger(level LogLevel) (*bytes.Buffer, Logger) {
	buf := &bytes.Buffer{}
	return buf, NewStandardLogger(log.New(buf, "", 0), level, "[summaryhub]")
}

func TestStandardLogger_LevelFiltering(t *testing.T) {
	buf, l := newBufferLogger(Warn)

	l.Debug("debug message")
	l.Info("info message")
	assert.Empty(t, buf.String())

	l.Warn("warn message")
	l.Error("error message")
	out := buf.String()
	assert.Contains(t, out, "[WARN] warn message")
	assert.Contains(t, out, "[ERROR] error message")
}

func TestStandardLogger_KeyValueFormatting(t *testing.T) {
	buf, l := newBufferLogger(Info)

	l.Info("Batch started", "batchId", "batch_1", "segments", 5)
	assert.Contains(t, buf.String(), "batchId=batch_1")
	assert.Contains(t, buf.String(), "segments=5")
}

func TestStandardLogger_DanglingKey(t *testing.T) {
	buf, l := newBufferLogger(Info)

	l.Info("odd args", "key")
	assert.Contains(t, buf.String(), "key=(no value)")
}

func TestLogMode_ReturnsIndependentLogger(t *testing.T) {
	buf, l := newBufferLogger(Error)

	verbose := l.LogMode(Debug)
	verbose.Debug("visible")
	assert.Contains(t, buf.String(), "visible")

	buf.Reset()
	l.Debug("still silent")
	assert.Empty(t, buf.String())
}

func TestDiscard_NeverPanics(t *testing.T) {
	Discard.Info("ignored", "k", "v")
	Discard.Warn("ignored")
	Discard.Error("ignored")
	Discard.Debug("ignored")
	assert.Same(t, Discard, Discard.LogMode(Debug))
}
