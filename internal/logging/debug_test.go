package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger_Creation(t *testing.T) {
	Configure("test")

	enabledLog := New("test")
	disabledLog := New("other")

	assert.True(t, enabledLog.Enabled(), "Logger for enabled topic should be enabled")
	assert.False(t, disabledLog.Enabled(), "Logger for disabled topic should be disabled")
}

func TestLogger_AllTopics(t *testing.T) {
	Configure("all")

	log1 := New("anything")
	log2 := New("whatever")

	assert.True(t, log1.Enabled(), "All topics should be enabled with wildcard")
	assert.True(t, log2.Enabled(), "All topics should be enabled with wildcard")
}

func TestLogger_NoTopics(t *testing.T) {
	Configure("")

	log := New("anything")

	assert.False(t, log.Enabled(), "Logger should be disabled when no topics enabled")
}

func TestLogger_ConfigureUpdatesExistingLoggers(t *testing.T) {
	Configure("")
	detectorLog := New("detector")
	assert.False(t, detectorLog.Enabled())

	Configure("sizer, detector")
	assert.True(t, detectorLog.Enabled(), "Configure should reach loggers created before it ran")
	assert.Same(t, detectorLog, New("detector"), "New should return the registered logger for a topic")

	Configure("")
	assert.False(t, detectorLog.Enabled())
}

func BenchmarkLogger_Disabled(b *testing.B) {
	// Benchmark the fast path when logging is disabled
	Configure("")
	log := New("benchmark")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		log.Debug("test message", "key", "value", "number", 42)
	}
}

func BenchmarkLogger_Enabled(b *testing.B) {
	// Benchmark when logging is enabled
	Configure("benchmark")
	log := New("benchmark")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		log.Debug("test message", "key", "value", "number", 42)
	}
	Configure("")
}
