package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Logger provides topic-based debug logging with minimal overhead when disabled
type Logger struct {
	topic   string
	enabled atomic.Bool
}

var (
	mu            sync.Mutex
	enabledTopics = make(map[string]bool)
	registry      = make(map[string]*Logger)
)

func init() {
	// Read DEBUG_TOPICS env var: DEBUG_TOPICS=detector,sizer,backtest
	Configure(os.Getenv("DEBUG_TOPICS"))
}

// Configure replaces the enabled topic set and updates every logger created so far.
// "all" enables everything; an empty string disables all topics.
func Configure(topics string) {
	mu.Lock()
	defer mu.Unlock()

	enabledTopics = parseTopics(topics)
	for _, l := range registry {
		l.enabled.Store(topicEnabled(l.topic))
	}

	// Configure slog to DEBUG level when any topics are enabled
	if len(enabledTopics) > 0 {
		configureSlog()
	}
}

func parseTopics(topics string) map[string]bool {
	out := make(map[string]bool)
	topics = strings.TrimSpace(topics)
	if topics == "" {
		return out
	}

	// Special case: "all" enables everything
	if topics == "all" {
		out["*"] = true
		return out
	}

	// Parse comma-separated topics eg. DEBUG_TOPICS=atr,detector,planner
	for _, topic := range strings.Split(topics, ",") {
		topic = strings.TrimSpace(topic)
		if topic != "" {
			out[topic] = true
		}
	}
	return out
}

func topicEnabled(topic string) bool {
	return enabledTopics["*"] || enabledTopics[topic]
}

// configureSlog sets slog's default logger to DEBUG level
func configureSlog() {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	handler := slog.NewTextHandler(os.Stderr, opts)
	slog.SetDefault(slog.New(handler))
}

// New returns the logger for a topic, creating it on first use.
// Usage: var detectorLog = logging.New("detector")
func New(topic string) *Logger {
	mu.Lock()
	defer mu.Unlock()

	if l, ok := registry[topic]; ok {
		return l
	}
	l := &Logger{topic: topic}
	l.enabled.Store(topicEnabled(topic))
	registry[topic] = l
	return l
}

// Debug logs a debug message if this topic is enabled
// Fast path: returns immediately if disabled (single atomic load)
func (l *Logger) Debug(msg string, args ...any) {
	if !l.enabled.Load() {
		return
	}
	slog.Debug(msg, l.withTopic(args)...)
}

// Info logs an info message if this topic is enabled
func (l *Logger) Info(msg string, args ...any) {
	if !l.enabled.Load() {
		return
	}
	slog.Info(msg, l.withTopic(args)...)
}

// Warn logs a warning message if this topic is enabled
func (l *Logger) Warn(msg string, args ...any) {
	if !l.enabled.Load() {
		return
	}
	slog.Warn(msg, l.withTopic(args)...)
}

// Error logs an error message if this topic is enabled
func (l *Logger) Error(msg string, args ...any) {
	if !l.enabled.Load() {
		return
	}
	slog.Error(msg, l.withTopic(args)...)
}

func (l *Logger) withTopic(args []any) []any {
	return append([]any{"topic", l.topic}, args...)
}

// Enabled returns true if this logger is enabled
// Useful for expensive computations: if log.Enabled() { ... }
func (l *Logger) Enabled() bool {
	return l.enabled.Load()
}
