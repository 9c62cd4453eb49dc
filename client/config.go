package client

import (
	"log/slog"
)

// Config configures a chain client.
type Config struct {
	// Endpoint is the JSON-RPC endpoint of the node.
	Endpoint string

	// Timeout for a single HTTP round trip, in seconds.
	Timeout int

	// Retry controls transport-level retries. Nil uses DefaultRetryConfig.
	Retry *RetryConfig

	// Debug logs request and response bodies.
	Debug bool

	// Logger is optional; nil discards all output.
	Logger Logger
}

// Logger is the minimal structured logging interface the SDK consumes.
// Arguments are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// DefaultConfig returns a config pointed at the default network
// (Base Sepolia public RPC).
func DefaultConfig() *Config {
	return &Config{
		Endpoint: "https://sepolia.base.org",
		Timeout:  30,
		Debug:    false,
	}
}

// slogLogger adapts log/slog to the Logger interface.
type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps a *slog.Logger. Passing nil uses slog.Default.
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{l: l}
}

func (s *slogLogger) Debug(msg string, args ...interface{}) { s.l.Debug(msg, args...) }
func (s *slogLogger) Info(msg string, args ...interface{})  { s.l.Info(msg, args...) }
func (s *slogLogger) Warn(msg string, args ...interface{})  { s.l.Warn(msg, args...) }
func (s *slogLogger) Error(msg string, args ...interface{}) { s.l.Error(msg, args...) }
