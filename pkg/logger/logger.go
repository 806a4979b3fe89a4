// Package logger provides structured logging functionality for the fhevm session manager.
// This package configures and creates zap loggers with appropriate settings for
// production and development environments, and provides HTTP logging for both the
// metrics endpoint (server side) and JSON-RPC traffic (client side).
package logger

import (
	"net/http"
	"regexp"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerConfig holds the configuration for logger creation.
// This configuration controls the logging level and behavior.
type LoggerConfig struct {
	// Debug enables debug-level logging when true, otherwise uses info level
	Debug bool
}

// NewLogger creates a new structured logger with the specified configuration.
// The logger is configured for production use with JSON encoding and ISO8601 timestamps.
// Debug mode can be enabled through the configuration to include debug-level logs.
//
// Parameters:
//   - cfg: The logger configuration
//   - options: Additional zap options to apply to the logger
//
// Returns:
//   - *zap.Logger: A configured zap logger instance
//   - error: An error if the logger cannot be created
func NewLogger(cfg *LoggerConfig, options ...zap.Option) (*zap.Logger, error) {
	mergedOptions := append([]zap.Option{zap.WithCaller(true)}, options...)

	c := zap.NewProductionConfig()
	c.EncoderConfig = zap.NewProductionEncoderConfig()
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if cfg.Debug {
		c.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		c.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return c.Build(mergedOptions...)
}

var (
	healthRegex = regexp.MustCompile(`v1\/health$`)
	readyRegex  = regexp.MustCompile(`v1\/ready$`)
)

// HttpLoggerMiddleware creates an HTTP middleware for request logging.
// This middleware logs HTTP requests with method, path, and duration information.
// Health and ready check endpoints are excluded from logging to reduce noise.
//
// Parameters:
//   - next: The next HTTP handler in the middleware chain
//   - l: The zap logger to use for request logging
//
// Returns:
//   - http.Handler: An HTTP handler that logs requests and calls the next handler
func HttpLoggerMiddleware(next http.Handler, l *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		if !healthRegex.MatchString(r.URL.Path) && !readyRegex.MatchString(r.URL.Path) {
			l.Sugar().Infow("http_request",
				zap.String("system", "http"),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("duration", time.Since(start)),
			)
		}
	})
}

type loggingTransport struct {
	base   http.RoundTripper
	logger *zap.Logger
}

// NewHttpLoggingTransport wraps an http.RoundTripper so that every outgoing
// request (JSON-RPC calls to wallets, dev nodes and relayers) is logged at
// debug level with its host, status and duration.
//
// Parameters:
//   - base: The transport to delegate to; http.DefaultTransport when nil
//   - l: The zap logger to use for request logging
//
// Returns:
//   - http.RoundTripper: A transport that logs and delegates
func NewHttpLoggingTransport(base http.RoundTripper, l *zap.Logger) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &loggingTransport{base: base, logger: l}
}

func (t *loggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(r)
	if err != nil {
		t.logger.Sugar().Debugw("http_client_request",
			zap.String("system", "http"),
			zap.String("method", r.Method),
			zap.String("host", r.URL.Host),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}
	t.logger.Sugar().Debugw("http_client_request",
		zap.String("system", "http"),
		zap.String("method", r.Method),
		zap.String("host", r.URL.Host),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)
	return resp, nil
}
