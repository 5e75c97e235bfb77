package middleware

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const (
	// LoggerContextKey is the context key for storing the request-scoped logger
	LoggerContextKey contextKey = "logger"
)

// WithRequestLogger injects a request-scoped logger into the context and logs
// one line per request once the handler returns.
// This middleware should be placed after RequestID in the middleware chain.
func WithRequestLogger(baseLogger *zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			start := time.Now()

			lc := baseLogger.With().
				Str("method", req.Method).
				Str("path", req.URL.Path)
			if requestID := GetRequestID(req.Context()); requestID != "" {
				lc = lc.Str("request_id", requestID)
			}
			requestLogger := lc.Logger()

			ctx := context.WithValue(req.Context(), LoggerContextKey, &requestLogger)
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				// Let the error handler write the response so the logged
				// status matches what the client sees.
				c.Error(err)
			}

			status := c.Response().Status
			event := requestLogger.Info()
			switch {
			case status >= 500:
				event = requestLogger.Error()
			case status >= 400:
				event = requestLogger.Warn()
			}
			event.
				Int("status", status).
				Dur("latency", time.Since(start)).
				Int64("bytes", c.Response().Size).
				Msg("request")

			return nil
		}
	}
}

// GetLogger retrieves the request-scoped logger from the context.
// If no logger is found, returns the provided fallback logger.
// If no fallback is provided, returns a disabled logger.
func GetLogger(ctx context.Context, fallback ...*zerolog.Logger) *zerolog.Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*zerolog.Logger); ok {
		return logger
	}
	if len(fallback) > 0 && fallback[0] != nil {
		return fallback[0]
	}
	nop := zerolog.Nop()
	return &nop
}
