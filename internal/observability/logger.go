// Package observability provides structured logging and Prometheus metrics
// for the medstock server.
package observability

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/medstock-labs/medstock/internal/config"
)

// NewLogger builds a zap logger from the logging configuration, writing to w.
// Format is "json" or "console"; level is any zap level name.
func NewLogger(cfg config.LoggingConfig, w io.Writer) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(cfg.Level); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	encConfig := zap.NewProductionEncoderConfig()
	encConfig.EncodeTime = func(ts time.Time, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(ts.UTC().Format(time.RFC3339))
	}
	encConfig.EncodeDuration = func(d time.Duration, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(d.String())
	}

	var encoder zapcore.Encoder
	switch cfg.Format {
	case "", "json":
		encoder = zapcore.NewJSONEncoder(encConfig)
	case "console":
		encoder = zapcore.NewConsoleEncoder(encConfig)
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	return zap.New(zapcore.NewCore(
		encoder,
		zapcore.Lock(zapcore.AddSync(w)),
		level,
	)), nil
}
