// Package monitoring provides the production logging and metrics
// backends: a zap-based implementation of the logger contract and the
// Prometheus collectors exposed on /metrics.
package monitoring

import (
	"context"
	"os"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chainvault/walletgate/internal/config"
	"github.com/chainvault/walletgate/pkg/constants"
	"github.com/chainvault/walletgate/pkg/logger"
)

// zapLogger adapts zap to the logger.Logger contract. The level is
// shared across derived loggers so a SetLevel from the config watcher
// takes effect everywhere at once.
type zapLogger struct {
	zl    *zap.Logger
	level zap.AtomicLevel
}

// NewZapLogger builds a production JSON logger from configuration.
func NewZapLogger(cfg *config.LogConfig) (logger.Logger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	parsed, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		parsed = zapcore.InfoLevel
	}
	level := zap.NewAtomicLevelAt(parsed)

	sink := zapcore.AddSync(os.Stdout)
	if cfg.OutputPath != "" && cfg.OutputPath != "stdout" {
		f, err := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		sink = zapcore.AddSync(f)
	}

	core := zapcore.NewCore(encoder, sink, level)
	return &zapLogger{
		zl:    zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel)),
		level: level,
	}, nil
}

func (l *zapLogger) Debug(ctx context.Context, message string, fields ...logger.Field) {
	l.zl.Debug(message, l.convert(ctx, nil, fields)...)
}

func (l *zapLogger) Info(ctx context.Context, message string, fields ...logger.Field) {
	l.zl.Info(message, l.convert(ctx, nil, fields)...)
}

func (l *zapLogger) Warn(ctx context.Context, message string, fields ...logger.Field) {
	l.zl.Warn(message, l.convert(ctx, nil, fields)...)
}

func (l *zapLogger) Error(ctx context.Context, message string, err error, fields ...logger.Field) {
	l.zl.Error(message, l.convert(ctx, err, fields)...)
}

func (l *zapLogger) Fatal(ctx context.Context, message string, err error, fields ...logger.Field) {
	l.zl.Fatal(message, l.convert(ctx, err, fields)...)
}

func (l *zapLogger) WithFields(fields ...logger.Field) logger.Logger {
	return &zapLogger{
		zl:    l.zl.With(l.convert(context.Background(), nil, fields)...),
		level: l.level,
	}
}

func (l *zapLogger) WithComponent(component string) logger.Logger {
	return &zapLogger{
		zl:    l.zl.With(zap.String("component", component)),
		level: l.level,
	}
}

func (l *zapLogger) SetLevel(level constants.LogLevel) {
	parsed, err := zapcore.ParseLevel(string(level))
	if err != nil {
		return
	}
	l.level.SetLevel(parsed)
}

func (l *zapLogger) GetLevel() constants.LogLevel {
	switch l.level.Level() {
	case zapcore.DebugLevel:
		return constants.LogLevelDebug
	case zapcore.WarnLevel:
		return constants.LogLevelWarn
	case zapcore.ErrorLevel:
		return constants.LogLevelError
	case zapcore.FatalLevel:
		return constants.LogLevelFatal
	default:
		return constants.LogLevelInfo
	}
}

// convert turns logger fields into zap fields, masking sensitive
// values and attaching trace and request identity from the context.
func (l *zapLogger) convert(ctx context.Context, err error, fields []logger.Field) []zap.Field {
	zapFields := make([]zap.Field, 0, len(fields)+4)

	if ctx != nil {
		span := trace.SpanFromContext(ctx)
		if span.SpanContext().IsValid() {
			zapFields = append(zapFields,
				zap.String("trace_id", span.SpanContext().TraceID().String()),
				zap.String("span_id", span.SpanContext().SpanID().String()),
			)
		}
		if requestID := ctx.Value(constants.ContextKeyRequestID); requestID != nil {
			zapFields = append(zapFields, zap.Any("request_id", requestID))
		}
		if userID := ctx.Value(constants.ContextKeyUserID); userID != nil {
			zapFields = append(zapFields, zap.Any("user_id", userID))
		}
	}

	if err != nil {
		zapFields = append(zapFields, zap.Error(err))
	}

	for _, field := range fields {
		zapFields = append(zapFields, zap.Any(field.Key, logger.Sanitize(field.Key, field.Value)))
	}
	return zapFields
}
