package messaging

import (
	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/zap"
)

// zapLoggerAdapter は watermill のログを zap に流す
type zapLoggerAdapter struct {
	log *zap.Logger
}

// NewLoggerAdapter は zap.Logger を watermill.LoggerAdapter に変換する
func NewLoggerAdapter(log *zap.Logger) watermill.LoggerAdapter {
	return &zapLoggerAdapter{log: log.With(zap.String("component", "watermill"))}
}

func (l *zapLoggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	l.log.Error(msg, append(toZapFields(fields), zap.Error(err))...)
}

func (l *zapLoggerAdapter) Info(msg string, fields watermill.LogFields) {
	l.log.Info(msg, toZapFields(fields)...)
}

func (l *zapLoggerAdapter) Debug(msg string, fields watermill.LogFields) {
	l.log.Debug(msg, toZapFields(fields)...)
}

// Trace は Debug より細かいレベルがないため Debug として扱う
func (l *zapLoggerAdapter) Trace(msg string, fields watermill.LogFields) {
	l.log.Debug(msg, toZapFields(fields)...)
}

func (l *zapLoggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &zapLoggerAdapter{log: l.log.With(toZapFields(fields)...)}
}

func toZapFields(fields watermill.LogFields) []zap.Field {
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	return zf
}
