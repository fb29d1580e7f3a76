package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sanosuguru/go-event-admission/internal/api"
	"github.com/sanosuguru/go-event-admission/internal/pkg/logger"
)

// headerActorID は操作者を表すヘッダー。handler.HeaderActorID と同じ値
const headerActorID = "X-Actor-ID"

// RequestLogger は1リクエスト1行の構造化ログを出力する。
// レベルは結果で決まる: 5xx は Error、4xx は Warn、それ以外は Info
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			req := c.Request()
			status := c.Response().Status
			if err != nil {
				status = api.StatusFor(err)
			}

			fields := []zap.Field{
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.String("method", req.Method),
				zap.String("route", c.Path()),
				zap.String("path", req.URL.Path),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote_ip", c.RealIP()),
			}
			if actor := req.Header.Get(headerActorID); actor != "" {
				fields = append(fields, zap.String("actor_id", actor))
			}
			if id := c.Param("id"); id != "" {
				fields = append(fields, zap.String("resource_id", id))
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
			}

			if ce := logger.Get().Check(levelFor(status), "request"); ce != nil {
				ce.Write(fields...)
			}
			return err
		}
	}
}

func levelFor(status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// RequestIDMiddleware は X-Request-ID を引き継ぐか新たに採番し、レスポンスに付与する
func RequestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Request().Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)
			return next(c)
		}
	}
}
