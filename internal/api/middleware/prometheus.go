package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-admission/internal/api"
	"github.com/sanosuguru/go-event-admission/internal/pkg/metrics"
)

// PrometheusMiddleware はHTTPメトリクスを収集するミドルウェア
func PrometheusMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			elapsed := time.Since(start)
			status := c.Response().Status
			if err != nil {
				// エラーハンドラーが書き込む前なのでエラーからステータスを決める
				status = api.StatusFor(err)
			}

			// ルート未登録のパスはラベルを増やさないようにまとめる
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}

			m.ObserveHTTP(c.Request().Method, path, status, elapsed)

			return err
		}
	}
}
