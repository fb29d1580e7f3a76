package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-admission/internal/domain"
	"github.com/sanosuguru/go-event-admission/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Details string `json:"details,omitempty"`
}

var kindNames = map[error]string{
	domain.ErrValidation: "validation",
	domain.ErrState:      "state",
	domain.ErrCapacity:   "capacity",
	domain.ErrDuplicate:  "duplicate",
	domain.ErrNotFound:   "not_found",
	domain.ErrEmptyPool:  "empty_pool",
}

// StatusFor はエラーに対応するHTTPステータスを返す
func StatusFor(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	switch domain.KindOf(err) {
	case domain.ErrValidation:
		return http.StatusBadRequest
	case domain.ErrNotFound:
		return http.StatusNotFound
	case domain.ErrState, domain.ErrCapacity, domain.ErrDuplicate:
		return http.StatusConflict
	case domain.ErrEmptyPool:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := StatusFor(err)
	resp := ErrorResponse{Code: code}

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		if m, ok := he.Message.(string); ok {
			resp.Error = m
		} else {
			resp.Error = http.StatusText(code)
		}
		if he.Internal != nil {
			resp.Details = he.Internal.Error()
		}
	case code >= http.StatusInternalServerError:
		// 内部エラーの詳細は返さない
		resp.Error = "内部サーバーエラー"
	default:
		resp.Error = err.Error()
		resp.Kind = kindNames[domain.KindOf(err)]
	}

	if code >= http.StatusInternalServerError {
		logger.Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, resp)
	}
	if err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
