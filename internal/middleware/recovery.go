package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/hitoshi/photoshare/internal/model"
)

// NewRecoveryMiddleware はハンドラ内のpanicを回収し、500レスポンスに変換する
// ミドルウェアを返す。スタックトレースはエラーログに残し、クライアントへは返さない。
func NewRecoveryMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				slog.Error("panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)
				WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
					Code:     "INTERNAL_ERROR",
					Message:  "An internal error occurred.",
					Category: "system",
					Action:   "Wait a moment and try again.",
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}
