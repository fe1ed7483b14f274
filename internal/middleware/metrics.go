package middleware

import (
	"net/http"
	"time"
)

// HTTPMetricsRecorder はHTTPレベルのメトリクス記録インターフェース。
type HTTPMetricsRecorder interface {
	RecordHTTPStatus(statusCode int)
	RecordHTTPLatency(duration time.Duration)
	RecordAuthFailure(reason string)
}

// NewMetricsMiddleware はレスポンスのステータスコードとレイテンシを
// 記録するミドルウェアを返す。401/403レスポンスは認証失敗としても計上する。
func NewMetricsMiddleware(rec HTTPMetricsRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			rec.RecordHTTPStatus(sr.statusCode)
			rec.RecordHTTPLatency(time.Since(start))

			switch sr.statusCode {
			case http.StatusUnauthorized:
				rec.RecordAuthFailure("unauthorized")
			case http.StatusForbidden:
				rec.RecordAuthFailure("forbidden")
			}
		})
	}
}
