package middleware

import (
	"net/http"
	"runtime/debug"

	"opmelink-api/pkg/apierror"

	"go.uber.org/zap"
)

// Recovery recovers from panics in downstream handlers and answers 500.
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	logger = logger.Named("recovery")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.Error("panic recovered",
						zap.Any("panic", err),
						zap.String("path", r.URL.Path),
						zap.String("request_id", GetRequestID(r.Context())),
						zap.ByteString("stack", debug.Stack()),
					)

					writeError(w, apierror.InternalError("internal server error"))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
