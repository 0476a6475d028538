package middlewares

import (
	"net/http"

	"github.com/tomasen/realip"
	"go.uber.org/zap"
)

// ClientInfo logs the caller's real IP, method and path of every request at debug level.
func ClientInfo(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("ops request",
			zap.String("client_ip", realip.FromRequest(r)),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		next.ServeHTTP(w, r)
	})
}
