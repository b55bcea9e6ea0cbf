package middleware

import (
	"net/http"
	"strings"

	"recall-backend/pkg/auth"
	"recall-backend/pkg/common"

	"go.uber.org/zap"
)

// Authenticate validates the bearer token and stores the claims on the
// request context for downstream handlers.
func Authenticate(validator *auth.JWTValidator, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				authHeader = r.Header.Get("authorization")
			}
			if authHeader == "" {
				common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization header format")
				return
			}

			claims, err := validator.Validate(parts[1])
			if err != nil {
				logger.Debug("token validation failed", zap.Error(err))
				common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), claims)))
		})
	}
}
