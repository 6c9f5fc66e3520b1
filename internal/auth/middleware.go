package auth

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/jogardn/storefront/internal/apperr"
	"github.com/jogardn/storefront/internal/httpx"
	"github.com/sirupsen/logrus"
)

// Middleware rejects requests without a valid bearer token and stores the
// caller's principal in the request context.
func Middleware(issuer *TokenIssuer, logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				httpx.RespondWithError(w, r, logger, apperr.ErrUnauthorized)
				return
			}

			principal, err := issuer.Verify(strings.TrimSpace(token))
			if err != nil {
				logger.WithError(err).WithField("path", r.URL.Path).Debug("Rejected bearer token")
				httpx.RespondWithError(w, r, logger, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}
