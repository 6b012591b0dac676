package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/templui/docvault/internal/ctxkeys"
	"github.com/templui/docvault/internal/service"
)

// Authenticate reads a bearer token and adds the user it names to the context. Requests
// without a valid token continue anonymously; RequireAuth rejects them.
func Authenticate(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			user, err := authService.Authenticate(r.Context(), token)
			if err != nil {
				slog.Debug("rejected bearer token", "error", err, "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(ctxkeys.WithUser(r.Context(), user)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireAuth rejects requests without an authenticated user.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ctxkeys.User(r.Context()) == nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="docvault"`)
			writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
