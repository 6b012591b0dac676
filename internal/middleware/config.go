package middleware

import (
	"net/http"

	"github.com/templui/docvault/internal/config"
	"github.com/templui/docvault/internal/ctxkeys"
)

// Config middleware adds the sanitized app configuration to the request context.
// Handlers read upload limits from it; secrets are never exposed.
func Config(cfg *config.Config) func(http.Handler) http.Handler {
	sanitized := cfg.Sanitized()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := ctxkeys.WithConfig(r.Context(), sanitized)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
