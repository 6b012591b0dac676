package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/templui/docvault/internal/ctxkeys"
	"github.com/templui/docvault/internal/service"
)

const (
	TenantHeader     = "X-Tenant"
	tenantPathPrefix = "/t/"
)

// Tenant resolves the request's tenant and confines the request context to its data. The
// tenant is taken from the X-Tenant header, a /t/{slug}/ path prefix (which is stripped),
// or the Host name, in that order.
func Tenant(tenants *service.TenantService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := r.Header.Get(TenantHeader)
			if identifier == "" {
				if slug, rest, ok := splitTenantPath(r.URL.Path); ok {
					identifier = slug
					r = withPath(r, rest)
				}
			}
			if identifier == "" {
				identifier = r.Host
			}

			ctx, tenant, err := tenants.Enter(r.Context(), identifier)
			if errors.Is(err, service.ErrTenantNotFound) {
				writeError(w, http.StatusNotFound, "tenant_not_found", "unknown tenant")
				return
			}
			if err != nil {
				slog.Error("failed to resolve tenant", "error", err, "identifier", identifier)
				writeError(w, http.StatusInternalServerError, "internal", "an internal error has occurred")
				return
			}

			ctx = ctxkeys.WithTenant(ctx, tenant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// splitTenantPath splits "/t/acme/api/x" into "acme" and "/api/x".
func splitTenantPath(path string) (slug, rest string, ok bool) {
	if !strings.HasPrefix(path, tenantPathPrefix) {
		return "", "", false
	}
	slug, rest, _ = strings.Cut(strings.TrimPrefix(path, tenantPathPrefix), "/")
	if slug == "" {
		return "", "", false
	}
	return slug, "/" + rest, true
}

func withPath(r *http.Request, path string) *http.Request {
	r2 := r.Clone(r.Context())
	r2.URL.Path = path
	r2.URL.RawPath = ""
	return r2
}
