package routes

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/templui/docvault/internal/app"
	"github.com/templui/docvault/internal/handler"
	"github.com/templui/docvault/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	health := handler.NewHealthHandler(app.DB)
	account := handler.NewAccountHandler()
	folders := handler.NewFolderHandler(app.FolderService)
	documents := handler.NewDocumentHandler(app.DocumentService)
	members := handler.NewMemberHandler(app.MembershipService)
	audits := handler.NewAuditHandler(app.AuditService)

	metrics := middleware.NewHTTPMetrics(app.Registry)

	// ============================================================================
	// TENANT API (/api/*, tenant resolved from X-Tenant, /t/{slug}/ or Host)
	// ============================================================================

	api := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		api.Handle(pattern, middleware.Metrics(pattern, metrics)(h))
	}

	// Account
	handle("GET /api/me", account.Me)

	// Folders
	handle("GET /api/folders", folders.List)
	handle("POST /api/folders", folders.Create)
	handle("GET /api/folders/{id}", folders.Get)
	handle("PATCH /api/folders/{id}", folders.Rename)
	handle("DELETE /api/folders/{id}", folders.Delete)
	handle("POST /api/folders/{id}/move", folders.Move)
	handle("GET /api/folders/{id}/acl", folders.ACL)
	handle("POST /api/folders/{id}/acl", folders.Grant)
	handle("DELETE /api/folders/{id}/acl/{entry}", folders.Revoke)

	// Documents
	handle("GET /api/documents", documents.List)
	handle("POST /api/documents", documents.Upload)
	handle("GET /api/documents/{id}", documents.Get)
	handle("PATCH /api/documents/{id}", documents.Update)
	handle("DELETE /api/documents/{id}", documents.Delete)
	handle("GET /api/documents/{id}/content", documents.Content)
	handle("GET /api/documents/{id}/link", documents.Link)
	handle("GET /api/documents/{id}/acl", documents.ACL)
	handle("POST /api/documents/{id}/acl", documents.Grant)
	handle("DELETE /api/documents/{id}/acl/{entry}", documents.Revoke)

	// Members & groups
	handle("GET /api/members", members.List)
	handle("POST /api/members", members.Add)
	handle("PATCH /api/members/{user}", members.SetRole)
	handle("DELETE /api/members/{user}", members.Remove)
	handle("GET /api/groups", members.ListGroups)
	handle("POST /api/groups", members.CreateGroup)
	handle("PUT /api/groups/{id}/members/{user}", members.AddToGroup)
	handle("DELETE /api/groups/{id}/members/{user}", members.RemoveFromGroup)

	// Audit
	handle("GET /api/audit", audits.List)

	tenantAPI := middleware.Chain(
		api,
		middleware.Tenant(app.TenantService), // Tenant first: no user lookups for unknown hosts
		middleware.Authenticate(app.AuthService),
		middleware.Annotate,
		middleware.RequireAuth,
	)

	// ============================================================================
	// OPERATIONS
	// ============================================================================

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", health.Health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{Registry: app.Registry}))
	mux.Handle("/", tenantAPI)

	// Global middleware - executed in order (top to bottom)
	handler := middleware.Chain(
		mux,
		middleware.Config(app.Cfg), // Config first: handlers read upload limits from it
		middleware.SecurityHeaders,
		middleware.ClientIP,
		middleware.RequestLogging,
	)

	return handler
}
