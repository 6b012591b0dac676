package middleware

import "net/http"

// Chain wraps h so that middlewares run in the order given, the first one outermost.
//
//	handler := Chain(mux,
//	    RequestLogging,     // sees every request first
//	    Tenant(tenants),    // then resolves the tenant
//	    Authenticate(auth), // then the actor
//	)
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
