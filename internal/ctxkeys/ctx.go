package ctxkeys

import (
	"context"

	"github.com/templui/docvault/internal/config"
	"github.com/templui/docvault/internal/model"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const (
	UserKey     contextKey = "user"
	TenantKey   contextKey = "tenant"
	ConfigKey   contextKey = "config"
	ClientIPKey contextKey = "client_ip"
)

func User(ctx context.Context) *model.User {
	user, _ := ctx.Value(UserKey).(*model.User)
	return user
}

func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// Tenant is the tenant resolved for the request. Its data scope travels separately, see
// tenancy.FromContext.
func Tenant(ctx context.Context) *model.Tenant {
	tenant, _ := ctx.Value(TenantKey).(*model.Tenant)
	return tenant
}

func WithTenant(ctx context.Context, tenant *model.Tenant) context.Context {
	return context.WithValue(ctx, TenantKey, tenant)
}

func Config(ctx context.Context) *config.Config {
	cfg, _ := ctx.Value(ConfigKey).(*config.Config)
	return cfg
}

func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, ConfigKey, cfg)
}

// ClientIP is the address of the client that sent the request, empty outside HTTP.
func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(ClientIPKey).(string)
	return ip
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ClientIPKey, ip)
}
