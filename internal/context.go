package internal

import (
	"context"
	"time"
)

type ctxKey string

const (
	ContextPrincipalKey ctxKey = "principal"
	ContextClientIPKey  ctxKey = "clientIP"
)

const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

// Principal is the verified caller identity handed over by the session layer.
type Principal struct {
	EmployeeID string
	Role       string
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(ContextPrincipalKey).(Principal)
	return p, ok
}

func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ContextPrincipalKey, p)
}

func ClientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if ip, ok := ctx.Value(ContextClientIPKey).(string); ok {
		return ip
	}
	return ""
}

func ContextWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ContextClientIPKey, ip)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
