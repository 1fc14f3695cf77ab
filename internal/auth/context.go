package auth

import "context"

type contextKey struct{}

type AuthContext struct {
	UserID    string
	Email     string
	Role      string
	SessionID string
	Token     string
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func UserID(ctx context.Context) string {
	ac, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return ac.UserID
}

func Role(ctx context.Context) string {
	ac, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return ac.Role
}

// HasRole reports whether the authenticated user has any of roles.
func HasRole(ctx context.Context, roles ...string) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	for _, r := range roles {
		if ac.Role == r {
			return true
		}
	}
	return false
}

// IsStaff reports whether the user may manage inventory.
func IsStaff(ctx context.Context) bool {
	return HasRole(ctx, "admin", "lab_staff")
}
