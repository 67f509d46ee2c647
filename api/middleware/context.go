package middleware

import (
	"context"

	"github.com/angelmondragon/basketcase/pkg/enums"
)

type contextKey string

const (
	ctxOperator contextKey = "operator"
	ctxRole     contextKey = "operator_role"
)

func OperatorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxOperator).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) enums.OperatorRole {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(enums.OperatorRole); ok {
		return v
	}
	return ""
}

// WithOperator injects an authenticated operator, used by tests and internal callers.
func WithOperator(ctx context.Context, operator string, role enums.OperatorRole) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxOperator, operator)
	return context.WithValue(ctx, ctxRole, role)
}
