package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/basketcase/api/responses"
	pkgauth "github.com/angelmondragon/basketcase/pkg/auth"
	"github.com/angelmondragon/basketcase/pkg/config"
	pkgerrors "github.com/angelmondragon/basketcase/pkg/errors"
	"github.com/angelmondragon/basketcase/pkg/logger"
)

// AdminAuth validates the bearer token and seeds the request context with the operator claims.
func AdminAuth(cfg config.APIConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgauth.ParseAdminToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := context.WithValue(r.Context(), ctxOperator, claims.Operator())
			ctx = context.WithValue(ctx, ctxRole, claims.Role)
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"operator":      claims.Operator(),
					"operator_role": claims.Role.String(),
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) string {
	raw := strings.TrimSpace(header)
	if len(raw) >= 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	return raw
}
