package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/basketcase/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// MintAdminToken issues a signed JWT for the provided payload using the configured TTL.
func MintAdminToken(cfg config.APIConfig, now time.Time, payload AdminTokenPayload) (string, error) {
	if cfg.JWTSecret == "" {
		return "", fmt.Errorf("jwt secret is required")
	}
	if cfg.JWTIssuer == "" {
		return "", fmt.Errorf("jwt issuer is required")
	}
	if cfg.JWTTTLMinutes <= 0 {
		return "", fmt.Errorf("jwt expiration minutes must be positive")
	}
	operator := strings.TrimSpace(payload.Operator)
	if operator == "" {
		return "", fmt.Errorf("operator is required")
	}
	if !payload.Role.IsValid() {
		return "", fmt.Errorf("invalid operator role %q", payload.Role)
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	claims := AdminTokenClaims{
		Role: payload.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operator,
			Issuer:    cfg.JWTIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.JWTTTLMinutes) * time.Minute)),
			ID:        jti,
		},
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAdminToken validates the JWT string and returns typed claims.
func ParseAdminToken(cfg config.APIConfig, tokenString string) (*AdminTokenClaims, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	claims := &AdminTokenClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.JWTIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("invalid operator role %q", claims.Role)
	}

	return claims, nil
}
