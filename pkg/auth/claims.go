package auth

import (
	"github.com/angelmondragon/basketcase/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
)

// AdminTokenPayload captures the data available when minting an admin token.
type AdminTokenPayload struct {
	Operator string
	Role     enums.OperatorRole
	JTI      string
}

// AdminTokenClaims represents the typed JWT accepted by the admin API.
type AdminTokenClaims struct {
	Role enums.OperatorRole `json:"role"`
	jwt.RegisteredClaims
}

// Operator returns the subject the token was minted for.
func (c *AdminTokenClaims) Operator() string {
	return c.Subject
}
