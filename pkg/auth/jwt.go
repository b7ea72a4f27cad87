package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// JWTVerifier validates HMAC-signed bearer tokens issued by the identity
// provider and extracts the caller's id, name, and role.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier over the shared HMAC secret.
func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

// Authenticate validates the token and returns the caller identity.
func (v *JWTVerifier) Authenticate(token string) (*UserContext, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", parsed.Claims)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	uc := &UserContext{
		UserID:   sub,
		Username: stringClaim(claims, "name"),
		Role:     stringClaim(claims, "role"),
		AuthType: "jwt",
	}
	if uc.Role == "" {
		uc.Role = RoleStandard
	}
	return uc, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if s, ok := claims[key].(string); ok {
		return s
	}
	return ""
}

// Verify interface compliance.
var _ Authenticator = (*JWTVerifier)(nil)
