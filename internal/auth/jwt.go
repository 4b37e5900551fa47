package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims identify a respondent session: access to one submission on
// one form, for a bounded time. The remaining lifetime caps how long
// any attachment link minted during the session may live.
type Claims struct {
	FormID       string `json:"formId"`
	SubmissionID string `json:"submissionId"`
	jwt.RegisteredClaims
}

func GenerateToken(secret, formID, submissionID string, ttl time.Duration) (string, error) {
	claims := Claims{
		FormID:       formID,
		SubmissionID: submissionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	return claims, nil
}

// RemainingLifetime reports how much longer the session is valid.
// Returns zero for an expired or unbounded token.
func (c *Claims) RemainingLifetime() time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	d := time.Until(c.ExpiresAt.Time)
	if d < 0 {
		return 0
	}
	return d
}
