package auth

import (
	"chat-realtime/domain"
	"chat-realtime/errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "chat-realtime"

// AccessClaims defines the structure of the data stored inside an access token.
// The user claim is named userId, as issued by the account service.
type AccessClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Verifier validates access tokens presented at connection time.
// It is stateless: a pure function of the token and the signing secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// GenerateToken creates a signed access token for a specific user.
// Only the dev client and tests mint tokens, issuance belongs to the account service.
func (v *Verifier) GenerateToken(userID domain.UserID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &AccessClaims{
		UserID: string(userID),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Verify parses and validates the signature and expiration of a token string.
// Every failure is reported as ErrUnauthorized.
func (v *Verifier) Verify(tokenString string) (domain.UserID, error) {
	if tokenString == "" {
		return "", errors.ErrMissingToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{},
		func(token *jwt.Token) (interface{}, error) {
			return v.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return "", fmt.Errorf("%w: missing user claim", errors.ErrUnauthorized)
	}
	return domain.UserID(claims.UserID), nil
}
