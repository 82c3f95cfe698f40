package auth

import (
	"chat-realtime/errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	bearerScheme = "Bearer"
	tokenParam   = "token"
)

// TokenFromRequest extracts the access token from a handshake request.
// The Authorization header is the explicit auth payload and wins over the
// token query parameter when both are present. A header that is not a usable
// bearer credential is refused rather than skipped. An empty token with a nil
// error means no credential was presented at all.
func TokenFromRequest(r *http.Request) (string, error) {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		return BearerToken(header)
	}
	return r.URL.Query().Get(tokenParam), nil
}

// BearerToken parses an Authorization header value, the scheme is case-insensitive.
func BearerToken(header string) (string, error) {
	scheme, token, _ := strings.Cut(strings.TrimSpace(header), " ")
	if !strings.EqualFold(scheme, bearerScheme) {
		return "", fmt.Errorf("%w: unsupported authorization scheme %q", errors.ErrUnauthorized, scheme)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("%w: empty bearer token", errors.ErrUnauthorized)
	}
	return token, nil
}
