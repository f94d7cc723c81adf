package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is the locally readable view of the bearer token's claims.
// The parse is unverified; it is for display and expiry short-circuits only,
// the server remains the authority on validity.
type TokenInfo struct {
	Parsed    bool
	Subject   string
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenInfo returns the claims of the current credential. An unauthenticated
// store or an unparseable token yields a zero TokenInfo.
func (s *Store) TokenInfo() TokenInfo {
	return parseTokenInfo(s.Token())
}

func parseTokenInfo(token string) TokenInfo {
	if token == "" {
		return TokenInfo{}
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return TokenInfo{}
	}

	info := TokenInfo{Parsed: true}
	if sub, err := claims.GetSubject(); err == nil {
		info.Subject = sub
	}
	if username, ok := claims["username"].(string); ok {
		info.Username = username
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		info.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	return info
}
