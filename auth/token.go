package auth

import (
	"fmt"
	"strings"

	"github.com/MarineRcher/notAlone-sub002/config"
	"github.com/MarineRcher/notAlone-sub002/globals"
	"github.com/MarineRcher/notAlone-sub002/types"
	"github.com/golang-jwt/jwt/v5"
)

// MockTokenPrefix marks a developer/test credential. The remainder of the
// token is looked up in the fixed directory below.
const MockTokenPrefix = "mock_jwt_token_"

var mockDirectory = map[string]types.UserIdentity{
	"alice":   {Id: "1001", Username: "alice"},
	"bob":     {Id: "1002", Username: "bob"},
	"charlie": {Id: "1003", Username: "charlie"},
	"diana":   {Id: "1004", Username: "diana"},
	"eve":     {Id: "1005", Username: "eve"},
}

// Claims is the signed-token payload. Either Id or UserId must be set, Login
// carries the display name.
type Claims struct {
	Id     string `json:"id,omitempty"`
	UserId string `json:"userId,omitempty"`
	Login  string `json:"login,omitempty"`
	jwt.RegisteredClaims
}

// Authenticate resolves a credential to a user identity. Two schemes are
// accepted: the mock_jwt_token_ developer bypass and an HMAC-signed token
// verified against the configured shared secret (signature and expiry are
// both checked). Any other credential is rejected.
func Authenticate(credential string, cfg *config.Config) (*types.UserIdentity, error) {
	if credential == "" {
		return nil, fmt.Errorf("empty credential")
	}
	if strings.HasPrefix(credential, MockTokenPrefix) {
		name := credential[len(MockTokenPrefix):]
		identity, ok := mockDirectory[name]
		if !ok {
			return nil, fmt.Errorf("unknown mock user %q", name)
		}
		globals.AppLogger.Debug("authenticated via mock token", "user", identity.Username)
		return &identity, nil
	}
	if cfg.AuthConfig.JWTSecret == "" {
		return nil, fmt.Errorf("no jwt secret configured")
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(cfg.AuthConfig.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	userId := claims.Id
	if userId == "" {
		userId = claims.UserId
	}
	if userId == "" {
		return nil, fmt.Errorf("token carries no user id")
	}
	username := claims.Login
	if username == "" {
		username = userId
	}
	return &types.UserIdentity{Id: userId, Username: username}, nil
}
