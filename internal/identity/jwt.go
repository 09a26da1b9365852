// Package identity verifies client credentials. The provider is an external
// collaborator from the sync engine's point of view; this implementation
// accepts HS256 JWTs minted by the surrounding platform.
package identity

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"boardsync/pkg/interfaces"
	"boardsync/pkg/types"
)

// JWTProvider verifies HS256-signed tokens carrying sub/name/email claims.
type JWTProvider struct {
	secret []byte
}

func NewJWTProvider(secret string) *JWTProvider {
	return &JWTProvider{secret: []byte(secret)}
}

// Verify parses and validates the credential. Expiry is honored when the
// token carries an exp claim. A missing sub fails verification: every
// session must map to a stable user id.
func (p *JWTProvider) Verify(ctx context.Context, credential string) (*types.Identity, error) {
	token, err := jwt.Parse(credential, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidCredential, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, interfaces.ErrInvalidCredential
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing sub claim", interfaces.ErrInvalidCredential)
	}
	name, _ := claims["name"].(string)
	email, _ := claims["email"].(string)
	return &types.Identity{Sub: sub, Name: name, Email: email}, nil
}
