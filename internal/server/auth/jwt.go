// Package auth holds the password hasher and the JWT issuer used by the
// authentication services and the HTTP bearer middleware.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind selects the secret and lifetime used for a token.
type TokenKind int

const (
	TokenAccess TokenKind = iota
	TokenRefresh
)

func (k TokenKind) String() string {
	switch k {
	case TokenAccess:
		return "access"
	case TokenRefresh:
		return "refresh"
	default:
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
}

// Payload is what a token asserts about its subject.
type Payload struct {
	ID    int64
	Email string
	Role  string
}

// Claims is the JWT body: registered claims plus the payload.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64  `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role,omitempty"`
}

// KeyConfig is the secret and lifetime of one token kind.
type KeyConfig struct {
	Secret []byte
	TTL    time.Duration
}

// Issuer signs and verifies HS256 tokens for both kinds.
type Issuer struct {
	keys map[TokenKind]KeyConfig
	now  func() time.Time
}

// NewIssuer validates both key configurations and returns an Issuer.
func NewIssuer(access, refresh KeyConfig) (*Issuer, error) {
	keys := map[TokenKind]KeyConfig{TokenAccess: access, TokenRefresh: refresh}
	for kind, k := range keys {
		if len(k.Secret) == 0 {
			return nil, fmt.Errorf("%s token secret is empty", kind)
		}
		if k.TTL <= 0 {
			return nil, fmt.Errorf("%s token ttl must be positive", kind)
		}
	}
	return &Issuer{keys: keys, now: time.Now}, nil
}

// Issue signs a token of the given kind for payload. Every token gets a
// random jti, so two tokens for the same payload never collide.
func (i *Issuer) Issue(kind TokenKind, p Payload) (string, error) {
	key, ok := i.keys[kind]
	if !ok {
		return "", fmt.Errorf("unknown token kind %s", kind)
	}

	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(key.TTL)),
		},
		UserID: p.ID,
		Email:  p.Email,
		Role:   p.Role,
	})

	s, err := token.SignedString(key.Secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return s, nil
}

// Verify checks signature and expiry against the secret of kind.
// Expired tokens yield common.ErrTokenExpired; anything else that fails
// yields common.ErrInvalidToken.
func (i *Issuer) Verify(kind TokenKind, tokenString string) (*Payload, error) {
	key, ok := i.keys[kind]
	if !ok {
		return nil, common.ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return key.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}
	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return &Payload{ID: claims.UserID, Email: claims.Email, Role: claims.Role}, nil
}
