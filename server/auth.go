package server

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"io/ioutil"
	"log"
	"strings"
	"time"

	jwt "github.com/dgrijalva/jwt-go"
)

var (
	// ErrInvalidToken means that there was an invalid or missing authorization token
	ErrInvalidToken = errors.New("invalid authorization token")
)

// TokenIssuer signs and verifies the bearer tokens that carry an eWUŚ session
// snapshot between requests. The snapshot travels inside the token itself, so
// the server holds no session state.
type TokenIssuer struct {
	jwtPrivateKey *rsa.PrivateKey
}

// NewTokenIssuer creates a token issuer using the RSA private key in the given
// PEM file
func NewTokenIssuer(rsaPrivateKey string) (*TokenIssuer, error) {
	key, err := ioutil.ReadFile(rsaPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("error reading jwt private key: %w", err)
	}
	parsedKey, err := jwt.ParseRSAPrivateKeyFromPEM(key)
	if err != nil {
		return nil, fmt.Errorf("error parsing jwt private key: %w", err)
	}
	return &TokenIssuer{jwtPrivateKey: parsedKey}, nil
}

// NewTokenIssuerWithTemporaryKey creates a token issuer using an ephemeral
// private/public key pair. Tokens do not survive a server restart.
func NewTokenIssuerWithTemporaryKey() (*TokenIssuer, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return &TokenIssuer{jwtPrivateKey: key}, nil
}

// IssueToken signs a token carrying the given session snapshot, expiring when
// the underlying session does
func (ti *TokenIssuer) IssueToken(snapshot map[string]string, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"exp":  expiresAt.Unix(),
		"iat":  time.Now().Unix(),
		"sub":  snapshot["operator_id"],
		"ewus": snapshot,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(ti.jwtPrivateKey)
}

// ParseToken verifies a bearer token and returns the session snapshot it
// carries. Accepts the raw token or an Authorization header value with the
// Bearer scheme.
func (ti *TokenIssuer) ParseToken(token string) (map[string]string, error) {
	const bearerSchema = "Bearer "
	if strings.HasPrefix(token, bearerSchema) {
		token = token[len(bearerSchema):]
	}
	jwtToken, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			log.Printf("server: unexpected signing method: %v", t.Header["alg"])
			return nil, ErrInvalidToken
		}
		return &ti.jwtPrivateKey.PublicKey, nil
	})
	if err != nil || !jwtToken.Valid {
		log.Printf("server: invalid token: %s", err)
		return nil, ErrInvalidToken
	}
	claims, ok := jwtToken.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	raw, ok := claims["ewus"].(map[string]interface{})
	if !ok {
		return nil, ErrInvalidToken
	}
	snapshot := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			snapshot[k] = s
		}
	}
	return snapshot, nil
}
