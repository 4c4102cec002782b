package auth

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired marks a credential that verified but is past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers malformed tokens, signature mismatches and
	// tokens missing the identity claim.
	ErrTokenInvalid = errors.New("invalid token")
)

type CustomClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Verifier checks bearer credentials issued upstream and yields the verified
// user identity (email). Token issuance belongs to the auth service; Issue
// exists for tests and local tooling only.
type Verifier struct {
	key []byte
}

func NewVerifier(secret string) *Verifier {
	if secret == "" {
		log.Printf("[AUTH] WARNING: empty signing secret configured")
	}
	return &Verifier{key: []byte(secret)}
}

func (v *Verifier) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			log.Printf("[AUTH] Expired token rejected")
			return "", ErrTokenExpired
		}
		log.Printf("[AUTH] JWT parse error: %v", err)
		return "", ErrTokenInvalid
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.Email == "" {
		log.Printf("[AUTH] VALIDATION FAILED: claims invalid or identity missing")
		return "", ErrTokenInvalid
	}
	return claims.Email, nil
}

func (v *Verifier) Issue(email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "notion-realtime",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
}
