package auth

import (
	"context"
	"errors"
	"time"

	"originchats/internal/pkg/errs"
	"originchats/internal/pkg/logx"

	"github.com/golang-jwt/jwt"
)

const (
	// IdentityExpiration is the lifetime of tokens minted by GenerateToken.
	IdentityExpiration = 24 * time.Hour

	// TokenIssuer identifies the issuer of the token.
	TokenIssuer = "OriginChats-Server"
)

// Payload defines the JWT claims accepted by JWTValidator.
type Payload struct {
	jwt.StandardClaims

	// ID is the stable user id.
	ID string `json:"id"`

	// Username is the display name at the time the token was issued.
	Username string `json:"username"`
}

// GenerateToken creates and signs a new JWT Token string based on the provided Payload struct.
func GenerateToken(payload *Payload, secretKey string, duration time.Duration) (string, error) {
	now := time.Now()

	payload.StandardClaims = jwt.StandardClaims{
		ExpiresAt: now.Add(duration).Unix(),
		IssuedAt:  now.Unix(),
		Issuer:    TokenIssuer,
		Subject:   payload.ID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)

	return token.SignedString([]byte(secretKey))
}

// ParseToken parses and validates the JWT Token string using the provided secretKey.
func ParseToken(tokenString string, secretKey string) (*Payload, error) {
	claims := &Payload{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secretKey), nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid or expired token")
	}

	return claims, nil
}

// JWTValidator accepts tokens signed with a shared HS256 secret.
type JWTValidator struct {
	secret string
}

// NewJWTValidator returns a validator for tokens signed with secret.
func NewJWTValidator(secret string) *JWTValidator {
	return &JWTValidator{secret: secret}
}

func (v *JWTValidator) Validate(_ context.Context, token string) (Identity, error) {
	payload, err := ParseToken(token, v.secret)
	if err != nil {
		logx.Warn("Rejected identity token", "error", err.Error())
		return Identity{}, errs.NewError(errs.ErrAuthInvalid)
	}
	if payload.ID == "" || payload.Username == "" {
		return Identity{}, errs.NewError(errs.ErrAuthInvalid)
	}
	return Identity{ID: payload.ID, Username: payload.Username}, nil
}
