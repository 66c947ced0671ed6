// Package token issues and verifies the bearer credential. The credential binds a user id only;
// role and tenant are reloaded from storage on every request.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/taskhub/internal/clock"
	"github.com/smallbiznis/taskhub/internal/config"
)

var (
	ErrInvalidToken = errors.New("invalid_token")
	ErrExpiredToken = errors.New("expired_token")
)

// UserClaims is the signed payload.
type UserClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	clock  clock.Clock
}

func NewIssuer(cfg config.Config, clk clock.Clock) (*Issuer, error) {
	secret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if secret == "" {
		return nil, config.ErrMissingJWTSecret
	}
	if cfg.Auth.TokenTTL <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", cfg.Auth.TokenTTL)
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Issuer{
		secret: []byte(secret),
		ttl:    cfg.Auth.TokenTTL,
		issuer: cfg.Auth.Issuer,
		clock:  clk,
	}, nil
}

// Issue signs a credential for userID and returns it with its expiry.
func (i *Issuer) Issue(userID snowflake.ID) (string, time.Time, error) {
	now := i.clock.Now()
	expiresAt := now.Add(i.ttl)

	claims := UserClaims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse validates signature, algorithm and expiry, and returns the bound user id.
func (i *Issuer) Parse(raw string) (snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.clock.Now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	claims := &UserClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrExpiredToken
		}
		return 0, ErrInvalidToken
	}
	if !parsed.Valid || claims.ExpiresAt == nil {
		return 0, ErrInvalidToken
	}

	userID, err := snowflake.ParseString(claims.UserID)
	if err != nil || userID == 0 || claims.Subject != claims.UserID {
		return 0, ErrInvalidToken
	}
	return userID, nil
}
