package edgetoken

// Package edgetoken issues and verifies the signed edge token: a compact
// HS256 JWT carried in a cookie and verifiable without touching Redis or
// the auth backend. The edge layer derives its reduced authorization
// decision from these claims alone.

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	domainauth "github.com/congresoumg/portal-gateway/internal/domain/auth"
)

// minSecretLen guards against trivially brute-forceable HMAC keys.
const minSecretLen = 32

// Claims are the edge token's claims. RoleLevel is derived from the role
// code through the same role model the guards use, so the two layers can
// never disagree on what a code means.
type Claims struct {
	Role        string `json:"role"`
	RoleLevel   int    `json:"role_level"`
	ProfileType string `json:"profile_type"`
	jwt.RegisteredClaims
}

// Manager signs and verifies edge tokens.
type Manager struct {
	secret []byte
}

// NewManager constructs a Manager. The secret is required and must be at
// least 32 bytes; its absence is a startup-time configuration error.
func NewManager(secret string) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("edgetoken: signing secret is required")
	}
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("edgetoken: signing secret must be at least %d bytes", minSecretLen)
	}
	return &Manager{secret: []byte(secret)}, nil
}

// Issue signs an edge token for the session's profile, expiring with the
// session itself.
func (m *Manager) Issue(sess domainauth.Session) (string, error) {
	role := sess.Profile.StaffRole
	if role == "" {
		role = domainauth.RoleStudent
	}
	now := time.Now()
	claims := &Claims{
		Role:        string(role),
		RoleLevel:   sess.Profile.RoleLevel,
		ProfileType: string(sess.Profile.ProfileType),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.Profile.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign edge token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token string. Any failure (expired,
// tampered, wrong algorithm) yields an error; the edge layer treats the
// request as anonymous in that case.
func (m *Manager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("parse edge token: %w", err)
	}
	// Claims in the wire token are advisory; the level is recomputed
	// from the role code so a forged-but-signed mismatch cannot elevate.
	if derived := domainauth.LevelOf(domainauth.Role(claims.Role)); claims.RoleLevel > derived {
		claims.RoleLevel = derived
	}
	return claims, nil
}
