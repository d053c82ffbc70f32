// server/internal/auth/auth.go
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// bcrypt cost for passwords and PINs. Tests lower it through SetHashCost.
var hashCost = 12

func SetHashCost(cost int) { hashCost = cost }

// JWTClaims defines the payload for the JWT.
type JWTClaims struct {
	UserID      string   `json:"uid"`
	Username    string   `json:"username"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	DeviceID    string   `json:"deviceId,omitempty"`
	jwt.RegisteredClaims
}

func (c *JWTClaims) HasPermission(perm string) bool {
	if c.Role == "admin" {
		return true
	}
	for _, p := range c.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// ErrPasswordTooLong: bcrypt only accepts up to 72 bytes.
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// Hashing
func HashPassword(password string) (string, error) {
	if len(password) > 72 {
		return "", ErrPasswordTooLong
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

var ErrInvalidToken = errors.New("invalid or expired token")

// TokenIssuer signs and verifies session tokens with one HMAC secret.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (ti *TokenIssuer) Generate(userID, username, role string, permissions []string, deviceID string) (string, error) {
	now := ti.now()
	claims := &JWTClaims{
		UserID:      userID,
		Username:    username,
		Role:        role,
		Permissions: permissions,
		DeviceID:    deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ti.secret)
}

func (ti *TokenIssuer) Parse(tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return ti.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(ti.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
