package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity описывает разрешённый контекст запроса: кто действует и в каком арендаторе
type Identity struct {
	ActorID  string
	TenantID string
}

type claims struct {
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

var cfg *Config

func Init(c *Config) {
	cfg = c
}

// VerifyToken проверяет bearer-токен запроса и возвращает контекст актора и арендатора
func VerifyToken(r *http.Request) (*Identity, error) {
	if cfg == nil {
		return nil, fmt.Errorf("auth is not initialized")
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, fmt.Errorf("no authorization header")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, fmt.Errorf("invalid authorization header format")
	}

	return parseToken(parts[1], cfg.JWTSecret)
}

func parseToken(tokenString, secret string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	if c.Subject == "" || c.TenantID == "" {
		return nil, fmt.Errorf("token is missing actor or tenant")
	}

	return &Identity{
		ActorID:  c.Subject,
		TenantID: c.TenantID,
	}, nil
}

// GenerateToken выпускает подписанный токен для актора в арендаторе
func GenerateToken(actorID, tenantID string, ttl time.Duration, secret string) (string, error) {
	now := time.Now()
	c := claims{
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString([]byte(secret))
}
