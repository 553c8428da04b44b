package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSecret = "test-signing-secret"

func initTestAuth(t *testing.T) {
	t.Helper()
	prev := cfg
	Init(&Config{JWTSecret: testSecret, Issuer: "notevault", TokenTTL: time.Hour})
	t.Cleanup(func() { cfg = prev })
}

func TestVerifyToken(t *testing.T) {
	initTestAuth(t)

	token, err := GenerateToken("actor-1", "tenant-1", time.Hour, testSecret)
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/v1/notes", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	identity, err := VerifyToken(r)
	require.NoError(t, err)
	require.Equal(t, "actor-1", identity.ActorID)
	require.Equal(t, "tenant-1", identity.TenantID)
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	initTestAuth(t)

	token, err := GenerateToken("actor-1", "tenant-1", time.Hour, "another-secret")
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/v1/notes", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	_, err = VerifyToken(r)
	require.Error(t, err)
}

func TestVerifyToken_Expired(t *testing.T) {
	initTestAuth(t)

	token, err := GenerateToken("actor-1", "tenant-1", -time.Minute, testSecret)
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/v1/notes", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	_, err = VerifyToken(r)
	require.Error(t, err)
}

func TestVerifyToken_MissingHeader(t *testing.T) {
	initTestAuth(t)

	r := httptest.NewRequest("GET", "/v1/notes", nil)

	_, err := VerifyToken(r)
	require.Error(t, err)
}

func TestVerifyToken_MalformedHeader(t *testing.T) {
	initTestAuth(t)

	r := httptest.NewRequest("GET", "/v1/notes", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	_, err := VerifyToken(r)
	require.Error(t, err)
}

// Токен без арендатора бесполезен: все запросы ограничены арендатором
func TestParseToken_MissingTenant(t *testing.T) {
	token, err := GenerateToken("actor-1", "", time.Hour, testSecret)
	require.NoError(t, err)

	_, err = parseToken(token, testSecret)
	require.Error(t, err)
}
