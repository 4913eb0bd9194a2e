package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Helpers
// ============================================================================

func newTestService(t *testing.T) *Service {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return NewTestService(privateKey, "test-issuer", 15*time.Minute)
}

func withNow(s *Service, now time.Time) *Service {
	s.now = func() time.Time { return now }
	return s
}

// ============================================================================
// Sign
// ============================================================================

func TestSign_NilPrivateKey_ReturnsErrInvalidKey(t *testing.T) {
	t.Parallel()
	s := &Service{now: time.Now}

	_, err := s.Sign(Claims{UserID: "user:1"})

	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestSign_SetsRegisteredClaims(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := withNow(newTestService(t), now)

	token, err := s.Sign(Claims{UserID: "user:1", Role: "client"})
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)

	claims, err := s.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "test-issuer", claims.Issuer)
	assert.Equal(t, now, claims.IssuedAt.Time.UTC())
	assert.Equal(t, now.Add(15*time.Minute), claims.ExpiresAt.Time.UTC())
	assert.NotEmpty(t, claims.ID)
}

func TestSign_PreservesCustomExpiration(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := withNow(newTestService(t), now)
	custom := now.Add(2 * time.Hour)

	token, err := s.Sign(Claims{
		RegisteredClaims: gojwt.RegisteredClaims{ExpiresAt: gojwt.NewNumericDate(custom)},
		UserID:           "user:1",
	})
	require.NoError(t, err)

	claims, err := s.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, custom, claims.ExpiresAt.Time.UTC())
}

func TestIssue_CarriesUserAndRole(t *testing.T) {
	t.Parallel()
	s := newTestService(t)

	token, err := s.Issue("user:craft", "craftsman")
	require.NoError(t, err)

	claims, err := s.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user:craft", claims.UserID)
	assert.Equal(t, "user:craft", claims.Subject)
	assert.Equal(t, "craftsman", claims.Role)
	assert.False(t, claims.IsAdmin())
}

// ============================================================================
// Validate
// ============================================================================

func TestValidate_NilPublicKey_ReturnsErrInvalidKey(t *testing.T) {
	t.Parallel()
	s := &Service{now: time.Now}

	_, err := s.Validate("a.b.c")

	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestValidate_Malformed_ReturnsErrInvalidToken(t *testing.T) {
	t.Parallel()
	s := newTestService(t)

	for _, token := range []string{"", "   ", "one", "one.two", "a.b.c.d", "!!!.???.***"} {
		_, err := s.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", token)
	}
}

func TestValidate_Expired_ReturnsErrTokenExpired(t *testing.T) {
	t.Parallel()
	issued := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := withNow(newTestService(t), issued)

	token, err := s.Issue("user:1", "client")
	require.NoError(t, err)

	withNow(s, issued.Add(time.Hour))
	_, err = s.Validate(token)

	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidate_NotYetValid_ReturnsErrTokenNotYetValid(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := withNow(newTestService(t), now)

	token, err := s.Sign(Claims{
		RegisteredClaims: gojwt.RegisteredClaims{NotBefore: gojwt.NewNumericDate(now.Add(time.Hour))},
		UserID:           "user:1",
	})
	require.NoError(t, err)

	_, err = s.Validate(token)

	assert.ErrorIs(t, err, ErrTokenNotYetValid)
}

func TestValidate_DifferentKey_ReturnsErrInvalidSignature(t *testing.T) {
	t.Parallel()
	signer := newTestService(t)
	verifier := newTestService(t)

	token, err := signer.Issue("user:1", "client")
	require.NoError(t, err)

	_, err = verifier.Validate(token)

	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestValidate_WrongIssuer_ReturnsErrInvalidToken(t *testing.T) {
	t.Parallel()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	signer := NewTestService(key, "someone-else", time.Minute)
	verifier := NewTestService(key, "test-issuer", time.Minute)

	token, err := signer.Issue("user:1", "client")
	require.NoError(t, err)

	_, err = verifier.Validate(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_MissingUserID_ReturnsErrInvalidToken(t *testing.T) {
	t.Parallel()
	s := newTestService(t)

	token, err := s.Sign(Claims{Role: "client"})
	require.NoError(t, err)

	_, err = s.Validate(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_HS256Token_Rejected(t *testing.T) {
	t.Parallel()
	s := newTestService(t)

	forged := gojwt.NewWithClaims(gojwt.SigningMethodHS256, Claims{
		RegisteredClaims: gojwt.RegisteredClaims{Issuer: "test-issuer"},
		UserID:           "user:1",
		Role:             "admin",
	})
	token, err := forged.SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	_, err = s.Validate(token)

	assert.Error(t, err)
}

// ============================================================================
// Keys
// ============================================================================

func TestGenerateKeyPair_RoundTripThroughNewService(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")

	require.NoError(t, GenerateKeyPair(privPath, pubPath))

	signer, err := NewService(Config{PrivateKeyPath: privPath, Issuer: "craftlink", ExpirationMins: 5})
	require.NoError(t, err)
	verifier, err := NewService(Config{PublicKeyPath: pubPath, Issuer: "craftlink"})
	require.NoError(t, err)

	token, err := signer.Issue("user:1", "admin")
	require.NoError(t, err)

	claims, err := verifier.Validate(token)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
	assert.Equal(t, 5*time.Minute, signer.GetExpiration())

	_, err = verifier.Issue("user:1", "admin")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestNewService_MissingKeyFile_ReturnsError(t *testing.T) {
	t.Parallel()

	_, err := NewService(Config{PrivateKeyPath: filepath.Join(t.TempDir(), "nope.pem")})
	assert.Error(t, err)

	_, err = NewService(Config{PublicKeyPath: filepath.Join(t.TempDir(), "nope.pem")})
	assert.Error(t, err)
}

func TestNewService_InvalidPEM_ReturnsError(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(path, []byte("not a pem"), 0600))

	_, err := NewService(Config{PrivateKeyPath: path})
	assert.Error(t, err)

	_, err = NewService(Config{PublicKeyPath: path})
	assert.Error(t, err)
}
