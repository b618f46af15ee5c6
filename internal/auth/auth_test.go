package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/memeboard/internal/model"
	"github.com/rcliao/memeboard/internal/store"
)

var fastParams = HashParams{Time: 1, Memory: 1024, Threads: 1, KeyLength: 32, SaltLength: 16}

const secret = "0123456789abcdef-test-secret"

func TestHashAndVerify(t *testing.T) {
	encoded, err := HashPassword("hunter22", fastParams)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "argon2id$1$1024$1$"))

	ok, err := VerifyPassword("hunter22", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("hunter23", encoded)
	require.NoError(t, err)
	assert.False(t, ok)

	other, _ := HashPassword("hunter22", fastParams)
	assert.NotEqual(t, encoded, other, "salts must differ")
}

func TestVerifyRejectsGarbage(t *testing.T) {
	for _, bad := range []string{"", "bcrypt$x", "argon2id$a$b$c$d$e", "argon2id$1$1024$0$c2FsdA$a2V5"} {
		_, err := VerifyPassword("pw", bad)
		assert.Error(t, err, bad)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	m, err := NewTokenManager(secret, time.Hour)
	require.NoError(t, err)

	token, exp, err := m.Issue(model.Principal{UserID: "root", Role: model.RoleAdmin})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	p, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "root", p.UserID)
	assert.True(t, p.IsAdmin())
}

func TestTokenRejections(t *testing.T) {
	m, _ := NewTokenManager(secret, time.Minute)
	token, _, _ := m.Issue(model.Principal{UserID: "root", Role: model.RoleAdmin})

	other, _ := NewTokenManager("another-secret-of-length", time.Minute)
	_, err := other.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong secret")

	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = m.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken, "expired")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "root", "role": "admin", "iss": issuer})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Parse(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken, "alg none")

	_, err = NewTokenManager("short", time.Minute)
	assert.Error(t, err)
}

func newService(t *testing.T) *Service {
	t.Helper()
	tokens, err := NewTokenManager(secret, time.Hour)
	require.NoError(t, err)
	s := NewService(store.NewMemoryStore(), tokens)
	s.params = fastParams
	return s
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	require.NoError(t, s.CreateAdmin(ctx, "root", "correct horse"))

	token, _, err := s.Login(ctx, "root", "correct horse")
	require.NoError(t, err)
	p, err := s.Tokens().Parse(token)
	require.NoError(t, err)
	assert.Equal(t, model.Principal{UserID: "root", Role: model.RoleAdmin}, p)

	_, _, err = s.Login(ctx, "root", "wrong horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = s.Login(ctx, "nobody", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	created, err := s.EnsureAdmin(ctx, "root", "first password")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.EnsureAdmin(ctx, "root", "second password")
	require.NoError(t, err)
	assert.False(t, created)

	_, _, err = s.Login(ctx, "root", "first password")
	assert.NoError(t, err, "existing password is kept")

	var ve *model.ValidationError
	_, err = s.EnsureAdmin(ctx, "other", "short")
	assert.ErrorAs(t, err, &ve)
}

func TestCreateAdminValidation(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	var ve *model.ValidationError
	assert.ErrorAs(t, s.CreateAdmin(ctx, " ", "longenough"), &ve)
	assert.ErrorAs(t, s.CreateAdmin(ctx, "root", "short"), &ve)

	require.NoError(t, s.CreateAdmin(ctx, "root", "longenough"))
	assert.ErrorIs(t, s.CreateAdmin(ctx, "root", "longenough"), store.ErrAdminExists)
}
