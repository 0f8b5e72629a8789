package rest_test

import (
	"testing"
	"time"

	"github.com/avatarctic/client-runtime/go/internal/infrastructure/rest"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, expiry time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": "user-1", "exp": expiry.Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestEnvTokenProviderReadsStoredCredential(t *testing.T) {
	t.Setenv("RUNTIME_API_TOKEN", "opaque-credential")

	provider := rest.NewEnvTokenProvider("RUNTIME_API_TOKEN", nil)
	token, err := provider.Token()
	require.NoError(t, err)
	require.Equal(t, "opaque-credential", token)
}

func TestEnvTokenProviderErrorsWhenUnset(t *testing.T) {
	t.Setenv("RUNTIME_API_TOKEN", "")

	provider := rest.NewEnvTokenProvider("RUNTIME_API_TOKEN", nil)
	_, err := provider.Token()
	require.Error(t, err)
}

func TestEnvTokenProviderWarnsOnExpiredJWT(t *testing.T) {
	t.Setenv("RUNTIME_API_TOKEN", signedToken(t, time.Now().Add(-time.Hour)))

	logger, hook := logtest.NewNullLogger()
	provider := rest.NewEnvTokenProvider("RUNTIME_API_TOKEN", logger)

	token, err := provider.Token()
	require.NoError(t, err, "an expired credential is still handed over")
	require.NotEmpty(t, token)

	require.Len(t, hook.Entries, 1)
	require.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	require.Contains(t, hook.LastEntry().Message, "expired")
}

func TestEnvTokenProviderSilentOnValidJWT(t *testing.T) {
	t.Setenv("RUNTIME_API_TOKEN", signedToken(t, time.Now().Add(time.Hour)))

	logger, hook := logtest.NewNullLogger()
	provider := rest.NewEnvTokenProvider("RUNTIME_API_TOKEN", logger)

	_, err := provider.Token()
	require.NoError(t, err)
	require.Empty(t, hook.Entries)
}
