package rest

import (
	"fmt"
	"os"
	"time"

	"github.com/avatarctic/client-runtime/go/internal/core/ports"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// EnvTokenProvider reads the stored bearer credential from an environment
// variable. It never acquires or refreshes the credential; when the stored
// value parses as a JWT with an elapsed expiry it only logs a warning, since
// rejecting it is the server's call.
type EnvTokenProvider struct {
	envVar string
	logger *logrus.Logger
}

// NewEnvTokenProvider reads from envVar at every request.
func NewEnvTokenProvider(envVar string, logger *logrus.Logger) *EnvTokenProvider {
	return &EnvTokenProvider{envVar: envVar, logger: logger}
}

// Token implements ports.TokenProvider.
func (p *EnvTokenProvider) Token() (string, error) {
	token := os.Getenv(p.envVar)
	if token == "" {
		return "", fmt.Errorf("no credential stored in %s", p.envVar)
	}
	p.warnIfExpired(token)
	return token, nil
}

func (p *EnvTokenProvider) warnIfExpired(token string) {
	if p.logger == nil {
		return
	}
	// Unverified parse: we only peek at the expiry claim, validation belongs
	// to the server.
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		// Opaque (non-JWT) credentials are fine as-is.
		return
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return
	}
	if exp.Before(time.Now()) {
		p.logger.WithFields(logrus.Fields{"expired_at": exp.Time}).Warn("stored credential is expired")
	}
}

var _ ports.TokenProvider = (*EnvTokenProvider)(nil)
