package auth_test

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagesec/gatewarden/pkg/auth"
	"github.com/vantagesec/gatewarden/pkg/config"
	"github.com/vantagesec/gatewarden/pkg/secerrors"
	"github.com/vantagesec/gatewarden/pkg/types"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func fixedTime() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newManager(cfg config.AuthConfig, now func() time.Time) *auth.Manager {
	return auth.NewManager(cfg, testLogger(), &auth.Opts{TimeProvider: now})
}

func requestWithHeader(name, value string) *types.RequestContext {
	return &types.RequestContext{
		Method:  "GET",
		Path:    "/",
		Headers: map[string][]string{name: {value}},
	}
}

func TestJWTRoundtrip(t *testing.T) {
	cfg := config.AuthConfig{
		Enabled:     true,
		JWTSecret:   "test-secret",
		TokenExpiry: time.Hour,
	}
	mgr := newManager(cfg, fixedTime)

	token, err := mgr.GenerateToken("user-42", []string{"admin"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	secCtx := types.NewSecurityContext("req", "127.0.0.1")
	user, err := mgr.Authenticate(requestWithHeader("Authorization", "Bearer "+token), secCtx)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "user-42", user.UserID)
	assert.Equal(t, []string{"admin"}, user.Roles)
	assert.Equal(t, "user-42", secCtx.UserID)
	assert.True(t, secCtx.IsAuthenticated())
}

func TestJWTExpiredTokenRejected(t *testing.T) {
	cfg := config.AuthConfig{
		Enabled:     true,
		JWTSecret:   "test-secret",
		TokenExpiry: time.Hour,
	}
	issuer := newManager(cfg, fixedTime)
	token, err := issuer.GenerateToken("user-42", nil)
	require.NoError(t, err)

	later := func() time.Time { return fixedTime().Add(2 * time.Hour) }
	verifier := newManager(cfg, later)

	secCtx := types.NewSecurityContext("req", "127.0.0.1")
	_, err = verifier.Authenticate(requestWithHeader("Authorization", "Bearer "+token), secCtx)
	require.Error(t, err)

	var authErr *secerrors.AuthenticationFailed
	assert.ErrorAs(t, err, &authErr)
}

func TestJWTTamperedTokenRejected(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, JWTSecret: "test-secret", TokenExpiry: time.Hour}
	mgr := newManager(cfg, fixedTime)

	token, err := mgr.GenerateToken("user-42", nil)
	require.NoError(t, err)

	secCtx := types.NewSecurityContext("req", "127.0.0.1")
	_, err = mgr.Authenticate(requestWithHeader("Authorization", "Bearer "+token+"xx"), secCtx)
	assert.Error(t, err)
}

func TestJWTWrongSecretRejected(t *testing.T) {
	issuer := newManager(config.AuthConfig{Enabled: true, JWTSecret: "secret-a", TokenExpiry: time.Hour}, fixedTime)
	verifier := newManager(config.AuthConfig{Enabled: true, JWTSecret: "secret-b", TokenExpiry: time.Hour}, fixedTime)

	token, err := issuer.GenerateToken("user", nil)
	require.NoError(t, err)

	secCtx := types.NewSecurityContext("req", "127.0.0.1")
	_, err = verifier.Authenticate(requestWithHeader("Authorization", "Bearer "+token), secCtx)
	assert.Error(t, err)
}

func TestAPIKeyAccepted(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, APIKeys: []string{"key-one", "key-two"}}
	mgr := newManager(cfg, fixedTime)

	secCtx := types.NewSecurityContext("req", "127.0.0.1")
	user, err := mgr.Authenticate(requestWithHeader("X-API-Key", "key-two"), secCtx)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Contains(t, user.Roles, "api_user")
	assert.True(t, secCtx.IsAuthenticated())
}

func TestAPIKeyUnknownRejected(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, APIKeys: []string{"key-one"}}
	mgr := newManager(cfg, fixedTime)

	secCtx := types.NewSecurityContext("req", "127.0.0.1")
	_, err := mgr.Authenticate(requestWithHeader("X-API-Key", "wrong"), secCtx)

	var authErr *secerrors.AuthenticationFailed
	require.ErrorAs(t, err, &authErr)
	assert.False(t, secCtx.IsAuthenticated())
}

func TestAnonymousAllowedWhenAuthOptional(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, JWTSecret: "s", APIKeys: []string{"k"}, RequireAuth: false}
	mgr := newManager(cfg, fixedTime)

	secCtx := types.NewSecurityContext("req", "127.0.0.1")
	user, err := mgr.Authenticate(&types.RequestContext{Method: "GET", Path: "/"}, secCtx)
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.False(t, secCtx.IsAuthenticated())
}

func TestAnonymousRejectedWhenAuthRequired(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, JWTSecret: "s", RequireAuth: true}
	mgr := newManager(cfg, fixedTime)

	secCtx := types.NewSecurityContext("req", "127.0.0.1")
	_, err := mgr.Authenticate(&types.RequestContext{Method: "GET", Path: "/"}, secCtx)

	var authErr *secerrors.AuthenticationFailed
	assert.ErrorAs(t, err, &authErr)
}

func TestAuthorize(t *testing.T) {
	mgr := newManager(config.AuthConfig{Enabled: true}, fixedTime)
	user := &auth.UserContext{UserID: "u", Roles: []string{"reader"}}

	assert.NoError(t, mgr.Authorize(user, "reader"))

	err := mgr.Authorize(user, "admin")
	var authz *secerrors.AuthorizationFailed
	assert.ErrorAs(t, err, &authz)
}

func TestGenerateTokenWithoutSecretFails(t *testing.T) {
	mgr := newManager(config.AuthConfig{Enabled: true}, fixedTime)
	_, err := mgr.GenerateToken("u", nil)

	var cfgErr *secerrors.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
