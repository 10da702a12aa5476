// Package auth resolves a caller identity from request credentials: a JWT
// bearer token or a pre-shared API key. Absence of credentials is only an
// error when the configuration mandates authentication; credentials that
// fail verification are always an error.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/vantagesec/gatewarden/pkg/config"
	"github.com/vantagesec/gatewarden/pkg/secerrors"
	"github.com/vantagesec/gatewarden/pkg/types"
)

// UserContext is the resolved caller identity.
type UserContext struct {
	UserID string
	Roles  []string
	Email  string
}

// Claims is the JWT payload shape the manager issues and accepts.
type Claims struct {
	Roles []string `json:"roles,omitempty"`
	Email string   `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type Manager struct {
	cfg           config.AuthConfig
	hashedAPIKeys map[string]struct{}
	logger        *logrus.Logger
	timeProvider  func() time.Time
}

// Opts carries optional overrides, mainly for deterministic tests.
type Opts struct {
	TimeProvider func() time.Time
}

func NewManager(cfg config.AuthConfig, logger *logrus.Logger, opts *Opts) *Manager {
	hashed := make(map[string]struct{}, len(cfg.APIKeys))
	for _, key := range cfg.APIKeys {
		hashed[hashAPIKey(key)] = struct{}{}
	}
	timeProvider := time.Now
	if opts != nil && opts.TimeProvider != nil {
		timeProvider = opts.TimeProvider
	}
	return &Manager{
		cfg:           cfg,
		hashedAPIKeys: hashed,
		logger:        logger,
		timeProvider:  timeProvider,
	}
}

// Authenticate resolves the caller identity, trying JWT first, then API key.
// A nil UserContext with a nil error means an anonymous caller was admitted
// (authentication not mandated).
func (m *Manager) Authenticate(req *types.RequestContext, secCtx *types.SecurityContext) (*UserContext, error) {
	if !m.cfg.Enabled {
		return nil, nil
	}

	user, err := m.authenticateJWT(req)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user, err = m.authenticateAPIKey(req)
		if err != nil {
			return nil, err
		}
	}

	if user != nil {
		secCtx.SetUser(user.UserID)
		return user, nil
	}
	if m.cfg.RequireAuth {
		return nil, &secerrors.AuthenticationFailed{Reason: "no valid authentication credentials provided"}
	}
	return nil, nil
}

func (m *Manager) authenticateJWT(req *types.RequestContext) (*UserContext, error) {
	if m.cfg.JWTSecret == "" {
		return nil, nil
	}

	header := req.Header("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, nil
	}
	tokenString := strings.TrimPrefix(header, "Bearer ")

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(m.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(m.timeProvider))
	if err != nil {
		if m.logger != nil {
			m.logger.WithError(err).Debug("jwt validation failed")
		}
		return nil, &secerrors.AuthenticationFailed{Reason: "invalid token"}
	}
	if !token.Valid {
		return nil, &secerrors.AuthenticationFailed{Reason: "invalid token"}
	}

	return &UserContext{
		UserID: claims.Subject,
		Roles:  claims.Roles,
		Email:  claims.Email,
	}, nil
}

func (m *Manager) authenticateAPIKey(req *types.RequestContext) (*UserContext, error) {
	if len(m.hashedAPIKeys) == 0 {
		return nil, nil
	}

	apiKey := req.Header("X-API-Key")
	if apiKey == "" {
		return nil, nil
	}

	keyHash := hashAPIKey(apiKey)
	if _, ok := m.hashedAPIKeys[keyHash]; !ok {
		return nil, &secerrors.AuthenticationFailed{Reason: "invalid api key"}
	}
	return &UserContext{
		UserID: "apikey_" + keyHash[:8],
		Roles:  []string{"api_user"},
	}, nil
}

// GenerateToken issues a signed JWT for the given subject with the
// configured expiry.
func (m *Manager) GenerateToken(userID string, roles []string) (string, error) {
	if m.cfg.JWTSecret == "" {
		return "", &secerrors.ConfigurationError{Reason: "jwt secret not configured"}
	}

	now := m.timeProvider()
	claims := &Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.TokenExpiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.cfg.JWTSecret))
	if err != nil {
		return "", &secerrors.InternalError{Reason: secerrors.SanitizeMessage(err.Error())}
	}
	return signed, nil
}

// Authorize checks that the user holds the required role.
func (m *Manager) Authorize(user *UserContext, requiredRole string) error {
	for _, role := range user.Roles {
		if role == requiredRole {
			return nil
		}
	}
	return &secerrors.AuthorizationFailed{
		Reason: "user does not have required role: " + requiredRole,
	}
}

func hashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
