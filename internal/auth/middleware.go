package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// Roles carried in access tokens
const (
	RoleAdmin  = "admin"
	RoleAgent  = "agent"
	RoleViewer = "viewer"
)

// DevSubject is the subject of the SKIP_AUTH development user
const DevSubject = "dev-user"

type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type contextKey string

const UserContextKey contextKey = "user"

// JWKSManager handles JWKS fetching and caching
type JWKSManager struct {
	jwks       keyfunc.Keyfunc
	issuerURL  string
	mu         sync.RWMutex
	lastUpdate time.Time
}

var (
	jwksManager *JWKSManager
	jwksOnce    sync.Once
)

// InitJWKS initializes the JWKS manager for token verification.
// Call this on server startup in production mode.
func InitJWKS(issuerURL string, logger zerolog.Logger) error {
	var initErr error
	jwksOnce.Do(func() {
		jwksManager = &JWKSManager{issuerURL: issuerURL}
		initErr = jwksManager.refresh(logger)
	})
	return initErr
}

func (m *JWKSManager) refresh(logger zerolog.Logger) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Keycloak layout
	jwksURL := strings.TrimSuffix(m.issuerURL, "/") + "/protocol/openid-connect/certs"
	logger.Info().Str("url", jwksURL).Msg("fetching JWKS")

	k, err := keyfunc.NewDefault([]string{jwksURL})
	if err != nil {
		return fmt.Errorf("failed to create keyfunc: %w", err)
	}

	m.jwks = k
	m.lastUpdate = time.Now()
	logger.Info().Msg("JWKS loaded")
	return nil
}

func (m *JWKSManager) getKeyfunc() jwt.Keyfunc {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.jwks == nil {
		return nil
	}
	return m.jwks.Keyfunc
}

// Middleware validates bearer tokens from the OIDC provider and stores the
// claims in the request context
func Middleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("component", "auth").Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			if os.Getenv("SKIP_AUTH") == "true" {
				logger.Debug().Msg("SKIP_AUTH enabled - bypassing authentication")
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), DevClaims())))
				return
			}

			tokenString := extractToken(r)
			if tokenString == "" {
				logger.Warn().Str("path", r.URL.Path).Msg("missing authorization token")
				writeUnauthorized(w, "Missing token")
				return
			}

			claims, err := validateToken(tokenString, logger)
			if err != nil {
				logger.Warn().Err(err).Str("path", r.URL.Path).Msg("token validation failed")
				writeUnauthorized(w, err.Error())
				return
			}

			logger.Debug().Str("email", claims.Email).Str("role", claims.Role).Msg("user authenticated")
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims)))
		})
	}
}

// DevClaims is the identity injected when SKIP_AUTH is set
func DevClaims() *Claims {
	return &Claims{
		Email:            "dev@aerocall.local",
		Name:             "Dev User",
		Role:             RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Subject: DevSubject},
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized: " + msg})
}

// extractToken gets the token from Authorization header or, for websocket
// upgrades, the token query parameter
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString != authHeader {
			return tokenString
		}
	}

	return r.URL.Query().Get("token")
}

// validateToken parses the token, verifying the signature unless running in
// development without VERIFY_JWT_SIGNATURE
func validateToken(tokenString string, logger zerolog.Logger) (*Claims, error) {
	env := os.Getenv("ENV")
	verifySignature := os.Getenv("VERIFY_JWT_SIGNATURE") == "true"

	if env != "development" && env != "" {
		verifySignature = true
	}

	var token *jwt.Token
	var err error

	if verifySignature {
		token, err = parseAndVerifyToken(tokenString, logger)
		if err != nil {
			return nil, err
		}
	} else {
		token, _, err = jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
		if err != nil {
			return nil, fmt.Errorf("failed to parse token: %w", err)
		}
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	claims := &Claims{}

	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}

	if name, ok := mapClaims["name"].(string); ok {
		claims.Name = name
	} else if preferredUsername, ok := mapClaims["preferred_username"].(string); ok {
		claims.Name = preferredUsername
	}

	claims.Role = extractRoleFromMapClaims(mapClaims)

	if sub, ok := mapClaims["sub"].(string); ok {
		claims.Subject = sub
	}

	// Verified tokens are checked for expiry by the parser
	if !verifySignature {
		if exp, ok := mapClaims["exp"].(float64); ok {
			expTime := time.Unix(int64(exp), 0)
			claims.ExpiresAt = jwt.NewNumericDate(expTime)
			if expTime.Before(time.Now()) {
				return nil, fmt.Errorf("token expired")
			}
		}
	}

	return claims, nil
}

func parseAndVerifyToken(tokenString string, logger zerolog.Logger) (*jwt.Token, error) {
	if jwksManager == nil {
		issuer := os.Getenv("OIDC_ISSUER")
		if issuer == "" {
			return nil, fmt.Errorf("OIDC_ISSUER not configured for production JWT verification")
		}
		if err := InitJWKS(issuer, logger); err != nil {
			return nil, fmt.Errorf("failed to initialize JWKS: %w", err)
		}
	}

	keyfunc := jwksManager.getKeyfunc()
	if keyfunc == nil {
		return nil, fmt.Errorf("JWKS not available")
	}

	token, err := jwt.Parse(tokenString, keyfunc, jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}))
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return token, nil
}

// extractRoleFromMapClaims finds the highest role in Keycloak realm roles,
// then Cognito groups, then a plain role claim
func extractRoleFromMapClaims(mapClaims jwt.MapClaims) string {
	if realmAccess, ok := mapClaims["realm_access"].(map[string]interface{}); ok {
		if roles, ok := realmAccess["roles"].([]interface{}); ok {
			for _, priority := range []string{RoleAdmin, RoleAgent, RoleViewer} {
				for _, role := range roles {
					if roleStr, ok := role.(string); ok && roleStr == priority {
						return roleStr
					}
				}
			}
		}
	}

	if cognitoGroups, ok := mapClaims["cognito:groups"].([]interface{}); ok {
		for _, group := range cognitoGroups {
			if groupStr, ok := group.(string); ok {
				if strings.Contains(groupStr, RoleAdmin) {
					return RoleAdmin
				}
				if strings.Contains(groupStr, RoleAgent) {
					return RoleAgent
				}
			}
		}
	}

	if role, ok := mapClaims["role"].(string); ok {
		switch strings.ToLower(role) {
		case RoleAdmin:
			return RoleAdmin
		case RoleAgent:
			return RoleAgent
		}
	}

	return RoleViewer
}

// WithUser returns a copy of ctx carrying claims
func WithUser(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}

// GetUserFromContext retrieves user claims from request context
func GetUserFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*Claims)
	return claims, ok
}

// HasRole checks if user has specific role
func HasRole(claims *Claims, role string) bool {
	return claims.Role == role
}
