package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"

	"buildmatch/internal/domain"
	"buildmatch/internal/policy"
	"buildmatch/internal/repo"
)

type AuthConfig struct {
	JWTSecret        string
	AllowActorHeader bool
	Logger           *log.Logger
}

type principalKey struct{}

func (c AuthConfig) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

func withPrincipal(ctx context.Context, p policy.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (policy.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(policy.Principal)
	return p, ok
}

func requirePrincipal(ctx context.Context) (policy.Principal, huma.StatusError) {
	if p, ok := principalFromContext(ctx); ok && p.UserID != "" {
		return p, nil
	}
	return policy.Principal{}, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Role      string `json:"role,omitempty"`
	OrgID     string `json:"org_id,omitempty"`
	ProfileID string `json:"profile_id,omitempty"`
	FullName  string `json:"name,omitempty"`
}

func authenticateJWT(token string, secret string) (policy.Principal, error) {
	if strings.TrimSpace(secret) == "" {
		return policy.Principal{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwtClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return policy.Principal{}, err
	}
	if !parsed.Valid {
		return policy.Principal{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return policy.Principal{}, errors.New("subject claim required")
	}
	if !domain.ValidRole(claims.Role) {
		return policy.Principal{}, errors.New("role claim required")
	}
	return policy.Principal{
		UserID:    claims.Subject,
		Role:      domain.Role(claims.Role),
		OrgID:     claims.OrgID,
		ProfileID: claims.ProfileID,
		FullName:  claims.FullName,
		Source:    "jwt",
	}, nil
}

// authenticateAPIKey resolves a hashed key to its user and builds the
// principal from the user's stored role and linkage.
func authenticateAPIKey(ctx context.Context, r repo.Repo, key string) (policy.Principal, error) {
	if strings.TrimSpace(key) == "" {
		return policy.Principal{}, errors.New("api key required")
	}
	hash := repo.HashAPIKey(key)
	apiKey, err := r.GetAPIKeyByHash(ctx, hash)
	if err != nil {
		return policy.Principal{}, err
	}
	u, err := r.GetUser(ctx, apiKey.UserID)
	if err != nil {
		return policy.Principal{}, err
	}
	p := policy.Principal{
		UserID:   u.ID,
		Role:     u.Role,
		FullName: u.FullName,
		Source:   "api_key",
	}
	if u.DeveloperOrgID != nil {
		p.OrgID = *u.DeveloperOrgID
	}
	if u.ProfessionalProfileID != nil {
		p.ProfileID = *u.ProfessionalProfileID
	}
	return p, nil
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func newAuthMiddleware(basePath string, cfg AuthConfig, r repo.Repo) func(http.Handler) http.Handler {
	healthPath := path.Join(basePath, "health")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			// Only enforce for API base path.
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			if req.URL.Path == healthPath {
				next.ServeHTTP(w, req)
				return
			}

			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			apiKeyHeader := strings.TrimSpace(req.Header.Get("X-Api-Key"))
			actorHeader := strings.TrimSpace(req.Header.Get("X-User-Id"))

			if authz != "" {
				token, ok := bearerToken(authz)
				if !ok {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				principal, err := authenticateJWT(token, cfg.JWTSecret)
				if err != nil {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
				return
			}

			if apiKeyHeader != "" {
				principal, err := authenticateAPIKey(req.Context(), r, apiKeyHeader)
				if err != nil {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
				return
			}

			if actorHeader != "" && cfg.AllowActorHeader {
				cfg.logger().Printf("WARNING: using X-User-Id header without auth; development only (user_id=%s)", actorHeader)
				u, err := r.GetUser(req.Context(), actorHeader)
				if err != nil {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				principal := policy.Principal{UserID: u.ID, Role: u.Role, FullName: u.FullName, Source: "header"}
				if u.DeveloperOrgID != nil {
					principal.OrgID = *u.DeveloperOrgID
				}
				if u.ProfessionalProfileID != nil {
					principal.ProfileID = *u.ProfessionalProfileID
				}
				next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
				return
			}

			respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}
