package gate

import (
	"net/http"
	"strings"

	"github.com/nocodo/manager/internal/authz"
	"github.com/nocodo/manager/internal/auth"
	"github.com/nocodo/manager/pkg/models"
)

// Gate resolves identity and authorization for every incoming request,
// per §4.7. A nil JWT service means local-bypass mode: no token is
// required and identity defaults to LocalUserID; the authorization check
// still runs against that identity.
type Gate struct {
	jwt         *auth.JWTService
	permissions *authz.Engine
	store       Store
}

// New builds a Gate. jwt may be nil to select local-bypass mode.
func New(jwt *auth.JWTService, permissions *authz.Engine, store Store) *Gate {
	return &Gate{jwt: jwt, permissions: permissions, store: store}
}

// RouteAuth declares the permission a route requires: the resource type
// and action from §4.6, plus an extractor for the resource id (nil for
// create endpoints, which are checked at the entity level).
type RouteAuth struct {
	ResourceType models.ResourceType
	Action       models.Action
	ResourceID   func(r *http.Request) *string
}

// Protect wraps next with identity resolution followed by an
// authorization check against route. On denial it writes the §6 error
// envelope and never calls next.
func (g *Gate) Protect(route RouteAuth, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := g.resolveIdentity(r)
		if err != nil {
			WriteError(w, KindUnauthorized, err.Error())
			return
		}

		var resourceID *string
		if route.ResourceID != nil {
			resourceID = route.ResourceID(r)
		}

		allowed, err := g.permissions.CheckPermission(r.Context(), id.UserID, route.ResourceType, resourceID, route.Action)
		if err != nil {
			WriteError(w, KindInternal, "permission check failed")
			return
		}
		if !allowed {
			WriteError(w, KindForbidden, "permission denied")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// resolveIdentity implements the two modes in §4.7.
func (g *Gate) resolveIdentity(r *http.Request) (Identity, error) {
	if g.jwt == nil {
		return Identity{UserID: LocalUserID, Username: LocalUserID}, nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return Identity{}, errMissingAuthHeader
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return Identity{}, errMalformedAuthHeader
	}
	token := strings.TrimPrefix(header, prefix)

	claims, err := g.jwt.Validate(token)
	if err != nil {
		return Identity{}, errInvalidOrExpiredToken
	}

	return Identity{
		UserID:         claims.Subject,
		Username:       claims.Username,
		SSHFingerprint: claims.SSHFingerprint,
	}, nil
}

var (
	errMissingAuthHeader     = authHeaderError("missing Authorization header")
	errMalformedAuthHeader   = authHeaderError("invalid Authorization header format, expected 'Bearer <token>'")
	errInvalidOrExpiredToken = authHeaderError("invalid or expired token")
)

type authHeaderError string

func (e authHeaderError) Error() string { return string(e) }
