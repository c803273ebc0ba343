package gate

import "context"

// LocalUserID is the identity assigned to every request in local-bypass
// mode (§4.7): "test / Unix-socket deployments" configured without a
// JWT secret.
const LocalUserID = "local"

// Identity is the resolved caller of a request, attached to the request
// context by the gate before a handler runs.
type Identity struct {
	UserID         string
	Username       string
	SSHFingerprint string
}

type identityContextKey struct{}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext retrieves the Identity a Gate attached to ctx.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}
