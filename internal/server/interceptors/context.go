package interceptors

import (
	"context"
	"net"
	"strings"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

type contextKey struct{ name string }

var (
	identityKey = contextKey{"identity"}
	clientIPKey = contextKey{"client_ip"}
)

// Identity is the authenticated principal of a request. The zero value is Anonymous.
type Identity struct {
	UserID      string
	Role        string
	Name        string
	Email       string
	Authorities []string
}

// Anonymous is the identity of a request without a valid access token.
var Anonymous = Identity{}

// Authenticated reports whether the identity belongs to a user.
func (i Identity) Authenticated() bool { return i.UserID != "" }

// HasAuthority reports whether the identity was granted authority, e.g. "ROLE_ADMIN".
func (i Identity) HasAuthority(authority string) bool {
	for _, a := range i.Authorities {
		if a == authority {
			return true
		}
	}
	return false
}

// WithIdentity returns a context carrying id. Handlers read it with IdentityFrom.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the identity set by the auth middleware, or Anonymous.
func IdentityFrom(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey).(Identity)
	return id
}

// GetUserID returns the authenticated user id and true; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	id := IdentityFrom(ctx)
	return id.UserID, id.Authenticated()
}

// WithClientIP returns a context carrying the caller's address.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP returns the caller's address: the value stored by WithClientIP, then
// gRPC metadata (x-forwarded-for, x-real-ip), then the peer. "unknown" otherwise.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey).(string); ok && ip != "" {
		return ip
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("x-forwarded-for"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				if i := strings.Index(s, ","); i > 0 {
					s = strings.TrimSpace(s[:i])
				}
				return s
			}
		}
		if vals := md.Get("x-real-ip"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				return s
			}
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return hostOnly(p.Addr.String())
	}
	return "unknown"
}

func hostOnly(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
