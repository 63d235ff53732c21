package interceptors

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// AuthUnary returns a unary server interceptor that authenticates the Bearer
// access token from the "authorization" metadata and stores the Identity in
// context. publicMethods are full method names callable anonymously (e.g. the
// health check).
func AuthUnary(auth *Authenticator, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		id := auth.Authenticate(ctx, authorizationMetadata(ctx))
		if !id.Authenticated() && !publicMethods[info.FullMethod] {
			return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
		}
		return handler(WithIdentity(ctx, id), req)
	}
}

func authorizationMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if vals := md.Get("authorization"); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
