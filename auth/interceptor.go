package auth

import (
	"context"

	"vibehive/domain"
	"vibehive/errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// Methods that do not require JWT authentication.
var publicMethods = map[string]struct{}{
	"/grpc.health.v1.Health/Check": {},
}

type contextKey string

const UserIDKey contextKey = "user_id"

// UnaryInterceptor handles JWT validation for incoming unary calls.
func (v *Verifier) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if isPublicMethod(info.FullMethod) {
			return handler(ctx, req)
		}
		authCtx, err := v.authenticate(ctx)
		if err != nil {
			return nil, errors.MapToGRPCError(err)
		}
		return handler(authCtx, req)
	}
}

// StreamInterceptor is the streaming counterpart of UnaryInterceptor.
func (v *Verifier) StreamInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if isPublicMethod(info.FullMethod) {
			return handler(srv, ss)
		}
		authCtx, err := v.authenticate(ss.Context())
		if err != nil {
			return errors.MapToGRPCError(err)
		}
		return handler(srv, &authenticatedStream{ServerStream: ss, ctx: authCtx})
	}
}

// UserIDFromContext returns the identity injected by the interceptors.
func UserIDFromContext(ctx context.Context) (domain.ParticipantID, bool) {
	id, ok := ctx.Value(UserIDKey).(domain.ParticipantID)
	return id, ok && id != ""
}

func (v *Verifier) authenticate(ctx context.Context) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, errors.ErrUnauthenticated
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return nil, errors.ErrUnauthenticated
	}
	identity, err := v.Identify(values[0])
	if err != nil {
		return nil, err
	}
	return context.WithValue(ctx, UserIDKey, identity), nil
}

func isPublicMethod(method string) bool {
	_, ok := publicMethods[method]
	return ok
}

type authenticatedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authenticatedStream) Context() context.Context { return s.ctx }
