package grpc

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/dmitrijs2005/docdelivery/internal/common"
	"github.com/dmitrijs2005/docdelivery/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const claimsKey ctxKey = "claims"

type access int

const (
	accessPublic access = iota
	accessService
	accessAdmin
)

// methodAccess lists guarded methods. Anything absent is public; download
// tokens authenticate ResolveDelivery on their own.
var methodAccess = map[string]access{
	MethodCreateDelivery: accessService,
	MethodGetAnalytics:   accessAdmin,
	MethodSetBlocked:     accessAdmin,
}

// ClaimsFromContext returns the caller's JWT claims, if the method required them.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	need := methodAccess[info.FullMethod]
	if need == accessPublic {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(common.AccessTokenHeaderName)
		if len(values) > 0 {
			accessToken = values[0]
		}
	}
	if len(accessToken) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	claims, err := auth.ParseToken(accessToken, s.jwtSecret)
	if err != nil {
		s.logger.Debug(ctx, "access token rejected", "method", info.FullMethod, "error", err.Error())
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	if need == accessAdmin && !claims.IsAdmin() {
		return nil, status.Error(codes.PermissionDenied, "admin role required")
	}

	ctx = context.WithValue(ctx, claimsKey, claims)
	return handler(ctx, req)
}

func (s *GRPCServer) recoveryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "panic in handler", "method", info.FullMethod, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			resp, err = nil, status.Error(codes.Internal, "internal error")
		}
	}()
	return handler(ctx, req)
}
