package client

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/docdelivery/internal/common"
	srvgrpc "github.com/dmitrijs2005/docdelivery/internal/server/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (c *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if c.accessToken != "" {
		ctx = withAccessToken(ctx, c.accessToken)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewGRPCClient connects lazily to endpointURL. Extra dial options are
// appended after the defaults, so tests can swap the dialer.
func NewGRPCClient(endpointURL, accessToken string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, accessToken: accessToken}
	dial := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)
	conn, err := grpc.NewClient(endpointURL, dial...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) call(ctx context.Context, method string, fields map[string]any) (map[string]any, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		return nil, mapError(err)
	}
	return out.AsMap(), nil
}

func (c *GRPCClient) CreateDelivery(ctx context.Context, req CreateRequest) (map[string]any, error) {
	return c.call(ctx, srvgrpc.MethodCreateDelivery, map[string]any{
		"purchaser_id":       req.PurchaserID,
		"document_id":        req.DocumentID,
		"purchase_id":        req.PurchaseID,
		"device_fingerprint": req.DeviceFingerprint,
	})
}

func (c *GRPCClient) ResolveDelivery(ctx context.Context, req ResolveRequest) (map[string]any, error) {
	return c.call(ctx, srvgrpc.MethodResolveDelivery, map[string]any{
		"token":              req.Token,
		"origin":             req.Origin,
		"client_signature":   req.ClientSignature,
		"device_fingerprint": req.DeviceFingerprint,
	})
}

func (c *GRPCClient) GetAnalytics(ctx context.Context, req AnalyticsRequest) (map[string]any, error) {
	fields := map[string]any{}
	if req.From != "" {
		fields["from"] = req.From
	}
	if req.To != "" {
		fields["to"] = req.To
	}
	if req.DocumentID != "" {
		fields["document_id"] = req.DocumentID
	}
	if req.RecentLimit > 0 {
		fields["recent_limit"] = req.RecentLimit
	}
	return c.call(ctx, srvgrpc.MethodGetAnalytics, fields)
}

func (c *GRPCClient) SetBlocked(ctx context.Context, req BlockRequest) (map[string]any, error) {
	return c.call(ctx, srvgrpc.MethodSetBlocked, map[string]any{
		"purchaser_id": req.PurchaserID,
		"document_id":  req.DocumentID,
		"purchase_id":  req.PurchaseID,
		"blocked":      req.Blocked,
		"reason":       req.Reason,
	})
}
