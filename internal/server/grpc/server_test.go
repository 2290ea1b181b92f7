package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/docdelivery/internal/common"
	"github.com/dmitrijs2005/docdelivery/internal/logging"
	"github.com/dmitrijs2005/docdelivery/internal/server/auth"
	"github.com/dmitrijs2005/docdelivery/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

const testSecret = "jwt-secret"

type fakeDelivery struct {
	create   func(ctx context.Context, p, d, pu string, opts models.DeliveryOptions) (*models.DeliveryGrant, error)
	resolve  func(ctx context.Context, token string, info models.RequestInfo) (*models.DeliveryResult, error)
	report   func(ctx context.Context, f models.AnalyticsFilter) (*models.AnalyticsReport, error)
	setBlock func(ctx context.Context, p, d, pu string, blocked bool, reason string) (*models.LedgerEntry, error)
}

func (f *fakeDelivery) CreateDelivery(ctx context.Context, p, d, pu string, opts models.DeliveryOptions) (*models.DeliveryGrant, error) {
	return f.create(ctx, p, d, pu, opts)
}

func (f *fakeDelivery) ResolveDelivery(ctx context.Context, token string, info models.RequestInfo) (*models.DeliveryResult, error) {
	return f.resolve(ctx, token, info)
}

func (f *fakeDelivery) GetAnalytics(ctx context.Context, fl models.AnalyticsFilter) (*models.AnalyticsReport, error) {
	return f.report(ctx, fl)
}

func (f *fakeDelivery) SetBlocked(ctx context.Context, p, d, pu string, blocked bool, reason string) (*models.LedgerEntry, error) {
	return f.setBlock(ctx, p, d, pu, blocked, reason)
}

// startBufServer serves svc over an in-memory listener and returns a client
// connection. Everything is torn down with the test.
func startBufServer(t *testing.T, svc DeliveryService) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	s := NewGRPCServer("bufnet", logging.NewNop(), svc, testSecret)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})
	return conn
}

func withToken(t *testing.T, role string) context.Context {
	t.Helper()
	tok, err := auth.GenerateToken("caller", role, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, tok)
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func invoke(ctx context.Context, conn *grpc.ClientConn, method string, req *structpb.Struct) (*structpb.Struct, error) {
	out := &structpb.Struct{}
	if err := conn.Invoke(ctx, method, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func TestCreateDelivery(t *testing.T) {
	expires := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var gotOpts models.DeliveryOptions
	svc := &fakeDelivery{create: func(_ context.Context, p, d, pu string, opts models.DeliveryOptions) (*models.DeliveryGrant, error) {
		assert.Equal(t, []string{"u1", "d1", "p1"}, []string{p, d, pu})
		gotOpts = opts
		return &models.DeliveryGrant{DownloadID: "dl-1", Token: "tok.sig", ExpiresAt: expires}, nil
	}}
	conn := startBufServer(t, svc)

	req := mustStruct(t, map[string]any{
		"purchaser_id": "u1", "document_id": "d1", "purchase_id": "p1", "device_fingerprint": "dev-9",
	})

	t.Run("service token", func(t *testing.T) {
		out, err := invoke(withToken(t, auth.RoleService), conn, MethodCreateDelivery, req)
		require.NoError(t, err)
		assert.Equal(t, "dl-1", out.Fields["download_id"].GetStringValue())
		assert.Equal(t, "tok.sig", out.Fields["token"].GetStringValue())
		assert.Equal(t, "2026-01-02T03:04:05Z", out.Fields["expires_at"].GetStringValue())
		assert.Equal(t, "dev-9", gotOpts.DeviceFingerprint)
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := invoke(context.Background(), conn, MethodCreateDelivery, req)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
		assert.Equal(t, "missing token", status.Convert(err).Message())
	})

	t.Run("bad token", func(t *testing.T) {
		ctx := metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, "not-a-jwt")
		_, err := invoke(ctx, conn, MethodCreateDelivery, req)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
		assert.Equal(t, "invalid token", status.Convert(err).Message())
	})

	t.Run("missing field", func(t *testing.T) {
		_, err := invoke(withToken(t, auth.RoleService), conn, MethodCreateDelivery, mustStruct(t, map[string]any{"purchaser_id": "u1"}))
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
		assert.Equal(t, "missing document_id", status.Convert(err).Message())
	})
}

func TestResolveDelivery_IsPublic(t *testing.T) {
	handleExp := time.Date(2026, 1, 2, 3, 9, 5, 0, time.UTC)
	svc := &fakeDelivery{resolve: func(_ context.Context, token string, info models.RequestInfo) (*models.DeliveryResult, error) {
		assert.Equal(t, "tok.sig", token)
		assert.Equal(t, models.RequestInfo{Origin: "10.0.0.1", ClientSignature: "curl/8", DeviceFingerprint: "dev"}, info)
		return &models.DeliveryResult{
			RetrievalHandle: "https://blob/handle",
			FileName:        "Go-Patterns.pdf",
			FileSize:        2048,
			AccessCount:     3,
			HandleExpiresAt: handleExp,
		}, nil
	}}
	conn := startBufServer(t, svc)

	out, err := invoke(context.Background(), conn, MethodResolveDelivery, mustStruct(t, map[string]any{
		"token": "tok.sig", "origin": "10.0.0.1", "client_signature": "curl/8", "device_fingerprint": "dev",
	}))
	require.NoError(t, err)
	assert.Equal(t, "https://blob/handle", out.Fields["retrieval_handle"].GetStringValue())
	assert.Equal(t, "Go-Patterns.pdf", out.Fields["file_name"].GetStringValue())
	assert.Equal(t, float64(2048), out.Fields["file_size"].GetNumberValue())
	assert.Equal(t, float64(3), out.Fields["access_count"].GetNumberValue())
	assert.Equal(t, "2026-01-02T03:09:05Z", out.Fields["handle_expires_at"].GetStringValue())
}

func TestResolveDelivery_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
		msg  string
	}{
		{common.ErrInvalidToken, codes.Unauthenticated, "invalid token"},
		{common.ErrBlocked, codes.PermissionDenied, "delivery blocked"},
		{common.ErrNotFound, codes.NotFound, "not found"},
		{common.ErrArtifactMissing, codes.FailedPrecondition, "artifact missing"},
		{common.ErrStorageUnavailable, codes.Unavailable, "storage unavailable"},
		{assert.AnError, codes.Internal, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			svc := &fakeDelivery{resolve: func(context.Context, string, models.RequestInfo) (*models.DeliveryResult, error) {
				return nil, tt.err
			}}
			conn := startBufServer(t, svc)

			_, err := invoke(context.Background(), conn, MethodResolveDelivery, mustStruct(t, map[string]any{"token": "t"}))
			assert.Equal(t, tt.code, status.Code(err))
			assert.Equal(t, tt.msg, status.Convert(err).Message())
		})
	}
}

func TestGetAnalytics(t *testing.T) {
	var got models.AnalyticsFilter
	svc := &fakeDelivery{report: func(_ context.Context, f models.AnalyticsFilter) (*models.AnalyticsReport, error) {
		got = f
		return &models.AnalyticsReport{
			Totals:    models.AnalyticsTotals{AccessCount: 7, DistinctPurchasers: 2},
			Documents: []models.DocumentStats{{DocumentID: "d1", AccessCount: 7}},
			Recent:    []models.RecentAccess{},
		}, nil
	}}
	conn := startBufServer(t, svc)

	req := mustStruct(t, map[string]any{
		"from": "2026-01-01T00:00:00Z", "document_id": "d1", "recent_limit": 5,
	})

	t.Run("admin", func(t *testing.T) {
		out, err := invoke(withToken(t, auth.RoleAdmin), conn, MethodGetAnalytics, req)
		require.NoError(t, err)

		totals := out.Fields["totals"].GetStructValue()
		assert.Equal(t, float64(7), totals.Fields["access_count"].GetNumberValue())
		docs := out.Fields["documents"].GetListValue().GetValues()
		require.Len(t, docs, 1)
		assert.Equal(t, "d1", docs[0].GetStructValue().Fields["document_id"].GetStringValue())

		assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), got.From.UTC())
		assert.True(t, got.To.IsZero())
		assert.Equal(t, "d1", got.DocumentID)
		assert.Equal(t, 5, got.RecentLimit)
	})

	t.Run("service role is denied", func(t *testing.T) {
		_, err := invoke(withToken(t, auth.RoleService), conn, MethodGetAnalytics, req)
		assert.Equal(t, codes.PermissionDenied, status.Code(err))
	})

	t.Run("bad time", func(t *testing.T) {
		_, err := invoke(withToken(t, auth.RoleAdmin), conn, MethodGetAnalytics, mustStruct(t, map[string]any{"to": "yesterday"}))
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})
}

func TestSetBlocked(t *testing.T) {
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	svc := &fakeDelivery{setBlock: func(_ context.Context, p, d, pu string, blocked bool, reason string) (*models.LedgerEntry, error) {
		if p == "missing" {
			return nil, common.ErrNotFound
		}
		assert.True(t, blocked)
		assert.Equal(t, "chargeback", reason)
		return &models.LedgerEntry{ID: "e1", Blocked: true, BlockedReason: reason, BlockedAt: &at, AccessCount: 4, Flags: []string{"rapid_downloads"}}, nil
	}}
	conn := startBufServer(t, svc)
	ctx := withToken(t, auth.RoleAdmin)

	out, err := invoke(ctx, conn, MethodSetBlocked, mustStruct(t, map[string]any{
		"purchaser_id": "u1", "document_id": "d1", "purchase_id": "p1", "blocked": true, "reason": "chargeback",
	}))
	require.NoError(t, err)
	assert.Equal(t, "e1", out.Fields["entry_id"].GetStringValue())
	assert.True(t, out.Fields["blocked"].GetBoolValue())
	assert.Equal(t, "2026-03-01T00:00:00Z", out.Fields["blocked_at"].GetStringValue())
	assert.Equal(t, "rapid_downloads", out.Fields["flags"].GetListValue().GetValues()[0].GetStringValue())

	_, err = invoke(ctx, conn, MethodSetBlocked, mustStruct(t, map[string]any{
		"purchaser_id": "missing", "document_id": "d1", "purchase_id": "p1", "blocked": true, "reason": "chargeback",
	}))
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestRecoveryInterceptor(t *testing.T) {
	svc := &fakeDelivery{resolve: func(context.Context, string, models.RequestInfo) (*models.DeliveryResult, error) {
		panic("boom")
	}}
	conn := startBufServer(t, svc)

	_, err := invoke(context.Background(), conn, MethodResolveDelivery, mustStruct(t, map[string]any{"token": "t"}))
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.Equal(t, "internal error", status.Convert(err).Message())
}

func TestHealth(t *testing.T) {
	conn := startBufServer(t, &fakeDelivery{})

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:0", logging.NewNop(), &fakeDelivery{}, "secret")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err, "Run returned error on graceful stop")
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", logging.NewNop(), &fakeDelivery{}, "secret")

	err := srv.Run(context.Background())
	require.Error(t, err)
}
