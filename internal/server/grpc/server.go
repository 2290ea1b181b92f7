// Package grpc exposes the delivery orchestrator over gRPC.
//
// The service is described by a hand-written grpc.ServiceDesc whose
// requests and responses are structpb.Struct values, so no generated
// stubs are needed on either side.
package grpc

import (
	"context"
	"errors"
	"net"

	"github.com/dmitrijs2005/docdelivery/internal/logging"
	"github.com/dmitrijs2005/docdelivery/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DeliveryService is the part of the orchestrator the transport calls.
type DeliveryService interface {
	CreateDelivery(ctx context.Context, purchaserID, documentID, purchaseID string, opts models.DeliveryOptions) (*models.DeliveryGrant, error)
	ResolveDelivery(ctx context.Context, token string, info models.RequestInfo) (*models.DeliveryResult, error)
	GetAnalytics(ctx context.Context, f models.AnalyticsFilter) (*models.AnalyticsReport, error)
	SetBlocked(ctx context.Context, purchaserID, documentID, purchaseID string, blocked bool, reason string) (*models.LedgerEntry, error)
}

type GRPCServer struct {
	address   string
	delivery  DeliveryService
	logger    logging.Logger
	jwtSecret []byte
	health    *health.Server
}

func NewGRPCServer(a string, l logging.Logger, d DeliveryService, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		delivery:  d,
		jwtSecret: []byte(secretKey),
		health:    health.NewServer(),
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.recoveryInterceptor, s.accessTokenInterceptor))

	RegisterDeliveryServer(srv, s)
	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then drains
// in-flight calls with GracefulStop.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}

	return nil
}
