// Package httpapi serves the public download endpoint, health and metrics
// over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/docdelivery/internal/logging"
	"github.com/dmitrijs2005/docdelivery/internal/server/models"
	"github.com/prometheus/client_golang/prometheus"
)

const shutdownTimeout = 10 * time.Second

// Resolver redeems download tokens.
type Resolver interface {
	ResolveDelivery(ctx context.Context, token string, info models.RequestInfo) (*models.DeliveryResult, error)
}

type HTTPServer struct {
	address  string
	resolver Resolver
	gatherer prometheus.Gatherer
	logger   logging.Logger
}

func NewHTTPServer(a string, l logging.Logger, r Resolver, g prometheus.Gatherer) *HTTPServer {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return &HTTPServer{
		address:  a,
		resolver: r,
		gatherer: g,
		logger:   l.With("module", "http_server"),
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve handles requests on lis until ctx is done, then shuts down,
// waiting up to shutdownTimeout for in-flight requests.
func (s *HTTPServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown failed", "error", err.Error())
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
