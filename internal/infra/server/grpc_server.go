package server

import (
	"context"
	"net"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/reflection"

	accountgrpc "github.com/Miraines/MoonyAndStarry/account-service/internal/adapters/transport/grpc"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/adapters/transport/grpc/middleware"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/infra/config"
)

const stopTimeout = 5 * time.Second

// NewGRPCServer собирает сервер с interceptor'ами и метриками. TLS включается,
// только если заданы сертификат и ключ.
func NewGRPCServer(ctx context.Context, cfg *config.Config, handler accountgrpc.AccountServer, logger *zap.Logger) (*grpc.Server, error) {
	opts := []grpc.ServerOption{
		grpc.UnaryInterceptor(middleware.ChainUnaryServer(ctx, logger, cfg.RateLimitRPS, cfg.RateLimitBurst)),
	}
	if cfg.HTTPSCertFile != "" && cfg.HTTPSKeyFile != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.HTTPSCertFile, cfg.HTTPSKeyFile)
		if err != nil {
			return nil, errors.Wrap(err, "load gRPC TLS credentials")
		}
		opts = append(opts, grpc.Creds(creds))
	}

	grpcServer := grpc.NewServer(opts...)
	accountgrpc.RegisterAccountServer(grpcServer, handler)
	grpc_prometheus.Register(grpcServer)
	grpc_prometheus.EnableHandlingTimeHistogram()
	reflection.Register(grpcServer)

	return grpcServer, nil
}

// StartGRPCServer слушает cfg.GRPCAddress до отмены ctx, затем делает graceful stop.
func StartGRPCServer(ctx context.Context, cfg *config.Config, handler accountgrpc.AccountServer, logger *zap.Logger) error {
	lis, err := net.Listen("tcp", cfg.GRPCAddress)
	if err != nil {
		return errors.Wrapf(err, "listen %s", cfg.GRPCAddress)
	}
	return Serve(ctx, lis, cfg, handler, logger)
}

func Serve(ctx context.Context, lis net.Listener, cfg *config.Config, handler accountgrpc.AccountServer, logger *zap.Logger) error {
	grpcServer, err := NewGRPCServer(ctx, cfg, handler, logger)
	if err != nil {
		_ = lis.Close()
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err, ok := <-serveErr:
		if ok {
			return errors.Wrap(err, "serve gRPC")
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("ctx cancelled, stopping gRPC server")

	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-time.After(stopTimeout):
		grpcServer.Stop()
	case <-done:
	}
	logger.Info("gRPC server stopped")
	return nil
}
