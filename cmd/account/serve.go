package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	myPostgresRepo "github.com/Miraines/MoonyAndStarry/account-service/internal/adapters/db/postgres"
	myRedisRepo "github.com/Miraines/MoonyAndStarry/account-service/internal/adapters/db/redis"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/adapters/storage/s3"
	myGrpc "github.com/Miraines/MoonyAndStarry/account-service/internal/adapters/transport/grpc"
	myHttp "github.com/Miraines/MoonyAndStarry/account-service/internal/adapters/transport/http"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/app/account/jwt"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/app/account/password"
	appsvc "github.com/Miraines/MoonyAndStarry/account-service/internal/app/account/service"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/infra/config"
	lg "github.com/Miraines/MoonyAndStarry/account-service/internal/infra/log"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/infra/metrics"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/infra/migrate"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/infra/server"
)

const shutdownTimeout = 5 * time.Second

func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC servers",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	zapLog, err := lg.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return errors.Wrap(err, "init logger")
	}
	defer zapLog.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "db handle")
	}
	defer sqlDB.Close()
	if err := migrate.Up(sqlDB); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	redisCli := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisCli.Close()

	uploader, err := s3.NewS3Uploader(ctx, cfg, zapLog)
	if err != nil {
		return errors.Wrap(err, "init media uploader")
	}

	jwtUtil, err := jwt.NewJWTUtil(cfg)
	if err != nil {
		return errors.Wrap(err, "init JWT util")
	}

	userRepo := myPostgresRepo.NewPostgresUserRepo(db)
	profileCache := myRedisRepo.NewRedisProfileCache(redisCli, cfg.ProfileCacheTTL)

	svc := appsvc.New(appsvc.Deps{
		Users:    userRepo,
		Cache:    profileCache,
		Hasher:   password.NewArgon2Hasher(cfg.PasswordPepper, password.DefaultParams),
		Uploader: uploader,
		JWT:      jwtUtil,
	}, cfg, appsvc.NewValidator(), zapLog)

	metrics.Register(prometheus.DefaultRegisterer)
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpHandler := myHttp.NewHandler(svc, cfg, zapLog,
		myHttp.HealthCheck{Name: "postgres", Ping: userRepo.Ping},
		myHttp.HealthCheck{Name: "redis", Ping: profileCache.Ping},
	)
	srv := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           myHttp.NewRouter(httpHandler, cfg, zapLog),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcHandler := myGrpc.NewHandler(svc, map[string]myGrpc.Pinger{
		"postgres": userRepo,
		"redis":    profileCache,
	}, zapLog)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.StartGRPCServer(gctx, cfg, grpcHandler, zapLog)
	})

	g.Go(func() error {
		zapLog.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddress))
		var err error
		if cfg.HTTPSCertFile != "" && cfg.HTTPSKeyFile != "" {
			err = srv.ListenAndServeTLS(cfg.HTTPSCertFile, cfg.HTTPSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve HTTP")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zapLog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zapLog.Error("server terminated", zap.Error(err))
		return err
	}
	zapLog.Info("bye")
	return nil
}
