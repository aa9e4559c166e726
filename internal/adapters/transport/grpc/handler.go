package grpc

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	customErrors "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/errors"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/model"
)

const Version = "v1.0.0"

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (model.PublicUser, error)
}

// Pinger is any dependency HealthCheck must reach: the store, the cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	UnimplementedAccountServer
	svc   Authenticator
	deps  map[string]Pinger
	log   *zap.Logger
	clock func() time.Time
}

func NewHandler(svc Authenticator, deps map[string]Pinger, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, deps: deps, log: log, clock: time.Now}
}

func (h *Handler) Validate(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	user, err := h.svc.Authenticate(ctx, req.GetValue())
	if err != nil {
		if customErrors.IsInternal(err) {
			h.log.Error("gRPC Validate failed", zap.Error(err))
		}
		return nil, mapError(err)
	}
	out, err := userToStruct(user)
	if err != nil {
		h.log.Error("gRPC Validate encode failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func (h *Handler) HealthCheck(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	state := StatusServing
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			h.log.Warn("gRPC HealthCheck dependency down", zap.String("dep", name), zap.Error(err))
			state = StatusNotServing
			break
		}
	}
	out, err := healthToStruct(state, timestamppb.New(h.clock()))
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, customErrors.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, customErrors.Message(err))
	case errors.Is(err, customErrors.ErrUnauthorized),
		errors.Is(err, customErrors.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, customErrors.Message(err))
	case errors.Is(err, customErrors.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, customErrors.Message(err))
	case errors.Is(err, customErrors.ErrNotFound):
		return status.Error(codes.NotFound, customErrors.Message(err))
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
