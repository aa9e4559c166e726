package grpc

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/model"
)

// Health is the decoded HealthCheck reply.
type Health struct {
	Status    string
	Version   string
	Timestamp *timestamppb.Timestamp
}

// ключи совпадают с json-тегами PublicUser, чтобы HTTP и gRPC отдавали одну форму
func userToStruct(u model.PublicUser) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"_id":        u.ID.String(),
		"username":   u.Username,
		"email":      u.Email,
		"fullName":   u.FullName,
		"avatar":     u.Avatar,
		"coverImage": u.CoverImage,
		"createdAt":  formatTime(timestamppb.New(u.CreatedAt)),
		"updatedAt":  formatTime(timestamppb.New(u.UpdatedAt)),
	})
}

// UserFromStruct decodes a Validate reply.
func UserFromStruct(s *structpb.Struct) (model.PublicUser, error) {
	f := s.GetFields()
	id, err := uuid.Parse(f["_id"].GetStringValue())
	if err != nil {
		return model.PublicUser{}, fmt.Errorf("user _id: %w", err)
	}
	created, err := parseTime(f["createdAt"].GetStringValue())
	if err != nil {
		return model.PublicUser{}, fmt.Errorf("user createdAt: %w", err)
	}
	updated, err := parseTime(f["updatedAt"].GetStringValue())
	if err != nil {
		return model.PublicUser{}, fmt.Errorf("user updatedAt: %w", err)
	}
	return model.PublicUser{
		ID:         id,
		Username:   f["username"].GetStringValue(),
		Email:      f["email"].GetStringValue(),
		FullName:   f["fullName"].GetStringValue(),
		Avatar:     f["avatar"].GetStringValue(),
		CoverImage: f["coverImage"].GetStringValue(),
		CreatedAt:  created.AsTime(),
		UpdatedAt:  updated.AsTime(),
	}, nil
}

func healthToStruct(status string, at *timestamppb.Timestamp) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"status":    status,
		"version":   Version,
		"timestamp": formatTime(at),
	})
}

// HealthFromStruct decodes a HealthCheck reply.
func HealthFromStruct(s *structpb.Struct) (Health, error) {
	f := s.GetFields()
	ts, err := parseTime(f["timestamp"].GetStringValue())
	if err != nil {
		return Health{}, fmt.Errorf("health timestamp: %w", err)
	}
	return Health{
		Status:    f["status"].GetStringValue(),
		Version:   f["version"].GetStringValue(),
		Timestamp: ts,
	}, nil
}

func formatTime(ts *timestamppb.Timestamp) string {
	return ts.AsTime().Format(time.RFC3339Nano)
}

func parseTime(raw string) (*timestamppb.Timestamp, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, err
	}
	ts := timestamppb.New(t)
	if err := ts.CheckValid(); err != nil {
		return nil, err
	}
	return ts, nil
}
