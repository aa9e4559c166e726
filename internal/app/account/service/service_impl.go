package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/Miraines/MoonyAndStarry/account-service/internal/adapters/transport/http/dto"
	customErrors "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/errors"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/jwt"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/model"
	repo "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/repo"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/infra/config"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type accountService struct {
	userRepo repo.UserRepo
	cache    repo.ProfileCache
	hasher   repo.Hasher
	uploader repo.Uploader
	jwtUtil  jwt.JWTUtil
	cfg      *config.Config
	v        *validator.Validate
	log      *zap.Logger
}

type Service interface {
	Register(context.Context, dto.RegisterDTO) (model.PublicUser, error)
	Login(context.Context, dto.LoginDTO) (model.PublicUser, model.TokenPair, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	Refresh(context.Context, dto.RefreshDTO) (model.TokenPair, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, in dto.ChangePasswordDTO) error
	Profile(ctx context.Context, userID uuid.UUID) (model.PublicUser, error)
	Authenticate(ctx context.Context, accessToken string) (model.PublicUser, error)
}

type Deps struct {
	Users    repo.UserRepo
	Cache    repo.ProfileCache
	Hasher   repo.Hasher
	Uploader repo.Uploader
	JWT      jwt.JWTUtil
}

func New(d Deps, cfg *config.Config, v *validator.Validate, log *zap.Logger) Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &accountService{
		userRepo: d.Users,
		cache:    d.Cache,
		hasher:   d.Hasher,
		uploader: d.Uploader,
		jwtUtil:  d.JWT,
		cfg:      cfg,
		v:        v,
		log:      log,
	}
}

// NewValidator returns a validator that reports fields by their json names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func (a *accountService) Register(ctx context.Context, in dto.RegisterDTO) (model.PublicUser, error) {
	in.Username = normalize(in.Username)
	in.Email = normalize(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)

	if err := a.v.Struct(in); err != nil {
		return model.PublicUser{}, validationError(err)
	}

	_, err := a.userRepo.FindByIdentifier(ctx, in.Username, in.Email)
	switch {
	case err == nil:
		return model.PublicUser{}, customErrors.ErrAlreadyExists
	case !errors.Is(err, customErrors.ErrNotFound):
		return model.PublicUser{}, customErrors.WrapInternal(err, "Register")
	}

	if in.AvatarPath == "" {
		return model.PublicUser{}, customErrors.NewInvalidArgument("avatar is required")
	}
	avatarURL, err := a.uploader.Upload(ctx, in.AvatarPath)
	if err != nil || avatarURL == "" {
		a.log.Warn("avatar upload failed", zap.Error(err), zap.String("user", fingerprint(in.Email)))
		return model.PublicUser{}, customErrors.NewInvalidArgument("failed to upload avatar")
	}

	var coverURL string
	if in.CoverImagePath != "" {
		if coverURL, err = a.uploader.Upload(ctx, in.CoverImagePath); err != nil {
			a.discardMedia(ctx, avatarURL)
			return model.PublicUser{}, customErrors.WrapInternal(err, "upload cover image")
		}
	}

	passwordHash, err := a.hasher.Hash(in.Password)
	if err != nil {
		a.discardMedia(ctx, avatarURL, coverURL)
		return model.PublicUser{}, customErrors.WrapInternal(err, "Register")
	}

	created, err := a.userRepo.CreateUser(ctx, model.User{
		ID:           uuid.New(),
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		PasswordHash: passwordHash,
		Avatar:       avatarURL,
		CoverImage:   coverURL,
	})
	if err != nil {
		a.discardMedia(ctx, avatarURL, coverURL)
		if errors.Is(err, customErrors.ErrAlreadyExists) {
			return model.PublicUser{}, customErrors.ErrAlreadyExists
		}
		return model.PublicUser{}, customErrors.WrapInternal(err, "Register")
	}

	a.log.Info("user registered", zap.String("user_id", created.ID.String()))
	return created.Public(), nil
}

// discardMedia убирает загруженные файлы неудачной регистрации. Ошибка удаления
// не меняет ответ клиенту, URL остаётся в логе для ручной чистки.
func (a *accountService) discardMedia(ctx context.Context, urls ...string) {
	for _, url := range urls {
		if url == "" {
			continue
		}
		if err := a.uploader.Remove(context.WithoutCancel(ctx), url); err != nil {
			a.log.Warn("orphaned media", zap.String("url", url), zap.Error(err))
		}
	}
}

func (a *accountService) Login(ctx context.Context, in dto.LoginDTO) (model.PublicUser, model.TokenPair, error) {
	in.Username = normalize(in.Username)
	in.Email = normalize(in.Email)

	if err := a.v.Struct(in); err != nil {
		return model.PublicUser{}, model.TokenPair{}, validationError(err)
	}

	user, err := a.userRepo.FindByIdentifier(ctx, in.Username, in.Email)
	switch {
	case errors.Is(err, customErrors.ErrNotFound):
		return model.PublicUser{}, model.TokenPair{}, customErrors.ErrNotFound
	case err != nil:
		return model.PublicUser{}, model.TokenPair{}, customErrors.WrapInternal(err, "Login")
	}

	if in.Password == "" {
		return model.PublicUser{}, model.TokenPair{}, customErrors.ErrInvalidCredentials
	}
	ok, err := a.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil {
		return model.PublicUser{}, model.TokenPair{}, customErrors.WrapInternal(err, "Login")
	}
	if !ok {
		return model.PublicUser{}, model.TokenPair{}, customErrors.ErrInvalidCredentials
	}

	pair, err := a.issueTokens(user)
	if err != nil {
		a.log.Error("token generation failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		return model.PublicUser{}, model.TokenPair{}, customErrors.ErrInternal
	}

	// rotation point: any earlier refresh token stops matching here
	if err := a.userRepo.SetRefreshToken(ctx, user.ID, &pair.RefreshToken); err != nil {
		return model.PublicUser{}, model.TokenPair{}, customErrors.WrapInternal(err, "StoreRefresh")
	}
	a.dropCached(ctx, user.ID)

	return user.Public(), pair, nil
}

func (a *accountService) Logout(ctx context.Context, userID uuid.UUID) error {
	if err := a.userRepo.SetRefreshToken(ctx, userID, nil); err != nil {
		if errors.Is(err, customErrors.ErrNotFound) {
			return customErrors.ErrNotFound
		}
		return customErrors.WrapInternal(err, "Logout")
	}
	a.dropCached(ctx, userID)
	return nil
}

func (a *accountService) Refresh(ctx context.Context, in dto.RefreshDTO) (model.TokenPair, error) {
	presented := strings.TrimSpace(in.RefreshToken)
	if presented == "" {
		return model.TokenPair{}, customErrors.ErrTokenMissing
	}

	claims, err := a.jwtUtil.ValidateRefreshToken(presented)
	if err != nil {
		return model.TokenPair{}, err
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.TokenPair{}, customErrors.ErrInvalidToken
	}

	user, err := a.userRepo.GetUserByID(ctx, uid)
	switch {
	case errors.Is(err, customErrors.ErrNotFound):
		return model.TokenPair{}, customErrors.ErrNotFound
	case err != nil:
		return model.TokenPair{}, customErrors.WrapInternal(err, "Refresh")
	}

	if user.RefreshToken == nil ||
		subtle.ConstantTimeCompare([]byte(*user.RefreshToken), []byte(presented)) != 1 {
		return model.TokenPair{}, customErrors.ErrTokenMismatch
	}

	pair, err := a.issueTokens(user)
	if err != nil {
		a.log.Error("token generation failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		return model.TokenPair{}, customErrors.ErrInternal
	}

	swapped, err := a.userRepo.SwapRefreshToken(ctx, uid, presented, pair.RefreshToken)
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "Refresh")
	}
	if !swapped {
		// another request rotated the token between our read and write
		return model.TokenPair{}, customErrors.ErrTokenMismatch
	}

	return pair, nil
}

func (a *accountService) ChangePassword(ctx context.Context, userID uuid.UUID, in dto.ChangePasswordDTO) error {
	if err := a.v.Struct(in); err != nil {
		return customErrors.NewInvalidArgument("old password and new password are required")
	}

	user, err := a.userRepo.GetUserByID(ctx, userID)
	switch {
	case errors.Is(err, customErrors.ErrNotFound):
		return customErrors.ErrUserGone
	case err != nil:
		return customErrors.WrapInternal(err, "ChangePassword")
	}

	ok, err := a.hasher.Verify(in.OldPassword, user.PasswordHash)
	if err != nil {
		return customErrors.WrapInternal(err, "ChangePassword")
	}
	if !ok {
		return customErrors.ErrInvalidCredentials
	}

	hash, err := a.hasher.Hash(in.NewPassword)
	if err != nil {
		return customErrors.WrapInternal(err, "ChangePassword")
	}

	// отзыв до смены хеша: при ошибке пароль остаётся прежним и 500 честный
	if a.cfg.RevokeSessionsOnPasswordChange {
		if err := a.userRepo.SetRefreshToken(ctx, userID, nil); err != nil {
			return customErrors.WrapInternal(err, "ChangePassword")
		}
	}
	if err := a.userRepo.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return customErrors.WrapInternal(err, "ChangePassword")
	}
	a.dropCached(ctx, userID)
	return nil
}

func (a *accountService) Profile(ctx context.Context, userID uuid.UUID) (model.PublicUser, error) {
	user, err := a.userRepo.GetUserByID(ctx, userID)
	switch {
	case errors.Is(err, customErrors.ErrNotFound):
		return model.PublicUser{}, customErrors.ErrNotFound
	case err != nil:
		return model.PublicUser{}, customErrors.WrapInternal(err, "Profile")
	}
	return user.Public(), nil
}

func (a *accountService) Authenticate(ctx context.Context, accessToken string) (model.PublicUser, error) {
	if strings.TrimSpace(accessToken) == "" {
		return model.PublicUser{}, customErrors.ErrTokenMissing
	}

	claims, err := a.jwtUtil.ValidateAccessToken(accessToken)
	if err != nil {
		return model.PublicUser{}, err
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.PublicUser{}, customErrors.ErrInvalidToken
	}

	if a.cache != nil {
		cached, err := a.cache.Get(ctx, uid)
		switch {
		case err == nil:
			return cached, nil
		case !errors.Is(err, customErrors.ErrNotFound):
			a.log.Warn("profile cache read failed", zap.Error(err))
		}
	}

	user, err := a.userRepo.GetUserByID(ctx, uid)
	switch {
	case errors.Is(err, customErrors.ErrNotFound):
		return model.PublicUser{}, customErrors.ErrUserGone
	case err != nil:
		return model.PublicUser{}, customErrors.WrapInternal(err, "Authenticate")
	}

	public := user.Public()
	if a.cache != nil {
		if err := a.cache.Set(ctx, public); err != nil {
			a.log.Warn("profile cache write failed", zap.Error(err))
		}
	}
	return public, nil
}

func (a *accountService) issueTokens(user model.User) (model.TokenPair, error) {
	at, atExp, _, err := a.jwtUtil.GenerateAccessToken(jwt.Identity{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
	})
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("GenerateAccessToken: %w", err)
	}
	rt, rtExp, jti, err := a.jwtUtil.GenerateRefreshToken(user.ID)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("GenerateRefreshToken: %w", err)
	}

	return model.TokenPair{
		AccessToken:     at,
		RefreshToken:    rt,
		AccessTTL:       ttlUntil(atExp),
		RefreshTTL:      ttlUntil(rtExp),
		UserId:          user.ID,
		RefreshTokenJTI: jti,
	}, nil
}

func (a *accountService) dropCached(ctx context.Context, id uuid.UUID) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Delete(ctx, id); err != nil {
		a.log.Warn("profile cache invalidation failed", zap.String("user_id", id.String()), zap.Error(err))
	}
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return customErrors.NewInvalidArgument(err.Error())
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return customErrors.NewInvalidArgument(fe.Field() + " is required")
	case "required_without":
		return customErrors.NewInvalidArgument("username or email is required")
	case "email":
		return customErrors.NewInvalidArgument("email is invalid")
	default:
		return customErrors.NewInvalidArgument(fe.Field() + " is invalid")
	}
}

func ttlUntil(exp time.Time) time.Duration {
	return time.Until(exp).Round(time.Second)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func fingerprint(s string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(s)))
}
