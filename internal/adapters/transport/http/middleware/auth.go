package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Miraines/MoonyAndStarry/account-service/internal/adapters/transport/http/response"
	customErrors "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/errors"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/model"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/infra/metrics"
)

const (
	UserKey           = "user"
	AccessTokenCookie = "accessToken"
)

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (model.PublicUser, error)
}

type userCtxKey struct{}

// CurrentUser достаёт пользователя, которого RequireAuth положил в контекст запроса.
func CurrentUser(ctx context.Context) (model.PublicUser, bool) {
	u, ok := ctx.Value(userCtxKey{}).(model.PublicUser)
	return u, ok
}

func WithUser(ctx context.Context, u model.PublicUser) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// RequireAuth пропускает запрос дальше только с валидным access-токеном из cookie
// или заголовка Authorization.
func RequireAuth(auth Authenticator, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		token := extractToken(c)

		user, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			status, reason := classify(err)
			metrics.RecordAuthFailure(reason)
			if status == http.StatusInternalServerError {
				log.Error("authentication failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
			} else {
				log.Debug("access denied", zap.String("reason", reason), zap.String("path", c.Request.URL.Path))
			}
			response.Abort(c, status, customErrors.Message(err))
			return
		}

		c.Set(UserKey, user)
		c.Request = c.Request.WithContext(WithUser(c.Request.Context(), user))
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	if v, err := c.Cookie(AccessTokenCookie); err == nil && v != "" {
		return v
	}
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return h
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, customErrors.ErrTokenMissing):
		return http.StatusUnauthorized, metrics.ReasonTokenMissing
	case errors.Is(err, customErrors.ErrTokenExpired):
		return http.StatusUnauthorized, metrics.ReasonTokenExpired
	case errors.Is(err, customErrors.ErrUserGone):
		return http.StatusUnauthorized, metrics.ReasonUserGone
	case customErrors.IsUnauthorized(err):
		return http.StatusUnauthorized, metrics.ReasonInvalidToken
	default:
		return http.StatusInternalServerError, metrics.ReasonInternal
	}
}
