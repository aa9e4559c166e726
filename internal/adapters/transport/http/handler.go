package http

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Miraines/MoonyAndStarry/account-service/internal/adapters/transport/http/dto"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/adapters/transport/http/middleware"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/adapters/transport/http/response"
	appsvc "github.com/Miraines/MoonyAndStarry/account-service/internal/app/account/service"
	customErrors "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/errors"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/model"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/infra/config"
)

const RefreshTokenCookie = "refreshToken"

// HealthCheck is a named dependency ping used by /health.
type HealthCheck struct {
	Name string
	Ping func(context.Context) error
}

type Handler struct {
	svc    appsvc.Service
	cfg    *config.Config
	log    *zap.Logger
	checks []HealthCheck
}

func NewHandler(svc appsvc.Service, cfg *config.Config, log *zap.Logger, checks ...HealthCheck) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, cfg: cfg, log: log, checks: checks}
}

// Mount вешает пользовательские ручки на группу. Защищённые идут через RequireAuth.
func (h *Handler) Mount(r gin.IRouter) {
	auth := middleware.RequireAuth(h.svc, h.log)

	r.POST("/register", h.register)
	r.POST("/login", h.login)
	r.POST("/refreshAccessToken", h.refreshAccessToken)

	r.POST("/logout", auth, h.logout)
	r.PUT("/updatePassword", auth, h.updatePassword)
	r.GET("/currentUser", auth, h.currentUser)
}

func (h *Handler) register(c *gin.Context) {
	// два файла плюс текстовые поля
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*h.cfg.MaxUploadSize+1<<20)

	var body dto.RegisterDTO
	if err := c.ShouldBind(&body); err != nil {
		h.bindError(c, err)
		return
	}

	avatar, err := h.stageUpload(c, "avatar")
	if err != nil {
		h.handleError(c, err)
		return
	}
	defer discard(avatar)

	cover, err := h.stageUpload(c, "coverImage")
	if err != nil {
		h.handleError(c, err)
		return
	}
	defer discard(cover)

	body.AvatarPath, body.CoverImagePath = avatar, cover

	h.log.Info("/register", zap.String("user", fingerprint(body.Email)))
	user, err := h.svc.Register(c.Request.Context(), body)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Respond(c, http.StatusCreated, user, "User registered successfully")
}

func (h *Handler) login(c *gin.Context) {
	var body dto.LoginDTO
	if err := c.ShouldBind(&body); err != nil {
		h.bindError(c, err)
		return
	}
	h.log.Info("/login", zap.String("user", fingerprint(body.Username+body.Email)))

	user, pair, err := h.svc.Login(c.Request.Context(), body)
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.setAuthCookies(c, pair)
	response.Respond(c, http.StatusOK, gin.H{
		"user":         user,
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	}, "User logged in successfully")
}

func (h *Handler) logout(c *gin.Context) {
	user, _ := middleware.CurrentUser(c.Request.Context())
	if err := h.svc.Logout(c.Request.Context(), user.ID); err != nil {
		h.handleError(c, err)
		return
	}
	h.clearAuthCookies(c)
	response.Respond(c, http.StatusOK, nil, "User logged out successfully")
}

func (h *Handler) refreshAccessToken(c *gin.Context) {
	token, _ := c.Cookie(RefreshTokenCookie)
	if token == "" {
		var body dto.RefreshDTO
		if err := c.ShouldBind(&body); err == nil {
			token = body.RefreshToken
		}
	}

	pair, err := h.svc.Refresh(c.Request.Context(), dto.RefreshDTO{RefreshToken: token})
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.setAuthCookies(c, pair)
	response.Respond(c, http.StatusOK, gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	}, "Tokens refreshed successfully")
}

func (h *Handler) updatePassword(c *gin.Context) {
	var body dto.ChangePasswordDTO
	if err := c.ShouldBind(&body); err != nil {
		h.bindError(c, err)
		return
	}

	user, _ := middleware.CurrentUser(c.Request.Context())
	if err := h.svc.ChangePassword(c.Request.Context(), user.ID, body); err != nil {
		h.handleError(c, err)
		return
	}

	if h.cfg.RevokeSessionsOnPasswordChange {
		h.clearCookie(c, RefreshTokenCookie)
	}
	response.Respond(c, http.StatusOK, nil, "Password updated successfully")
}

func (h *Handler) currentUser(c *gin.Context) {
	user, _ := middleware.CurrentUser(c.Request.Context())
	fresh, err := h.svc.Profile(c.Request.Context(), user.ID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Respond(c, http.StatusOK, gin.H{"user": fresh}, "User")
}

// Health пингует зависимости; любой отказ даёт 503.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for _, chk := range h.checks {
		if err := chk.Ping(ctx); err != nil {
			h.log.Warn("health check failed", zap.String("check", chk.Name), zap.Error(err))
			results[chk.Name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		results[chk.Name] = "ok"
	}

	msg := "healthy"
	if status != http.StatusOK {
		msg = "unhealthy"
	}
	response.Respond(c, status, gin.H{"checks": results, "time": time.Now().Unix()}, msg)
}

func (h *Handler) stageUpload(c *gin.Context, field string) (string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil
		}
		return "", customErrors.NewInvalidArgument("malformed " + field + " upload")
	}
	if fh.Size > h.cfg.MaxUploadSize {
		return "", customErrors.NewInvalidArgument(field + " exceeds the upload size limit")
	}

	if err := os.MkdirAll(h.cfg.UploadDir, 0o750); err != nil {
		return "", customErrors.WrapInternal(err, "prepare upload dir")
	}
	dst := filepath.Join(h.cfg.UploadDir, uuid.NewString()+strings.ToLower(filepath.Ext(fh.Filename)))
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		return "", customErrors.WrapInternal(err, "stage "+field)
	}
	return dst, nil
}

func (h *Handler) setAuthCookies(c *gin.Context, pair model.TokenPair) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AccessTokenCookie, pair.AccessToken, int(pair.AccessTTL.Seconds()),
		"/", h.cfg.CookieDomain, h.cfg.CookieSecure, true)
	c.SetCookie(RefreshTokenCookie, pair.RefreshToken, int(pair.RefreshTTL.Seconds()),
		"/", h.cfg.CookieDomain, h.cfg.CookieSecure, true)
}

func (h *Handler) clearAuthCookies(c *gin.Context) {
	h.clearCookie(c, middleware.AccessTokenCookie)
	h.clearCookie(c, RefreshTokenCookie)
}

func (h *Handler) clearCookie(c *gin.Context, name string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(name, "", -1, "/", h.cfg.CookieDomain, h.cfg.CookieSecure, true)
}

func (h *Handler) bindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.Abort(c, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	h.log.Debug("bind failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	h.handleError(c, customErrors.NewInvalidArgument("malformed request body"))
}

func (h *Handler) handleError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}
	response.Abort(c, status, customErrors.Message(err))
}

func statusFor(err error) int {
	switch {
	case customErrors.IsInvalidArgument(err):
		return http.StatusBadRequest
	case customErrors.IsAlreadyExists(err):
		return http.StatusConflict
	case customErrors.IsUnauthorized(err), customErrors.IsInvalidCredentials(err):
		return http.StatusUnauthorized
	case customErrors.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func discard(path string) {
	if path != "" {
		_ = os.Remove(path)
	}
}

func fingerprint(s string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(s)))
}
