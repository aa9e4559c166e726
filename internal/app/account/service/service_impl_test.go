package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Miraines/MoonyAndStarry/account-service/internal/adapters/transport/http/dto"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/app/account/jwt"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/app/account/password"
	appsvc "github.com/Miraines/MoonyAndStarry/account-service/internal/app/account/service"
	authErrors "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/errors"
	domainjwt "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/jwt"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/model"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/infra/config"
	"github.com/alexedwards/argon2id"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

/* ──────────────────────────────── stubs ──────────────────────────────── */

type userRepoStub struct {
	mu    sync.Mutex
	users map[uuid.UUID]model.User
	err   error

	createErr   error
	setTokenErr error
}

func newUserRepo() *userRepoStub {
	return &userRepoStub{users: make(map[uuid.UUID]model.User)}
}

func (u *userRepoStub) FindByIdentifier(_ context.Context, username, email string) (model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return model.User{}, u.err
	}
	for _, v := range u.users {
		if (username != "" && v.Username == username) || (email != "" && v.Email == email) {
			return v, nil
		}
	}
	return model.User{}, authErrors.ErrNotFound
}

func (u *userRepoStub) GetUserByID(_ context.Context, id uuid.UUID) (model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return model.User{}, u.err
	}
	v, ok := u.users[id]
	if !ok {
		return model.User{}, authErrors.ErrNotFound
	}
	return v, nil
}

func (u *userRepoStub) CreateUser(_ context.Context, m model.User) (model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.createErr != nil {
		return model.User{}, u.createErr
	}
	for _, v := range u.users {
		if v.Username == m.Username || v.Email == m.Email {
			return model.User{}, authErrors.ErrAlreadyExists
		}
	}
	m.CreatedAt, m.UpdatedAt = time.Now(), time.Now()
	u.users[m.ID] = m
	return m, nil
}

func (u *userRepoStub) UpdatePasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	v, ok := u.users[id]
	if !ok {
		return authErrors.ErrNotFound
	}
	v.PasswordHash = hash
	u.users[id] = v
	return nil
}

func (u *userRepoStub) SetRefreshToken(_ context.Context, id uuid.UUID, token *string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.setTokenErr != nil {
		return u.setTokenErr
	}
	v, ok := u.users[id]
	if !ok {
		return authErrors.ErrNotFound
	}
	v.RefreshToken = token
	u.users[id] = v
	return nil
}

func (u *userRepoStub) SwapRefreshToken(_ context.Context, id uuid.UUID, expected, next string) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	v, ok := u.users[id]
	if !ok || v.RefreshToken == nil || *v.RefreshToken != expected {
		return false, nil
	}
	v.RefreshToken = &next
	u.users[id] = v
	return true, nil
}

func (u *userRepoStub) stored(t *testing.T, username string) model.User {
	t.Helper()
	user, err := u.FindByIdentifier(context.Background(), username, "")
	require.NoError(t, err)
	return user
}

type cacheStub struct {
	mu    sync.Mutex
	items map[uuid.UUID]model.PublicUser
	hits  int
}

func (c *cacheStub) Get(_ context.Context, id uuid.UUID) (model.PublicUser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[id]
	if !ok {
		return model.PublicUser{}, authErrors.ErrNotFound
	}
	c.hits++
	return v, nil
}

func (c *cacheStub) Set(_ context.Context, u model.PublicUser) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[u.ID] = u
	return nil
}

func (c *cacheStub) Delete(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
	return nil
}

type uploaderStub struct {
	err       error
	failOn    string
	removeErr error
	removed   []string
}

func (s *uploaderStub) Upload(_ context.Context, localPath string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.failOn == localPath {
		return "", errors.New("put object: timeout")
	}
	return "https://media.example.com/" + localPath, nil
}

func (s *uploaderStub) Remove(_ context.Context, url string) error {
	if s.removeErr != nil {
		return s.removeErr
	}
	s.removed = append(s.removed, url)
	return nil
}

type brokenJWT struct{ domainjwt.JWTUtil }

func (brokenJWT) GenerateAccessToken(domainjwt.Identity) (string, time.Time, string, error) {
	return "", time.Time{}, "", errors.New("hsm offline")
}

/* ───────────────────────────── helpers ───────────────────────────── */

const (
	accessSecret  = "access-secret"
	refreshSecret = "refresh-secret"
)

type fixture struct {
	svc   appsvc.Service
	users *userRepoStub
	cache *cacheStub
	cfg   *config.Config
}

func testConfig() *config.Config {
	return &config.Config{
		AccessTokenSecret:  accessSecret,
		RefreshTokenSecret: refreshSecret,
		AccessTokenTTL:     time.Minute,
		RefreshTokenTTL:    time.Hour,
		Issuer:             "test",
		Audience:           "test",
	}
}

func newFixture(t *testing.T, mutate ...func(*config.Config, *appsvc.Deps)) fixture {
	t.Helper()
	cfg := testConfig()
	util, err := jwt.NewJWTUtil(cfg)
	require.NoError(t, err)

	f := fixture{
		users: newUserRepo(),
		cache: &cacheStub{items: make(map[uuid.UUID]model.PublicUser)},
		cfg:   cfg,
	}
	deps := appsvc.Deps{
		Users:    f.users,
		Cache:    f.cache,
		Hasher:   password.NewArgon2Hasher("pepper", &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}),
		Uploader: &uploaderStub{},
		JWT:      util,
	}
	for _, m := range mutate {
		m(cfg, &deps)
	}
	f.svc = appsvc.New(deps, cfg, appsvc.NewValidator(), nil)
	return f
}

func registerDTO(username, email string) dto.RegisterDTO {
	return dto.RegisterDTO{
		FullName:   "Alice Liddell",
		Username:   username,
		Email:      email,
		Password:   "P@ss1",
		AvatarPath: "avatar.png",
	}
}

func (f fixture) registerAlice(t *testing.T) model.PublicUser {
	t.Helper()
	u, err := f.svc.Register(context.Background(), registerDTO("alice", "alice@example.com"))
	require.NoError(t, err)
	return u
}

func (f fixture) loginAlice(t *testing.T) (model.PublicUser, model.TokenPair) {
	t.Helper()
	u, pair, err := f.svc.Login(context.Background(), dto.LoginDTO{Username: "alice", Password: "P@ss1"})
	require.NoError(t, err)
	return u, pair
}

func signedAccess(t *testing.T, sub string, exp time.Time, secret string) string {
	t.Helper()
	iat := time.Now()
	if exp.Before(iat) {
		iat = exp.Add(-time.Minute)
	}
	tok, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, domainjwt.AccessClaims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    "test",
			Audience:  gojwt.ClaimStrings{"test"},
			IssuedAt:  gojwt.NewNumericDate(iat),
			ExpiresAt: gojwt.NewNumericDate(exp),
		},
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

/* ───────────────────────────── register ───────────────────────────── */

func TestAccountService_Register(t *testing.T) {
	f := newFixture(t)
	u, err := f.svc.Register(context.Background(), dto.RegisterDTO{
		FullName:       "  Alice Liddell ",
		Username:       " Alice ",
		Email:          "Alice@Example.com",
		Password:       "P@ss1",
		AvatarPath:     "a.png",
		CoverImagePath: "c.png",
	})
	require.NoError(t, err)
	require.Equal(t, "alice", u.Username)
	require.Equal(t, "alice@example.com", u.Email)
	require.Equal(t, "Alice Liddell", u.FullName)
	require.Equal(t, "https://media.example.com/a.png", u.Avatar)
	require.Equal(t, "https://media.example.com/c.png", u.CoverImage)

	stored := f.users.stored(t, "alice")
	require.NotEqual(t, "P@ss1", stored.PasswordHash)
	require.Nil(t, stored.RefreshToken)
}

func TestAccountService_RegisterDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerAlice(t)

	_, err := f.svc.Register(ctx, registerDTO("alice", "other@example.com"))
	require.True(t, authErrors.IsAlreadyExists(err))

	_, err = f.svc.Register(ctx, registerDTO("bob", "alice@example.com"))
	require.True(t, authErrors.IsAlreadyExists(err))
}

func TestAccountService_RegisterWithoutAvatar(t *testing.T) {
	f := newFixture(t)
	in := registerDTO("alice", "alice@example.com")
	in.AvatarPath = ""
	in.CoverImagePath = "cover.png"

	_, err := f.svc.Register(context.Background(), in)
	require.True(t, authErrors.IsInvalidArgument(err))
	require.Equal(t, "avatar is required", authErrors.Message(err))
}

func TestAccountService_RegisterNamesFirstMissingField(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Register(context.Background(), dto.RegisterDTO{Email: "x@example.com", AvatarPath: "a"})
	require.True(t, authErrors.IsInvalidArgument(err))
	require.Equal(t, "fullName is required", authErrors.Message(err))

	_, err = f.svc.Register(context.Background(), dto.RegisterDTO{FullName: "X", Username: "x", Password: "p"})
	require.Equal(t, "email is required", authErrors.Message(err))

	_, err = f.svc.Register(context.Background(), dto.RegisterDTO{FullName: "X", Username: "x", Password: "p", Email: "nope"})
	require.Equal(t, "email is invalid", authErrors.Message(err))
}

func TestAccountService_RegisterAvatarUploadFails(t *testing.T) {
	f := newFixture(t, func(_ *config.Config, d *appsvc.Deps) {
		d.Uploader = &uploaderStub{err: errors.New("s3 down")}
	})

	_, err := f.svc.Register(context.Background(), registerDTO("alice", "alice@example.com"))
	require.True(t, authErrors.IsInvalidArgument(err))
	require.Equal(t, "failed to upload avatar", authErrors.Message(err))
}

func TestAccountService_RegisterCoverFailureRemovesAvatar(t *testing.T) {
	up := &uploaderStub{failOn: "c.png"}
	f := newFixture(t, func(_ *config.Config, d *appsvc.Deps) { d.Uploader = up })

	in := registerDTO("alice", "alice@example.com")
	in.CoverImagePath = "c.png"
	_, err := f.svc.Register(context.Background(), in)
	require.True(t, authErrors.IsInternal(err))
	require.Equal(t, []string{"https://media.example.com/avatar.png"}, up.removed)

	_, err = f.users.FindByIdentifier(context.Background(), "alice", "")
	require.ErrorIs(t, err, authErrors.ErrNotFound)
}

func TestAccountService_RegisterStoreFailureRemovesMedia(t *testing.T) {
	up := &uploaderStub{}
	f := newFixture(t, func(_ *config.Config, d *appsvc.Deps) { d.Uploader = up })
	f.users.createErr = errors.New("connection reset")

	in := registerDTO("alice", "alice@example.com")
	in.CoverImagePath = "c.png"
	_, err := f.svc.Register(context.Background(), in)
	require.True(t, authErrors.IsInternal(err))
	require.Equal(t, []string{
		"https://media.example.com/avatar.png",
		"https://media.example.com/c.png",
	}, up.removed)
}

func TestAccountService_RegisterCleanupFailureKeepsOriginalError(t *testing.T) {
	up := &uploaderStub{failOn: "c.png", removeErr: errors.New("access denied")}
	f := newFixture(t, func(_ *config.Config, d *appsvc.Deps) { d.Uploader = up })

	in := registerDTO("alice", "alice@example.com")
	in.CoverImagePath = "c.png"
	_, err := f.svc.Register(context.Background(), in)
	require.True(t, authErrors.IsInternal(err))
	require.Equal(t, "something went wrong", authErrors.Message(err))
}

/* ───────────────────────────── login ───────────────────────────── */

func TestAccountService_LoginReturnsSanitizedUser(t *testing.T) {
	f := newFixture(t)
	f.registerAlice(t)

	u, pair, err := f.svc.Login(context.Background(), dto.LoginDTO{Username: "alice", Email: "", Password: "P@ss1"})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, u.ID, pair.UserId)

	raw, err := json.Marshal(u)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	require.NotContains(t, fields, "password")
	require.NotContains(t, fields, "passwordHash")
	require.NotContains(t, fields, "refreshToken")
	require.Equal(t, "alice", fields["username"])

	stored := f.users.stored(t, "alice")
	require.NotNil(t, stored.RefreshToken)
	require.Equal(t, pair.RefreshToken, *stored.RefreshToken)
}

func TestAccountService_LoginByEmail(t *testing.T) {
	f := newFixture(t)
	f.registerAlice(t)

	_, _, err := f.svc.Login(context.Background(), dto.LoginDTO{Email: "ALICE@example.com", Password: "P@ss1"})
	require.NoError(t, err)
}

func TestAccountService_LoginErrors(t *testing.T) {
	f := newFixture(t)
	f.registerAlice(t)
	ctx := context.Background()

	_, _, err := f.svc.Login(ctx, dto.LoginDTO{Password: "P@ss1"})
	require.True(t, authErrors.IsInvalidArgument(err))
	require.Equal(t, "username or email is required", authErrors.Message(err))

	_, _, err = f.svc.Login(ctx, dto.LoginDTO{Username: "nobody", Password: "P@ss1"})
	require.True(t, authErrors.IsNotFound(err))

	_, _, err = f.svc.Login(ctx, dto.LoginDTO{Username: "alice", Password: "wrong"})
	require.True(t, authErrors.IsInvalidCredentials(err))

	_, _, err = f.svc.Login(ctx, dto.LoginDTO{Username: "alice"})
	require.True(t, authErrors.IsInvalidCredentials(err))
}

func TestAccountService_LoginTokenFailureIsGenericInternal(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config, d *appsvc.Deps) {
		d.JWT = brokenJWT{d.JWT}
	})
	f.registerAlice(t)

	_, _, err := f.svc.Login(context.Background(), dto.LoginDTO{Username: "alice", Password: "P@ss1"})
	require.True(t, authErrors.IsInternal(err))
	require.NotContains(t, err.Error(), "hsm offline")
	require.Nil(t, f.users.stored(t, "alice").RefreshToken)
}

func TestAccountService_LoginStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.users.err = errors.New("connection refused")

	_, _, err := f.svc.Login(context.Background(), dto.LoginDTO{Username: "alice", Password: "P@ss1"})
	require.True(t, authErrors.IsInternal(err))
}

/* ───────────────────────────── refresh ───────────────────────────── */

func TestAccountService_RefreshIsSingleUse(t *testing.T) {
	f := newFixture(t)
	f.registerAlice(t)
	_, pair := f.loginAlice(t)
	ctx := context.Background()

	rotated, err := f.svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: pair.RefreshToken})
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
	require.Equal(t, rotated.RefreshToken, *f.users.stored(t, "alice").RefreshToken)

	_, err = f.svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: pair.RefreshToken})
	require.ErrorIs(t, err, authErrors.ErrTokenMismatch)
	require.True(t, authErrors.IsUnauthorized(err))

	_, err = f.svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: rotated.RefreshToken})
	require.NoError(t, err)
}

func TestAccountService_LaterLoginRotatesOutEarlierToken(t *testing.T) {
	f := newFixture(t)
	f.registerAlice(t)
	_, first := f.loginAlice(t)
	_, second := f.loginAlice(t)

	_, err := f.svc.Refresh(context.Background(), dto.RefreshDTO{RefreshToken: first.RefreshToken})
	require.ErrorIs(t, err, authErrors.ErrTokenMismatch)

	_, err = f.svc.Refresh(context.Background(), dto.RefreshDTO{RefreshToken: second.RefreshToken})
	require.NoError(t, err)
}

func TestAccountService_RefreshErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Refresh(ctx, dto.RefreshDTO{})
	require.ErrorIs(t, err, authErrors.ErrTokenMissing)

	_, err = f.svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: "bad"})
	require.ErrorIs(t, err, authErrors.ErrInvalidToken)

	// an access token is not a refresh token
	f.registerAlice(t)
	_, pair := f.loginAlice(t)
	_, err = f.svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: pair.AccessToken})
	require.ErrorIs(t, err, authErrors.ErrInvalidToken)

	// well-signed token for a user that does not exist
	util, _ := jwt.NewJWTUtil(f.cfg)
	ghost, _, _, _ := util.GenerateRefreshToken(uuid.New())
	_, err = f.svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: ghost})
	require.True(t, authErrors.IsNotFound(err))
}

func TestAccountService_ConcurrentRefreshHasOneWinner(t *testing.T) {
	f := newFixture(t)
	f.registerAlice(t)
	_, pair := f.loginAlice(t)

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Refresh(context.Background(), dto.RefreshDTO{RefreshToken: pair.RefreshToken}); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, success)
}

/* ───────────────────────────── logout ───────────────────────────── */

func TestAccountService_LogoutRevokesRefresh(t *testing.T) {
	f := newFixture(t)
	f.registerAlice(t)
	u, pair := f.loginAlice(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Logout(ctx, u.ID))
	require.Nil(t, f.users.stored(t, "alice").RefreshToken)

	_, err := f.svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: pair.RefreshToken})
	require.True(t, authErrors.IsUnauthorized(err))

	// unconditional: a second logout is fine
	require.NoError(t, f.svc.Logout(ctx, u.ID))
	require.True(t, authErrors.IsNotFound(f.svc.Logout(ctx, uuid.New())))
}

/* ───────────────────────────── password ───────────────────────────── */

func TestAccountService_ChangePassword(t *testing.T) {
	f := newFixture(t)
	u := f.registerAlice(t)
	_, pair := f.loginAlice(t)
	ctx := context.Background()

	require.NoError(t, f.svc.ChangePassword(ctx, u.ID, dto.ChangePasswordDTO{OldPassword: "P@ss1", NewPassword: "N3w!pass"}))

	_, _, err := f.svc.Login(ctx, dto.LoginDTO{Username: "alice", Password: "N3w!pass"})
	require.NoError(t, err)

	_, _, err = f.svc.Login(ctx, dto.LoginDTO{Username: "alice", Password: "P@ss1"})
	require.True(t, authErrors.IsInvalidCredentials(err))

	// sessions survive a password change by default; the later login rotated this one out anyway
	_, err = f.svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: pair.RefreshToken})
	require.ErrorIs(t, err, authErrors.ErrTokenMismatch)
}

func TestAccountService_ChangePasswordKeepsSessionByDefault(t *testing.T) {
	f := newFixture(t)
	u := f.registerAlice(t)
	_, pair := f.loginAlice(t)

	require.NoError(t, f.svc.ChangePassword(context.Background(), u.ID, dto.ChangePasswordDTO{OldPassword: "P@ss1", NewPassword: "x"}))

	_, err := f.svc.Refresh(context.Background(), dto.RefreshDTO{RefreshToken: pair.RefreshToken})
	require.NoError(t, err)
}

func TestAccountService_ChangePasswordRevokesWhenConfigured(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config, _ *appsvc.Deps) {
		cfg.RevokeSessionsOnPasswordChange = true
	})
	u := f.registerAlice(t)
	_, pair := f.loginAlice(t)

	require.NoError(t, f.svc.ChangePassword(context.Background(), u.ID, dto.ChangePasswordDTO{OldPassword: "P@ss1", NewPassword: "x"}))

	_, err := f.svc.Refresh(context.Background(), dto.RefreshDTO{RefreshToken: pair.RefreshToken})
	require.True(t, authErrors.IsUnauthorized(err))
}

func TestAccountService_ChangePasswordRevokeFailureKeepsOldPassword(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config, _ *appsvc.Deps) {
		cfg.RevokeSessionsOnPasswordChange = true
	})
	u := f.registerAlice(t)
	_, pair := f.loginAlice(t)
	before := f.users.stored(t, "alice").PasswordHash

	f.users.setTokenErr = errors.New("connection reset")
	err := f.svc.ChangePassword(context.Background(), u.ID, dto.ChangePasswordDTO{OldPassword: "P@ss1", NewPassword: "x"})
	require.True(t, authErrors.IsInternal(err))
	require.Equal(t, before, f.users.stored(t, "alice").PasswordHash)

	// отказ целиком: старая сессия и старый пароль живы
	f.users.setTokenErr = nil
	_, err = f.svc.Refresh(context.Background(), dto.RefreshDTO{RefreshToken: pair.RefreshToken})
	require.NoError(t, err)
	f.loginAlice(t)
}

func TestAccountService_ChangePasswordErrors(t *testing.T) {
	f := newFixture(t)
	u := f.registerAlice(t)
	ctx := context.Background()

	err := f.svc.ChangePassword(ctx, u.ID, dto.ChangePasswordDTO{OldPassword: "P@ss1"})
	require.True(t, authErrors.IsInvalidArgument(err))

	err = f.svc.ChangePassword(ctx, u.ID, dto.ChangePasswordDTO{OldPassword: "nope", NewPassword: "x"})
	require.True(t, authErrors.IsInvalidCredentials(err))

	err = f.svc.ChangePassword(ctx, uuid.New(), dto.ChangePasswordDTO{OldPassword: "P@ss1", NewPassword: "x"})
	require.True(t, authErrors.IsUnauthorized(err))
}

/* ───────────────────────── authenticate / profile ───────────────────────── */

func TestAccountService_AuthenticateAndProfile(t *testing.T) {
	f := newFixture(t)
	f.registerAlice(t)
	u, pair := f.loginAlice(t)
	ctx := context.Background()

	got, err := f.svc.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	// second call is served from the cache
	_, err = f.svc.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, 1, f.cache.hits)

	profile, err := f.svc.Profile(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", profile.Email)

	_, err = f.svc.Profile(ctx, uuid.New())
	require.True(t, authErrors.IsNotFound(err))
}

func TestAccountService_AuthenticateExpiredVsTampered(t *testing.T) {
	f := newFixture(t)
	u := f.registerAlice(t)
	ctx := context.Background()

	expired := signedAccess(t, u.ID.String(), time.Now().Add(-time.Hour), accessSecret)
	_, err := f.svc.Authenticate(ctx, expired)
	require.ErrorIs(t, err, authErrors.ErrTokenExpired)
	require.True(t, authErrors.IsUnauthorized(err))

	forged := signedAccess(t, u.ID.String(), time.Now().Add(time.Hour), "guessed-secret")
	_, err = f.svc.Authenticate(ctx, forged)
	require.ErrorIs(t, err, authErrors.ErrInvalidToken)
	require.True(t, authErrors.IsUnauthorized(err))

	_, err = f.svc.Authenticate(ctx, "garbled")
	require.ErrorIs(t, err, authErrors.ErrInvalidToken)

	_, err = f.svc.Authenticate(ctx, "")
	require.ErrorIs(t, err, authErrors.ErrTokenMissing)
}

func TestAccountService_AuthenticateUserGoneAndStoreDown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ghost := signedAccess(t, uuid.NewString(), time.Now().Add(time.Hour), accessSecret)
	_, err := f.svc.Authenticate(ctx, ghost)
	require.ErrorIs(t, err, authErrors.ErrUserGone)

	f.users.err = errors.New("connection refused")
	_, err = f.svc.Authenticate(ctx, ghost)
	require.True(t, authErrors.IsInternal(err))
}
