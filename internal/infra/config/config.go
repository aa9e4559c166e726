package config

import (
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string
	LogLevel    string

	DatabaseURL string

	RedisAddress    string
	RedisPassword   string
	RedisDB         int
	ProfileCacheTTL time.Duration

	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	Issuer             string
	Audience           string
	PasswordPepper     string

	RevokeSessionsOnPasswordChange bool

	HTTPAddress   string
	GRPCAddress   string
	HTTPSCertFile string
	HTTPSKeyFile  string

	CookieDomain     string
	CookieSecure     bool
	AllowedOrigins   []string
	AllowCredentials bool
	RateLimitRPS     int
	RateLimitBurst   int
	// TrustedProxies: чьим X-Forwarded-For верить. Пусто значит никому.
	TrustedProxies []string

	UploadDir     string
	MaxUploadSize int64

	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	S3PublicBaseURL string
}

var required = []string{
	"DATABASE_URL",
	"ACCESS_TOKEN_SECRET",
	"REFRESH_TOKEN_SECRET",
	"REDIS_ADDRESS",
	"S3_BUCKET",
}

// Load читает окружение и необязательный ./config.json.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile как Load, но с явным путём к файлу конфигурации. Переменные
// окружения имеют приоритет над файлом.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath(".")
	}
	v.AutomaticEnv()

	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "debug")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("PROFILE_CACHE_TTL", "5m")
	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("REFRESH_TOKEN_TTL", "240h")
	v.SetDefault("JWT_ISSUER", "account-service")
	v.SetDefault("JWT_AUDIENCE", "account-clients")
	v.SetDefault("HTTP_ADDRESS", ":8080")
	v.SetDefault("GRPC_ADDRESS", ":50051")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("UPLOAD_DIR", "./public/temp")
	v.SetDefault("MAX_UPLOAD_SIZE", 10<<20)
	v.SetDefault("S3_REGION", "us-east-1")

	for _, key := range required {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	for _, key := range required {
		if v.GetString(key) == "" {
			return nil, fmt.Errorf("%s is not set", key)
		}
	}

	cfg := &Config{
		Environment:                    v.GetString("ENVIRONMENT"),
		LogLevel:                       v.GetString("LOG_LEVEL"),
		DatabaseURL:                    v.GetString("DATABASE_URL"),
		RedisAddress:                   v.GetString("REDIS_ADDRESS"),
		RedisPassword:                  v.GetString("REDIS_PASSWORD"),
		RedisDB:                        v.GetInt("REDIS_DB"),
		ProfileCacheTTL:                v.GetDuration("PROFILE_CACHE_TTL"),
		AccessTokenSecret:              v.GetString("ACCESS_TOKEN_SECRET"),
		RefreshTokenSecret:             v.GetString("REFRESH_TOKEN_SECRET"),
		AccessTokenTTL:                 v.GetDuration("ACCESS_TOKEN_TTL"),
		RefreshTokenTTL:                v.GetDuration("REFRESH_TOKEN_TTL"),
		Issuer:                         v.GetString("JWT_ISSUER"),
		Audience:                       v.GetString("JWT_AUDIENCE"),
		PasswordPepper:                 v.GetString("PASSWORD_PEPPER"),
		RevokeSessionsOnPasswordChange: v.GetBool("REVOKE_SESSIONS_ON_PASSWORD_CHANGE"),
		HTTPAddress:                    v.GetString("HTTP_ADDRESS"),
		GRPCAddress:                    v.GetString("GRPC_ADDRESS"),
		HTTPSCertFile:                  v.GetString("HTTPS_CERT_FILE"),
		HTTPSKeyFile:                   v.GetString("HTTPS_KEY_FILE"),
		CookieDomain:                   v.GetString("COOKIE_DOMAIN"),
		AllowCredentials:               v.GetBool("ALLOW_CREDENTIALS"),
		RateLimitRPS:                   v.GetInt("RATE_LIMIT_RPS"),
		RateLimitBurst:                 v.GetInt("RATE_LIMIT_BURST"),
		UploadDir:                      v.GetString("UPLOAD_DIR"),
		MaxUploadSize:                  v.GetInt64("MAX_UPLOAD_SIZE"),
		S3Bucket:                       v.GetString("S3_BUCKET"),
		S3Region:                       v.GetString("S3_REGION"),
		S3Endpoint:                     v.GetString("S3_ENDPOINT"),
		S3AccessKey:                    v.GetString("S3_ACCESS_KEY"),
		S3SecretKey:                    v.GetString("S3_SECRET_KEY"),
		S3PublicBaseURL:                v.GetString("S3_PUBLIC_BASE_URL"),
	}

	// secure cookies only in production unless forced either way
	cfg.CookieSecure = cfg.Environment == "production"
	if v.IsSet("COOKIE_SECURE") {
		cfg.CookieSecure = v.GetBool("COOKIE_SECURE")
	}

	origins, err := parseOrigins(v.GetString("ALLOWED_ORIGINS"))
	if err != nil {
		return nil, fmt.Errorf("ALLOWED_ORIGINS: %w", err)
	}
	cfg.AllowedOrigins = origins

	proxies, err := parseProxies(v.GetString("TRUSTED_PROXIES"))
	if err != nil {
		return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	cfg.TrustedProxies = proxies

	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return nil, fmt.Errorf("token TTLs must be positive")
	}
	if cfg.AccessTokenTTL >= cfg.RefreshTokenTTL {
		return nil, fmt.Errorf("ACCESS_TOKEN_TTL must be shorter than REFRESH_TOKEN_TTL")
	}
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return nil, fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}

	return cfg, nil
}

func parseOrigins(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{"*"}, nil
	}
	return parseList(raw)
}

// parseProxies принимает IP или CIDR; пустое значение даёт nil.
func parseProxies(raw string) ([]string, error) {
	out, err := parseList(raw)
	if err != nil {
		return nil, err
	}
	for _, p := range out {
		if _, _, err := net.ParseCIDR(p); err == nil {
			continue
		}
		if net.ParseIP(p) == nil {
			return nil, fmt.Errorf("%q is neither IP nor CIDR", p)
		}
	}
	return out, nil
}

// parseList accepts either a JSON array or a comma separated list.
func parseList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "[") {
		var out []string
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out, nil
}
