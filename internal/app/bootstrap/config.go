// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/realtime"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/identity"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for the task hub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, jwt_secret, etc.
//   - Environment variables: TASKHUB_MONGO_URI, TASKHUB_JWT_SECRET, etc.
//   - Command-line flags: --mongo_uri, --jwt_secret, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "taskhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Identity provider
	{Name: "identity_provider", Default: "local", Desc: "Identity provider: 'local' or 'supabase'"},
	{Name: "supabase_url", Default: "", Desc: "Supabase project URL"},
	{Name: "supabase_anon_key", Default: "", Desc: "Supabase anon key"},
	{Name: "jwt_secret", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "HS256 secret for locally issued tokens (32+ bytes)"},
	{Name: "jwt_ttl", Default: "24h", Desc: "Lifetime of locally issued tokens"},

	// Pagination cursors
	{Name: "cursor_hash_key", Default: "dev-only-cursor-hash-key-0123456789ABCDEF", Desc: "Cursor signing key (32+ bytes)"},
	{Name: "cursor_block_key", Default: "", Desc: "Cursor encryption key (16, 24 or 32 bytes; blank signs only)"},

	// Realtime
	{Name: "ws_allowed_origins", Default: "", Desc: "Comma-separated browser origins allowed to open /ws (blank allows any)"},
	{Name: "ws_send_buffer", Default: realtime.DefaultSendBuffer, Desc: "Frames queued per WebSocket connection"},
	{Name: "ws_overflow_policy", Default: string(realtime.DropOldest), Desc: "Full send queue policy: 'drop_oldest' or 'disconnect'"},

	// HTTP surface
	{Name: "cors_allowed_origins", Default: "*", Desc: "Comma-separated CORS origins"},
	{Name: "rate_limit_auth", Default: 20, Desc: "Signup/login requests per minute per client IP"},
	{Name: "login_attempts", Default: 5, Desc: "Failed logins per email per minute before throttling"},

	// Housekeeping
	{Name: "janitor_interval", Default: "5m", Desc: "Interval for sweeping idle rate-limit buckets"},

	// Admin bootstrap
	{Name: "admin_email", Default: "", Desc: "Email of an existing account to promote to ADMIN on startup"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, TASKHUB_* for app) and flags,
// merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "TASKHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		IdentityProvider: strings.ToLower(appValues.String("identity_provider")),
		SupabaseURL:      appValues.String("supabase_url"),
		SupabaseAnonKey:  appValues.String("supabase_anon_key"),
		JWTSecret:        appValues.String("jwt_secret"),
		JWTTTL:           appValues.Duration("jwt_ttl", 24*time.Hour),

		CursorHashKey:  appValues.String("cursor_hash_key"),
		CursorBlockKey: appValues.String("cursor_block_key"),

		WSAllowedOrigins: splitList(appValues.String("ws_allowed_origins")),
		WSSendBuffer:     appValues.Int("ws_send_buffer"),
		WSOverflowPolicy: appValues.String("ws_overflow_policy"),

		CORSAllowedOrigins: splitList(appValues.String("cors_allowed_origins")),
		RateLimitAuth:      appValues.Int("rate_limit_auth"),
		LoginAttempts:      appValues.Int("login_attempts"),

		JanitorInterval: appValues.Duration("janitor_interval", 5*time.Minute),

		AdminEmail: appValues.String("admin_email"),
	}

	return coreCfg, appCfg, nil
}

// splitList turns "a, b,,c" into [a b c].
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// Everything that would otherwise fail on first use (a bad Mongo URI, a
// short secret, an unknown provider) is caught here.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	return validateApp(appCfg)
}

func validateApp(appCfg AppConfig) error {
	switch appCfg.IdentityProvider {
	case "local":
		if len(appCfg.JWTSecret) < identity.MinSecretLength {
			return fmt.Errorf("jwt_secret must be at least %d bytes", identity.MinSecretLength)
		}
		if appCfg.JWTTTL <= 0 {
			return fmt.Errorf("jwt_ttl must be positive")
		}
	case "supabase":
		if appCfg.SupabaseURL == "" || appCfg.SupabaseAnonKey == "" {
			return fmt.Errorf("identity_provider supabase requires supabase_url and supabase_anon_key")
		}
	default:
		return fmt.Errorf("unknown identity_provider %q (want local or supabase)", appCfg.IdentityProvider)
	}

	if len(appCfg.CursorHashKey) < 32 {
		return fmt.Errorf("cursor_hash_key must be at least 32 bytes")
	}
	switch len(appCfg.CursorBlockKey) {
	case 0, 16, 24, 32:
	default:
		return fmt.Errorf("cursor_block_key must be 16, 24 or 32 bytes")
	}

	if _, err := realtime.ParseOverflowPolicy(appCfg.WSOverflowPolicy); err != nil {
		return err
	}
	if appCfg.WSSendBuffer < 1 {
		return fmt.Errorf("ws_send_buffer must be at least 1")
	}
	if appCfg.RateLimitAuth < 1 || appCfg.LoginAttempts < 1 {
		return fmt.Errorf("rate_limit_auth and login_attempts must be at least 1")
	}
	return nil
}
