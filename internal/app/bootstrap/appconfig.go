// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers
// the framework-level settings (ports, TLS, logging); everything here is
// specific to the task hub.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Identity provider
	IdentityProvider string        // "local" or "supabase"
	SupabaseURL      string        // project URL, e.g. https://abc.supabase.co
	SupabaseAnonKey  string        // sent as the apikey header
	JWTSecret        string        // HS256 secret for the local provider
	JWTTTL           time.Duration // lifetime of locally issued tokens

	// Cursor token keys. The hash key signs, the block key encrypts.
	CursorHashKey  string
	CursorBlockKey string

	// Realtime
	WSAllowedOrigins []string // empty or "*" allows any browser origin
	WSSendBuffer     int      // frames queued per connection
	WSOverflowPolicy string   // "drop_oldest" or "disconnect"

	// HTTP surface
	CORSAllowedOrigins []string
	RateLimitAuth      int // signup/login requests per minute per client IP
	LoginAttempts      int // failed logins per email before throttling

	// Housekeeping
	JanitorInterval time.Duration // how often idle limiter buckets are swept

	// AdminEmail, when set, is promoted to ADMIN on startup.
	AdminEmail string
}
