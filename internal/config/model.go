// internal/config/model.go
//
// Typed configuration model for vrclink.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                           – dotenv values,
//   • `conf/global.yaml`                        – primary static file,
//   • `VRCLINK_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through the Vault client *before* unmarshalling, so the model never
// stores Vault URIs, only plain strings.
//
// Validation happens immediately after unmarshal; the app fails fast if
// required fields are missing.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • Optional sections (database, redis, amqp, geoip) are switched off by
//     leaving their address empty.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.

package config

import "time"

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr      string        `koanf:"listen_addr"      validate:"required,hostname_port"`
	ForceHTTPS      bool          `koanf:"force_https"`
	RequestTimeout  time.Duration `koanf:"request_timeout"  validate:"gte=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`
}

// Store points at the remote profile store.
type Store struct {
	BaseURL string        `koanf:"base_url" validate:"required,url"`
	Token   string        `koanf:"token"    validate:"required"`
	Timeout time.Duration `koanf:"timeout"  validate:"gte=0"`
}

// VRChat configures the display-name lookup client.
type VRChat struct {
	BaseURL           string        `koanf:"base_url"            validate:"omitempty,url"`
	APIKey            string        `koanf:"api_key"`
	AuthCookie        string        `koanf:"auth_cookie"`
	UserAgent         string        `koanf:"user_agent"`
	Timeout           time.Duration `koanf:"timeout"             validate:"gte=0"`
	RequestsPerSecond float64       `koanf:"requests_per_second" validate:"gte=0"`
	Burst             int           `koanf:"burst"               validate:"gte=0"`
}

// Cache tunes the profile cache.
type Cache struct {
	TTL           time.Duration `koanf:"ttl"            validate:"gte=0"`
	MaxEntries    int           `koanf:"max_entries"    validate:"gte=0"`
	EvictInterval time.Duration `koanf:"evict_interval"`
}

// Verification selects state-machine behaviour.
//
// UnverifyBans keeps the historical coupling where Unverify also bans.
type Verification struct {
	UnverifyBans bool `koanf:"unverify_bans"`
}

// Database holds the MySQL DSN used by the audit trail and staff ACL.  An
// empty DSN disables both.
type Database struct {
	DSN     string `koanf:"dsn"`
	MaxOpen int    `koanf:"max_open" validate:"gte=0"`
	MaxIdle int    `koanf:"max_idle" validate:"gte=0"`
}

// Redis enables the cross-process transition lock when Addr is set.
type Redis struct {
	Addr     string        `koanf:"addr"     validate:"omitempty,hostname_port"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"       validate:"gte=0"`
	LockTTL  time.Duration `koanf:"lock_ttl" validate:"gte=0"`
}

// AMQP enables transition events when URL is set.
type AMQP struct {
	URL      string `koanf:"url"      validate:"omitempty,url"`
	Exchange string `koanf:"exchange"`
}

// Auth configures staff JWT verification.
type Auth struct {
	JWTSecret string `koanf:"jwt_secret" validate:"required,min=16"`
	Issuer    string `koanf:"issuer"`
}

// GeoIP points at an optional GeoLite2-City database.
type GeoIP struct {
	DBPath string `koanf:"db_path"`
}

// Log configures the zap logger.
type Log struct {
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
	Dir   string `koanf:"dir"`
}

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root string // VRCLINK_ROOT or discovered parent
}

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP         HTTP         `koanf:"http"`
	Store        Store        `koanf:"store"`
	VRChat       VRChat       `koanf:"vrchat"`
	Cache        Cache        `koanf:"cache"`
	Verification Verification `koanf:"verification"`
	Database     Database     `koanf:"database"`
	Redis        Redis        `koanf:"redis"`
	AMQP         AMQP         `koanf:"amqp"`
	Auth         Auth         `koanf:"auth"`
	GeoIP        GeoIP        `koanf:"geoip"`
	Log          Log          `koanf:"log"`
	Paths        Paths        `koanf:"-"`
}
