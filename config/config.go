package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/slighter12/go-lib/database/postgres"
)

const (
	defaultPath               = "."
	defaultMaxRequestBodySize = "100KB"
	defaultDatabaseDriver     = "sqlite"
	defaultSQLitePath         = "stockdash.db"
	defaultSessionStore       = "memory"
	defaultSessionTTL         = 24 * time.Hour
	defaultSessionCookie      = "stockdash_session"
	defaultResetTokenTTL      = time.Hour
	defaultResetLinkBaseURL   = "http://localhost:8080/auth/password/reset"
	defaultNotifierProvider   = "log"
	defaultRateLimitRequests  = 20
	defaultRateLimitWindow    = time.Minute
	defaultSMTPTimeout        = 15 * time.Second
)

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port               int    `json:"port" yaml:"port"`
		MaxRequestBodySize string `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`
		Timeouts           struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
		// RateLimit caps credential endpoints per client IP. A negative Requests disables it.
		RateLimit struct {
			Requests int           `json:"requests" yaml:"requests"`
			Window   time.Duration `json:"window" yaml:"window"`
		} `json:"rateLimit" yaml:"rateLimit"`
	} `json:"http" yaml:"http"`

	// Database selects the credential store backend
	Database *DatabaseConfig `json:"database" yaml:"database"`

	Postgres *postgres.DBConn `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	// Session configuration for the login session store
	Session *SessionConfig `json:"session" yaml:"session"`

	Redis *RedisConfig `json:"redis" yaml:"redis"`

	Auth *AuthConfig `json:"auth" yaml:"auth"`

	// Admin is the statically configured administrator identity
	Admin *AdminConfig `json:"admin" yaml:"admin"`

	// Notifier configuration for outgoing email
	Notifier *NotifierConfig `json:"notifier" yaml:"notifier"`
}

// DatabaseConfig defines which credential store backend is used
type DatabaseConfig struct {
	// Driver is one of "postgres", "mysql", "sqlite" or "memory"
	Driver string `json:"driver" yaml:"driver"`

	// Migrate applies the embedded schema migrations on start
	Migrate bool `json:"migrate" yaml:"migrate"`

	MySQL struct {
		DSN string `json:"dsn" yaml:"dsn"`
	} `json:"mysql" yaml:"mysql"`

	SQLite struct {
		Path string `json:"path" yaml:"path"`
	} `json:"sqlite" yaml:"sqlite"`
}

// SessionConfig defines the session store and cookie
type SessionConfig struct {
	// Store is "memory" or "redis"
	Store        string        `json:"store" yaml:"store"`
	TTL          time.Duration `json:"ttl" yaml:"ttl"`
	CookieName   string        `json:"cookieName" yaml:"cookieName"`
	CookieSecure bool          `json:"cookieSecure" yaml:"cookieSecure"`
}

type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// AuthConfig defines authentication-related configuration
type AuthConfig struct {
	BcryptCost         int           `json:"bcryptCost" yaml:"bcryptCost"`
	AcceptLegacySHA256 bool          `json:"acceptLegacySHA256" yaml:"acceptLegacySHA256"`
	ResetTokenTTL      time.Duration `json:"resetTokenTTL" yaml:"resetTokenTTL"`
	ResetLinkBaseURL   string        `json:"resetLinkBaseURL" yaml:"resetLinkBaseURL"`
	DirectResetEnabled bool          `json:"directResetEnabled" yaml:"directResetEnabled"`
}

// AdminConfig holds the administrator credentials. PasswordHash (bcrypt) wins over Password.
type AdminConfig struct {
	Username     string `json:"username" yaml:"username"`
	Email        string `json:"email" yaml:"email"`
	Password     string `json:"password" yaml:"password"`
	PasswordHash string `json:"passwordHash" yaml:"passwordHash"`
}

// NotifierConfig defines the email notifier
type NotifierConfig struct {
	// Provider type: "log", "smtp", "pubsub" or "local"
	Provider string `json:"provider" yaml:"provider"`

	SMTP SMTPConfig `json:"smtp" yaml:"smtp"`

	// Google Cloud project ID (for pubsub provider)
	ProjectID string `json:"projectId" yaml:"projectId"`

	// Pub/Sub topic ID (for pubsub provider)
	TopicID string `json:"topicId" yaml:"topicId"`

	// Mail worker push endpoint for development (for local provider)
	LocalEndpoint string `json:"localEndpoint" yaml:"localEndpoint"`
}

// SMTPConfig mirrors the SMTP settings of the mail server
type SMTPConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	From     string `json:"from" yaml:"from"`
	// TLS is "mandatory", "opportunistic", "ssl" or "none"
	TLS     string        `json:"tls" yaml:"tls"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	// Build list of paths to search for config file
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			abs := filepath.Join(pwd, path)
			searchPaths = append(searchPaths, abs)
		}
	}

	// Try to find and load the config file
	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	// Load YAML config file
	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Load environment variables
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			// Convert ENV_VAR_NAME to path and align each segment with existing YAML keys.
			// Example: POSTGRES_SSLMODE -> postgres.sslMode (not postgres.sslmode)
			key := canonicalizeEnvKey(k, existingConfigMap)

			return key, v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	// Unmarshal into the config struct (case-insensitive to match env vars)
	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				// Case-insensitive matching for env var overrides
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	// Build replicas from environment variables (POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, etc.)
	if cfg.Postgres != nil {
		cfg.Postgres.Replicas = buildReplicasFromEnv()
	}

	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if strings.TrimSpace(cfg.HTTP.MaxRequestBodySize) == "" {
		cfg.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}
	if cfg.HTTP.RateLimit.Requests == 0 {
		cfg.HTTP.RateLimit.Requests = defaultRateLimitRequests
	}
	if cfg.HTTP.RateLimit.Window <= 0 {
		cfg.HTTP.RateLimit.Window = defaultRateLimitWindow
	}

	if cfg.Database == nil {
		cfg.Database = &DatabaseConfig{}
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = defaultDatabaseDriver
	}
	if cfg.Database.SQLite.Path == "" {
		cfg.Database.SQLite.Path = defaultSQLitePath
	}

	if cfg.Session == nil {
		cfg.Session = &SessionConfig{}
	}
	if cfg.Session.Store == "" {
		cfg.Session.Store = defaultSessionStore
	}
	if cfg.Session.TTL <= 0 {
		cfg.Session.TTL = defaultSessionTTL
	}
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = defaultSessionCookie
	}

	if cfg.Auth == nil {
		cfg.Auth = &AuthConfig{}
	}
	if cfg.Auth.ResetTokenTTL <= 0 {
		cfg.Auth.ResetTokenTTL = defaultResetTokenTTL
	}
	if cfg.Auth.ResetLinkBaseURL == "" {
		cfg.Auth.ResetLinkBaseURL = defaultResetLinkBaseURL
	}

	if cfg.Admin == nil {
		cfg.Admin = &AdminConfig{}
	}

	if cfg.Notifier == nil {
		cfg.Notifier = &NotifierConfig{}
	}
	if cfg.Notifier.Provider == "" {
		cfg.Notifier.Provider = defaultNotifierProvider
	}
	if cfg.Notifier.SMTP.Timeout <= 0 {
		cfg.Notifier.SMTP.Timeout = defaultSMTPTimeout
	}
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}

// buildReplicasFromEnv builds the replicas slice from environment variables.
// Environment variable format: POSTGRES_REPLICAS_{index}_{field}
// Example: POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, POSTGRES_REPLICAS_0_USERNAME, POSTGRES_REPLICAS_0_PASSWORD
func buildReplicasFromEnv() []postgres.ConnectionConfig {
	var replicas []postgres.ConnectionConfig

	for i := 0; ; i++ {
		prefix := "POSTGRES_REPLICAS_" + strconv.Itoa(i) + "_"

		host := os.Getenv(prefix + "HOST")
		port := os.Getenv(prefix + "PORT")
		if host == "" || port == "" {
			// No more replicas or incomplete configuration.
			break
		}

		replica := postgres.ConnectionConfig{
			Host:     host,
			Port:     port,
			UserName: os.Getenv(prefix + "USERNAME"),
			Password: os.Getenv(prefix + "PASSWORD"),
		}

		replicas = append(replicas, replica)
	}

	return replicas
}
