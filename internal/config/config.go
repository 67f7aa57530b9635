package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

type Config struct {
	Port      int    `toml:"port"`
	DBDriver  string `toml:"db_driver"`
	DBDSN     string `toml:"db_dsn"`
	JWTSecret string `toml:"jwt_secret"`

	GeminiAPIKey  string `toml:"gemini_api_key"`
	GeminiModel   string `toml:"gemini_model"`
	GeminiBaseURL string `toml:"gemini_base_url"`

	// ReplyProxyURL makes the chat service go through a proxy deployment
	// instead of calling Gemini in-process.
	ReplyProxyURL    string        `toml:"reply_proxy_url"`
	ReplyMinInterval time.Duration `toml:"reply_min_interval"`
	ReplyScope       string        `toml:"reply_scope"`
	ReplyCacheTTL    time.Duration `toml:"reply_cache_ttl"`

	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`

	WSInsecureSkipVerify bool          `toml:"ws_insecure_skip_verify"`
	CORSOrigins          []string      `toml:"cors_origins"`
	ShutdownTimeout      time.Duration `toml:"shutdown_timeout"`
}

func Default() Config {
	return Config{
		Port:             8084,
		DBDriver:         "sqlite",
		DBDSN:            "chatapp.db",
		GeminiModel:      "gemini-2.5-pro",
		GeminiBaseURL:    "https://generativelanguage.googleapis.com",
		ReplyMinInterval: 2 * time.Second,
		ReplyScope:       "global",
		CORSOrigins:      []string{"*"},
		ShutdownTimeout:  15 * time.Second,
	}
}

// Load builds the config from defaults, the optional CONFIG_FILE (TOML) and
// the environment, in that order of precedence (environment wins).
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "decode config file %s", path)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("APP_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "APP_PORT")
		}
		cfg.Port = p
	}

	setString(&cfg.DBDriver, "DB_DRIVER")
	setString(&cfg.DBDSN, "DB_DSN")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&cfg.GeminiModel, "GEMINI_MODEL")
	setString(&cfg.GeminiBaseURL, "GEMINI_BASE_URL")
	setString(&cfg.ReplyProxyURL, "REPLY_PROXY_URL")
	setString(&cfg.ReplyScope, "REPLY_SCOPE")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")

	for env, dst := range map[string]*time.Duration{
		"REPLY_MIN_INTERVAL": &cfg.ReplyMinInterval,
		"REPLY_CACHE_TTL":    &cfg.ReplyCacheTTL,
		"SHUTDOWN_TIMEOUT":   &cfg.ShutdownTimeout,
	} {
		if v := os.Getenv(env); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return errors.Wrap(err, env)
			}
			*dst = d
		}
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "REDIS_DB")
		}
		cfg.RedisDB = n
	}

	if os.Getenv("WS_INSECURE_SKIP_VERIFY") == "true" {
		cfg.WSInsecureSkipVerify = true
	}

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.CORSOrigins = origins
	}
	return nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.DBDSN == "" {
		return errors.New("DB_DSN is required")
	}
	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return errors.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.ReplyScope {
	case "global", "user", "room":
	default:
		return errors.Errorf("unsupported REPLY_SCOPE %q", c.ReplyScope)
	}
	if c.ReplyMinInterval < 0 {
		return errors.New("REPLY_MIN_INTERVAL must not be negative")
	}
	return nil
}
