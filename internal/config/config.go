// Package config loads the server configuration from defaults, a .env file,
// the environment, an optional YAML file, and command-line flags, in that
// order of precedence (later wins).
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/erazemk/sowa/internal/backend"
)

// DefaultBackendURL is used when neither an API base URL nor a proxy target
// is configured.
const DefaultBackendURL = "http://localhost:8000"

// Config is the server configuration.
type Config struct {
	Addr          string        `yaml:"addr"`
	APIBaseURL    string        `yaml:"api_base_url"`
	ProxyTarget   string        `yaml:"proxy_target"`
	AdminPrefix   string        `yaml:"admin_prefix"`
	DBPath        string        `yaml:"db"`
	SessionSecret string        `yaml:"session_secret"`
	APITimeout    time.Duration `yaml:"api_timeout"`
	CacheStale    time.Duration `yaml:"cache_stale"`
	SecureCookie  bool          `yaml:"secure_cookie"`
	RateLimit     int           `yaml:"rate_limit"`
	TrustProxy    bool          `yaml:"trust_proxy"`
	LogPath       string        `yaml:"log"`
	LogLevel      string        `yaml:"log_level"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Addr:        ":3000",
		AdminPrefix: backend.DefaultAdminPrefix,
		DBPath:      "sowa.sqlite3",
		APITimeout:  15 * time.Second,
		CacheStale:  30 * time.Second,
		RateLimit:   10,
		LogLevel:    "info",
	}
}

// BackendURL is the URL this server calls the backend at: the API base URL
// when set, else the dev proxy target, else DefaultBackendURL.
func (c Config) BackendURL() string {
	switch {
	case c.APIBaseURL != "":
		return c.APIBaseURL
	case c.ProxyTarget != "":
		return c.ProxyTarget
	default:
		return DefaultBackendURL
	}
}

// AssetOrigin is the origin relative image references are resolved against
// for the browser. It is empty when the site and the API share an origin.
func (c Config) AssetOrigin() string {
	if c.APIBaseURL == "" {
		return ""
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// Validate checks the loaded configuration.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("listen address is empty")
	}
	for name, raw := range map[string]string{"api base url": c.APIBaseURL, "proxy target": c.ProxyTarget} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid %s %q: must be an absolute http(s) url", name, raw)
		}
	}
	if c.APITimeout <= 0 {
		return errors.New("api timeout must be positive")
	}
	if c.CacheStale <= 0 {
		return errors.New("cache stale time must be positive")
	}
	if c.RateLimit < 0 {
		return errors.New("rate limit must not be negative")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel (debug, info, warn, error).
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// LookupFunc reads an environment variable.
type LookupFunc func(key string) (string, bool)

func firstEnv(lookup LookupFunc, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := lookup(k); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// ApplyEnv overrides c with the environment variables that are set.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if v, ok := firstEnv(lookup, "SOWA_ADDR"); ok {
		c.Addr = v
	}
	if v, ok := firstEnv(lookup, "SOWA_API_BASE_URL", "VITE_API_BASE_URL"); ok {
		c.APIBaseURL = v
	}
	if v, ok := firstEnv(lookup, "SOWA_API_PROXY_TARGET", "VITE_API_PROXY_TARGET"); ok {
		c.ProxyTarget = v
	}
	if v, ok := firstEnv(lookup, "SOWA_ADMIN_PREFIX"); ok {
		c.AdminPrefix = v
	}
	if v, ok := firstEnv(lookup, "SOWA_DB"); ok {
		c.DBPath = v
	}
	if v, ok := firstEnv(lookup, "SOWA_LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := firstEnv(lookup, "SOWA_SESSION_SECRET"); ok {
		c.SessionSecret = v
	}
	if v, ok := firstEnv(lookup, "SOWA_SECURE_COOKIE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SOWA_SECURE_COOKIE: %w", err)
		}
		c.SecureCookie = b
	}
	if v, ok := firstEnv(lookup, "SOWA_TRUST_PROXY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SOWA_TRUST_PROXY: %w", err)
		}
		c.TrustProxy = b
	}
	if v, ok := firstEnv(lookup, "SOWA_RATE_LIMIT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SOWA_RATE_LIMIT: %w", err)
		}
		c.RateLimit = n
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SOWA_API_TIMEOUT", &c.APITimeout},
		{"SOWA_CACHE_STALE", &c.CacheStale},
	}
	for _, d := range durations {
		v, ok := firstEnv(lookup, d.key)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

// ApplyYAML overrides c with the fields present in the YAML file at path.
func (c *Config) ApplyYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

const usage = `Usage: sowa [flags]

Flags:
  -a, -addr <host:port>   listen address (default: :3000)
      -api <url>          backend API base URL (default: same origin)
      -proxy <url>        dev proxy target for /api and /media (default: off)
  -d, -db <path>          SQLite session database path (default: sowa.sqlite3)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -c, -config <path>      YAML config file (default: none)
  -e, -env <path>         .env file (default: .env when present)
  -h, -help               show this help and exit
`

// Load builds the configuration from args and the process environment.
// It returns flag.ErrHelp when help was requested.
func Load(args []string, out io.Writer) (Config, error) {
	return load(args, out, os.LookupEnv)
}

func load(args []string, out io.Writer, lookup LookupFunc) (Config, error) {
	fs := flag.NewFlagSet("sowa", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() { fmt.Fprint(out, usage) }

	var f struct {
		addr, api, proxy, db, log, config, env string
	}
	fs.StringVar(&f.addr, "addr", "", "")
	fs.StringVar(&f.addr, "a", "", "")
	fs.StringVar(&f.api, "api", "", "")
	fs.StringVar(&f.proxy, "proxy", "", "")
	fs.StringVar(&f.db, "db", "", "")
	fs.StringVar(&f.db, "d", "", "")
	fs.StringVar(&f.log, "log", "", "")
	fs.StringVar(&f.log, "l", "", "")
	fs.StringVar(&f.config, "config", "", "")
	fs.StringVar(&f.config, "c", "", "")
	fs.StringVar(&f.env, "env", ".env", "")
	fs.StringVar(&f.env, "e", ".env", "")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return Config{}, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	cfg := Default()

	if err := loadDotEnv(f.env); err != nil {
		return Config{}, err
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return Config{}, err
	}

	if f.config != "" {
		if err := cfg.ApplyYAML(f.config); err != nil {
			return Config{}, err
		}
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "addr", "a":
			cfg.Addr = f.addr
		case "api":
			cfg.APIBaseURL = f.api
		case "proxy":
			cfg.ProxyTarget = f.proxy
		case "db", "d":
			cfg.DBPath = f.db
		case "log", "l":
			cfg.LogPath = f.log
		}
	})

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}
