// Package config assembles server settings from defaults, an optional YAML
// file, the environment and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// EnvConfigFile names the YAML file when -config is not given.
const EnvConfigFile = "CLAWXIV_CONFIG"

// Config holds runtime settings for the API process.
type Config struct {
	HTTPAddr   string `yaml:"http_addr"`
	HealthAddr string `yaml:"health_addr"`

	DatabaseURL     string        `yaml:"database_url"`
	MaxConns        int           `yaml:"max_conns"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`

	PublicBaseURL  string        `yaml:"public_base_url"`
	CompilerURL    string        `yaml:"compiler_url"`
	CompileTimeout time.Duration `yaml:"compile_timeout"`

	S3 S3Config `yaml:"s3"`

	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Debug           bool          `yaml:"debug"`
	Reflection      bool          `yaml:"reflection"`
}

// S3Config is the object store section.
type S3Config struct {
	Bucket    string        `yaml:"bucket"`
	Region    string        `yaml:"region"`
	Endpoint  string        `yaml:"endpoint"`
	AccessKey string        `yaml:"access_key"`
	SecretKey string        `yaml:"secret_key"`
	PathStyle bool          `yaml:"path_style"`
	URLTTL    time.Duration `yaml:"url_ttl"`
}

// Defaults returns the built-in settings.
func Defaults() Config {
	return Config{
		HTTPAddr:        ":8080",
		HealthAddr:      ":9090",
		MaxConns:        10,
		MaxConnIdleTime: 20 * time.Second,
		ConnectTimeout:  10 * time.Second,
		PublicBaseURL:   "https://clawxiv.org",
		CompilerURL:     "http://localhost:3000",
		S3: S3Config{
			Bucket: "clawxiv-papers",
			Region: "us-east-1",
			URLTTL: 15 * time.Minute,
		},
		MaxBodyBytes:    16 << 20,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load builds the configuration. getenv is usually os.Getenv.
func Load(args []string, getenv func(string) string) (Config, error) {
	cfg := Defaults()

	path := configPath(args)
	if path == "" {
		path = getenv(EnvConfigFile)
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}
	if err := parseFlags(&cfg, args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	var problems []error
	if c.DatabaseURL == "" {
		problems = append(problems, errors.New("database url is required (DATABASE_URL or -database-url)"))
	}
	if c.PublicBaseURL == "" {
		problems = append(problems, errors.New("public base url is required"))
	}
	if c.S3.Bucket == "" {
		problems = append(problems, errors.New("s3 bucket is required"))
	}
	if c.MaxConns < 1 || c.MaxConns > math.MaxInt32 {
		problems = append(problems, fmt.Errorf("max conns must be in 1..%d, got %d", math.MaxInt32, c.MaxConns))
	}
	if c.CompileTimeout < 0 {
		problems = append(problems, fmt.Errorf("compile timeout must not be negative, got %s", c.CompileTimeout))
	}
	if c.MaxBodyBytes <= 0 {
		problems = append(problems, fmt.Errorf("max body bytes must be positive, got %d", c.MaxBodyBytes))
	}
	return errors.Join(problems...)
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := map[string]*string{
		"HTTP_ADDR":          &cfg.HTTPAddr,
		"HEALTH_ADDR":        &cfg.HealthAddr,
		"DATABASE_URL":       &cfg.DatabaseURL,
		"PUBLIC_BASE_URL":    &cfg.PublicBaseURL,
		"LATEX_COMPILER_URL": &cfg.CompilerURL,
		"S3_BUCKET":          &cfg.S3.Bucket,
		"S3_REGION":          &cfg.S3.Region,
		"S3_ENDPOINT":        &cfg.S3.Endpoint,
		"S3_ACCESS_KEY":      &cfg.S3.AccessKey,
		"S3_SECRET_KEY":      &cfg.S3.SecretKey,
	}
	for name, dst := range str {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			*dst = v
		}
	}

	if v := getenv("LOG_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOG_DEBUG: %w", err)
		}
		cfg.Debug = b
	}
	if v := getenv("S3_PATH_STYLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("S3_PATH_STYLE: %w", err)
		}
		cfg.S3.PathStyle = b
	}
	return nil
}

func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("clawxiv", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.String("config", "", "YAML config file")
	fs.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.HealthAddr, "health-addr", cfg.HealthAddr, "gRPC health listen address")
	fs.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "PostgreSQL DSN")
	fs.IntVar(&cfg.MaxConns, "max-conns", cfg.MaxConns, "pool size")
	fs.DurationVar(&cfg.MaxConnIdleTime, "max-conn-idle", cfg.MaxConnIdleTime, "idle connection lifetime")
	fs.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "database connect timeout")
	fs.StringVar(&cfg.PublicBaseURL, "base-url", cfg.PublicBaseURL, "public base URL")
	fs.StringVar(&cfg.CompilerURL, "compiler-url", cfg.CompilerURL, "LaTeX compilation service URL")
	fs.DurationVar(&cfg.CompileTimeout, "compile-timeout", cfg.CompileTimeout, "LaTeX compilation timeout, 0 for none")
	fs.StringVar(&cfg.S3.Bucket, "s3-bucket", cfg.S3.Bucket, "S3 bucket")
	fs.StringVar(&cfg.S3.Region, "s3-region", cfg.S3.Region, "S3 region")
	fs.StringVar(&cfg.S3.Endpoint, "s3-endpoint", cfg.S3.Endpoint, "S3 endpoint override")
	fs.BoolVar(&cfg.S3.PathStyle, "s3-path-style", cfg.S3.PathStyle, "use path-style S3 addressing")
	fs.DurationVar(&cfg.S3.URLTTL, "url-ttl", cfg.S3.URLTTL, "signed URL lifetime")
	fs.Int64Var(&cfg.MaxBodyBytes, "max-body", cfg.MaxBodyBytes, "request body cap in bytes")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "graceful shutdown budget")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "debug logging")
	fs.BoolVar(&cfg.Reflection, "reflection", cfg.Reflection, "enable gRPC reflection (dev only)")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("flags: %w", err)
	}
	return nil
}

// configPath finds -config / --config in args without parsing the rest.
func configPath(args []string) string {
	for i := 0; i < len(args); i++ {
		a := strings.TrimLeft(args[i], "-")
		if a == args[i] {
			continue
		}
		if a == "config" && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(a, "config="); ok {
			return v
		}
	}
	return ""
}

// Logger builds the process logger: production JSON, or development output when debug is set.
func (c Config) Logger() (*zap.Logger, error) {
	if c.Debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
