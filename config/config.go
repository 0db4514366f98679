package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	IdleTimeout    time.Duration `yaml:"idleTimeout"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
}

type GRPC struct {
	Addr string `yaml:"addr"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // chat-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Postgres struct {
	DSN               string        `yaml:"dsn"`
	MaxConns          int32         `yaml:"maxConns"`
	MinConns          int32         `yaml:"minConns"`
	MaxConnLifetime   time.Duration `yaml:"maxConnLifetime"`
	MaxConnIdleTime   time.Duration `yaml:"maxConnIdleTime"`
	HealthCheckPeriod time.Duration `yaml:"healthCheckPeriod"`
	ApplicationName   string        `yaml:"applicationName"`
	Migrate           bool          `yaml:"migrate"`
}

type Auth struct {
	Alg           string        `yaml:"alg"`           // HS256|RS256
	Secret        string        `yaml:"secret"`        // HS256
	PublicKeyPath string        `yaml:"publicKeyPath"` // RS256
	Issuer        string        `yaml:"issuer"`
	Audience      string        `yaml:"audience"`
	ClockSkew     time.Duration `yaml:"clockSkew"`
}

type Realtime struct {
	AuthTimeout       time.Duration `yaml:"authTimeout"`
	RoomLookupTimeout time.Duration `yaml:"roomLookupTimeout"`
	PingInterval      time.Duration `yaml:"pingInterval"`
	WriteWait         time.Duration `yaml:"writeWait"`
	MaxMessageSize    int64         `yaml:"maxMessageSize"`
	SendBuffer        int           `yaml:"sendBuffer"`
	MaxContentLength  int           `yaml:"maxContentLength"`
}

type Persistence struct {
	QueueSize    int           `yaml:"queueSize"`
	Workers      int           `yaml:"workers"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxAttempts  int           `yaml:"maxAttempts"`
	DrainTimeout time.Duration `yaml:"drainTimeout"`
}

type Config struct {
	HTTP        HTTP        `yaml:"http"`
	GRPC        GRPC        `yaml:"grpc"`
	Logging     Logging     `yaml:"logging"`
	Postgres    Postgres    `yaml:"postgres"`
	Auth        Auth        `yaml:"auth"`
	Realtime    Realtime    `yaml:"realtime"`
	Persistence Persistence `yaml:"persistence"`
}

// LoadConfig reads the YAML file at CONFIG_PATH (./config/config.yaml by default).
func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	return LoadFile(path)
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if err := c.Auth.validate(); err != nil {
		return err
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 30 * time.Second
	}
	if c.HTTP.IdleTimeout == 0 {
		c.HTTP.IdleTimeout = 60 * time.Second
	}
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = []string{"*"}
	}
	if c.GRPC.Addr == "" {
		c.GRPC.Addr = ":9090"
	}

	if c.Logging.Service == "" {
		c.Logging.Service = "chat-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}

	c.Realtime.setDefaults()
	return c.Persistence.validate()
}

func (a *Auth) validate() error {
	a.Alg = strings.ToUpper(strings.TrimSpace(a.Alg))
	switch a.Alg {
	case "", "HS256":
		a.Alg = "HS256"
		if a.Secret == "" {
			return errors.New("auth.secret is required for HS256")
		}
	case "RS256":
		if a.PublicKeyPath == "" {
			return errors.New("auth.publicKeyPath is required for RS256")
		}
	default:
		return fmt.Errorf("auth.alg %q is not supported", a.Alg)
	}
	if a.ClockSkew < 0 || a.ClockSkew > time.Minute {
		return errors.New("auth.clockSkew must be in [0..1m]")
	}
	return nil
}

func (r *Realtime) setDefaults() {
	if r.AuthTimeout <= 0 {
		r.AuthTimeout = 10 * time.Second
	}
	if r.RoomLookupTimeout <= 0 {
		r.RoomLookupTimeout = 2 * time.Second
	}
	if r.PingInterval <= 0 {
		r.PingInterval = 15 * time.Second
	}
	if r.WriteWait <= 0 {
		r.WriteWait = 5 * time.Second
	}
	if r.MaxMessageSize <= 0 {
		r.MaxMessageSize = 64 << 10
	}
	if r.SendBuffer <= 0 {
		r.SendBuffer = 256
	}
	if r.MaxContentLength <= 0 {
		r.MaxContentLength = 4000
	}
}

func (p *Persistence) validate() error {
	if p.QueueSize <= 0 {
		p.QueueSize = 1024
	}
	if p.Workers <= 0 {
		p.Workers = 1
	}
	if p.WriteTimeout <= 0 {
		p.WriteTimeout = 5 * time.Second
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.MaxAttempts > 10 {
		return errors.New("persistence.maxAttempts must be in [1..10]")
	}
	if p.DrainTimeout <= 0 {
		p.DrainTimeout = 10 * time.Second
	}
	return nil
}
