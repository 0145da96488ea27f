// Package config holds the environment-driven configuration of every server.
//
// Values are parsed once at startup and passed explicitly to constructors;
// nothing below cmd/ reads the process environment.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Server configures the protocol side shared by all platform servers.
type Server struct {
	Transport   string        `env:"MCP_TRANSPORT" envDefault:"stdio"`
	Host        string        `env:"MCP_HOST" envDefault:"0.0.0.0"`
	Port        int           `env:"PORT" envDefault:"3000"`
	Token       string        `env:"MCP_TOKEN"`
	HTTPTimeout time.Duration `env:"MCP_HTTP_TIMEOUT"`
	LogLevel    string        `env:"MCP_LOG_LEVEL" envDefault:"info"`
	LogFormat   string        `env:"MCP_LOG_FORMAT" envDefault:"text"`
	// HTTP admission limits; zero, the default, disables each.
	MaxConcurrent int     `env:"MCP_MAX_CONCURRENT"`
	RateLimit     float64 `env:"MCP_RATE_LIMIT"`
	RateBurst     int     `env:"MCP_RATE_BURST" envDefault:"20"`
	Audit         Audit   `envPrefix:"AUDIT_"`
}

// Addr is the listen address of the HTTP transport.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate checks values env tags cannot express.
func (s Server) Validate() error {
	switch s.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("config: MCP_TRANSPORT must be %q or %q, got %q", TransportStdio, TransportHTTP, s.Transport)
	}
	if s.Transport == TransportHTTP && (s.Port <= 0 || s.Port > 65535) {
		return fmt.Errorf("config: PORT out of range: %d", s.Port)
	}
	if s.MaxConcurrent < 0 || s.RateLimit < 0 || s.RateBurst < 0 {
		return fmt.Errorf("config: MCP_MAX_CONCURRENT, MCP_RATE_LIMIT and MCP_RATE_BURST must not be negative")
	}
	return nil
}

// Audit selects the tool-call audit backend.
type Audit struct {
	Backend    string   `env:"BACKEND" envDefault:"none"` // none, file, sqlite, postgres
	Dir        string   `env:"DIR"`
	SQLitePath string   `env:"SQLITE_PATH"`
	Postgres   Postgres `envPrefix:"PG_"`
}

// Postgres holds connection parameters for the PostgreSQL audit store.
type Postgres struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"5432"`
	User     string `env:"USER"`
	Password string `env:"PASSWORD"`
	Database string `env:"DATABASE" envDefault:"platform_mcp"`
	SSLMode  string `env:"SSLMODE" envDefault:"require"`
}

// DSN returns a postgres:// URL for lib/pq. Credentials are URL-encoded,
// so passwords may hold spaces, quotes or '@'.
func (c Postgres) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	switch {
	case c.Password != "":
		u.User = url.UserPassword(c.User, c.Password)
	case c.User != "":
		u.User = url.User(c.User)
	}
	return u.String()
}

type AzureDevOps struct {
	OrgURL     string `env:"AZURE_DEVOPS_ORG_URL,required,notEmpty"`
	PAT        string `env:"AZURE_DEVOPS_PAT,required,notEmpty"`
	APIVersion string `env:"AZURE_DEVOPS_API_VERSION" envDefault:"7.1"`
}

type GitHub struct {
	Token  string `env:"GITHUB_TOKEN,required,notEmpty"`
	APIURL string `env:"GITHUB_API_URL" envDefault:"https://api.github.com"`
}

type Figma struct {
	AccessToken string `env:"FIGMA_ACCESS_TOKEN,required,notEmpty"`
	APIURL      string `env:"FIGMA_API_URL" envDefault:"https://api.figma.com/v1"`
}

// SonarQube is the one platform whose credential is optional: without a
// token requests go out anonymously and the server decides per request.
type SonarQube struct {
	URL   string `env:"SONARQUBE_URL,required,notEmpty"`
	Token string `env:"SONARQUBE_TOKEN"`
}

// GoogleCloud falls back to Application Default Credentials when no
// access token is given.
type GoogleCloud struct {
	Project     string `env:"GOOGLE_CLOUD_PROJECT,required,notEmpty"`
	AccessToken string `env:"GOOGLE_ACCESS_TOKEN"`
	Endpoint    string `env:"GOOGLE_API_ENDPOINT"`
}

type LiteLLM struct {
	BaseURL string `env:"LITELLM_BASE_URL,required,notEmpty"`
	APIKey  string `env:"LITELLM_API_KEY,required,notEmpty"`
}

// Load parses T from environ. A nil environ means the process environment.
func Load[T any](environ map[string]string) (T, error) {
	var cfg T
	opts := env.Options{Environment: environ}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LoadServer parses and validates the shared server settings. defaults
// supplies per-server fallbacks (e.g. the LiteLLM server listens on HTTP
// unless told otherwise); explicit environment values always win.
func LoadServer(environ map[string]string, defaults map[string]string) (Server, error) {
	merged := environ
	if len(defaults) > 0 {
		merged = make(map[string]string, len(environ)+len(defaults))
		if environ == nil {
			environ = Environ()
		}
		for k, v := range defaults {
			merged[k] = v
		}
		for k, v := range environ {
			merged[k] = v
		}
	}
	cfg, err := Load[Server](merged)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Environ snapshots the process environment as a map.
func Environ() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			out[k] = v
		}
	}
	return out
}
