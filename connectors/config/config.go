// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Pool        PoolConfig        `yaml:"pool"`
	Auth        AuthConfig        `yaml:"auth"`
	Log         LogConfig         `yaml:"log"`
}

// ServerConfig controls the HTTP listener
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

// PersistenceConfig selects where descriptors are recorded. Either URL or
// SecretARN may be set; an empty result runs the registry in memory only.
type PersistenceConfig struct {
	URL       string `yaml:"url"`
	SecretARN string `yaml:"secret_arn"`
	Region    string `yaml:"region"`
}

// PoolConfig tunes the pools built for registered databases
type PoolConfig struct {
	MaxOpen         int           `yaml:"max_open"`
	MaxIdle         int           `yaml:"max_idle"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	PostgresSSLMode string        `yaml:"postgres_sslmode"`
	MySQLTLS        string        `yaml:"mysql_tls"`
}

// AuthConfig enables HS256 bearer auth when JWTSecret is set
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// LogConfig sets the minimum log level
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			RequestTimeout:  60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Pool: PoolConfig{
			MaxOpen:         10,
			MaxIdle:         2,
			ConnectTimeout:  10 * time.Second,
			PostgresSSLMode: "disable",
		},
		Log: LogConfig{Level: "INFO"},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// DYNCONN_CONFIG_FILE (if any), then environment overrides.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("DYNCONN_CONFIG_FILE"); path != "" {
		if err := LoadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto cfg. ${VAR} and
// ${VAR:-default} references are expanded before parsing.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := expandEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Host, "DYNCONN_HOST")
	setString(&cfg.Persistence.URL, "DYNCONN_PERSISTENCE_URL")
	setString(&cfg.Persistence.SecretARN, "DYNCONN_PERSISTENCE_SECRET_ARN")
	setString(&cfg.Persistence.Region, "AWS_REGION")
	setString(&cfg.Pool.PostgresSSLMode, "DYNCONN_POSTGRES_SSLMODE")
	setString(&cfg.Pool.MySQLTLS, "DYNCONN_MYSQL_TLS")
	setString(&cfg.Auth.JWTSecret, "DYNCONN_JWT_SECRET")
	setString(&cfg.Log.Level, "DYNCONN_LOG_LEVEL")

	if v := os.Getenv("DYNCONN_CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.Server.CORSOrigins = origins
	}

	ints := []struct {
		dst *int
		env string
	}{
		{&cfg.Server.Port, "DYNCONN_PORT"},
		{&cfg.Pool.MaxOpen, "DYNCONN_POOL_MAX_OPEN"},
		{&cfg.Pool.MaxIdle, "DYNCONN_POOL_MAX_IDLE"},
	}
	for _, i := range ints {
		if err := setInt(i.dst, i.env); err != nil {
			return err
		}
	}

	durations := []struct {
		dst *time.Duration
		env string
	}{
		{&cfg.Pool.ConnectTimeout, "DYNCONN_CONNECT_TIMEOUT"},
		{&cfg.Server.RequestTimeout, "DYNCONN_REQUEST_TIMEOUT"},
		{&cfg.Server.ShutdownTimeout, "DYNCONN_SHUTDOWN_TIMEOUT"},
	}
	for _, d := range durations {
		if err := setDuration(d.dst, d.env); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects settings the service cannot start with
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Pool.MaxOpen <= 0 {
		return fmt.Errorf("pool max_open must be positive, got %d", c.Pool.MaxOpen)
	}
	if c.Pool.MaxIdle < 0 || c.Pool.MaxIdle > c.Pool.MaxOpen {
		return fmt.Errorf("pool max_idle must be between 0 and max_open (%d), got %d", c.Pool.MaxOpen, c.Pool.MaxIdle)
	}
	if c.Pool.ConnectTimeout <= 0 {
		return fmt.Errorf("pool connect_timeout must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server request_timeout must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server shutdown_timeout must be positive")
	}
	if c.Persistence.URL != "" && c.Persistence.SecretARN != "" {
		return fmt.Errorf("persistence url and secret_arn are mutually exclusive")
	}
	switch strings.ToUpper(c.Log.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}

// Addr returns host:port for the HTTP listener
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) error {
	v := os.Getenv(env)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", env, v, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, env string) error {
	v := os.Getenv(env)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", env, v, err)
	}
	*dst = d
	return nil
}

// envVarRegex matches ${VAR_NAME} or $VAR_NAME patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars expands ${VAR}, ${VAR:-default} and $VAR. Undefined
// variables without a default expand to the empty string.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}

		fallback := ""
		if idx := strings.Index(name, ":-"); idx != -1 {
			fallback = name[idx+2:]
			name = name[:idx]
		}

		if value := os.Getenv(name); value != "" {
			return value
		}
		return fallback
	})
}
