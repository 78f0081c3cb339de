// Package config loads the node configuration: defaults, then a TOML file,
// then environment variable overrides, validated as a whole at the end.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// DefaultValues is the default configuration in TOML
const DefaultValues = `
[Log]
Level = "info"
Outputs = ["stdout"]

[StateDB]
Path = "/var/group-rollup/statedb"

[PostgreSQL]
PortWrite = 5432
HostWrite = "localhost"

[Queue]
ExpirationWindow = 17280

[API]
Address = "localhost:8086"
Metrics = true

[Debug]
APIAddress = ""
`

// Config of the node
type Config struct {
	Log struct {
		Level   string   `validate:"required" env:"GROLLUP_LOG_LEVEL"`
		Outputs []string `env:"GROLLUP_LOG_OUTPUTS" envSeparator:","`
	}
	StateDB struct {
		// Path of the pebble storage
		Path string `validate:"required" env:"GROLLUP_STATEDB_PATH"`
		// InMemory keeps the contract state in memory, for development
		InMemory bool `env:"GROLLUP_STATEDB_INMEMORY"`
	}
	PostgreSQL struct {
		// PortWrite of the PostgreSQL write server
		PortWrite int `validate:"required" env:"GROLLUP_POSTGRESQL_PORTWRITE"`
		// HostWrite of the PostgreSQL write server
		HostWrite string `validate:"required" env:"GROLLUP_POSTGRESQL_HOSTWRITE"`
		// UserWrite of the PostgreSQL write server
		UserWrite string `validate:"required" env:"GROLLUP_POSTGRESQL_USERWRITE"`
		// PasswordWrite of the PostgreSQL write server
		PasswordWrite string `validate:"required" env:"GROLLUP_POSTGRESQL_PASSWORDWRITE"`
		// NameWrite of the PostgreSQL write server database
		NameWrite string `validate:"required" env:"GROLLUP_POSTGRESQL_NAMEWRITE"`
		// PortRead of the PostgreSQL read server.  Zero means the write
		// server serves reads too.
		PortRead     int    `env:"GROLLUP_POSTGRESQL_PORTREAD"`
		HostRead     string `env:"GROLLUP_POSTGRESQL_HOSTREAD"`
		UserRead     string `env:"GROLLUP_POSTGRESQL_USERREAD"`
		PasswordRead string `env:"GROLLUP_POSTGRESQL_PASSWORDREAD"`
		NameRead     string `env:"GROLLUP_POSTGRESQL_NAMEREAD"`
	}
	Queue struct {
		// ExpirationWindow in Ethereum blocks before an unserviced
		// request trips exodus mode
		ExpirationWindow int64 `validate:"required" env:"GROLLUP_QUEUE_EXPIRATIONWINDOW"`
	}
	// Verifiers are the verification server URLs, indexed by the groups'
	// verifier index
	Verifiers []string `validate:"required" env:"GROLLUP_VERIFIERS" envSeparator:","`
	API       struct {
		// Address where the API server listens
		Address string `validate:"required" env:"GROLLUP_API_ADDRESS"`
		// Metrics exposes prometheus metrics on the API server
		Metrics bool `env:"GROLLUP_API_METRICS"`
	}
	Debug struct {
		// APIAddress enables the debug API server when non-empty
		APIAddress string `env:"GROLLUP_DEBUG_APIADDRESS"`
	}
}

func loadDefault(defaultValues string, cfg interface{}) error {
	if _, err := toml.Decode(defaultValues, cfg); err != nil {
		return err
	}
	return nil
}

func loadFile(path string, cfg interface{}) error {
	bs, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return err
	}
	cfgToml := string(bs)
	if _, err := toml.Decode(cfgToml, cfg); err != nil {
		return err
	}
	return nil
}

func loadEnv(cfg interface{}) error {
	if err := env.Parse(cfg); err != nil {
		return err
	}
	return nil
}

// LoadConfig loads defaultValues, then the TOML file at filePath (when not
// empty), then the environment overrides into cfg
func LoadConfig(filePath string, defaultValues string, cfg interface{}) error {
	// Get default configuration
	if err := loadDefault(defaultValues, cfg); err != nil {
		return fmt.Errorf("error loading default configuration: %w", err)
	}
	// Get file configuration
	var errLoadFile error
	if filePath != "" {
		errLoadFile = loadFile(filePath, cfg)
	}
	// Overwrite file configuration with the env configuration
	errLoadEnv := loadEnv(cfg)
	if errLoadFile != nil {
		return fmt.Errorf("error loading configuration file: %w", errLoadFile)
	}
	if errLoadEnv != nil {
		return fmt.Errorf("error loading environment variables: %w", errLoadEnv)
	}
	return nil
}

// Load validates and returns the node Config from the optional TOML file at
// filePath.  A .env file in the working directory is honored when present.
func Load(filePath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}
	var cfg Config
	if err := LoadConfig(filePath, DefaultValues, &cfg); err != nil {
		return nil, err
	}
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("error validating configuration file: %w", err)
	}
	return &cfg, nil
}
