package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the compliance middleware configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Registry   RegistryConfig   `mapstructure:"registry"`
	Verifier   VerifierConfig   `mapstructure:"verifier"`
	Compliance ComplianceConfig `mapstructure:"compliance"`
	Gate       GateConfig       `mapstructure:"gate"`
	Token      TokenConfig      `mapstructure:"token"`
	JWKS       JWKSConfig       `mapstructure:"jwks"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Shutdown   ShutdownConfig   `mapstructure:"shutdown"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// RegistryConfig contains identity registry settings
type RegistryConfig struct {
	// Owner is the address allowed to manage agents, topics and trusted issuers.
	Owner string `mapstructure:"owner"`
	// Agents are addresses allowed to register/update/delete wallet bindings.
	Agents []string `mapstructure:"agents"`
	// MaxClaimTopics caps the required-topic set size.
	MaxClaimTopics int `mapstructure:"max_claim_topics"`
	// MaxTrustedIssuers caps the trusted issuer directory size.
	MaxTrustedIssuers int `mapstructure:"max_trusted_issuers"`
}

// VerifierConfig contains credential proof verifier settings
type VerifierConfig struct {
	// Owner is the address allowed to revoke credentials and rotate keys.
	Owner string `mapstructure:"owner"`
	// ProgramVKey is the hex-encoded verification key of the registered
	// credential-verification program.
	ProgramVKey string `mapstructure:"program_vkey"`
	// GlobalExpiration is an optional window measured from verification time
	// after which credentials are treated as expired (0 disables it).
	GlobalExpiration time.Duration `mapstructure:"global_expiration"`
}

// ComplianceConfig contains modular compliance engine settings
type ComplianceConfig struct {
	// Address identifies the engine toward its rule modules.
	Address string `mapstructure:"address"`
	// Owner is the address allowed to bind tokens and manage modules.
	// Falls back to registry.owner when empty.
	Owner string `mapstructure:"owner"`
	// MaxModules caps the number of rule modules bound to one engine.
	MaxModules int `mapstructure:"max_modules"`
	// CredentialCacheTTL is the validity window of the credential-type
	// module's verification cache.
	CredentialCacheTTL time.Duration `mapstructure:"credential_cache_ttl"`
}

// GateConfig contains investment gate settings
type GateConfig struct {
	// Owner is the address allowed to manage venues and overrides.
	// Falls back to registry.owner when empty.
	Owner string `mapstructure:"owner"`
	// RequireVerification requires identity-registry verification for investors.
	RequireVerification bool `mapstructure:"require_verification"`
	// RequireCredentials requires venue-configured badge types.
	RequireCredentials bool `mapstructure:"require_credentials"`
}

// TokenConfig contains permissioned token settings
type TokenConfig struct {
	// Address identifies the token toward the compliance engine.
	Address string `mapstructure:"address"`
	// Owner is the address allowed to mint and burn.
	// Falls back to registry.owner when empty.
	Owner string `mapstructure:"owner"`
}

// JWKSConfig contains JWKS configuration for admin JWT validation
type JWKSConfig struct {
	URL    string `mapstructure:"url"`
	Issuer string `mapstructure:"issuer"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MetricsPort int  `mapstructure:"metrics_port"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// ShutdownConfig contains graceful shutdown settings
type ShutdownConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.database", "compliance")

	// Registry defaults
	viper.SetDefault("registry.max_claim_topics", 15)
	viper.SetDefault("registry.max_trusted_issuers", 50)

	// Verifier defaults
	viper.SetDefault("verifier.global_expiration", "0")

	// Compliance defaults
	viper.SetDefault("compliance.max_modules", 25)
	viper.SetDefault("compliance.credential_cache_ttl", "1h")

	// Gate defaults
	viper.SetDefault("gate.require_verification", true)
	viper.SetDefault("gate.require_credentials", true)

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_port", 9090)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")

	// Shutdown defaults
	viper.SetDefault("shutdown.timeout", "30s")
}

func validate(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if config.Registry.Owner == "" {
		return fmt.Errorf("registry.owner is required")
	}
	if config.Verifier.Owner == "" {
		return fmt.Errorf("verifier.owner is required")
	}
	if config.Verifier.ProgramVKey == "" {
		return fmt.Errorf("verifier.program_vkey is required")
	}
	if config.Compliance.MaxModules <= 0 {
		return fmt.Errorf("compliance.max_modules must be positive")
	}
	if config.Compliance.Address == "" {
		return fmt.Errorf("compliance.address is required")
	}
	if config.Token.Address == "" {
		return fmt.Errorf("token.address is required")
	}
	return nil
}

// GetConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
