// Package config holds the file-backed settings of the fhevm-session tools.
// Command line flags override whatever a TOML file provides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevmErrors"
	"github.com/Layr-Labs/fhevm-session-go/pkg/yieldCalculator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pelletier/go-toml/v2"
)

const (
	StorageMemory            = "memory"
	StoragePostgres          = "postgres"
	StorageAWSSecretsManager = "aws-secrets-manager"

	DefaultAWSRegion = "us-east-1"
)

type SdkConfig struct {
	// Source is a Go plugin path or a script URL handed to the SDK host.
	Source     string `toml:"source"`
	MinVersion string `toml:"min_version"`
	Threads    int    `toml:"threads"`
}

type StorageConfig struct {
	Backend string `toml:"backend"`

	MemorySize int `toml:"memory_size"`

	PostgresDSN   string `toml:"postgres_dsn"`
	PostgresTable string `toml:"postgres_table"`

	AWSRegion       string `toml:"aws_region"`
	AWSSecretPrefix string `toml:"aws_secret_prefix"`
}

type SignerConfig struct {
	PrivateKey  string `toml:"private_key"`
	AWSKMSKeyID string `toml:"aws_kms_key_id"`
	AWSRegion   string `toml:"aws_region"`
}

type Config struct {
	Debug  bool   `toml:"debug"`
	RpcURL string `toml:"rpc_url"`
	// MockChains maps a decimal chain id to the dev node RPC URL.
	MockChains map[string]string `toml:"mock_chains"`

	SignatureDurationDays int64 `toml:"signature_duration_days"`

	Sdk     SdkConfig     `toml:"sdk"`
	Storage StorageConfig `toml:"storage"`
	Signer  SignerConfig  `toml:"signer"`

	// Contracts maps a decimal chain id to the SecureYieldCalculator address.
	Contracts map[string]string `toml:"contracts"`
}

// Default returns a config with an in-memory store and the default dev chain.
func Default() *Config {
	return &Config{
		MockChains: map[string]string{"31337": "http://localhost:8545"},
		Storage:    StorageConfig{Backend: StorageMemory},
		Signer:     SignerConfig{AWSRegion: DefaultAWSRegion},
		Contracts:  map[string]string{},
	}
}

// Load reads and parses the TOML file at path on top of Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes TOML data on top of Default.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fhevmErrors.New(fhevmErrors.KindInvalidConfig, "failed to decode config", err)
	}
	return cfg, nil
}

// Validate checks the config for contradictions and malformed values.
func (c *Config) Validate() error {
	if c.SignatureDurationDays < 0 {
		return fhevmErrors.Newf(fhevmErrors.KindInvalidConfig, "signature_duration_days must not be negative")
	}
	if c.Sdk.Threads < 0 {
		return fhevmErrors.Newf(fhevmErrors.KindInvalidConfig, "sdk.threads must not be negative")
	}
	if _, err := c.MockChainTable(); err != nil {
		return err
	}
	if _, err := c.AddressBook(); err != nil {
		return err
	}

	switch c.Storage.Backend {
	case "", StorageMemory:
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return fhevmErrors.Newf(fhevmErrors.KindInvalidConfig, "storage.postgres_dsn is required for the postgres backend")
		}
	case StorageAWSSecretsManager:
		if c.Storage.AWSRegion == "" {
			return fhevmErrors.Newf(fhevmErrors.KindInvalidConfig, "storage.aws_region is required for the aws-secrets-manager backend")
		}
	default:
		return fhevmErrors.Newf(fhevmErrors.KindInvalidConfig, "unknown storage backend %q", c.Storage.Backend)
	}

	if c.Signer.PrivateKey != "" && c.Signer.AWSKMSKeyID != "" {
		return fhevmErrors.Newf(fhevmErrors.KindInvalidConfig, "cannot specify both signer.private_key and signer.aws_kms_key_id")
	}
	return nil
}

// HasSigner reports whether a local or KMS signing key is configured.
func (c *Config) HasSigner() bool {
	return c.Signer.PrivateKey != "" || c.Signer.AWSKMSKeyID != ""
}

// MockChainTable returns the mock chain table keyed by chain id.
func (c *Config) MockChainTable() (map[uint64]string, error) {
	out := make(map[uint64]string, len(c.MockChains))
	for k, url := range c.MockChains {
		id, err := parseChainID(k)
		if err != nil {
			return nil, err
		}
		if url == "" {
			return nil, fhevmErrors.Newf(fhevmErrors.KindInvalidConfig, "mock chain %d has an empty rpc url", id)
		}
		out[id] = url
	}
	return out, nil
}

// AddressBook returns the contract deployments keyed by chain id.
func (c *Config) AddressBook() (yieldCalculator.AddressBook, error) {
	book := make(yieldCalculator.AddressBook, len(c.Contracts))
	for k, addr := range c.Contracts {
		id, err := parseChainID(k)
		if err != nil {
			return nil, err
		}
		if !common.IsHexAddress(addr) {
			return nil, fhevmErrors.Newf(fhevmErrors.KindInvalidConfig, "contract address for chain %d is not a valid address: %q", id, addr)
		}
		book[id] = common.HexToAddress(addr)
	}
	return book, nil
}

func parseChainID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fhevmErrors.Newf(fhevmErrors.KindInvalidConfig, "invalid chain id %q", s)
	}
	return id, nil
}
