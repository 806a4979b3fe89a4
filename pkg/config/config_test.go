package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevmErrors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
debug = true
rpc_url = "https://sepolia.example.org"
signature_duration_days = 30

[mock_chains]
31337 = "http://127.0.0.1:8545"

[sdk]
source = "/opt/fhevm/sdk.so"
min_version = "0.2.0"
threads = 4

[storage]
backend = "postgres"
postgres_dsn = "postgres://localhost/fhevm"

[signer]
aws_kms_key_id = "alias/fhevm"

[contracts]
11155111 = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
`

func Test_Parse(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.Debug)
	assert.Equal(t, "https://sepolia.example.org", cfg.RpcURL)
	assert.Equal(t, int64(30), cfg.SignatureDurationDays)
	assert.Equal(t, 4, cfg.Sdk.Threads)
	assert.Equal(t, StoragePostgres, cfg.Storage.Backend)
	assert.Equal(t, DefaultAWSRegion, cfg.Signer.AWSRegion)
	assert.True(t, cfg.HasSigner())

	mocks, err := cfg.MockChainTable()
	require.NoError(t, err)
	assert.Equal(t, map[uint64]string{31337: "http://127.0.0.1:8545"}, mocks)

	book, err := cfg.AddressBook()
	require.NoError(t, err)
	addr, ok := book.Lookup(11155111)
	assert.True(t, ok)
	assert.Equal(t, common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"), addr)
}

func Test_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fhevm.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/fhevm/sdk.so", cfg.Sdk.Source)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func Test_Defaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, StorageMemory, cfg.Storage.Backend)
	assert.False(t, cfg.HasSigner())

	mocks, err := cfg.MockChainTable()
	require.NoError(t, err)
	assert.Contains(t, mocks, uint64(31337))
}

func Test_ParseRejectsBadToml(t *testing.T) {
	_, err := Parse([]byte("debug = = true"))
	assert.True(t, fhevmErrors.IsKind(err, fhevmErrors.KindInvalidConfig))
}

func Test_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative duration", func(c *Config) { c.SignatureDurationDays = -1 }},
		{"negative threads", func(c *Config) { c.Sdk.Threads = -2 }},
		{"bad mock chain id", func(c *Config) { c.MockChains["dev"] = "http://x" }},
		{"empty mock url", func(c *Config) { c.MockChains["1337"] = "" }},
		{"bad contract address", func(c *Config) { c.Contracts["1"] = "0x1234" }},
		{"zero chain id", func(c *Config) { c.Contracts["0"] = "0x5FbDB2315678afecb367f032d93F642f64180aa3" }},
		{"postgres without dsn", func(c *Config) { c.Storage.Backend = StoragePostgres }},
		{"secrets manager without region", func(c *Config) { c.Storage.Backend = StorageAWSSecretsManager }},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "redis" }},
		{"two signers", func(c *Config) {
			c.Signer.PrivateKey = "0x01"
			c.Signer.AWSKMSKeyID = "alias/k"
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			assert.True(t, fhevmErrors.IsKind(err, fhevmErrors.KindInvalidConfig), "got %v", err)
		})
	}
}
