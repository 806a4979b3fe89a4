package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Layr-Labs/fhevm-session-go/pkg/chainManager"
	"github.com/Layr-Labs/fhevm-session-go/pkg/chainResolver"
	"github.com/Layr-Labs/fhevm-session-go/pkg/config"
	"github.com/Layr-Labs/fhevm-session-go/pkg/decryptionSignature"
	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevm"
	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevmConfig"
	"github.com/Layr-Labs/fhevm-session-go/pkg/instanceBuilder"
	"github.com/Layr-Labs/fhevm-session-go/pkg/lifecycle"
	"github.com/Layr-Labs/fhevm-session-go/pkg/logger"
	"github.com/Layr-Labs/fhevm-session-go/pkg/metrics"
	"github.com/Layr-Labs/fhevm-session-go/pkg/sdkLoader"
	"github.com/Layr-Labs/fhevm-session-go/pkg/session"
	"github.com/Layr-Labs/fhevm-session-go/pkg/signer"
	"github.com/Layr-Labs/fhevm-session-go/pkg/storage"
	"github.com/Layr-Labs/fhevm-session-go/pkg/transport"
	"github.com/Layr-Labs/fhevm-session-go/pkg/wallet"
	"github.com/Layr-Labs/fhevm-session-go/pkg/yieldCalculator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	cli "github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const (
	defaultTimeout      = 2 * time.Minute
	defaultPollInterval = 4 * time.Second

	configKey = "config"
)

// loadConfig merges the config file with flags and validates the result.
func loadConfig(c *cli.Context) error {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if c.IsSet("debug") {
		cfg.Debug = c.Bool("debug")
	}
	if c.IsSet("rpc-url") {
		cfg.RpcURL = c.String("rpc-url")
	}
	if c.IsSet("mock-chains") {
		pairs, err := parsePairs(c.StringSlice("mock-chains"), "chainId:rpcUrl")
		if err != nil {
			return err
		}
		cfg.MockChains = pairs
	}
	if c.IsSet("contracts") {
		pairs, err := parsePairs(c.StringSlice("contracts"), "chainId:address")
		if err != nil {
			return err
		}
		for k, v := range pairs {
			cfg.Contracts[k] = v
		}
	}
	if c.IsSet("signature-duration-days") {
		cfg.SignatureDurationDays = c.Int64("signature-duration-days")
	}
	if c.IsSet("sdk-source") {
		cfg.Sdk.Source = c.String("sdk-source")
	}
	if c.IsSet("sdk-min-version") {
		cfg.Sdk.MinVersion = c.String("sdk-min-version")
	}
	if c.IsSet("sdk-threads") {
		cfg.Sdk.Threads = c.Int("sdk-threads")
	}
	if c.IsSet("storage") {
		cfg.Storage.Backend = c.String("storage")
	}
	if c.IsSet("postgres-dsn") {
		cfg.Storage.PostgresDSN = c.String("postgres-dsn")
	}
	if c.IsSet("storage-aws-region") {
		cfg.Storage.AWSRegion = c.String("storage-aws-region")
	}
	if c.IsSet("storage-aws-secret-prefix") {
		cfg.Storage.AWSSecretPrefix = c.String("storage-aws-secret-prefix")
	}
	if c.IsSet("private-key") {
		cfg.Signer.PrivateKey = c.String("private-key")
	}
	if c.IsSet("aws-kms-key-id") {
		cfg.Signer.AWSKMSKeyID = c.String("aws-kms-key-id")
	}
	if c.IsSet("aws-region") {
		cfg.Signer.AWSRegion = c.String("aws-region")
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	c.App.Metadata = map[string]interface{}{configKey: cfg}
	return nil
}

func parsePairs(values []string, format string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, v := range values {
		parts := strings.SplitN(v, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid value %q (expected format: '%s')", v, format)
		}
		out[parts[0]] = parts[1]
	}
	return out, nil
}

func getConfig(c *cli.Context) *config.Config {
	return c.App.Metadata[configKey].(*config.Config)
}

func setupLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.NewLogger(&logger.LoggerConfig{
		Debug: cfg.Debug,
	})
}

func setupStorage(ctx context.Context, cfg *config.Config, l *zap.Logger) (storage.IStringStorage, func(), error) {
	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		s, err := storage.OpenPostgresStorage(ctx, cfg.Storage.PostgresDSN, cfg.Storage.PostgresTable, l)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case config.StorageAWSSecretsManager:
		s, err := storage.NewAWSSecretsManagerStorage(&storage.AWSSecretsManagerStorageConfig{
			Region: cfg.Storage.AWSRegion,
			Prefix: cfg.Storage.AWSSecretPrefix,
		}, l)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	default:
		s, err := storage.NewInMemoryStorage(cfg.Storage.MemorySize)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
}

// setupSigner returns a local or KMS signer, or nil when none is configured.
func setupSigner(ctx context.Context, cfg *config.Config) (signer.ISigner, error) {
	if cfg.Signer.PrivateKey != "" {
		return signer.NewPrivateKeySigner(cfg.Signer.PrivateKey)
	}
	if cfg.Signer.AWSKMSKeyID != "" {
		return signer.NewAWSKMSSigner(ctx, cfg.Signer.AWSKMSKeyID, cfg.Signer.AWSRegion)
	}
	return nil, nil
}

func setupSdkHost(cfg *config.Config) sdkLoader.Host {
	if cfg.Sdk.Source == "" {
		return sdkLoader.UnavailableHost{}
	}
	return sdkLoader.PluginHost{}
}

// runtime holds everything a command needs, assembled once per invocation.
type runtime struct {
	config    *config.Config
	logger    *zap.Logger
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	provider  *wallet.RpcProvider
	chains    *chainManager.ChainManager
	lifecycle *lifecycle.Lifecycle
	session   *session.Session
	cache     *decryptionSignature.Cache
	txSigner  signer.ISigner
	book      yieldCalculator.AddressBook

	chainID uint64
	closers []func()
}

func setupRuntime(ctx context.Context, c *cli.Context) (*runtime, error) {
	cfg := getConfig(c)
	if cfg.RpcURL == "" {
		return nil, fmt.Errorf("must specify --rpc-url or rpc_url in the config file")
	}

	l, err := setupLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}
	rt := &runtime{config: cfg, logger: l, registry: prometheus.NewRegistry()}
	rt.metrics = metrics.NewMetrics(rt.registry)

	rt.book, err = cfg.AddressBook()
	if err != nil {
		return nil, err
	}
	mocks, err := cfg.MockChainTable()
	if err != nil {
		return nil, err
	}

	rt.provider, err = wallet.DialRpcProvider(ctx, cfg.RpcURL, l)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, rt.provider.Close)

	rt.chains = chainManager.NewChainManager(l)
	rt.closers = append(rt.closers, rt.chains.Close)

	loader := sdkLoader.Shared(setupSdkHost(cfg), &sdkLoader.LoaderConfig{
		Source:     cfg.Sdk.Source,
		MinVersion: cfg.Sdk.MinVersion,
	}, l)
	builder := instanceBuilder.NewInstanceBuilder(&instanceBuilder.Config{
		InitOptions: &sdkLoader.InitOptions{Threads: cfg.Sdk.Threads},
		Fallbacks:   fhevmConfig.LegacyFallbacks,
	}, chainResolver.NewResolver(mocks, nil, l), loader, rt.chains, rt.metrics, l)

	rt.lifecycle = lifecycle.NewLifecycle(builder, rt.metrics, l)
	rt.closers = append(rt.closers, rt.lifecycle.Close)

	store, closeStore, err := setupStorage(ctx, cfg, l)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to setup signature storage: %w", err)
	}
	rt.closers = append(rt.closers, closeStore)
	rt.cache = decryptionSignature.NewCache(&decryptionSignature.Config{
		DurationDays: cfg.SignatureDurationDays,
	}, store, rt.metrics, l)

	rt.txSigner, err = setupSigner(ctx, cfg)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to setup signer: %w", err)
	}

	rt.session = session.NewSession(rt.lifecycle, rt.cache, l)
	return rt, nil
}

// Close releases connections in reverse order of creation.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
	_ = rt.logger.Sync()
}

// bind points the lifecycle and session at the wallet's current chain and
// account.
func (rt *runtime) bind(ctx context.Context, chainID uint64, accounts []common.Address) error {
	rt.chainID = chainID
	rt.lifecycle.SetTarget(&fhevm.ChainTarget{ChainID: chainID, Provider: rt.provider}, true)

	addr, ok := rt.book.Lookup(chainID)
	if !ok {
		_ = rt.session.Bind(nil)
		return fmt.Errorf("no SecureYieldCalculator deployment for chain %d (known chains: %s)",
			chainID, fhevmConfig.FormatChainIDs(rt.book.ChainIDs()))
	}

	chain, err := rt.chains.GetOrAddChain(ctx, &chainManager.ChainConfig{ChainID: chainID, RPCUrl: rt.config.RpcURL})
	if err != nil {
		return fmt.Errorf("failed to connect chain %d: %w", chainID, err)
	}

	var typedSigner signer.ITypedDataSigner
	var tr transport.ITransport
	if rt.txSigner != nil {
		typedSigner = rt.txSigner
		tr = transport.NewTransport(rt.txSigner, rt.logger)
	} else {
		if len(accounts) == 0 {
			_ = rt.session.Bind(nil)
			return fmt.Errorf("wallet exposes no accounts and no signing key is configured")
		}
		typedSigner = signer.NewWalletSigner(rt.provider, accounts[0], rt.logger)
	}

	contract := yieldCalculator.NewClient(addr, chainID, chain.RPCClient, tr, rt.logger)
	return rt.session.Bind(&session.Binding{
		ChainID:  chainID,
		Signer:   typedSigner,
		Contract: contract,
	})
}

// connect queries the wallet once and binds to what it reports.
func (rt *runtime) connect(ctx context.Context) error {
	chainID, err := wallet.ChainID(ctx, rt.provider)
	if err != nil {
		return fmt.Errorf("failed to query chain id: %w", err)
	}
	var accounts []common.Address
	if rt.txSigner == nil {
		accounts, err = wallet.Accounts(ctx, rt.provider)
		if err != nil {
			return fmt.Errorf("failed to query accounts: %w", err)
		}
	}
	return rt.bind(ctx, chainID, accounts)
}

// instance waits for the lifecycle to settle and surfaces construction errors.
func (rt *runtime) instance(ctx context.Context) (fhevm.Instance, error) {
	st, err := rt.lifecycle.WaitSettled(ctx)
	if err != nil {
		return nil, err
	}
	switch st.Status {
	case lifecycle.StatusReady:
		return st.Instance, nil
	case lifecycle.StatusError:
		return nil, st.Err
	}
	return nil, fmt.Errorf("fhevm instance is %s", st.Status)
}
