// Package chainManager keeps one RPC connection per chain id. Each chain
// exposes a typed client for contract bindings and a raw JSON-RPC client for
// node introspection calls (dev node metadata, relayer RPCs).
package chainManager

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/Layr-Labs/fhevm-session-go/pkg/logger"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

var (
	// ErrChainNotFound is returned when a requested chain ID is not found in the manager
	ErrChainNotFound = errors.New("chain not found")
)

// IChainManager defines the interface for managing blockchain connections.
type IChainManager interface {
	// AddChain dials and registers a chain, failing if it already exists
	AddChain(ctx context.Context, cfg *ChainConfig) error
	// GetOrAddChain returns the registered chain for cfg.ChainID, dialing it on first use
	GetOrAddChain(ctx context.Context, cfg *ChainConfig) (*Chain, error)
	// GetChainForId retrieves a chain connection by its chain ID
	GetChainForId(chainId uint64) (*Chain, error)
}

// ChainConfig holds the configuration for connecting to a blockchain.
type ChainConfig struct {
	// ChainID is the unique identifier for the blockchain network
	ChainID uint64
	// RPCUrl is the URL endpoint for connecting to the blockchain RPC
	RPCUrl string
}

// RawRPCClient is the subset of rpc.Client used for non-standard methods.
type RawRPCClient interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

// Chain represents an active connection to a blockchain.
type Chain struct {
	config *ChainConfig
	// RPCClient is the typed client used by contract bindings
	RPCClient EthClientInterface
	// RawClient issues raw JSON-RPC calls against the same endpoint
	RawClient RawRPCClient
}

// NewChain assembles a Chain from already connected clients.
func NewChain(cfg *ChainConfig, client EthClientInterface, raw RawRPCClient) *Chain {
	return &Chain{config: cfg, RPCClient: client, RawClient: raw}
}

// Config returns the configuration the chain was registered with.
func (c *Chain) Config() *ChainConfig {
	return c.config
}

// DialFunc connects to an RPC endpoint.
type DialFunc func(ctx context.Context, cfg *ChainConfig) (*Chain, error)

// ChainManager implements IChainManager.
// This implementation is thread-safe using sync.Map for concurrent access.
type ChainManager struct {
	Chains sync.Map // map[uint64]*Chain

	dial   DialFunc
	logger *zap.Logger
}

// NewChainManager creates a new ChainManager instance.
//
// Parameters:
//   - l: Logger used for connection events and JSON-RPC traffic
//
// Returns:
//   - *ChainManager: A new chain manager instance
func NewChainManager(l *zap.Logger) *ChainManager {
	cm := &ChainManager{logger: l}
	cm.dial = cm.dialHTTP
	return cm
}

// NewChainManagerWithDialer creates a ChainManager that connects with dial.
func NewChainManagerWithDialer(dial DialFunc, l *zap.Logger) *ChainManager {
	return &ChainManager{dial: dial, logger: l}
}

func (cm *ChainManager) dialHTTP(ctx context.Context, cfg *ChainConfig) (*Chain, error) {
	httpClient := &http.Client{Transport: logger.NewHttpLoggingTransport(nil, cm.logger)}
	rc, err := rpc.DialOptions(ctx, cfg.RPCUrl, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC URL %s: %w", cfg.RPCUrl, err)
	}
	return NewChain(cfg, ethclient.NewClient(rc), rc), nil
}

// AddChain adds a new blockchain connection to the manager.
//
// Parameters:
//   - ctx: Context for the dial
//   - cfg: The chain configuration containing chain ID and RPC URL
//
// Returns:
//   - error: An error if the chain already exists or connection fails
func (cm *ChainManager) AddChain(ctx context.Context, cfg *ChainConfig) error {
	if _, exists := cm.Chains.Load(cfg.ChainID); exists {
		return fmt.Errorf("chain with ID %d already exists", cfg.ChainID)
	}
	_, err := cm.GetOrAddChain(ctx, cfg)
	return err
}

// RegisterChain stores an already connected chain.
func (cm *ChainManager) RegisterChain(chain *Chain) error {
	if _, loaded := cm.Chains.LoadOrStore(chain.config.ChainID, chain); loaded {
		return fmt.Errorf("chain with ID %d already exists", chain.config.ChainID)
	}
	return nil
}

// GetOrAddChain returns the chain registered for cfg.ChainID, dialing it if
// needed. A registered chain pointing at a different RPC URL is replaced.
//
// Parameters:
//   - ctx: Context for the dial
//   - cfg: The chain configuration containing chain ID and RPC URL
//
// Returns:
//   - *Chain: The registered chain
//   - error: An error if the connection fails
func (cm *ChainManager) GetOrAddChain(ctx context.Context, cfg *ChainConfig) (*Chain, error) {
	if existing, err := cm.GetChainForId(cfg.ChainID); err == nil {
		if existing.config.RPCUrl == cfg.RPCUrl {
			return existing, nil
		}
		cm.Chains.CompareAndDelete(cfg.ChainID, existing)
		closeChain(existing)
	}

	chain, err := cm.dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	actual, loaded := cm.Chains.LoadOrStore(cfg.ChainID, chain)
	if loaded {
		closeChain(chain)
		return actual.(*Chain), nil
	}
	cm.logger.Sugar().Debugw("Connected chain",
		zap.Uint64("chainId", cfg.ChainID),
		zap.String("rpcUrl", cfg.RPCUrl),
	)
	return chain, nil
}

// GetChainForId retrieves a chain connection by its chain ID.
//
// Parameters:
//   - chainId: The chain ID to look up
//
// Returns:
//   - *Chain: The chain connection if found
//   - error: ErrChainNotFound if the chain ID is not registered
func (cm *ChainManager) GetChainForId(chainId uint64) (*Chain, error) {
	value, exists := cm.Chains.Load(chainId)
	if !exists {
		return nil, ErrChainNotFound
	}
	chain, ok := value.(*Chain)
	if !ok {
		return nil, fmt.Errorf("invalid chain type stored for ID %d", chainId)
	}
	return chain, nil
}

// Close closes every registered connection.
func (cm *ChainManager) Close() {
	cm.Chains.Range(func(key, value any) bool {
		if chain, ok := value.(*Chain); ok {
			closeChain(chain)
		}
		cm.Chains.Delete(key)
		return true
	})
}

type closer interface {
	Close()
}

func closeChain(c *Chain) {
	if cl, ok := c.RPCClient.(closer); ok {
		cl.Close()
		return
	}
	if cl, ok := c.RawClient.(closer); ok {
		cl.Close()
	}
}
