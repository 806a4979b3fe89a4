// Package chainResolver classifies a chain target as a local mock dev chain
// or a production chain.
package chainResolver

import (
	"context"
	"maps"

	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevm"
	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevmErrors"
	"github.com/Layr-Labs/fhevm-session-go/pkg/wallet"
	"go.uber.org/zap"
)

// DefaultMockChains maps the standard local dev chain id to its RPC URL.
var DefaultMockChains = map[uint64]string{
	31337: "http://localhost:8545",
}

// Resolution is the outcome of a resolve call. RpcURL is only set for mock chains.
type Resolution struct {
	IsMock  bool
	ChainID uint64
	RpcURL  string
}

// DialFunc connects a provider for a target that only carries an RPC URL.
type DialFunc func(ctx context.Context, url string) (wallet.Provider, error)

type Resolver struct {
	mockChains map[uint64]string
	dial       DialFunc
	logger     *zap.Logger
}

// NewResolver creates a Resolver. A nil mockChains uses DefaultMockChains; a
// nil dial connects over HTTP.
func NewResolver(mockChains map[uint64]string, dial DialFunc, l *zap.Logger) *Resolver {
	if mockChains == nil {
		mockChains = DefaultMockChains
	}
	if dial == nil {
		dial = func(ctx context.Context, url string) (wallet.Provider, error) {
			return wallet.DialRpcProvider(ctx, url, l)
		}
	}
	return &Resolver{
		mockChains: maps.Clone(mockChains),
		dial:       dial,
		logger:     l,
	}
}

// MockChains returns a copy of the mock chain table.
func (r *Resolver) MockChains() map[uint64]string {
	return maps.Clone(r.mockChains)
}

// Resolve queries the chain id of target and checks it against the mock table.
func (r *Resolver) Resolve(ctx context.Context, target *fhevm.ChainTarget) (*Resolution, error) {
	if err := fhevmErrors.Abort(ctx); err != nil {
		return nil, err
	}
	if target == nil || (target.Provider == nil && target.RpcURL == "") {
		return nil, fhevmErrors.Newf(fhevmErrors.KindNetworkUnreachable, "no provider or rpc url to resolve")
	}

	provider := target.Provider
	if provider == nil {
		p, err := r.dial(ctx, target.RpcURL)
		if err != nil {
			if abortErr := fhevmErrors.Abort(ctx); abortErr != nil {
				return nil, abortErr
			}
			return nil, fhevmErrors.New(fhevmErrors.KindNetworkUnreachable, "failed to connect to "+target.RpcURL, err)
		}
		if c, ok := p.(interface{ Close() }); ok {
			defer c.Close()
		}
		provider = p
	}

	chainID, err := wallet.ChainID(ctx, provider)
	if abortErr := fhevmErrors.Abort(ctx); abortErr != nil {
		return nil, abortErr
	}
	if err != nil {
		return nil, fhevmErrors.New(fhevmErrors.KindNetworkUnreachable, "failed to query chain id", err)
	}

	res := &Resolution{ChainID: chainID}
	if url, ok := r.mockChains[chainID]; ok {
		res.IsMock = true
		res.RpcURL = url
	}
	r.logger.Sugar().Debugw("Resolved chain",
		zap.Uint64("chainId", res.ChainID),
		zap.Bool("isMock", res.IsMock),
		zap.String("rpcUrl", res.RpcURL),
	)
	return res, nil
}
