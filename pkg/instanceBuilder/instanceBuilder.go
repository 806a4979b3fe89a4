// Package instanceBuilder constructs an fhevm.Instance for a chain target.
//
// Local dev chains take the mock path: the dev node is asked who it is and
// for its relayer metadata, the two verifier contracts are asked for their
// EIP-712 domains, and a dev-node backed instance is built from what they
// report. Every other chain takes the remote path through the encryption
// SDK. Both paths check the caller's context on entry, after every round
// trip and before returning, and never return a partial instance.
package instanceBuilder

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Layr-Labs/fhevm-session-go/pkg/chainManager"
	"github.com/Layr-Labs/fhevm-session-go/pkg/chainResolver"
	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevm"
	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevmConfig"
	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevmErrors"
	"github.com/Layr-Labs/fhevm-session-go/pkg/metrics"
	"github.com/Layr-Labs/fhevm-session-go/pkg/sdkLoader"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	PathMock   = "mock"
	PathRemote = "remote"

	// DefaultDevNodeKind must appear in web3_clientVersion for the mock path.
	DefaultDevNodeKind = "hardhat"
)

// IInstanceBuilder builds instances for chain targets.
type IInstanceBuilder interface {
	Build(ctx context.Context, target *fhevm.ChainTarget) (fhevm.Instance, error)
}

// ISdkLoader is the part of the SDK loader the remote path needs.
type ISdkLoader interface {
	Init(ctx context.Context, opts *sdkLoader.InitOptions) error
	Bundle() sdkLoader.Bundle
}

type Config struct {
	// DevNodeKind is matched case-insensitively against web3_clientVersion.
	DevNodeKind string
	InitOptions *sdkLoader.InitOptions
	Fallbacks   fhevmConfig.FallbackTable
}

type InstanceBuilder struct {
	config   *Config
	resolver *chainResolver.Resolver
	loader   ISdkLoader
	chains   chainManager.IChainManager
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

var _ IInstanceBuilder = (*InstanceBuilder)(nil)

// NewInstanceBuilder creates a builder. metrics may be nil.
func NewInstanceBuilder(
	cfg *Config,
	resolver *chainResolver.Resolver,
	loader ISdkLoader,
	chains chainManager.IChainManager,
	m *metrics.Metrics,
	l *zap.Logger,
) *InstanceBuilder {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.DevNodeKind == "" {
		cfg.DevNodeKind = DefaultDevNodeKind
	}
	if cfg.Fallbacks == nil {
		cfg.Fallbacks = fhevmConfig.LegacyFallbacks
	}
	return &InstanceBuilder{
		config:   cfg,
		resolver: resolver,
		loader:   loader,
		chains:   chains,
		metrics:  m,
		logger:   l,
	}
}

// Build resolves target and constructs an instance on the matching path.
func (b *InstanceBuilder) Build(ctx context.Context, target *fhevm.ChainTarget) (fhevm.Instance, error) {
	buildID := uuid.New().String()
	start := time.Now()
	log := b.logger.With(zap.String("buildId", buildID))

	if err := fhevmErrors.Abort(ctx); err != nil {
		return nil, err
	}

	res, err := b.resolver.Resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	log.Sugar().Infow("Building instance",
		zap.Uint64("chainId", res.ChainID),
		zap.Bool("isMock", res.IsMock),
	)

	path := PathRemote
	var inst fhevm.Instance
	if res.IsMock {
		path = PathMock
		inst, err = b.buildMock(ctx, res, log)
	}
	if err == nil && inst == nil {
		path = PathRemote
		inst, err = b.buildRemote(ctx, res.ChainID, target, log)
	}

	if err == nil {
		err = fhevmErrors.Abort(ctx)
	}
	if err != nil {
		result := "error"
		if fhevmErrors.IsAbort(err) {
			result = "aborted"
		}
		b.metrics.InstanceBuilt(path, result)
		log.Sugar().Infow("Instance build did not complete",
			zap.String("path", path),
			zap.String("result", result),
			zap.Error(err),
		)
		return nil, err
	}

	b.metrics.InstanceBuilt(path, "success")
	b.metrics.InstanceBuildLatency(path, strconv.FormatUint(res.ChainID, 10), time.Since(start))
	log.Sugar().Infow("Built instance",
		zap.String("path", path),
		zap.String("config", inst.Config().Name),
		zap.Uint64("gatewayChainId", inst.Config().GatewayChainID),
		zap.Duration("duration", time.Since(start)),
	)
	return inst, nil
}

func (b *InstanceBuilder) String() string {
	return fmt.Sprintf("InstanceBuilder{devNodeKind=%s}", b.config.DevNodeKind)
}
