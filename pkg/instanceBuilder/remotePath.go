package instanceBuilder

import (
	"context"
	"errors"
	"strings"

	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevm"
	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevmConfig"
	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevmErrors"
	"go.uber.org/zap"
)

// staleSignerMessages identify a relayer whose on-chain signer list no
// longer matches the bundled configuration.
var staleSignerMessages = []string{
	"stale signer",
	"getkmssigners",
	"getcoprocessorsigners",
	"signers list",
}

// staleSignerCodes are error codes reported for the same condition.
var staleSignerCodes = []string{"BAD_DATA"}

type codedError interface {
	Code() string
}

// IsStaleSignerError reports whether err signals an outdated relayer signer list.
func IsStaleSignerError(err error) bool {
	if err == nil {
		return false
	}
	var ce codedError
	if errors.As(err, &ce) {
		for _, c := range staleSignerCodes {
			if ce.Code() == c {
				return true
			}
		}
	}
	msg := strings.ToLower(err.Error())
	for _, m := range staleSignerMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

func (b *InstanceBuilder) buildRemote(ctx context.Context, chainID uint64, target *fhevm.ChainTarget, log *zap.Logger) (fhevm.Instance, error) {
	if err := b.loader.Init(ctx, b.config.InitOptions); err != nil {
		return nil, err
	}
	if err := fhevmErrors.Abort(ctx); err != nil {
		return nil, err
	}
	bundle := b.loader.Bundle()
	if bundle == nil {
		return nil, fhevmErrors.Newf(fhevmErrors.KindSdkUnavailable, "the encryption SDK is not loaded")
	}

	configs := bundle.Configs()
	if len(configs) == 0 {
		bundled, err := fhevmConfig.Bundled()
		if err != nil {
			return nil, err
		}
		configs = bundled
	}

	cfg, err := fhevmConfig.Select(configs, chainID, b.config.Fallbacks)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	network := &fhevm.ChainTarget{ChainID: chainID, Provider: target.Provider, RpcURL: target.RpcURL}
	log.Sugar().Debugw("Creating instance through the SDK",
		zap.String("config", cfg.Name),
		zap.String("relayerUrl", cfg.RelayerURL),
	)
	inst, err := bundle.CreateInstance(ctx, cfg, network)
	if abortErr := fhevmErrors.Abort(ctx); abortErr != nil {
		return nil, abortErr
	}
	if err != nil {
		if IsStaleSignerError(err) {
			return nil, fhevmErrors.New(fhevmErrors.KindRelayerUnavailable,
				"the relayer signer list is out of date, supported chain ids: "+
					fhevmConfig.FormatChainIDs(fhevmConfig.SupportedChainIDs(configs)), err)
		}
		return nil, err
	}
	if inst == nil {
		return nil, fhevmErrors.Newf(fhevmErrors.KindSdkInitFailed, "the encryption SDK returned no instance")
	}
	return inst, nil
}
