package instanceBuilder

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/Layr-Labs/fhevm-session-go/pkg/chainManager"
	"github.com/Layr-Labs/fhevm-session-go/pkg/chainResolver"
	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevm"
	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevmErrors"
	"github.com/Layr-Labs/fhevm-session-go/pkg/mockInstance"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const (
	MethodClientVersion   = "web3_clientVersion"
	MethodRelayerMetadata = "fhevm_relayer_metadata"
)

const eip712DomainABI = `[{"inputs":[],"name":"eip712Domain","outputs":[
{"name":"fields","type":"bytes1"},
{"name":"name","type":"string"},
{"name":"version","type":"string"},
{"name":"chainId","type":"uint256"},
{"name":"verifyingContract","type":"address"},
{"name":"salt","type":"bytes32"},
{"name":"extensions","type":"uint256[]"}],
"stateMutability":"view","type":"function"}]`

var eip712DomainParsed = mustParseABI(eip712DomainABI)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Domain is the part of an EIP-712 domain the mock path relies on.
type Domain struct {
	ChainID           *big.Int
	VerifyingContract common.Address
}

// ReadEIP712Domain calls eip712Domain() on a verifier contract.
func ReadEIP712Domain(ctx context.Context, caller bind.ContractCaller, address common.Address) (*Domain, error) {
	contract := bind.NewBoundContract(address, eip712DomainParsed, caller, nil, nil)
	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "eip712Domain"); err != nil {
		return nil, fmt.Errorf("failed to read eip712Domain of %s: %w", address.Hex(), err)
	}
	if len(out) != 7 {
		return nil, fmt.Errorf("unexpected eip712Domain result length %d", len(out))
	}
	chainID, ok := out[3].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected eip712Domain chainId type %T", out[3])
	}
	verifying, ok := out[4].(common.Address)
	if !ok {
		return nil, fmt.Errorf("unexpected eip712Domain verifyingContract type %T", out[4])
	}
	return &Domain{ChainID: chainID, VerifyingContract: verifying}, nil
}

// fetchRelayerMetadata asks the node who it is and, only when it is the
// expected dev node kind, for its relayer metadata. A nil result with a nil
// error means the node is not a dev node.
func (b *InstanceBuilder) fetchRelayerMetadata(ctx context.Context, raw chainManager.RawRPCClient, log *zap.Logger) (*fhevm.RelayerMetadata, error) {
	var version string
	err := raw.CallContext(ctx, &version, MethodClientVersion)
	if abortErr := fhevmErrors.Abort(ctx); abortErr != nil {
		return nil, abortErr
	}
	if err != nil {
		return nil, fhevmErrors.New(fhevmErrors.KindNetworkUnreachable, "failed to query client version", err)
	}
	if !strings.Contains(strings.ToLower(version), strings.ToLower(b.config.DevNodeKind)) {
		log.Sugar().Infow("Node is not a dev node, skipping mock path", zap.String("clientVersion", version))
		return nil, nil
	}

	var meta fhevm.RelayerMetadata
	err = raw.CallContext(ctx, &meta, MethodRelayerMetadata)
	if abortErr := fhevmErrors.Abort(ctx); abortErr != nil {
		return nil, abortErr
	}
	if err != nil {
		log.Sugar().Infow("Dev node has no relayer metadata, skipping mock path", zap.Error(err))
		return nil, nil
	}
	zero := common.Address{}
	if meta.ACLAddress == zero || meta.InputVerifierAddress == zero || meta.KMSVerifierAddress == zero {
		log.Sugar().Infow("Dev node relayer metadata is incomplete, skipping mock path", zap.Any("metadata", meta))
		return nil, nil
	}
	return &meta, nil
}

// buildMock returns (nil, nil) when the endpoint is not an fhevm dev node so
// the caller can continue on the remote path.
func (b *InstanceBuilder) buildMock(ctx context.Context, res *chainResolver.Resolution, log *zap.Logger) (fhevm.Instance, error) {
	chain, err := b.chains.GetOrAddChain(ctx, &chainManager.ChainConfig{ChainID: res.ChainID, RPCUrl: res.RpcURL})
	if abortErr := fhevmErrors.Abort(ctx); abortErr != nil {
		return nil, abortErr
	}
	if err != nil {
		return nil, fhevmErrors.New(fhevmErrors.KindNetworkUnreachable, "failed to connect to dev node", err)
	}

	meta, err := b.fetchRelayerMetadata(ctx, chain.RawClient, log)
	if err != nil || meta == nil {
		return nil, err
	}

	ivDomain, err := ReadEIP712Domain(ctx, chain.RPCClient, meta.InputVerifierAddress)
	if abortErr := fhevmErrors.Abort(ctx); abortErr != nil {
		return nil, abortErr
	}
	if err != nil {
		return nil, fhevmErrors.New(fhevmErrors.KindNetworkUnreachable, "failed to read InputVerifier domain", err)
	}
	kmsDomain, err := ReadEIP712Domain(ctx, chain.RPCClient, meta.KMSVerifierAddress)
	if abortErr := fhevmErrors.Abort(ctx); abortErr != nil {
		return nil, abortErr
	}
	if err != nil {
		return nil, fhevmErrors.New(fhevmErrors.KindNetworkUnreachable, "failed to read KMSVerifier domain", err)
	}

	if ivDomain.ChainID.Cmp(kmsDomain.ChainID) != 0 {
		return nil, fhevmErrors.Newf(fhevmErrors.KindConfigMismatch,
			"gateway chain id mismatch: InputVerifier uses %s, but KMSVerifier uses %s", ivDomain.ChainID, kmsDomain.ChainID)
	}
	if !ivDomain.ChainID.IsUint64() {
		return nil, fhevmErrors.Newf(fhevmErrors.KindConfigMismatch, "gateway chain id %s does not fit uint64", ivDomain.ChainID)
	}

	cfg := &fhevm.ProtocolConfig{
		Name:                               DefaultDevNodeKind,
		ChainID:                            res.ChainID,
		GatewayChainID:                     ivDomain.ChainID.Uint64(),
		ACLContractAddress:                 meta.ACLAddress,
		KMSContractAddress:                 meta.KMSVerifierAddress,
		InputVerifierContractAddress:       meta.InputVerifierAddress,
		VerifyingContractAddressDecryption: kmsDomain.VerifyingContract,
		VerifyingContractAddressInputVerification: ivDomain.VerifyingContract,
		RelayerURL: res.RpcURL,
	}
	inst, err := mockInstance.New(cfg, chain.RawClient, log)
	if err != nil {
		return nil, err
	}
	return inst, nil
}
