// Package mockInstance implements fhevm.Instance against a local dev node
// running the fhevm mock coprocessor. Ciphertexts are mock packed values,
// input proofs are signed by the node's coprocessor signers and user
// decryption is served by the node's relayer RPC methods.
package mockInstance

import (
	"context"
	"crypto/mlkem"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/Layr-Labs/fhevm-session-go/pkg/chainManager"
	"github.com/Layr-Labs/fhevm-session-go/pkg/encryptedInput"
	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevm"
	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevmErrors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"
)

const (
	MethodInputProof  = "fhevm_relayer_v1_input_proof"
	MethodUserDecrypt = "fhevm_relayer_v1_user_decrypt"

	// MaxDurationDays bounds the validity window of a user decryption request.
	MaxDurationDays = 365
)

// Instance is a dev-node backed fhevm.Instance.
type Instance struct {
	config *fhevm.ProtocolConfig
	rpc    chainManager.RawRPCClient
	logger *zap.Logger
	now    func() time.Time
}

var (
	_ fhevm.Instance       = (*Instance)(nil)
	_ fhevm.InputEncryptor = (*Instance)(nil)
)

type Option func(*Instance)

// WithClock overrides the time source used for request validity checks.
func WithClock(now func() time.Time) Option {
	return func(i *Instance) { i.now = now }
}

// New creates an instance bound to cfg and the dev node reachable through rpc.
func New(cfg *fhevm.ProtocolConfig, rpc chainManager.RawRPCClient, l *zap.Logger, opts ...Option) (*Instance, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ChainID == 0 {
		return nil, fhevmErrors.Newf(fhevmErrors.KindInvalidConfig, "config %q: chainId is missing", cfg.Name)
	}
	if rpc == nil {
		return nil, fmt.Errorf("rpc client is required")
	}
	i := &Instance{config: cfg, rpc: rpc, logger: l, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

func (i *Instance) Config() *fhevm.ProtocolConfig {
	return i.config
}

func (i *Instance) CreateEncryptedInput(contract, user common.Address) fhevm.EncryptedInput {
	return encryptedInput.NewBuilder(contract, user, i)
}

// GenerateKeypair returns a fresh ML-KEM-768 keypair. The private key is the
// 64 byte seed form.
func (i *Instance) GenerateKeypair() (*fhevm.Keypair, error) {
	dk, err := mlkem.GenerateKey768()
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}
	return &fhevm.Keypair{
		PublicKey:  hex.EncodeToString(dk.EncapsulationKey().Bytes()),
		PrivateKey: hex.EncodeToString(dk.Bytes()),
	}, nil
}

func (i *Instance) CreateEIP712(publicKey string, contracts []common.Address, startTimestamp, durationDays int64) (*apitypes.TypedData, error) {
	return fhevm.NewUserDecryptTypedData(i.config, publicKey, contracts, startTimestamp, durationDays)
}

// ValidateKeypair checks that kp holds a matching ML-KEM-768 key pair.
func ValidateKeypair(kp *fhevm.Keypair) error {
	if kp == nil {
		return fmt.Errorf("keypair is nil")
	}
	seed, err := hex.DecodeString(kp.PrivateKey)
	if err != nil {
		return fmt.Errorf("private key is not hex: %w", err)
	}
	dk, err := mlkem.NewDecapsulationKey768(seed)
	if err != nil {
		return fmt.Errorf("invalid private key: %w", err)
	}
	if hex.EncodeToString(dk.EncapsulationKey().Bytes()) != kp.PublicKey {
		return fmt.Errorf("public key does not match private key")
	}
	return nil
}

func chainIDHex(id uint64) string {
	return "0x" + new(big.Int).SetUint64(id).Text(16)
}

func (i *Instance) call(ctx context.Context, result any, method string, args ...any) error {
	start := time.Now()
	err := i.rpc.CallContext(ctx, result, method, args...)
	i.logger.Sugar().Debugw("Dev node relayer call",
		zap.String("method", method),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)
	return err
}
