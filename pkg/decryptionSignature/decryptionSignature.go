// Package decryptionSignature caches user decryption authorizations.
//
// An authorization is a fresh keypair plus the user's EIP-712 signature over
// the keypair's public key, a contract set and a validity window. LoadOrSign
// returns a cached authorization when it is still valid for exactly the
// requested contracts and user, and otherwise asks the signer for a new one.
// Signing is the only point that prompts the user.
package decryptionSignature

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevm"
	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevmErrors"
	"github.com/Layr-Labs/fhevm-session-go/pkg/metrics"
	"github.com/Layr-Labs/fhevm-session-go/pkg/signer"
	"github.com/Layr-Labs/fhevm-session-go/pkg/storage"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const (
	DefaultDurationDays = 365
	secondsPerDay       = 24 * 60 * 60
)

// DecryptionSignature is the persisted authorization.
type DecryptionSignature struct {
	PublicKey         string           `json:"publicKey"`
	PrivateKey        string           `json:"privateKey"`
	Signature         string           `json:"signature"`
	ContractAddresses []common.Address `json:"contractAddresses"`
	UserAddress       common.Address   `json:"userAddress"`
	StartTimestamp    int64            `json:"startTimestamp"`
	DurationDays      int64            `json:"durationDays"`
}

// ExpiresAt is the first instant the signature is no longer accepted.
func (d *DecryptionSignature) ExpiresAt() time.Time {
	return time.Unix(d.StartTimestamp+d.DurationDays*secondsPerDay, 0)
}

// IsValid reports whether the keypair is well formed and now is before expiry.
func (d *DecryptionSignature) IsValid(now time.Time) bool {
	if d == nil || d.DurationDays <= 0 || d.Signature == "" {
		return false
	}
	if !isHex(d.PublicKey) || !isHex(d.PrivateKey) {
		return false
	}
	return now.Before(d.ExpiresAt())
}

// Covers reports whether the signature was made by user for exactly set.
func (d *DecryptionSignature) Covers(set *ContractSet, user common.Address) bool {
	if d == nil || d.UserAddress != user {
		return false
	}
	stored, err := NewContractSet(d.ContractAddresses)
	if err != nil {
		return false
	}
	return stored.Equal(set)
}

// UserDecryptRequest builds a decryption request for handles using this authorization.
func (d *DecryptionSignature) UserDecryptRequest(handles []fhevm.HandleContractPair) *fhevm.UserDecryptRequest {
	return &fhevm.UserDecryptRequest{
		Handles:           handles,
		PrivateKey:        d.PrivateKey,
		PublicKey:         d.PublicKey,
		Signature:         d.Signature,
		ContractAddresses: append([]common.Address(nil), d.ContractAddresses...),
		UserAddress:       d.UserAddress,
		StartTimestamp:    d.StartTimestamp,
		DurationDays:      d.DurationDays,
	}
}

func isHex(s string) bool {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

type Config struct {
	// DurationDays is the validity window of new signatures.
	DurationDays int64
}

// Cache implements load-or-sign over a string storage. It keeps no state of
// its own; concurrent writers race and the last write wins.
type Cache struct {
	config  *Config
	storage storage.IStringStorage
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

type Option func(*Cache)

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a cache. cfg and metrics may be nil.
func NewCache(cfg *Config, s storage.IStringStorage, m *metrics.Metrics, l *zap.Logger, opts ...Option) *Cache {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.DurationDays <= 0 {
		cfg.DurationDays = DefaultDurationDays
	}
	c := &Cache{
		config:  cfg,
		storage: s,
		metrics: m,
		logger:  l,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Key returns the storage key for user and set.
func Key(user common.Address, set *ContractSet) string {
	return strings.ToLower(user.Hex()) + ":" + set.RootHex()
}

// LoadOrSign returns a valid authorization for contracts and the signer's
// address, prompting the signer only when no valid cached one exists.
func (c *Cache) LoadOrSign(
	ctx context.Context,
	inst fhevm.Instance,
	contracts []common.Address,
	s signer.ITypedDataSigner,
) (*DecryptionSignature, error) {
	user, err := s.GetAddress()
	if err != nil {
		return nil, fmt.Errorf("failed to get signer address: %w", err)
	}
	set, err := NewContractSet(contracts)
	if err != nil {
		return nil, err
	}
	key := Key(user, set)

	if cached := c.load(ctx, key, set, user); cached != nil {
		return cached, nil
	}
	if err := fhevmErrors.Abort(ctx); err != nil {
		return nil, err
	}

	sig, err := c.sign(ctx, inst, set, user, s)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(sig)
	if err != nil {
		return nil, fmt.Errorf("failed to encode decryption signature: %w", err)
	}
	if err := c.storage.SetItem(ctx, key, string(payload)); err != nil {
		c.logger.Sugar().Warnw("Failed to persist decryption signature",
			zap.String("key", key),
			zap.Error(err),
		)
	}
	return sig, nil
}

// Remove forgets the cached authorization for user and contracts.
func (c *Cache) Remove(ctx context.Context, user common.Address, contracts []common.Address) error {
	set, err := NewContractSet(contracts)
	if err != nil {
		return err
	}
	return c.storage.RemoveItem(ctx, Key(user, set))
}

func (c *Cache) load(ctx context.Context, key string, set *ContractSet, user common.Address) *DecryptionSignature {
	raw, ok, err := c.storage.GetItem(ctx, key)
	if err != nil {
		c.logger.Sugar().Warnw("Failed to read cached decryption signature",
			zap.String("key", key),
			zap.Error(err),
		)
		c.metrics.SignatureLookup(metrics.LookupMiss)
		return nil
	}
	if !ok {
		c.metrics.SignatureLookup(metrics.LookupMiss)
		return nil
	}

	var sig DecryptionSignature
	if err := json.Unmarshal([]byte(raw), &sig); err != nil {
		c.logger.Sugar().Warnw("Ignoring corrupt cached decryption signature",
			zap.String("key", key),
			zap.Error(err),
		)
		c.metrics.SignatureLookup(metrics.LookupCorrupt)
		return nil
	}
	if !sig.Covers(set, user) {
		c.metrics.SignatureLookup(metrics.LookupMismatch)
		return nil
	}
	if !sig.IsValid(c.now()) {
		c.logger.Sugar().Infow("Cached decryption signature expired or malformed",
			zap.String("key", key),
			zap.Time("expiresAt", sig.ExpiresAt()),
		)
		c.metrics.SignatureLookup(metrics.LookupExpired)
		return nil
	}
	c.metrics.SignatureLookup(metrics.LookupHit)
	return &sig
}

func (c *Cache) sign(
	ctx context.Context,
	inst fhevm.Instance,
	set *ContractSet,
	user common.Address,
	s signer.ITypedDataSigner,
) (*DecryptionSignature, error) {
	kp, err := inst.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}
	start := c.now().Unix()
	contracts := set.Addresses()

	td, err := inst.CreateEIP712(kp.PublicKey, contracts, start, c.config.DurationDays)
	if err != nil {
		return nil, fmt.Errorf("failed to create EIP-712 payload: %w", err)
	}

	c.logger.Sugar().Infow("Requesting decryption signature",
		zap.String("user", user.Hex()),
		zap.Int("contracts", len(contracts)),
		zap.Int64("durationDays", c.config.DurationDays),
	)
	signature, err := s.SignTypedData(ctx, td)
	if err != nil {
		if ctx.Err() != nil || fhevmErrors.IsAbort(err) {
			return nil, fhevmErrors.New(fhevmErrors.KindAbort, "signing was cancelled", err)
		}
		c.metrics.SignaturePrompt("denied")
		if fhevmErrors.IsKind(err, fhevmErrors.KindSignatureDenied) {
			return nil, err
		}
		return nil, fhevmErrors.New(fhevmErrors.KindSignatureDenied, "failed to sign decryption authorization", err)
	}
	c.metrics.SignaturePrompt("signed")

	return &DecryptionSignature{
		PublicKey:         kp.PublicKey,
		PrivateKey:        kp.PrivateKey,
		Signature:         signature,
		ContractAddresses: contracts,
		UserAddress:       user,
		StartTimestamp:    start,
		DurationDays:      c.config.DurationDays,
	}, nil
}
