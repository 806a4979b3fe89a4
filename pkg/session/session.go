// Package session runs the multi-step operations a user performs against a
// SecureYieldCalculator deployment: refreshing encrypted handles, decrypting
// them, and submitting encrypted calculations or rate changes.
//
// A session is bound to a chain, an account and a contract. Rebinding to a
// different value of any of them bumps the session generation. Every
// operation captures the generation when it starts and re-checks it after
// each network round trip; an operation whose binding drifted returns
// StaleState and commits nothing. Transactions already sent stay sent.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/Layr-Labs/fhevm-session-go/pkg/decryptionSignature"
	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevm"
	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevmErrors"
	"github.com/Layr-Labs/fhevm-session-go/pkg/lifecycle"
	"github.com/Layr-Labs/fhevm-session-go/pkg/signer"
	"github.com/Layr-Labs/fhevm-session-go/pkg/yieldCalculator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

var (
	ErrNotBound         = errors.New("session is not bound to a chain, account and contract")
	ErrInstanceNotReady = errors.New("fhevm instance is not ready")
)

// IInstanceSource exposes the current lifecycle state.
type IInstanceSource interface {
	State() lifecycle.State
}

// Binding is what a session operates on.
type Binding struct {
	ChainID  uint64
	Signer   signer.ITypedDataSigner
	Contract yieldCalculator.IYieldCalculator
}

// Handles are the encrypted results of the account's last calculation.
type Handles struct {
	Yield fhevm.Handle
	Total fhevm.Handle
}

// Balances are decrypted Handles.
type Balances struct {
	Yield *big.Int
	Total *big.Int
}

type snapshot struct {
	generation uint64
	chainID    uint64
	account    common.Address
	signer     signer.ITypedDataSigner
	contract   yieldCalculator.IYieldCalculator
}

type Session struct {
	instances IInstanceSource
	cache     *decryptionSignature.Cache
	logger    *zap.Logger

	mu         sync.Mutex
	generation uint64
	bound      *snapshot
	handles    *Handles
	balances   *Balances
}

func NewSession(instances IInstanceSource, cache *decryptionSignature.Cache, l *zap.Logger) *Session {
	return &Session{
		instances: instances,
		cache:     cache,
		logger:    l,
	}
}

// Bind points the session at b. A nil b unbinds it. Any change of chain id,
// account or contract address bumps the generation and drops cached results.
func (s *Session) Bind(b *Binding) error {
	var next *snapshot
	if b != nil {
		if b.Signer == nil || b.Contract == nil {
			return fmt.Errorf("binding requires a signer and a contract")
		}
		account, err := b.Signer.GetAddress()
		if err != nil {
			return fmt.Errorf("failed to get signer address: %w", err)
		}
		next = &snapshot{
			chainID:  b.ChainID,
			account:  account,
			signer:   b.Signer,
			contract: b.Contract,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sameBinding(s.bound, next) {
		if next != nil {
			next.generation = s.generation
			s.bound = next
		}
		return nil
	}
	s.generation++
	if next != nil {
		next.generation = s.generation
	}
	s.bound = next
	s.handles = nil
	s.balances = nil
	s.logger.Sugar().Debugw("Session rebound", zap.Uint64("generation", s.generation))
	return nil
}

func sameBinding(a, b *snapshot) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.chainID == b.chainID &&
		a.account == b.account &&
		a.contract.Address() == b.contract.Address()
}

// Generation returns the current binding generation.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Account returns the bound account.
func (s *Session) Account() (common.Address, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound == nil {
		return common.Address{}, false
	}
	return s.bound.account, true
}

// Handles returns the handles of the last successful refresh.
func (s *Session) Handles() *Handles {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handles
}

// Balances returns the values of the last successful decryption.
func (s *Session) Balances() *Balances {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances
}

func (s *Session) capture() (*snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound == nil {
		return nil, ErrNotBound
	}
	snap := *s.bound
	return &snap, nil
}

// check is run after every suspension point.
func (s *Session) check(ctx context.Context, snap *snapshot, step string) error {
	if err := fhevmErrors.Abort(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	current := s.generation
	s.mu.Unlock()
	if current != snap.generation {
		s.logger.Sugar().Infow("Abandoning stale operation",
			zap.String("step", step),
			zap.Uint64("startedAt", snap.generation),
			zap.Uint64("current", current),
		)
		return fhevmErrors.Newf(fhevmErrors.KindStaleState, "chain, account or contract changed during %s", step)
	}
	return nil
}

// commit applies fn under the lock if snap is still current.
func (s *Session) commit(snap *snapshot, step string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != snap.generation {
		return fhevmErrors.Newf(fhevmErrors.KindStaleState, "chain, account or contract changed during %s", step)
	}
	fn()
	return nil
}

func (s *Session) instance(snap *snapshot) (fhevm.Instance, error) {
	st := s.instances.State()
	switch st.Status {
	case lifecycle.StatusReady:
	case lifecycle.StatusError:
		return nil, fmt.Errorf("%w: %w", ErrInstanceNotReady, st.Err)
	default:
		return nil, fmt.Errorf("%w (status %s)", ErrInstanceNotReady, st.Status)
	}
	if id := st.Instance.Config().ChainID; id != 0 && id != snap.chainID {
		return nil, fhevmErrors.Newf(fhevmErrors.KindStaleState, "instance is for chain %d but session is bound to chain %d", id, snap.chainID)
	}
	return st.Instance, nil
}

// RefreshHandles reads the encrypted yield and total of the bound account.
func (s *Session) RefreshHandles(ctx context.Context) (*Handles, error) {
	snap, err := s.capture()
	if err != nil {
		return nil, err
	}
	return s.refreshHandles(ctx, snap)
}

func (s *Session) refreshHandles(ctx context.Context, snap *snapshot) (*Handles, error) {
	yield, err := snap.contract.GetLastYield(ctx, snap.account)
	if err != nil {
		return nil, fmt.Errorf("failed to read last yield: %w", err)
	}
	if err := s.check(ctx, snap, "refresh"); err != nil {
		return nil, err
	}
	total, err := snap.contract.GetLastTotal(ctx, snap.account)
	if err != nil {
		return nil, fmt.Errorf("failed to read last total: %w", err)
	}

	h := &Handles{Yield: yield, Total: total}
	if err := s.check(ctx, snap, "refresh"); err != nil {
		return nil, err
	}
	if err := s.commit(snap, "refresh", func() {
		s.handles = h
		s.balances = nil
	}); err != nil {
		return nil, err
	}
	s.logger.Sugar().Infow("Refreshed handles",
		zap.String("account", snap.account.Hex()),
		zap.String("yield", yield.Hex()),
		zap.String("total", total.Hex()),
	)
	return h, nil
}

// Decrypt decrypts the last refreshed handles, refreshing first when none
// are known. The decryption authorization is loaded from the signature cache
// or signed once.
func (s *Session) Decrypt(ctx context.Context) (*Balances, error) {
	snap, err := s.capture()
	if err != nil {
		return nil, err
	}
	inst, err := s.instance(snap)
	if err != nil {
		return nil, err
	}

	h := s.Handles()
	if h == nil {
		if h, err = s.refreshHandles(ctx, snap); err != nil {
			return nil, err
		}
	}

	// An uninitialized handle decrypts to zero without a round trip.
	out := &Balances{Yield: new(big.Int), Total: new(big.Int)}
	var pairs []fhevm.HandleContractPair
	for _, handle := range []fhevm.Handle{h.Yield, h.Total} {
		if !handle.IsZero() {
			pairs = append(pairs, fhevm.HandleContractPair{Handle: handle, Contract: snap.contract.Address()})
		}
	}
	if len(pairs) == 0 {
		if err := s.commit(snap, "decrypt", func() { s.balances = out }); err != nil {
			return nil, err
		}
		return out, nil
	}

	sig, err := s.cache.LoadOrSign(ctx, inst, []common.Address{snap.contract.Address()}, snap.signer)
	if err != nil {
		return nil, err
	}
	if err := s.check(ctx, snap, "decrypt"); err != nil {
		return nil, err
	}

	values, err := inst.UserDecrypt(ctx, sig.UserDecryptRequest(pairs))
	if err != nil {
		if ctx.Err() != nil || fhevmErrors.IsAbort(err) {
			return nil, fhevmErrors.New(fhevmErrors.KindAbort, "decryption was cancelled", err)
		}
		if fhevmErrors.KindOf(err) != "" {
			return nil, err
		}
		return nil, fhevmErrors.New(fhevmErrors.KindDecryptionFailed, "failed to decrypt handles", err)
	}
	if err := s.check(ctx, snap, "decrypt"); err != nil {
		return nil, err
	}

	for _, p := range pairs {
		v, ok := values[p.Handle]
		if !ok {
			return nil, fhevmErrors.Newf(fhevmErrors.KindDecryptionFailed, "no value returned for handle %s", p.Handle.Hex())
		}
		if p.Handle == h.Yield {
			out.Yield = v
		}
		if p.Handle == h.Total {
			out.Total = v
		}
	}
	if err := s.commit(snap, "decrypt", func() { s.balances = out }); err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitCalculation encrypts principal and duration in one input and sends
// them to the contract. Cached handles are dropped after a successful send.
func (s *Session) SubmitCalculation(ctx context.Context, principal uint64, duration uint32) (*types.Receipt, error) {
	snap, err := s.capture()
	if err != nil {
		return nil, err
	}
	inst, err := s.instance(snap)
	if err != nil {
		return nil, err
	}

	enc, err := inst.CreateEncryptedInput(snap.contract.Address(), snap.account).
		Add64(principal).
		Add32(duration).
		Encrypt(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.check(ctx, snap, "calculate"); err != nil {
		return nil, err
	}
	if len(enc.Handles) != 2 {
		return nil, fhevmErrors.Newf(fhevmErrors.KindEncryptionFailed, "expected 2 handles, got %d", len(enc.Handles))
	}

	receipt, err := snap.contract.Calculate(ctx, enc.Handles[0], enc.Handles[1], enc.InputProof)
	if err != nil {
		return receipt, s.transactionError(ctx, "calculate", err)
	}
	s.logger.Sugar().Infow("Calculation submitted",
		zap.String("account", snap.account.Hex()),
		zap.String("txHash", receipt.TxHash.Hex()),
	)
	if err := s.commit(snap, "calculate", func() {
		s.handles = nil
		s.balances = nil
	}); err != nil {
		return receipt, err
	}
	return receipt, nil
}

// GetMyRate reads the rate that applies to the bound account.
func (s *Session) GetMyRate(ctx context.Context) (*yieldCalculator.Rate, error) {
	snap, err := s.capture()
	if err != nil {
		return nil, err
	}
	rate, err := snap.contract.GetMyRate(ctx, snap.account)
	if err != nil {
		return nil, fmt.Errorf("failed to read rate: %w", err)
	}
	if err := s.check(ctx, snap, "rate"); err != nil {
		return nil, err
	}
	return rate, nil
}

// SetCustomRate sets a custom rate for the bound account. A binding change
// while the transaction is mined returns the receipt with StaleState.
func (s *Session) SetCustomRate(ctx context.Context, bps uint32) (*types.Receipt, error) {
	snap, err := s.capture()
	if err != nil {
		return nil, err
	}
	receipt, err := snap.contract.SetCustomRate(ctx, bps)
	if err != nil {
		return receipt, s.transactionError(ctx, "setCustomRate", err)
	}
	if err := s.commit(snap, "setCustomRate", func() {}); err != nil {
		return receipt, err
	}
	return receipt, nil
}

func (s *Session) ClearCustomRate(ctx context.Context) (*types.Receipt, error) {
	snap, err := s.capture()
	if err != nil {
		return nil, err
	}
	receipt, err := snap.contract.ClearCustomRate(ctx)
	if err != nil {
		return receipt, s.transactionError(ctx, "clearCustomRate", err)
	}
	if err := s.commit(snap, "clearCustomRate", func() {}); err != nil {
		return receipt, err
	}
	return receipt, nil
}

func (s *Session) transactionError(ctx context.Context, method string, err error) error {
	if ctx.Err() != nil || fhevmErrors.IsAbort(err) {
		return fhevmErrors.New(fhevmErrors.KindAbort, method+" was cancelled", err)
	}
	failure := fhevmErrors.ClassifyTransactionError(err)
	s.logger.Sugar().Warnw("Transaction failed",
		zap.String("method", method),
		zap.String("kind", string(failure.Kind)),
		zap.Error(err),
	)
	return failure
}
