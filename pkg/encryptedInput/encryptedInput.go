// Package encryptedInput builds encrypted inputs: plaintext scalars are
// accumulated in insertion order and encrypted in a single round trip into
// one ciphertext handle per value plus one binding proof for the
// contract/user pair.
package encryptedInput

import (
	"context"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevm"
	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevmErrors"
	"github.com/ethereum/go-ethereum/common"
)

const (
	// MaxInputBits is the total bit budget of a single encrypted input.
	MaxInputBits = 2048
	// MaxInputValues is the most values one input proof can carry; the proof
	// stores the handle count and each handle index in a single byte.
	MaxInputValues = 255
)

// Builder implements fhevm.EncryptedInput.
type Builder struct {
	contract  common.Address
	user      common.Address
	encryptor fhevm.InputEncryptor

	values []fhevm.TypedValue
	bits   int
	err    error
	done   bool
}

var _ fhevm.EncryptedInput = (*Builder)(nil)

// NewBuilder creates a builder bound to contract and user.
func NewBuilder(contract, user common.Address, encryptor fhevm.InputEncryptor) *Builder {
	return &Builder{contract: contract, user: user, encryptor: encryptor}
}

func (b *Builder) AddBool(v bool) fhevm.EncryptedInput {
	n := big.NewInt(0)
	if v {
		n.SetInt64(1)
	}
	return b.add(fhevm.TypeBool, n)
}

func (b *Builder) Add8(v uint8) fhevm.EncryptedInput {
	return b.add(fhevm.TypeUint8, new(big.Int).SetUint64(uint64(v)))
}

func (b *Builder) Add16(v uint16) fhevm.EncryptedInput {
	return b.add(fhevm.TypeUint16, new(big.Int).SetUint64(uint64(v)))
}

func (b *Builder) Add32(v uint32) fhevm.EncryptedInput {
	return b.add(fhevm.TypeUint32, new(big.Int).SetUint64(uint64(v)))
}

func (b *Builder) Add64(v uint64) fhevm.EncryptedInput {
	return b.add(fhevm.TypeUint64, new(big.Int).SetUint64(v))
}

func (b *Builder) Add128(v *big.Int) fhevm.EncryptedInput {
	return b.add(fhevm.TypeUint128, v)
}

func (b *Builder) Add256(v *big.Int) fhevm.EncryptedInput {
	return b.add(fhevm.TypeUint256, v)
}

func (b *Builder) AddAddress(v common.Address) fhevm.EncryptedInput {
	return b.add(fhevm.TypeAddress, new(big.Int).SetBytes(v.Bytes()))
}

// Values returns the accumulated values in insertion order.
func (b *Builder) Values() []fhevm.TypedValue {
	out := make([]fhevm.TypedValue, len(b.values))
	copy(out, b.values)
	return out
}

// add records the first error and ignores later values; the error surfaces
// from Encrypt so that calls can be chained.
func (b *Builder) add(t fhevm.FheType, v *big.Int) fhevm.EncryptedInput {
	if b.err != nil {
		return b
	}
	if v == nil || v.Sign() < 0 {
		b.err = fmt.Errorf("value for %s must be a non-negative integer", t)
		return b
	}
	if v.BitLen() > t.Bits() {
		b.err = fmt.Errorf("value %s does not fit in %s", v.String(), t)
		return b
	}
	if len(b.values) >= MaxInputValues {
		b.err = fmt.Errorf("a single input holds at most %d values", MaxInputValues)
		return b
	}
	if b.bits+t.Bits() > MaxInputBits {
		b.err = fmt.Errorf("packing more than %d bits in a single input ciphertext is unsupported", MaxInputBits)
		return b
	}
	b.bits += t.Bits()
	b.values = append(b.values, fhevm.TypedValue{Type: t, Value: new(big.Int).Set(v)})
	return b
}

// Encrypt performs the single encryption round trip. The returned handles
// are in the same order as the values were added; handle i carries index i
// and the type of value i.
func (b *Builder) Encrypt(ctx context.Context) (*fhevm.EncryptedInputResult, error) {
	if b.err != nil {
		return nil, fhevmErrors.New(fhevmErrors.KindEncryptionFailed, "invalid encrypted input", b.err)
	}
	if b.done {
		return nil, fhevmErrors.Newf(fhevmErrors.KindEncryptionFailed, "encrypted input was already encrypted")
	}
	if len(b.values) == 0 {
		return nil, fhevmErrors.Newf(fhevmErrors.KindEncryptionFailed, "encrypted input has no values")
	}
	if err := fhevmErrors.Abort(ctx); err != nil {
		return nil, err
	}

	res, err := b.encryptor.EncryptInput(ctx, &fhevm.InputRequest{
		ContractAddress: b.contract,
		UserAddress:     b.user,
		Values:          b.Values(),
	})
	if err != nil {
		if abortErr := fhevmErrors.Abort(ctx); abortErr != nil {
			return nil, abortErr
		}
		if fhevmErrors.IsAbort(err) {
			return nil, err
		}
		return nil, fhevmErrors.New(fhevmErrors.KindEncryptionFailed, "failed to encrypt input", err)
	}
	if err := fhevmErrors.Abort(ctx); err != nil {
		return nil, err
	}
	if err := b.verify(res); err != nil {
		return nil, err
	}
	b.done = true
	return res, nil
}

func (b *Builder) verify(res *fhevm.EncryptedInputResult) error {
	if res == nil {
		return fhevmErrors.Newf(fhevmErrors.KindEncryptionFailed, "encryptor returned no result")
	}
	if len(res.Handles) != len(b.values) {
		return fhevmErrors.Newf(fhevmErrors.KindEncryptionFailed,
			"encryptor returned %d handles for %d values", len(res.Handles), len(b.values))
	}
	for i, h := range res.Handles {
		if int(h.Index()) != i {
			return fhevmErrors.Newf(fhevmErrors.KindEncryptionFailed, "handle %d has index %d", i, h.Index())
		}
		if h.Type() != b.values[i].Type {
			return fhevmErrors.Newf(fhevmErrors.KindEncryptionFailed,
				"handle %d has type %s, expected %s", i, h.Type(), b.values[i].Type)
		}
	}
	if len(res.InputProof) == 0 {
		return fhevmErrors.Newf(fhevmErrors.KindEncryptionFailed, "encryptor returned an empty input proof")
	}
	return nil
}
