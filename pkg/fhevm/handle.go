package fhevm

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// FheType is the encrypted type tag stored in byte 30 of a handle.
type FheType uint8

const (
	TypeBool    FheType = 0
	TypeUint8   FheType = 2
	TypeUint16  FheType = 3
	TypeUint32  FheType = 4
	TypeUint64  FheType = 5
	TypeUint128 FheType = 6
	TypeAddress FheType = 7
	TypeUint256 FheType = 8
)

var typeBits = map[FheType]int{
	TypeBool:    2,
	TypeUint8:   8,
	TypeUint16:  16,
	TypeUint32:  32,
	TypeUint64:  64,
	TypeUint128: 128,
	TypeAddress: 160,
	TypeUint256: 256,
}

var typeNames = map[FheType]string{
	TypeBool:    "ebool",
	TypeUint8:   "euint8",
	TypeUint16:  "euint16",
	TypeUint32:  "euint32",
	TypeUint64:  "euint64",
	TypeUint128: "euint128",
	TypeAddress: "eaddress",
	TypeUint256: "euint256",
}

// Bits is the encryption bit width of the type, 0 for unknown tags.
func (t FheType) Bits() int {
	return typeBits[t]
}

// Valid reports whether t is a known type tag.
func (t FheType) Valid() bool {
	_, ok := typeBits[t]
	return ok
}

func (t FheType) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("FheType(%d)", uint8(t))
}

// HandleVersion is the ciphertext version written in byte 31.
const HandleVersion = 0

// Handle references an encrypted value.
//
//	[0:21]  hash
//	[21]    index within its input
//	[22:30] chain id, big endian
//	[30]    FheType
//	[31]    version
type Handle [32]byte

func (h Handle) Index() uint8 {
	return h[21]
}

func (h Handle) ChainID() uint64 {
	return binary.BigEndian.Uint64(h[22:30])
}

func (h Handle) Type() FheType {
	return FheType(h[30])
}

func (h Handle) Version() uint8 {
	return h[31]
}

func (h Handle) Hex() string {
	return hexutil.Encode(h[:])
}

func (h Handle) String() string {
	return h.Hex()
}

// IsZero reports whether the handle is uninitialized.
func (h Handle) IsZero() bool {
	return h == Handle{}
}

func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

func (h *Handle) UnmarshalText(text []byte) error {
	parsed, err := ParseHandle(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHandle decodes a 0x-prefixed (or bare) 32-byte hex handle.
func ParseHandle(s string) (Handle, error) {
	var h Handle
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return h, fmt.Errorf("invalid handle %q: %w", s, err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("invalid handle %q: expected 32 bytes, got %d", s, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// NewHandle assembles a handle from its parts. Only the first 21 bytes of
// hash are used.
func NewHandle(hash []byte, index uint8, chainID uint64, t FheType) Handle {
	var h Handle
	copy(h[0:21], hash)
	h[21] = index
	binary.BigEndian.PutUint64(h[22:30], chainID)
	h[30] = byte(t)
	h[31] = HandleVersion
	return h
}
