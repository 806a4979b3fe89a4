package decryptionSignature

import (
	"bytes"
	"fmt"

	"github.com/Layr-Labs/fhevm-session-go/pkg/util"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	merkletree "github.com/wealdtech/go-merkletree/v2"
	"github.com/wealdtech/go-merkletree/v2/keccak256"
)

// ContractSet is an order-independent set of contract addresses. Its root
// commits to the sorted, deduplicated members.
type ContractSet struct {
	addresses []common.Address
	indices   map[common.Address]uint64
	root      [32]byte
}

// NewContractSet normalizes addrs. It fails on an empty set.
func NewContractSet(addrs []common.Address) (*ContractSet, error) {
	sorted := util.SortedUnique(addrs, func(a common.Address) string {
		return string(a.Bytes())
	})
	if len(sorted) == 0 {
		return nil, fmt.Errorf("at least one contract address is required")
	}

	indices := make(map[common.Address]uint64, len(sorted))
	leaves := make([][]byte, len(sorted))
	for i, a := range sorted {
		indices[a] = uint64(i)
		leaves[i] = EncodeContractLeaf(a)
	}

	tree, err := merkletree.NewTree(
		merkletree.WithData(leaves),
		merkletree.WithHashType(keccak256.New()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create merkle tree: %w", err)
	}

	return &ContractSet{
		addresses: sorted,
		indices:   indices,
		root:      [32]byte(tree.Root()),
	}, nil
}

// EncodeContractLeaf returns the merkle leaf for a contract address.
func EncodeContractLeaf(a common.Address) []byte {
	return common.LeftPadBytes(a.Bytes(), 32)
}

// Addresses returns the members in ascending byte order.
func (s *ContractSet) Addresses() []common.Address {
	return append([]common.Address(nil), s.addresses...)
}

func (s *ContractSet) Root() [32]byte {
	return s.root
}

func (s *ContractSet) RootHex() string {
	return hexutil.Encode(s.root[:])
}

// IndexOf returns the position of a in Addresses.
func (s *ContractSet) IndexOf(a common.Address) (uint64, bool) {
	i, ok := s.indices[a]
	return i, ok
}

func (s *ContractSet) Contains(a common.Address) bool {
	_, ok := s.indices[a]
	return ok
}

func (s *ContractSet) Len() int {
	return len(s.addresses)
}

// Equal reports whether both sets hold exactly the same members.
func (s *ContractSet) Equal(o *ContractSet) bool {
	if s == nil || o == nil {
		return s == o
	}
	return bytes.Equal(s.root[:], o.root[:]) && len(s.addresses) == len(o.addresses)
}
