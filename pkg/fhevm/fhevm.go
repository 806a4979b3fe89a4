// Package fhevm holds the domain types shared by the instance builder, the
// lifecycle, the decryption signature cache and the encrypted input builder:
// chain targets, protocol configurations, ciphertext handles and the Instance
// contract every encryption backend implements.
package fhevm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevmErrors"
	"github.com/Layr-Labs/fhevm-session-go/pkg/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// ChainTarget identifies the chain an instance is bound to. Exactly one of
// Provider or RpcURL is set.
type ChainTarget struct {
	// ChainID is the chain id last reported by the wallet, 0 when unknown.
	ChainID  uint64
	Provider wallet.Provider
	RpcURL   string
}

// Identity returns the provider identity used to detect provider changes.
func (t *ChainTarget) Identity() string {
	if t == nil {
		return ""
	}
	if t.Provider != nil {
		return "provider:" + t.Provider.ID()
	}
	return "rpc:" + t.RpcURL
}

// SameAs reports whether two targets would resolve to the same instance.
func (t *ChainTarget) SameAs(o *ChainTarget) bool {
	if t == nil || o == nil {
		return t == o
	}
	return t.ChainID == o.ChainID && t.Identity() == o.Identity()
}

// PublicKeyMaterial is optional network public key material shipped with a config.
type PublicKeyMaterial struct {
	ID   string
	Data []byte
}

// ProtocolConfig describes one supported network.
type ProtocolConfig struct {
	Name string
	// ChainID is the host chain id; 0 for legacy bundles that did not embed it.
	ChainID                                   uint64
	GatewayChainID                            uint64
	ACLContractAddress                        common.Address
	KMSContractAddress                        common.Address
	InputVerifierContractAddress              common.Address
	VerifyingContractAddressDecryption        common.Address
	VerifyingContractAddressInputVerification common.Address
	RelayerURL                                string
	PublicKey                                 *PublicKeyMaterial
}

// Validate checks that every registry address is set.
func (c *ProtocolConfig) Validate() error {
	if c == nil {
		return fhevmErrors.Newf(fhevmErrors.KindInvalidConfig, "protocol config is nil")
	}
	checks := []struct {
		name string
		addr common.Address
	}{
		{"aclContractAddress", c.ACLContractAddress},
		{"kmsContractAddress", c.KMSContractAddress},
		{"inputVerifierContractAddress", c.InputVerifierContractAddress},
		{"verifyingContractAddressDecryption", c.VerifyingContractAddressDecryption},
		{"verifyingContractAddressInputVerification", c.VerifyingContractAddressInputVerification},
	}
	for _, ch := range checks {
		if ch.addr == (common.Address{}) {
			return fhevmErrors.Newf(fhevmErrors.KindInvalidConfig, "config %q: %s is not a valid address", c.Name, ch.name)
		}
	}
	if c.GatewayChainID == 0 {
		return fhevmErrors.Newf(fhevmErrors.KindInvalidConfig, "config %q: gatewayChainId is missing", c.Name)
	}
	return nil
}

// RelayerMetadata is reported by a local dev node.
type RelayerMetadata struct {
	ACLAddress           common.Address `json:"ACLAddress"`
	InputVerifierAddress common.Address `json:"InputVerifierAddress"`
	KMSVerifierAddress   common.Address `json:"KMSVerifierAddress"`
}

// Keypair is a user decryption keypair, hex encoded.
type Keypair struct {
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
}

// HandleContractPair binds a ciphertext handle to the contract that holds it.
type HandleContractPair struct {
	Handle   Handle
	Contract common.Address
}

// UserDecryptRequest carries everything a user decryption needs.
type UserDecryptRequest struct {
	Handles           []HandleContractPair
	PrivateKey        string
	PublicKey         string
	Signature         string
	ContractAddresses []common.Address
	UserAddress       common.Address
	StartTimestamp    int64
	DurationDays      int64
}

// EncryptedInputResult is the output of an encrypted input: one handle per
// added value, in insertion order, plus a single binding proof.
type EncryptedInputResult struct {
	Handles    []Handle
	InputProof []byte
}

// TypedValue is a plaintext scalar tagged with its encrypted type.
type TypedValue struct {
	Type  FheType
	Value *big.Int
}

// InputRequest is what an encryption backend receives for one round trip.
type InputRequest struct {
	ContractAddress common.Address
	UserAddress     common.Address
	Values          []TypedValue
}

// InputEncryptor performs the single round trip behind an encrypted input.
type InputEncryptor interface {
	EncryptInput(ctx context.Context, req *InputRequest) (*EncryptedInputResult, error)
}

// EncryptedInput accumulates typed plaintext values for one contract/user pair.
type EncryptedInput interface {
	AddBool(v bool) EncryptedInput
	Add8(v uint8) EncryptedInput
	Add16(v uint16) EncryptedInput
	Add32(v uint32) EncryptedInput
	Add64(v uint64) EncryptedInput
	Add128(v *big.Int) EncryptedInput
	Add256(v *big.Int) EncryptedInput
	AddAddress(v common.Address) EncryptedInput
	Encrypt(ctx context.Context) (*EncryptedInputResult, error)
}

// Instance is a handle to an FHE protocol session bound to one chain and
// configuration.
type Instance interface {
	Config() *ProtocolConfig
	CreateEncryptedInput(contract, user common.Address) EncryptedInput
	GenerateKeypair() (*Keypair, error)
	CreateEIP712(publicKey string, contracts []common.Address, startTimestamp, durationDays int64) (*apitypes.TypedData, error)
	UserDecrypt(ctx context.Context, req *UserDecryptRequest) (map[Handle]*big.Int, error)
}

func (r *InputRequest) String() string {
	return fmt.Sprintf("InputRequest{contract=%s user=%s values=%d}", r.ContractAddress.Hex(), r.UserAddress.Hex(), len(r.Values))
}
