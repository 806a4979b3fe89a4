package fhevm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	UserDecryptPrimaryType = "UserDecryptRequestVerification"
	decryptionDomainName   = "Decryption"
	decryptionDomainVer    = "1"
	defaultExtraData       = "0x00"
)

// NewUserDecryptTypedData builds the EIP-712 payload a user signs to
// authorize decryption of handles held by contracts for the validity window
// starting at startTimestamp.
func NewUserDecryptTypedData(
	cfg *ProtocolConfig,
	publicKey string,
	contracts []common.Address,
	startTimestamp int64,
	durationDays int64,
) (*apitypes.TypedData, error) {
	if cfg == nil {
		return nil, fmt.Errorf("protocol config is nil")
	}
	if publicKey == "" {
		return nil, fmt.Errorf("public key is empty")
	}
	if len(contracts) == 0 {
		return nil, fmt.Errorf("at least one contract address is required")
	}
	if !strings.HasPrefix(publicKey, "0x") {
		publicKey = "0x" + publicKey
	}

	addrs := make([]interface{}, len(contracts))
	for i, c := range contracts {
		addrs[i] = c.Hex()
	}

	return &apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			UserDecryptPrimaryType: []apitypes.Type{
				{Name: "publicKey", Type: "bytes"},
				{Name: "contractAddresses", Type: "address[]"},
				{Name: "startTimestamp", Type: "uint256"},
				{Name: "durationDays", Type: "uint256"},
				{Name: "extraData", Type: "bytes"},
			},
		},
		PrimaryType: UserDecryptPrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              decryptionDomainName,
			Version:           decryptionDomainVer,
			ChainId:           math.NewHexOrDecimal256(int64(cfg.GatewayChainID)),
			VerifyingContract: cfg.VerifyingContractAddressDecryption.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"publicKey":         publicKey,
			"contractAddresses": addrs,
			"startTimestamp":    strconv.FormatInt(startTimestamp, 10),
			"durationDays":      strconv.FormatInt(durationDays, 10),
			"extraData":         defaultExtraData,
		},
	}, nil
}

// TypedDataHash returns the EIP-712 digest of td.
func TypedDataHash(td *apitypes.TypedData) ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(*td)
	if err != nil {
		return nil, fmt.Errorf("failed to hash typed data: %w", err)
	}
	return hash, nil
}

// RecoverTypedDataSigner returns the address that produced signature over td.
func RecoverTypedDataSigner(td *apitypes.TypedData, signature string) (common.Address, error) {
	if !strings.HasPrefix(signature, "0x") {
		signature = "0x" + signature
	}
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length %d", len(sig))
	}
	hash, err := TypedDataHash(td)
	if err != nil {
		return common.Address{}, err
	}
	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
