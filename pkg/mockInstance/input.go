package mockInstance

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevm"
	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevmErrors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	ciphertextDomain = "ZK-w_rct"
	handleDomain     = "ZK-w_hdl"
	saltLength       = 32
	signatureLength  = 65
)

var defaultExtraData = []byte{0x00}

type inputProofRequest struct {
	ContractAddress                 common.Address `json:"contractAddress"`
	UserAddress                     common.Address `json:"userAddress"`
	CiphertextWithInputVerification string         `json:"ciphertextWithInputVerification"`
	ContractChainID                 string         `json:"contractChainId"`
	ExtraData                       string         `json:"extraData"`
}

type inputProofResponse struct {
	Handles    []fhevm.Handle  `json:"handles"`
	Signatures []hexutil.Bytes `json:"signatures"`
}

func byteWidth(t fhevm.FheType) int {
	if t == fhevm.TypeBool {
		return 1
	}
	return t.Bits() / 8
}

// packCiphertext encodes values as a random salt followed by, per value, the
// type tag and the big endian value at the type's byte width.
func packCiphertext(values []fhevm.TypedValue) ([]byte, error) {
	out := make([]byte, saltLength, saltLength+len(values)*33)
	if _, err := rand.Read(out); err != nil {
		return nil, fmt.Errorf("failed to read salt: %w", err)
	}
	for _, v := range values {
		w := byteWidth(v.Type)
		if v.Value.Sign() < 0 || v.Value.BitLen() > w*8 {
			return nil, fmt.Errorf("value does not fit %s", v.Type)
		}
		out = append(out, byte(v.Type))
		out = append(out, v.Value.FillBytes(make([]byte, w))...)
	}
	return out, nil
}

// unpackCiphertext reverses packCiphertext.
func unpackCiphertext(ct []byte) ([]fhevm.TypedValue, error) {
	if len(ct) < saltLength {
		return nil, fmt.Errorf("ciphertext too short")
	}
	var out []fhevm.TypedValue
	for rest := ct[saltLength:]; len(rest) > 0; {
		t := fhevm.FheType(rest[0])
		if !t.Valid() {
			return nil, fmt.Errorf("unknown type tag %d", rest[0])
		}
		w := byteWidth(t)
		if len(rest) < 1+w {
			return nil, fmt.Errorf("truncated %s value", t)
		}
		out = append(out, fhevm.TypedValue{Type: t, Value: new(big.Int).SetBytes(rest[1 : 1+w])})
		rest = rest[1+w:]
	}
	return out, nil
}

// deriveHandles computes the handle of each value the way the mock
// coprocessor does: a blob hash over the ciphertext, then one hash per index
// bound to the ACL address and chain id.
func deriveHandles(ct []byte, types []fhevm.FheType, acl common.Address, chainID uint64) []fhevm.Handle {
	blobHash := crypto.Keccak256(append([]byte(ciphertextDomain), ct...))

	chain := make([]byte, 32)
	binary.BigEndian.PutUint64(chain[24:], chainID)

	handles := make([]fhevm.Handle, len(types))
	for idx, t := range types {
		h := crypto.Keccak256(
			[]byte(handleDomain),
			blobHash,
			[]byte{byte(idx)},
			acl.Bytes(),
			chain,
		)
		handles[idx] = fhevm.NewHandle(h, uint8(idx), chainID, t)
	}
	return handles
}

// buildInputProof lays out numHandles ‖ numSigners ‖ handles ‖ signatures ‖ extraData.
func buildInputProof(handles []fhevm.Handle, signatures []hexutil.Bytes, extraData []byte) ([]byte, error) {
	if len(handles) > 255 || len(signatures) > 255 {
		return nil, fmt.Errorf("too many handles or signatures")
	}
	proof := make([]byte, 0, 2+len(handles)*32+len(signatures)*signatureLength+len(extraData))
	proof = append(proof, byte(len(handles)), byte(len(signatures)))
	for _, h := range handles {
		proof = append(proof, h[:]...)
	}
	for _, s := range signatures {
		if len(s) != signatureLength {
			return nil, fmt.Errorf("coprocessor signature has length %d", len(s))
		}
		proof = append(proof, s...)
	}
	return append(proof, extraData...), nil
}

// EncryptInput packs the values, asks the dev node's coprocessor to sign the
// derived handles and assembles the input proof.
func (i *Instance) EncryptInput(ctx context.Context, req *fhevm.InputRequest) (*fhevm.EncryptedInputResult, error) {
	if err := fhevmErrors.Abort(ctx); err != nil {
		return nil, err
	}
	ct, err := packCiphertext(req.Values)
	if err != nil {
		return nil, fhevmErrors.New(fhevmErrors.KindEncryptionFailed, "failed to pack ciphertext", err)
	}
	types := make([]fhevm.FheType, len(req.Values))
	for idx, v := range req.Values {
		types[idx] = v.Type
	}
	handles := deriveHandles(ct, types, i.config.ACLContractAddress, i.config.ChainID)

	var resp inputProofResponse
	err = i.call(ctx, &resp, MethodInputProof, &inputProofRequest{
		ContractAddress:                 req.ContractAddress,
		UserAddress:                     req.UserAddress,
		CiphertextWithInputVerification: hexutil.Encode(ct),
		ContractChainID:                 chainIDHex(i.config.ChainID),
		ExtraData:                       hexutil.Encode(defaultExtraData),
	})
	if abortErr := fhevmErrors.Abort(ctx); abortErr != nil {
		return nil, abortErr
	}
	if err != nil {
		return nil, fhevmErrors.New(fhevmErrors.KindEncryptionFailed, "input proof request failed", err)
	}

	if len(resp.Handles) != len(handles) {
		return nil, fhevmErrors.Newf(fhevmErrors.KindEncryptionFailed,
			"coprocessor returned %d handles for %d values", len(resp.Handles), len(handles))
	}
	for idx := range handles {
		if resp.Handles[idx] != handles[idx] {
			return nil, fhevmErrors.Newf(fhevmErrors.KindEncryptionFailed, "coprocessor handle %d does not match the local derivation", idx)
		}
	}

	proof, err := buildInputProof(handles, resp.Signatures, defaultExtraData)
	if err != nil {
		return nil, fhevmErrors.New(fhevmErrors.KindEncryptionFailed, "failed to assemble input proof", err)
	}
	return &fhevm.EncryptedInputResult{Handles: handles, InputProof: proof}, nil
}
