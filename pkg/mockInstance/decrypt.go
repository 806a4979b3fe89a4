package mockInstance

import (
	"context"
	"fmt"
	"math/big"
	"slices"
	"strconv"

	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevm"
	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevmErrors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type handleContractPair struct {
	Handle          fhevm.Handle   `json:"handle"`
	ContractAddress common.Address `json:"contractAddress"`
}

type requestValidity struct {
	StartTimestamp string `json:"startTimestamp"`
	DurationDays   string `json:"durationDays"`
}

type userDecryptRequest struct {
	HandleContractPairs []handleContractPair `json:"handleContractPairs"`
	RequestValidity     requestValidity      `json:"requestValidity"`
	ContractsChainID    string               `json:"contractsChainId"`
	ContractAddresses   []common.Address     `json:"contractAddresses"`
	UserAddress         common.Address       `json:"userAddress"`
	Signature           string               `json:"signature"`
	PublicKey           string               `json:"publicKey"`
	ExtraData           string               `json:"extraData"`
}

type decryptedValue struct {
	Handle fhevm.Handle `json:"handle"`
	Value  *hexutil.Big `json:"value"`
}

// UserDecrypt checks the request the way the KMS would (window, contract
// list, handle chain, EIP-712 signer) and asks the dev node for the cleartexts.
func (i *Instance) UserDecrypt(ctx context.Context, req *fhevm.UserDecryptRequest) (map[fhevm.Handle]*big.Int, error) {
	if err := fhevmErrors.Abort(ctx); err != nil {
		return nil, err
	}
	if err := i.checkUserDecrypt(req); err != nil {
		return nil, err
	}

	pairs := make([]handleContractPair, len(req.Handles))
	for idx, p := range req.Handles {
		pairs[idx] = handleContractPair{Handle: p.Handle, ContractAddress: p.Contract}
	}

	var resp []decryptedValue
	err := i.call(ctx, &resp, MethodUserDecrypt, &userDecryptRequest{
		HandleContractPairs: pairs,
		RequestValidity: requestValidity{
			StartTimestamp: strconv.FormatInt(req.StartTimestamp, 10),
			DurationDays:   strconv.FormatInt(req.DurationDays, 10),
		},
		ContractsChainID:  chainIDHex(i.config.ChainID),
		ContractAddresses: req.ContractAddresses,
		UserAddress:       req.UserAddress,
		Signature:         req.Signature,
		PublicKey:         req.PublicKey,
		ExtraData:         hexutil.Encode(defaultExtraData),
	})
	if abortErr := fhevmErrors.Abort(ctx); abortErr != nil {
		return nil, abortErr
	}
	if err != nil {
		return nil, fhevmErrors.New(fhevmErrors.KindDecryptionFailed, "user decrypt request failed", err)
	}

	out := make(map[fhevm.Handle]*big.Int, len(resp))
	for _, v := range resp {
		if v.Value == nil {
			return nil, fhevmErrors.Newf(fhevmErrors.KindDecryptionFailed, "no value for handle %s", v.Handle)
		}
		out[v.Handle] = v.Value.ToInt()
	}
	for _, p := range req.Handles {
		if _, ok := out[p.Handle]; !ok {
			return nil, fhevmErrors.Newf(fhevmErrors.KindDecryptionFailed, "handle %s missing from response", p.Handle)
		}
	}
	return out, nil
}

func (i *Instance) checkUserDecrypt(req *fhevm.UserDecryptRequest) error {
	if req == nil || len(req.Handles) == 0 {
		return fhevmErrors.Newf(fhevmErrors.KindDecryptionFailed, "no handles to decrypt")
	}
	if req.DurationDays <= 0 || req.DurationDays > MaxDurationDays {
		return fhevmErrors.Newf(fhevmErrors.KindDecryptionFailed, "durationDays must be in [1, %d], got %d", MaxDurationDays, req.DurationDays)
	}
	now := i.now().Unix()
	if now < req.StartTimestamp {
		return fhevmErrors.Newf(fhevmErrors.KindDecryptionFailed, "request starts in the future")
	}
	if now >= req.StartTimestamp+req.DurationDays*86400 {
		return fhevmErrors.Newf(fhevmErrors.KindDecryptionFailed, "request has expired")
	}
	for _, p := range req.Handles {
		if !slices.Contains(req.ContractAddresses, p.Contract) {
			return fhevmErrors.Newf(fhevmErrors.KindDecryptionFailed, "contract %s is not authorized by the request", p.Contract.Hex())
		}
		if p.Handle.ChainID() != i.config.ChainID {
			return fhevmErrors.Newf(fhevmErrors.KindDecryptionFailed,
				"handle %s belongs to chain %d, not %d", p.Handle, p.Handle.ChainID(), i.config.ChainID)
		}
	}

	td, err := i.CreateEIP712(req.PublicKey, req.ContractAddresses, req.StartTimestamp, req.DurationDays)
	if err != nil {
		return fhevmErrors.New(fhevmErrors.KindDecryptionFailed, "failed to rebuild authorization payload", err)
	}
	signer, err := fhevm.RecoverTypedDataSigner(td, req.Signature)
	if err != nil {
		return fhevmErrors.New(fhevmErrors.KindDecryptionFailed, "invalid authorization signature", err)
	}
	if signer != req.UserAddress {
		return fhevmErrors.New(fhevmErrors.KindDecryptionFailed,
			fmt.Sprintf("authorization signed by %s, expected %s", signer.Hex(), req.UserAddress.Hex()), nil)
	}
	return nil
}
