package signer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevmErrors"
	"github.com/Layr-Labs/fhevm-session-go/pkg/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"
)

const MethodSignTypedDataV4 = "eth_signTypedData_v4"

// WalletSigner asks a connected wallet to sign typed data. Each call is a
// user prompt.
type WalletSigner struct {
	provider wallet.Provider
	address  common.Address
	logger   *zap.Logger
}

var _ ITypedDataSigner = (*WalletSigner)(nil)

func NewWalletSigner(provider wallet.Provider, address common.Address, l *zap.Logger) *WalletSigner {
	return &WalletSigner{provider: provider, address: address, logger: l}
}

func (w *WalletSigner) GetAddress() (common.Address, error) {
	return w.address, nil
}

// SignTypedData sends eth_signTypedData_v4. A wallet rejection is reported
// as SignatureDenied.
func (w *WalletSigner) SignTypedData(ctx context.Context, td *apitypes.TypedData) (string, error) {
	payload, err := json.Marshal(td)
	if err != nil {
		return "", fmt.Errorf("failed to encode typed data: %w", err)
	}

	w.logger.Sugar().Infow("Requesting typed data signature from wallet",
		zap.String("address", w.address.Hex()),
		zap.String("primaryType", td.PrimaryType),
	)
	raw, err := w.provider.Request(ctx, MethodSignTypedDataV4, w.address.Hex(), string(payload))
	if err != nil {
		if wallet.IsUserRejection(err) {
			return "", fhevmErrors.New(fhevmErrors.KindSignatureDenied, "the wallet refused to sign", err)
		}
		return "", fmt.Errorf("failed to sign typed data: %w", err)
	}

	var sig string
	if err := json.Unmarshal(raw, &sig); err != nil {
		return "", fmt.Errorf("failed to decode signature: %w", err)
	}
	return sig, nil
}
