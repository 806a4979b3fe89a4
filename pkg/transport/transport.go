// Package transport sends contract writes. A caller builds an unsent
// transaction with no-send transact opts; the transport re-estimates fees and
// gas with a safety buffer, signs, sends, and waits for a successful receipt.
package transport

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/fhevm-session-go/pkg/chainManager"
	"github.com/Layr-Labs/fhevm-session-go/pkg/signer"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// ErrTransactionFailed is returned when a mined transaction has a failed status.
var ErrTransactionFailed = errors.New("ErrTransactionFailed: transaction reverted")

var (
	FallbackGasTipCap = big.NewInt(15000000000)
)

// ITransport sends transactions built with no-send opts.
type ITransport interface {
	SendTransaction(ctx context.Context, client chainManager.EthClientInterface, tx *types.Transaction, tag string) (*types.Receipt, error)
	GetNoSendTransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error)
}

type Transport struct {
	logger   *zap.Logger
	txSigner signer.ITransactionSigner
}

var _ ITransport = (*Transport)(nil)

func NewTransport(txSig signer.ITransactionSigner, logger *zap.Logger) *Transport {
	return &Transport{
		logger:   logger,
		txSigner: txSig,
	}
}

// GetNoSendTransactOpts returns opts for building a transaction that
// SendTransaction will later send.
func (t *Transport) GetNoSendTransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error) {
	opts, err := t.txSigner.GetNoSendTransactOpts(ctx, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction options: %w", err)
	}
	return opts, nil
}

// SendTransaction re-prices tx, sends it and waits until it is mined.
func (t *Transport) SendTransaction(
	ctx context.Context,
	client chainManager.EthClientInterface,
	tx *types.Transaction,
	tag string,
) (*types.Receipt, error) {
	from, err := t.txSigner.GetAddress()
	if err != nil {
		return nil, fmt.Errorf("failed to get signer address: %w", err)
	}
	return t.estimateGasPriceAndLimitAndSendTx(ctx, from, tx, client, tag)
}

func (t *Transport) ensureTransactionEvaled(ctx context.Context, client chainManager.EthClientInterface, tx *types.Transaction, tag string) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, client, tx)
	if err != nil {
		return nil, fmt.Errorf("ensureTransactionEvaled: failed to wait for transaction (%s) to mine: %w", tag, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		t.logger.Sugar().Errorw("Transaction failed",
			zap.String("tag", tag),
			zap.String("txHash", receipt.TxHash.Hex()),
			zap.Uint64("blockNumber", receipt.BlockNumber.Uint64()),
		)
		return receipt, ErrTransactionFailed
	}
	t.logger.Sugar().Infow("Transaction succeeded",
		zap.String("tag", tag),
		zap.String("txHash", receipt.TxHash.Hex()),
	)
	return receipt, nil
}

func addGasBuffer(gasLimit uint64) uint64 {
	return 6 * gasLimit / 5 // add 20% buffer to gas limit
}

func (t *Transport) estimateGasPriceAndLimitAndSendTx(
	ctx context.Context,
	fromAddress common.Address,
	tx *types.Transaction,
	client chainManager.EthClientInterface,
	tag string,
) (*types.Receipt, error) {
	gasTipCap, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		// Dev nodes and some providers do not implement
		// eth_maxPriorityFeePerGas.
		t.logger.Sugar().Debugw("Cannot get gasTipCap, using fallback",
			zap.String("tag", tag),
			zap.Error(err),
		)
		gasTipCap = FallbackGasTipCap
	}

	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest header: %w", err)
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(0)
	}
	// header basefee * 3/2
	overestimatedBasefee := new(big.Int).Div(new(big.Int).Mul(baseFee, big.NewInt(3)), big.NewInt(2))
	gasFeeCap := new(big.Int).Add(overestimatedBasefee, gasTipCap)

	gasLimit, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From:      fromAddress,
		To:        tx.To(),
		GasTipCap: gasTipCap,
		GasFeeCap: gasFeeCap,
		Value:     nil,
		Data:      tx.Data(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas for %s: %w", tag, err)
	}

	opts, err := t.txSigner.GetTransactOpts(ctx, tx.ChainId())
	if err != nil {
		return nil, fmt.Errorf("cannot create transactOpts: %w", err)
	}
	opts.Nonce = new(big.Int).SetUint64(tx.Nonce())
	opts.GasTipCap = gasTipCap
	opts.GasFeeCap = gasFeeCap
	opts.GasLimit = addGasBuffer(gasLimit)

	contract := bind.NewBoundContract(*tx.To(), abi.ABI{}, client, client, client)

	t.logger.Sugar().Infow("Sending transaction",
		zap.String("tag", tag),
		zap.String("gasTipCap", gasTipCap.String()),
		zap.String("gasFeeCap", gasFeeCap.String()),
		zap.Uint64("gasLimit", opts.GasLimit),
	)

	sent, err := contract.RawTransact(opts, tx.Data())
	if err != nil {
		return nil, fmt.Errorf("failed to send txn (%s): %w", tag, err)
	}
	t.logger.Sugar().Infow("Sent transaction",
		zap.String("tag", tag),
		zap.String("txHash", sent.Hash().Hex()),
	)

	return t.ensureTransactionEvaled(ctx, client, sent, tag)
}
