package transport

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/Layr-Labs/fhevm-session-go/pkg/chainManager"
	"github.com/Layr-Labs/fhevm-session-go/pkg/signer"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeChain records sent transactions and mines them with a fixed status.
type fakeChain struct {
	chainManager.EthClientInterface
	tipErr      error
	baseFee     *big.Int
	estimate    uint64
	estimateErr error
	status      uint64
	sent        []*types.Transaction
	estimates   []ethereum.CallMsg
}

func (f *fakeChain) SuggestGasTipCap(context.Context) (*big.Int, error) {
	if f.tipErr != nil {
		return nil, f.tipErr
	}
	return big.NewInt(2_000_000_000), nil
}

func (f *fakeChain) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(10), BaseFee: f.baseFee}, nil
}

func (f *fakeChain) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.estimates = append(f.estimates, msg)
	return f.estimate, f.estimateErr
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeChain) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	for _, tx := range f.sent {
		if tx.Hash() == hash {
			return &types.Receipt{Status: f.status, TxHash: hash, BlockNumber: big.NewInt(11)}, nil
		}
	}
	return nil, ethereum.NotFound
}

func unsentTx(to common.Address, chainID *big.Int) *types.Transaction {
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     3,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(1),
		Gas:       50000,
		To:        &to,
		Data:      []byte{0xde, 0xad, 0xbe, 0xef},
	})
}

func newTestTransport(t *testing.T) (*Transport, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	s := signer.NewPrivateKeySignerFromKey(key)
	return NewTransport(s, zap.NewNop()), crypto.PubkeyToAddress(key.PublicKey)
}

func Test_SendTransaction(t *testing.T) {
	tr, from := newTestTransport(t)
	chain := &fakeChain{baseFee: big.NewInt(10_000_000_000), estimate: 100000, status: types.ReceiptStatusSuccessful}
	to := common.HexToAddress("0x00000000000000000000000000000000000000c0")

	receipt, err := tr.SendTransaction(context.Background(), chain, unsentTx(to, big.NewInt(31337)), "calculate")
	require.NoError(t, err)
	require.Len(t, chain.sent, 1)

	sent := chain.sent[0]
	assert.Equal(t, sent.Hash(), receipt.TxHash)
	assert.Equal(t, uint64(3), sent.Nonce())
	assert.Equal(t, uint64(120000), sent.Gas())
	assert.Equal(t, big.NewInt(2_000_000_000), sent.GasTipCap())
	assert.Equal(t, big.NewInt(17_000_000_000), sent.GasFeeCap())
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, sent.Data())

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(31337)), sent)
	require.NoError(t, err)
	assert.Equal(t, from, sender)
	assert.Equal(t, from, chain.estimates[0].From)
}

func Test_SendTransactionFallbackTip(t *testing.T) {
	tr, _ := newTestTransport(t)
	chain := &fakeChain{
		tipErr:   errors.New("the method eth_maxPriorityFeePerGas does not exist"),
		baseFee:  big.NewInt(0),
		estimate: 21000,
		status:   types.ReceiptStatusSuccessful,
	}

	_, err := tr.SendTransaction(context.Background(), chain, unsentTx(common.HexToAddress("0x01"), big.NewInt(31337)), "setCustomRate")
	require.NoError(t, err)
	assert.Equal(t, FallbackGasTipCap, chain.sent[0].GasTipCap())
}

func Test_SendTransactionReverted(t *testing.T) {
	tr, _ := newTestTransport(t)
	chain := &fakeChain{baseFee: big.NewInt(1), estimate: 21000, status: types.ReceiptStatusFailed}

	receipt, err := tr.SendTransaction(context.Background(), chain, unsentTx(common.HexToAddress("0x01"), big.NewInt(31337)), "clearCustomRate")
	assert.ErrorIs(t, err, ErrTransactionFailed)
	require.NotNil(t, receipt)
	assert.Equal(t, types.ReceiptStatusFailed, receipt.Status)
}

func Test_SendTransactionEstimateFails(t *testing.T) {
	tr, _ := newTestTransport(t)
	chain := &fakeChain{baseFee: big.NewInt(1), estimateErr: errors.New("execution reverted: ZamaProtocolUnsupported")}

	_, err := tr.SendTransaction(context.Background(), chain, unsentTx(common.HexToAddress("0x01"), big.NewInt(31337)), "calculate")
	assert.ErrorContains(t, err, "execution reverted")
	assert.Empty(t, chain.sent)
}

func Test_AddGasBuffer(t *testing.T) {
	assert.Equal(t, uint64(120), addGasBuffer(100))
}
