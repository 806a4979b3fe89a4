package yieldCalculator

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/Layr-Labs/fhevm-session-go/pkg/chainManager"
	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevm"
	"github.com/Layr-Labs/fhevm-session-go/pkg/signer"
	"github.com/Layr-Labs/fhevm-session-go/pkg/transport"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var contractAddr = common.HexToAddress("0x00000000000000000000000000000000000000c0")

// fakeContract answers SecureYieldCalculator calls from in-memory state.
type fakeContract struct {
	chainManager.EthClientInterface
	yield, total [32]byte
	rates        map[common.Address]Rate
	defaultBps   uint32
	protocolID   *big.Int
}

func (f *fakeContract) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	m, err := parsedABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	switch m.Name {
	case "getLastYield":
		return m.Outputs.Pack(f.yield)
	case "getLastTotal":
		return m.Outputs.Pack(f.total)
	case "getMyRate":
		r, ok := f.rates[msg.From]
		if !ok {
			r = Rate{Bps: f.defaultBps}
		}
		return m.Outputs.Pack(r.Bps, r.IsCustom)
	case "defaultRateBps":
		return m.Outputs.Pack(f.defaultBps)
	case "confidentialProtocolId":
		return m.Outputs.Pack(f.protocolID)
	}
	return nil, errors.New("execution reverted")
}

func (f *fakeContract) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 5, nil
}

func (f *fakeContract) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	return []byte{0x60, 0x80}, nil
}

func (f *fakeContract) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1), BaseFee: big.NewInt(1_000_000_000)}, nil
}

func (f *fakeContract) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeContract) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 90000, nil
}

func Test_Reads(t *testing.T) {
	user := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	other := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	f := &fakeContract{
		yield:      fhevm.NewHandle(crypto.Keccak256([]byte("y")), 0, 31337, fhevm.TypeUint64),
		total:      fhevm.NewHandle(crypto.Keccak256([]byte("t")), 0, 31337, fhevm.TypeUint64),
		rates:      map[common.Address]Rate{user: {Bps: 750, IsCustom: true}},
		defaultBps: 500,
		protocolID: big.NewInt(1),
	}
	c := NewClient(contractAddr, 31337, f, nil, zap.NewNop())
	ctx := context.Background()

	y, err := c.GetLastYield(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, fhevm.Handle(f.yield), y)

	total, err := c.GetLastTotal(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, fhevm.Handle(f.total), total)

	r, err := c.GetMyRate(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, &Rate{Bps: 750, IsCustom: true}, r)

	r, err = c.GetMyRate(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, &Rate{Bps: 500}, r)

	bps, err := c.DefaultRateBps(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(500), bps)

	id, err := c.ConfidentialProtocolID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id.Int64())
}

func Test_ReadOnlyClientRejectsWrites(t *testing.T) {
	c := NewClient(contractAddr, 31337, &fakeContract{}, nil, zap.NewNop())
	_, err := c.ClearCustomRate(context.Background())
	assert.ErrorContains(t, err, "read-only")
}

func decodeCall(t *testing.T, tx *types.Transaction) (string, []interface{}) {
	t.Helper()
	m, err := parsedABI.MethodById(tx.Data()[:4])
	require.NoError(t, err)
	args, err := m.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	return m.Name, args
}

func Test_Calculate(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	s := signer.NewPrivateKeySignerFromKey(key)
	opts, err := s.GetNoSendTransactOpts(context.Background(), big.NewInt(31337))
	require.NoError(t, err)

	principal := fhevm.NewHandle(crypto.Keccak256([]byte("p")), 0, 31337, fhevm.TypeUint64)
	duration := fhevm.NewHandle(crypto.Keccak256([]byte("p")), 1, 31337, fhevm.TypeUint32)
	proof := []byte{0x02, 0x01}

	tr := transport.NewMockITransport(t)
	tr.On("GetNoSendTransactOpts", mock.Anything, big.NewInt(31337)).Return(opts, nil).Once()
	tr.On("SendTransaction", mock.Anything, mock.Anything, mock.MatchedBy(func(tx *types.Transaction) bool {
		name, args := decodeCall(t, tx)
		return name == "calculate" &&
			args[0].([32]byte) == [32]byte(principal) &&
			args[1].([32]byte) == [32]byte(duration) &&
			string(args[2].([]byte)) == string(proof) &&
			*tx.To() == contractAddr
	}), "calculate").Return(&types.Receipt{Status: types.ReceiptStatusSuccessful}, nil).Once()

	c := NewClient(contractAddr, 31337, &fakeContract{}, tr, zap.NewNop())
	receipt, err := c.Calculate(context.Background(), principal, duration, proof)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
}

func Test_RateWrites(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	s := signer.NewPrivateKeySignerFromKey(key)

	cases := []struct {
		method string
		send   func(c *Client) (*types.Receipt, error)
		arg    interface{}
	}{
		{"setCustomRate", func(c *Client) (*types.Receipt, error) { return c.SetCustomRate(context.Background(), 900) }, uint32(900)},
		{"updateDefaultRate", func(c *Client) (*types.Receipt, error) { return c.UpdateDefaultRate(context.Background(), 450) }, uint32(450)},
		{"clearCustomRate", func(c *Client) (*types.Receipt, error) { return c.ClearCustomRate(context.Background()) }, nil},
	}
	for _, tc := range cases {
		t.Run(tc.method, func(t *testing.T) {
			opts, err := s.GetNoSendTransactOpts(context.Background(), big.NewInt(31337))
			require.NoError(t, err)

			tr := transport.NewMockITransport(t)
			tr.On("GetNoSendTransactOpts", mock.Anything, mock.Anything).Return(opts, nil).Once()
			tr.On("SendTransaction", mock.Anything, mock.Anything, mock.MatchedBy(func(tx *types.Transaction) bool {
				name, args := decodeCall(t, tx)
				if name != tc.method {
					return false
				}
				if tc.arg == nil {
					return len(args) == 0
				}
				return len(args) == 1 && args[0] == tc.arg
			}), tc.method).Return(&types.Receipt{Status: types.ReceiptStatusSuccessful}, nil).Once()

			_, err = tc.send(NewClient(contractAddr, 31337, &fakeContract{}, tr, zap.NewNop()))
			require.NoError(t, err)
		})
	}
}

func Test_WriteFailureKeepsReceipt(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	opts, err := signer.NewPrivateKeySignerFromKey(key).GetNoSendTransactOpts(context.Background(), big.NewInt(31337))
	require.NoError(t, err)

	failed := &types.Receipt{Status: types.ReceiptStatusFailed}
	tr := transport.NewMockITransport(t)
	tr.On("GetNoSendTransactOpts", mock.Anything, mock.Anything).Return(opts, nil).Once()
	tr.On("SendTransaction", mock.Anything, mock.Anything, mock.Anything, "clearCustomRate").
		Return(failed, transport.ErrTransactionFailed).Once()

	receipt, err := NewClient(contractAddr, 31337, &fakeContract{}, tr, zap.NewNop()).ClearCustomRate(context.Background())
	assert.ErrorIs(t, err, transport.ErrTransactionFailed)
	assert.Same(t, failed, receipt)
}

func Test_AddressBook(t *testing.T) {
	book := AddressBook{31337: contractAddr, 11155111: {}, 1: common.HexToAddress("0x01")}

	addr, ok := book.Lookup(31337)
	assert.True(t, ok)
	assert.Equal(t, contractAddr, addr)

	_, ok = book.Lookup(11155111)
	assert.False(t, ok, "zero address is not a deployment")
	_, ok = book.Lookup(8009)
	assert.False(t, ok)

	assert.Equal(t, []uint64{1, 31337}, book.ChainIDs())
}
