package chainResolver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevm"
	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevmErrors"
	"github.com/Layr-Labs/fhevm-session-go/pkg/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResolve_MockChain(t *testing.T) {
	p := wallet.NewMockProvider(t)
	p.On("Request", mock.Anything, "eth_chainId").Return(json.RawMessage(`"0x7a69"`), nil)

	r := NewResolver(map[uint64]string{31337: "http://localhost:8545"}, nil, zap.NewNop())
	res, err := r.Resolve(context.Background(), &fhevm.ChainTarget{Provider: p})
	require.NoError(t, err)
	assert.Equal(t, &Resolution{IsMock: true, ChainID: 31337, RpcURL: "http://localhost:8545"}, res)
}

func TestResolve_ProductionChain(t *testing.T) {
	p := wallet.NewMockProvider(t)
	p.On("Request", mock.Anything, "eth_chainId").Return(json.RawMessage(`"0xaa36a7"`), nil)

	r := NewResolver(nil, nil, zap.NewNop())
	res, err := r.Resolve(context.Background(), &fhevm.ChainTarget{Provider: p})
	require.NoError(t, err)
	assert.Equal(t, &Resolution{IsMock: false, ChainID: 11155111}, res)
}

func TestResolve_RpcURLDialsProvider(t *testing.T) {
	p := wallet.NewMockProvider(t)
	p.On("Request", mock.Anything, "eth_chainId").Return(json.RawMessage(`"0x7a69"`), nil)

	var dialed string
	r := NewResolver(nil, func(ctx context.Context, url string) (wallet.Provider, error) {
		dialed = url
		return p, nil
	}, zap.NewNop())

	res, err := r.Resolve(context.Background(), &fhevm.ChainTarget{RpcURL: "http://127.0.0.1:8545"})
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8545", dialed)
	assert.True(t, res.IsMock)
}

func TestResolve_NetworkUnreachable(t *testing.T) {
	p := wallet.NewMockProvider(t)
	p.On("Request", mock.Anything, "eth_chainId").Return(nil, errors.New("connection refused"))

	r := NewResolver(nil, nil, zap.NewNop())
	_, err := r.Resolve(context.Background(), &fhevm.ChainTarget{Provider: p})
	assert.True(t, fhevmErrors.IsKind(err, fhevmErrors.KindNetworkUnreachable))

	_, err = r.Resolve(context.Background(), &fhevm.ChainTarget{})
	assert.True(t, fhevmErrors.IsKind(err, fhevmErrors.KindNetworkUnreachable))

	r = NewResolver(nil, func(ctx context.Context, url string) (wallet.Provider, error) {
		return nil, errors.New("dial tcp: refused")
	}, zap.NewNop())
	_, err = r.Resolve(context.Background(), &fhevm.ChainTarget{RpcURL: "http://nowhere"})
	assert.True(t, fhevmErrors.IsKind(err, fhevmErrors.KindNetworkUnreachable))
}

func TestResolve_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := wallet.NewMockProvider(t)
	p.On("Request", mock.Anything, "eth_chainId").
		Run(func(mock.Arguments) { cancel() }).
		Return(json.RawMessage(`"0x7a69"`), nil)

	r := NewResolver(nil, nil, zap.NewNop())
	_, err := r.Resolve(ctx, &fhevm.ChainTarget{Provider: p})
	assert.True(t, fhevmErrors.IsAbort(err))
}

func TestNewResolver_CopiesTable(t *testing.T) {
	table := map[uint64]string{1: "http://a"}
	r := NewResolver(table, nil, zap.NewNop())
	table[2] = "http://b"
	assert.Len(t, r.MockChains(), 1)
}
