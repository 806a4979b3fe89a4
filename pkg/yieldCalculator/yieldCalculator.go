// Package yieldCalculator is a client for the SecureYieldCalculator contract.
// Reads return encrypted handles or plain rates; writes go through a
// transport that prices, signs and waits for each transaction.
package yieldCalculator

import (
	"context"
	_ "embed"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/Layr-Labs/fhevm-session-go/pkg/chainManager"
	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevm"
	"github.com/Layr-Labs/fhevm-session-go/pkg/transport"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

//go:embed SecureYieldCalculator.abi.json
var abiJSON string

var parsedABI = mustParseABI(abiJSON)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("invalid SecureYieldCalculator ABI: %v", err))
	}
	return parsed
}

// ABI returns the contract ABI.
func ABI() abi.ABI {
	return parsedABI
}

// AddressBook maps chain ids to deployed contract addresses.
type AddressBook map[uint64]common.Address

// Lookup returns the deployment for chainID.
func (b AddressBook) Lookup(chainID uint64) (common.Address, bool) {
	addr, ok := b[chainID]
	if !ok || addr == (common.Address{}) {
		return common.Address{}, false
	}
	return addr, true
}

// ChainIDs returns the chain ids with a deployment, ascending.
func (b AddressBook) ChainIDs() []uint64 {
	ids := make([]uint64, 0, len(b))
	for id, addr := range b {
		if addr != (common.Address{}) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Rate is a yield rate in basis points.
type Rate struct {
	Bps      uint32
	IsCustom bool
}

// IYieldCalculator is the contract surface used by a session.
type IYieldCalculator interface {
	Address() common.Address
	ChainID() uint64
	GetLastYield(ctx context.Context, from common.Address) (fhevm.Handle, error)
	GetLastTotal(ctx context.Context, from common.Address) (fhevm.Handle, error)
	GetMyRate(ctx context.Context, from common.Address) (*Rate, error)
	Calculate(ctx context.Context, principal, duration fhevm.Handle, inputProof []byte) (*types.Receipt, error)
	SetCustomRate(ctx context.Context, bps uint32) (*types.Receipt, error)
	ClearCustomRate(ctx context.Context) (*types.Receipt, error)
}

type Client struct {
	address   common.Address
	chainID   *big.Int
	client    chainManager.EthClientInterface
	contract  *bind.BoundContract
	transport transport.ITransport
	logger    *zap.Logger
}

var _ IYieldCalculator = (*Client)(nil)

// NewClient binds the contract at address on chainID. tr may be nil for a
// read-only client.
func NewClient(
	address common.Address,
	chainID uint64,
	client chainManager.EthClientInterface,
	tr transport.ITransport,
	logger *zap.Logger,
) *Client {
	return &Client{
		address:   address,
		chainID:   new(big.Int).SetUint64(chainID),
		client:    client,
		contract:  bind.NewBoundContract(address, parsedABI, client, client, client),
		transport: tr,
		logger:    logger,
	}
}

func (c *Client) Address() common.Address {
	return c.address
}

func (c *Client) ChainID() uint64 {
	return c.chainID.Uint64()
}

func (c *Client) call(ctx context.Context, from common.Address, method string) ([]interface{}, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx, From: from}
	if err := c.contract.Call(opts, &out, method); err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	return out, nil
}

func (c *Client) handle(ctx context.Context, from common.Address, method string) (fhevm.Handle, error) {
	out, err := c.call(ctx, from, method)
	if err != nil {
		return fhevm.Handle{}, err
	}
	raw, ok := out[0].([32]byte)
	if !ok {
		return fhevm.Handle{}, fmt.Errorf("unexpected %s result type %T", method, out[0])
	}
	return fhevm.Handle(raw), nil
}

// GetLastYield returns the encrypted yield of from's last calculation.
func (c *Client) GetLastYield(ctx context.Context, from common.Address) (fhevm.Handle, error) {
	return c.handle(ctx, from, "getLastYield")
}

// GetLastTotal returns the encrypted principal plus yield of from's last calculation.
func (c *Client) GetLastTotal(ctx context.Context, from common.Address) (fhevm.Handle, error) {
	return c.handle(ctx, from, "getLastTotal")
}

// GetMyRate returns the rate that applies to from.
func (c *Client) GetMyRate(ctx context.Context, from common.Address) (*Rate, error) {
	out, err := c.call(ctx, from, "getMyRate")
	if err != nil {
		return nil, err
	}
	bps, ok1 := out[0].(uint32)
	custom, ok2 := out[1].(bool)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("unexpected getMyRate result types %T, %T", out[0], out[1])
	}
	return &Rate{Bps: bps, IsCustom: custom}, nil
}

func (c *Client) DefaultRateBps(ctx context.Context) (uint32, error) {
	out, err := c.call(ctx, common.Address{}, "defaultRateBps")
	if err != nil {
		return 0, err
	}
	bps, ok := out[0].(uint32)
	if !ok {
		return 0, fmt.Errorf("unexpected defaultRateBps result type %T", out[0])
	}
	return bps, nil
}

func (c *Client) ConfidentialProtocolID(ctx context.Context) (*big.Int, error) {
	out, err := c.call(ctx, common.Address{}, "confidentialProtocolId")
	if err != nil {
		return nil, err
	}
	id, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected confidentialProtocolId result type %T", out[0])
	}
	return id, nil
}

// Calculate submits an encrypted principal and duration. principal and
// duration must come from one encrypted input in that order.
func (c *Client) Calculate(ctx context.Context, principal, duration fhevm.Handle, inputProof []byte) (*types.Receipt, error) {
	return c.transact(ctx, "calculate", [32]byte(principal), [32]byte(duration), inputProof)
}

func (c *Client) SetCustomRate(ctx context.Context, bps uint32) (*types.Receipt, error) {
	return c.transact(ctx, "setCustomRate", bps)
}

func (c *Client) ClearCustomRate(ctx context.Context) (*types.Receipt, error) {
	return c.transact(ctx, "clearCustomRate")
}

func (c *Client) UpdateDefaultRate(ctx context.Context, bps uint32) (*types.Receipt, error) {
	return c.transact(ctx, "updateDefaultRate", bps)
}

func (c *Client) transact(ctx context.Context, method string, params ...interface{}) (*types.Receipt, error) {
	if c.transport == nil {
		return nil, fmt.Errorf("client for %s is read-only", c.address.Hex())
	}
	opts, err := c.transport.GetNoSendTransactOpts(ctx, c.chainID)
	if err != nil {
		return nil, err
	}

	tx, err := c.contract.Transact(opts, method, params...)
	if err != nil {
		c.logger.Sugar().Errorw("Failed to build transaction",
			zap.String("method", method),
			zap.String("contract", c.address.Hex()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to build %s transaction: %w", method, err)
	}
	c.logger.Sugar().Infow("Created transaction",
		zap.String("method", method),
		zap.Uint64("chainId", c.chainID.Uint64()),
		zap.String("contract", c.address.Hex()),
		zap.String("from", opts.From.Hex()),
	)

	receipt, err := c.transport.SendTransaction(ctx, c.client, tx, method)
	if err != nil {
		return receipt, fmt.Errorf("failed to send %s: %w", method, err)
	}
	return receipt, nil
}
