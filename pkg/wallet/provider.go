// Package wallet abstracts the JSON-RPC style wallet/provider the session
// manager talks to. A Provider answers request(method, params) calls; a
// Watcher turns chain and account changes into events.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Layr-Labs/fhevm-session-go/pkg/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// Provider is an EIP-1193 style request interface.
type Provider interface {
	// ID identifies the provider. Two providers with the same ID are the same
	// wallet connection.
	ID() string
	// Request performs a JSON-RPC call and returns the raw result.
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

// RpcProvider is a Provider backed by a go-ethereum rpc.Client.
type RpcProvider struct {
	url    string
	client *rpc.Client
}

// DialRpcProvider connects to a JSON-RPC endpoint. HTTP round trips are
// logged through the logging transport.
func DialRpcProvider(ctx context.Context, url string, l *zap.Logger) (*RpcProvider, error) {
	httpClient := &http.Client{Transport: logger.NewHttpLoggingTransport(nil, l)}
	client, err := rpc.DialOptions(ctx, url, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC URL %s: %w", url, err)
	}
	return &RpcProvider{url: url, client: client}, nil
}

// NewRpcProvider wraps an existing rpc.Client.
func NewRpcProvider(url string, client *rpc.Client) *RpcProvider {
	return &RpcProvider{url: url, client: client}
}

func (p *RpcProvider) ID() string {
	return p.url
}

// Client exposes the underlying rpc.Client.
func (p *RpcProvider) Client() *rpc.Client {
	return p.client
}

func (p *RpcProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	var result json.RawMessage
	if err := p.client.CallContext(ctx, &result, method, params...); err != nil {
		return nil, err
	}
	return result, nil
}

// Close releases the connection.
func (p *RpcProvider) Close() {
	p.client.Close()
}

// ChainID queries eth_chainId.
func ChainID(ctx context.Context, p Provider) (uint64, error) {
	raw, err := p.Request(ctx, "eth_chainId")
	if err != nil {
		return 0, err
	}
	var id hexutil.Uint64
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, fmt.Errorf("failed to decode eth_chainId result %s: %w", string(raw), err)
	}
	return uint64(id), nil
}

// Accounts queries eth_accounts.
func Accounts(ctx context.Context, p Provider) ([]common.Address, error) {
	return decodeAccounts(p.Request(ctx, "eth_accounts"))
}

// RequestAccounts asks the wallet to connect (eth_requestAccounts).
func RequestAccounts(ctx context.Context, p Provider) ([]common.Address, error) {
	return decodeAccounts(p.Request(ctx, "eth_requestAccounts"))
}

// ClientVersion queries web3_clientVersion.
func ClientVersion(ctx context.Context, p Provider) (string, error) {
	raw, err := p.Request(ctx, "web3_clientVersion")
	if err != nil {
		return "", err
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("failed to decode web3_clientVersion result: %w", err)
	}
	return v, nil
}

func decodeAccounts(raw json.RawMessage, err error) ([]common.Address, error) {
	if err != nil {
		return nil, err
	}
	var accs []common.Address
	if err := json.Unmarshal(raw, &accs); err != nil {
		return nil, fmt.Errorf("failed to decode accounts: %w", err)
	}
	return accs, nil
}

const userRejectedCode = 4001

// IsUserRejection reports whether err is a wallet rejection of a request.
func IsUserRejection(err error) bool {
	if err == nil {
		return false
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == userRejectedCode {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "user rejected") || strings.Contains(msg, "user denied")
}
