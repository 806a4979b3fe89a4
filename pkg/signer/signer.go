// Package signer provides Ethereum signing for the session manager.
// This package defines interfaces and implementations for signing EIP-712 typed
// data (decryption authorizations) and transactions (contract writes) using a
// raw private key, AWS KMS, or a connected wallet.
package signer

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// ITypedDataSigner signs EIP-712 typed data.
type ITypedDataSigner interface {
	// GetAddress returns the Ethereum address associated with this signer.
	//
	// Returns:
	//   - common.Address: The Ethereum address of the signer
	//   - error: An error if the address cannot be determined
	GetAddress() (common.Address, error)

	// SignTypedData signs the EIP-712 digest of td.
	//
	// Parameters:
	//   - ctx: Context for the operation
	//   - td: The typed data to sign
	//
	// Returns:
	//   - string: The 0x-prefixed 65 byte signature with v in {27, 28}
	//   - error: An error if signing fails or is refused
	SignTypedData(ctx context.Context, td *apitypes.TypedData) (string, error)
}

// ITransactionSigner defines the interface for signing Ethereum transactions.
// Implementations provide the ability to create properly configured transaction
// options for use with go-ethereum contract bindings, supporting different
// signing backends like private keys and hardware security modules.
type ITransactionSigner interface {
	// GetTransactOpts returns bind.TransactOpts configured for the signer.
	// The returned TransactOpts contains the necessary authentication and
	// signing configuration for submitting transactions to the specified chain.
	//
	// Parameters:
	//   - ctx: Context for the operation
	//   - chainID: The chain ID for the target blockchain
	//
	// Returns:
	//   - *bind.TransactOpts: Configured transaction options for the signer
	//   - error: An error if transaction options cannot be created
	GetTransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error)

	// GetNoSendTransactOpts is GetTransactOpts with NoSend set, used to build
	// a signed transaction whose gas is estimated before it is sent.
	GetNoSendTransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error)

	// GetAddress returns the Ethereum address associated with this signer.
	// This address will be used as the 'from' field in transactions.
	GetAddress() (common.Address, error)
}

// ISigner signs both typed data and transactions.
type ISigner interface {
	ITypedDataSigner
	ITransactionSigner
}

func noSend(opts *bind.TransactOpts, err error) (*bind.TransactOpts, error) {
	if err != nil {
		return nil, err
	}
	opts.NoSend = true
	return opts, nil
}
