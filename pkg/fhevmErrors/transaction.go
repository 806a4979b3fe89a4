package fhevmErrors

import (
	"errors"
	"strings"
)

// TransactionFailureKind classifies a failed contract write.
type TransactionFailureKind string

const (
	TxUserRejected      TransactionFailureKind = "user-rejected"
	TxInsufficientFunds TransactionFailureKind = "insufficient-funds"
	TxExecutionReverted TransactionFailureKind = "execution-reverted"
	TxNetwork           TransactionFailureKind = "network"
	TxUnknown           TransactionFailureKind = "unknown"
)

// TransactionFailure is the user facing classification of a write error.
type TransactionFailure struct {
	Kind    TransactionFailureKind
	Message string
	Cause   error
}

func (t *TransactionFailure) Error() string {
	return string(t.Kind) + ": " + t.Message
}

func (t *TransactionFailure) Unwrap() error {
	return t.Cause
}

type codedError interface {
	ErrorCode() int
}

// eip1193UserRejected is the provider error code for a rejected request.
const eip1193UserRejected = 4001

var transactionMatchers = []struct {
	kind    TransactionFailureKind
	needles []string
	message string
}{
	{
		kind:    TxUserRejected,
		needles: []string{"user rejected", "user denied", "action_rejected", "rejected the request"},
		message: "Transaction was rejected in the wallet.",
	},
	{
		kind:    TxInsufficientFunds,
		needles: []string{"insufficient funds"},
		message: "Insufficient funds to pay for gas.",
	},
	{
		kind:    TxExecutionReverted,
		needles: []string{"execution reverted", "revert", "errtransactionfailed"},
		message: "Contract execution reverted.",
	},
	{
		kind:    TxNetwork,
		needles: []string{"network", "timeout", "connection refused", "no such host", "eof", "failed to fetch", "dial tcp"},
		message: "Network error while sending the transaction. Check your connection and try again.",
	},
}

// ClassifyTransactionError maps a write error to one of the known failure
// kinds by EIP-1193 code or message substring. It returns nil for nil.
func ClassifyTransactionError(err error) *TransactionFailure {
	if err == nil {
		return nil
	}
	var coded codedError
	if errors.As(err, &coded) && coded.ErrorCode() == eip1193UserRejected {
		return &TransactionFailure{Kind: TxUserRejected, Message: transactionMatchers[0].message, Cause: err}
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transactionMatchers {
		for _, n := range m.needles {
			if strings.Contains(msg, n) {
				return &TransactionFailure{Kind: m.kind, Message: m.message, Cause: err}
			}
		}
	}
	return &TransactionFailure{Kind: TxUnknown, Message: "Transaction failed: " + err.Error(), Cause: err}
}
