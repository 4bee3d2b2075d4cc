package domain

import "errors"

var (
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInvalidInput          = errors.New("invalid input")
	ErrPriceUnavailable      = errors.New("price unavailable")
	ErrRecordNotFound        = errors.New("transaction record not found")
	ErrAccountNotFound       = errors.New("ledger account not found")
	ErrTerminalState         = errors.New("transaction is in a terminal state")
	ErrNoOpTransition        = errors.New("transaction already in requested state")
	ErrBalanceInvariant      = errors.New("balance invariant violated")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrDepositInfoNotFound   = errors.New("deposit instructions not found")
)
