package domain

import (
	"fmt"
	"strings"
)

// Kind is the closed set of transaction kinds the ledger recognizes.
type Kind string

const (
	KindDeposit  Kind = "deposit"
	KindSell     Kind = "sell"
	KindCredit   Kind = "credit"
	KindRefund   Kind = "refund"
	KindWithdraw Kind = "withdraw"
	KindBuy      Kind = "buy"
	KindTransfer Kind = "transfer"
	KindDebit    Kind = "debit"
	KindSwap     Kind = "swap"
)

// Direction tells whether a kind moves value into or out of the user's custody.
type Direction int

const (
	DirectionCredit Direction = iota + 1
	DirectionDebit
)

func (d Direction) String() string {
	switch d {
	case DirectionCredit:
		return "credit"
	case DirectionDebit:
		return "debit"
	default:
		return "unknown"
	}
}

var kindDirections = map[Kind]Direction{
	KindDeposit:  DirectionCredit,
	KindSell:     DirectionCredit,
	KindCredit:   DirectionCredit,
	KindRefund:   DirectionCredit,
	KindWithdraw: DirectionDebit,
	KindBuy:      DirectionDebit,
	KindTransfer: DirectionDebit,
	KindDebit:    DirectionDebit,
}

// ParseKind normalizes s and returns the matching kind. Swap parses but is not creatable.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if k == KindSwap {
		return k, nil
	}
	if _, ok := kindDirections[k]; !ok {
		return "", fmt.Errorf("%w: unrecognized transaction kind %q", ErrInvalidInput, s)
	}
	return k, nil
}

// Direction returns zero for kinds without a balance effect.
func (k Kind) Direction() Direction {
	return kindDirections[k]
}

func (k Kind) IsCredit() bool { return k.Direction() == DirectionCredit }

func (k Kind) IsDebit() bool { return k.Direction() == DirectionDebit }

// Creatable reports whether new records of this kind may be opened.
func (k Kind) Creatable() bool {
	_, ok := kindDirections[k]
	return ok
}

// NeedsQuote reports whether settlement depends on a price oracle quote.
func (k Kind) NeedsQuote() bool {
	return k == KindBuy || k == KindSell
}

// OperatorOnly kinds are opened by an admin, never by the account owner.
func (k Kind) OperatorOnly() bool {
	return k == KindCredit || k == KindDebit || k == KindRefund
}
