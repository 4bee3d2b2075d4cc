package service

import (
	"fmt"
	"strings"

	"github.com/ayo6706/delexpay-ledger/internal/domain"
)

// Metadata keys carried by kind-specific requests.
const (
	MetaNetwork           = "network"
	MetaPayoutDestination = "payout_destination"
	MetaRecipientAddress  = "recipient_address"
	MetaBankAccountNumber = "bank_account_number"
	MetaBankName          = "bank_name"
	MetaAccountName       = "account_name"
	MetaMethod            = "method"
	MetaReason            = "reason"
)

var requiredMetadata = map[domain.Kind][]string{
	domain.KindTransfer: {MetaRecipientAddress},
	domain.KindWithdraw: {MetaBankAccountNumber, MetaBankName, MetaAccountName},
	domain.KindCredit:   {MetaReason},
	domain.KindDebit:    {MetaReason},
	domain.KindRefund:   {MetaReason},
}

// validateKindFields checks and normalizes the fields each kind depends on.
func validateKindFields(kind domain.Kind, req CreateTransactionRequest) error {
	if kind.NeedsQuote() && strings.TrimSpace(req.Asset) == "" {
		return fmt.Errorf("%w: asset is required for %s", domain.ErrInvalidInput, kind)
	}
	for _, key := range requiredMetadata[kind] {
		if strings.TrimSpace(req.Metadata[key]) == "" {
			return fmt.Errorf("%w: %s is required for %s", domain.ErrInvalidInput, key, kind)
		}
	}

	switch kind {
	case domain.KindSell:
		switch req.Metadata[MetaPayoutDestination] {
		case "", "wallet", "bank":
		default:
			return fmt.Errorf("%w: payout_destination must be wallet or bank", domain.ErrInvalidInput)
		}
		if req.Metadata != nil && req.Metadata[MetaPayoutDestination] == "" {
			req.Metadata[MetaPayoutDestination] = "wallet"
		}
	case domain.KindDeposit:
		if req.Metadata != nil && req.Metadata[MetaMethod] == "" {
			req.Metadata[MetaMethod] = "bank"
		}
	}
	return nil
}
