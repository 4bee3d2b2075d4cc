package domain

import "github.com/shopspring/decimal"

// DepositInstructions is the bank account users pay into before submitting a
// deposit with proof. Fee fields mirror the deposit tiers of the fee schedule.
type DepositInstructions struct {
	Currency      string          `json:"currency"`
	BankName      string          `json:"bank_name"`
	AccountName   string          `json:"account_name"`
	AccountNumber string          `json:"account_number"`
	Instructions  string          `json:"instructions,omitempty"`
	FeeThreshold  decimal.Decimal `json:"fee_threshold"`
	FeeRateBelow  decimal.Decimal `json:"fee_rate_below_threshold"`
	FeeRateAbove  decimal.Decimal `json:"fee_rate_above_threshold"`
}

// Configured reports whether there is an account to pay into.
func (d DepositInstructions) Configured() bool {
	return d.BankName != "" && d.AccountNumber != ""
}
