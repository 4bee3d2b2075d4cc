package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// baseEnv blanks every known key so the host environment cannot leak in.
func baseEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		t.Setenv("LEDGER_"+key, "")
	}
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("WEBHOOK_HMAC_KEY", "whsec")
}

func TestLoadDefaults(t *testing.T) {
	baseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, StoragePostgres, cfg.StorageDriver)
	assert.Equal(t, OracleCoinGecko, cfg.OracleDriver)
	assert.Equal(t, NotifyLog, cfg.NotifyDriver)
	assert.Equal(t, time.Hour, cfg.ReconciliationInterval)
	assert.Zero(t, cfg.PriceRefreshInterval)
	assert.Equal(t, 5*time.Second, cfg.OracleTimeout)
	assert.Equal(t, []string{"BTC", "ETH", "USDT"}, cfg.OracleSymbols)
	assert.True(t, cfg.Fees.BuyMarkupRate.Equal(decimal.RequireFromString("0.05")))
	assert.True(t, cfg.Fees.SellFeeRate.Equal(decimal.RequireFromString("0.05")))
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, int64(5<<20), cfg.ProofMaxBytes)
}

func TestLoadPrefixedKeys(t *testing.T) {
	baseEnv(t)
	t.Setenv("LEDGER_PORT", "9090")
	t.Setenv("LEDGER_STORAGE_DRIVER", "MEMORY")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, StorageMemory, cfg.StorageDriver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}

func TestLoadDepositInstructions(t *testing.T) {
	baseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Deposit.Configured())

	t.Setenv("DEPOSIT_BANK_NAME", "Providus Bank")
	t.Setenv("LEDGER_DEPOSIT_ACCOUNT_NAME", "DelexPay Collections")
	t.Setenv("DEPOSIT_ACCOUNT_NUMBER", " 1234567890 ")
	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.Deposit.Configured())
	assert.Equal(t, "DelexPay Collections", cfg.Deposit.AccountName)
	assert.Equal(t, "1234567890", cfg.Deposit.AccountNumber)
}

func TestLoadStaticOracle(t *testing.T) {
	baseEnv(t)
	t.Setenv("ORACLE_DRIVER", "static")

	_, err := Load()
	assert.ErrorContains(t, err, "STATIC_PRICES")

	t.Setenv("STATIC_PRICES", "btc=15000000,ETH=5000000")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.StaticPrices["BTC"].Equal(decimal.NewFromInt(15000000)))
	assert.Len(t, cfg.StaticPrices, 2)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing jwt secret", map[string]string{"JWT_SECRET": ""}, "JWT_SECRET is required"},
		{"short jwt secret", map[string]string{"JWT_SECRET": "short"}, "at least 32"},
		{"missing webhook key", map[string]string{"WEBHOOK_HMAC_KEY": ""}, "WEBHOOK_HMAC_KEY"},
		{"bad storage", map[string]string{"STORAGE_DRIVER": "sqlite"}, "STORAGE_DRIVER"},
		{"bad duration", map[string]string{"ORACLE_TIMEOUT": "soon"}, "ORACLE_TIMEOUT"},
		{"negative fee", map[string]string{"WITHDRAW_FEE_RATE": "-0.1"}, "WITHDRAW_FEE_RATE"},
		{"sell fee at one", map[string]string{"SELL_FEE_RATE": "1"}, "SELL_FEE_RATE"},
		{"mailjet without keys", map[string]string{"NOTIFY_DRIVER": "mailjet"}, "MAILJET_API_KEY"},
		{"smtp without host", map[string]string{"NOTIFY_DRIVER": "smtp"}, "SMTP_HOST"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			baseEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestWebhookSkipSignatureAllowsEmptyKey(t *testing.T) {
	baseEnv(t)
	t.Setenv("WEBHOOK_HMAC_KEY", "")
	t.Setenv("WEBHOOK_SKIP_SIG", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.WebhookSkipSignature)
}
