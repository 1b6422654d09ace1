package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "APP_ENV", "STORE_BACKEND", "SPREADSHEET_ID", "REQUEST_TIMEOUT", "CHECKOUT_RETRIES", "STORE_TIMEZONE"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, "8081", cfg.Server.Port)
	assert.False(t, cfg.Server.Production())
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, 30*time.Second, cfg.Store.RequestTimeout)
	assert.Equal(t, 3, cfg.Checkout.Retries)
	assert.Equal(t, "VND", cfg.Checkout.Currency)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORE_BACKEND", "sheets")
	t.Setenv("SPREADSHEET_ID", "abc")
	t.Setenv("REQUEST_TIMEOUT", "5")
	t.Setenv("CHECKOUT_RETRIES", "not a number")
	t.Setenv("STORE_TIMEZONE", "UTC")

	cfg := Load()
	assert.True(t, cfg.Server.Production())
	assert.Equal(t, 5*time.Second, cfg.Store.RequestTimeout)
	assert.Equal(t, 3, cfg.Checkout.Retries)
	require.NoError(t, cfg.Validate())

	loc, err := cfg.Store.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	t.Setenv("REQUEST_TIMEOUT", "1m")
	assert.Equal(t, time.Minute, Load().Store.RequestTimeout)
}

func TestValidate(t *testing.T) {
	cfg := &Config{Store: StoreConfig{Backend: BackendSheets}, Checkout: CheckoutConfig{Retries: 1}}
	assert.Error(t, cfg.Validate())

	cfg.Store.Backend = "postgres"
	assert.Error(t, cfg.Validate())

	cfg.Store.Backend = BackendMemory
	assert.NoError(t, cfg.Validate())

	cfg.Checkout.Retries = 0
	assert.Error(t, cfg.Validate())
}
