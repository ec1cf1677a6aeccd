package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/types"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultRPCURL, cfg.RPCURL)
	assert.Equal(t, DefaultTargetMint, cfg.Target.Mint.String())
	assert.Equal(t, uint8(6), cfg.Target.Decimals)
	assert.Equal(t, DefaultStableMint, cfg.Stable.Mint.String())
	assert.Equal(t, uint16(64), cfg.TickSpacing)
	assert.Equal(t, DefaultWhirlpoolsConfig, cfg.WhirlpoolsConfig.String())
	assert.Equal(t, "5 * * * *", cfg.Schedule)
	assert.Equal(t, RefreshAlways, cfg.PostSwapRefresh)
	assert.Equal(t, 10, cfg.Forecast.Window)
	assert.Equal(t, types.PriorityCustom, cfg.PriorityLevel())
	assert.Equal(t, uint32(400_000), cfg.PriorityProfile().ComputeUnits)
	assert.Equal(t, uint64(5_000), cfg.PriorityProfile().PriorityFee)
	assert.Empty(t, cfg.Journal.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigFileEnvAndFlags(t *testing.T) {
	path := writeConfig(t, `
tick_spacing: 128
post_swap_refresh: on_success
target:
  mint: So11111111111111111111111111111111111111112
  decimals: 9
forecast:
  window: 12
log:
  level: debug
`)
	t.Setenv("ANCHOR_PROVIDER_URL", "https://rpc.example.org")
	t.Setenv("HELLO_MOON_API_KEY", "moon")
	t.Setenv("LPBOT_STABLE_DECIMALS", "8")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	flags.String("journal", "", "")
	flags.String("priority", "", "")
	require.NoError(t, flags.Parse([]string{"--journal", "sqlite://journal.db", "--priority", "high"}))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)

	assert.Equal(t, uint16(128), cfg.TickSpacing)
	assert.Equal(t, RefreshOnSuccess, cfg.PostSwapRefresh)
	assert.Equal(t, "So11111111111111111111111111111111111111112", cfg.Target.Mint.String())
	assert.Equal(t, uint8(9), cfg.Target.Spec().Decimals)
	assert.Equal(t, uint8(8), cfg.Stable.Decimals)
	assert.Equal(t, 12, cfg.Forecast.Window)
	assert.Equal(t, "https://rpc.example.org", cfg.RPCURL)
	assert.Equal(t, "moon", cfg.Forecast.APIKey)
	assert.Equal(t, "sqlite://journal.db", cfg.Journal.DSN)
	assert.Equal(t, types.PriorityHigh, cfg.PriorityLevel())
	// флаг не задан явно: значение из файла сохраняется
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigPrefixedEnvWins(t *testing.T) {
	t.Setenv("LPBOT_RPC_URL", "https://primary.example.org")
	t.Setenv("ANCHOR_PROVIDER_URL", "https://fallback.example.org")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://primary.example.org", cfg.RPCURL)
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"bad rpc", "rpc_url: ftp://example.org"},
		{"same mints", "stable:\n  mint: orcaEKTdK7LKz57vaAYr9QeNsVEPfiu6QeMU1kektZE"},
		{"bad mint", "target:\n  mint: not-a-key"},
		{"zero spacing", "tick_spacing: 0"},
		{"bad refresh", "post_swap_refresh: sometimes"},
		{"bad window", "forecast:\n  window: 0"},
		{"bad priority", "priority:\n  level: extreme"},
		{"no wallet", "wallet_path: ''"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.body), nil)
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}
