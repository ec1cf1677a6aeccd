// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/types"
)

const (
	EnvPrefix = "LPBOT"

	DefaultRPCURL           = "https://api.mainnet-beta.solana.com"
	DefaultWalletPath       = "wallet.json"
	DefaultTargetMint       = "orcaEKTdK7LKz57vaAYr9QeNsVEPfiu6QeMU1kektZE"
	DefaultStableMint       = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	DefaultWhirlpoolsConfig = "2LecshUwdy9xi7meFgHtFJQNSKk4KdTrcpvaB56dP2NQ"
	DefaultTickSpacing      = 64
	DefaultSchedule         = "5 * * * *"
	DefaultForecastWindow   = 10
	DefaultForecastAPIURL   = "https://rest-api.hellomoon.io"
	DefaultModelPath        = "model/model.json"

	RefreshAlways    = "always"
	RefreshOnSuccess = "on_success"
)

type TokenConfig struct {
	Mint     solana.PublicKey `mapstructure:"mint"`
	Decimals uint8            `mapstructure:"decimals"`
}

// Spec возвращает описание токена.
func (t TokenConfig) Spec() types.TokenSpec {
	return types.TokenSpec{Mint: t.Mint, Decimals: t.Decimals}
}

type ForecastConfig struct {
	Window    int    `mapstructure:"window"`
	ModelPath string `mapstructure:"model_path"`
	APIURL    string `mapstructure:"api_url"`
	APIKey    string `mapstructure:"api_key"`
}

// PriorityConfig: level выбирает профиль compute budget, custom берёт compute_units и fee_micro_lamports.
type PriorityConfig struct {
	Level            string `mapstructure:"level"`
	ComputeUnits     uint32 `mapstructure:"compute_units"`
	FeeMicroLamports uint64 `mapstructure:"fee_micro_lamports"`
}

type JournalConfig struct {
	DSN string `mapstructure:"dsn"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	File        string `mapstructure:"file"`
	Development bool   `mapstructure:"development"`
}

type Config struct {
	RPCURL           string           `mapstructure:"rpc_url"`
	WalletPath       string           `mapstructure:"wallet_path"`
	WalletKey        string           `mapstructure:"wallet_key"`
	Target           TokenConfig      `mapstructure:"target"`
	Stable           TokenConfig      `mapstructure:"stable"`
	TickSpacing      uint16           `mapstructure:"tick_spacing"`
	WhirlpoolsConfig solana.PublicKey `mapstructure:"whirlpools_config"`
	Schedule         string           `mapstructure:"schedule"`
	PostSwapRefresh  string           `mapstructure:"post_swap_refresh"`
	Forecast         ForecastConfig   `mapstructure:"forecast"`
	Priority         PriorityConfig   `mapstructure:"priority"`
	Journal          JournalConfig    `mapstructure:"journal"`
	Log              LogConfig        `mapstructure:"log"`
}

// PriorityLevel возвращает выбранный профиль приоритета.
func (c *Config) PriorityLevel() types.PriorityLevel {
	return types.PriorityLevel(c.Priority.Level)
}

// PriorityProfile возвращает профиль compute budget из конфигурации.
func (c *Config) PriorityProfile() types.PriorityConfig {
	return types.PriorityConfig{
		ComputeUnits: c.Priority.ComputeUnits,
		PriorityFee:  c.Priority.FeeMicroLamports,
	}
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"rpc_url":                     DefaultRPCURL,
		"wallet_path":                 DefaultWalletPath,
		"wallet_key":                  "",
		"target.mint":                 DefaultTargetMint,
		"target.decimals":             6,
		"stable.mint":                 DefaultStableMint,
		"stable.decimals":             6,
		"tick_spacing":                DefaultTickSpacing,
		"whirlpools_config":           DefaultWhirlpoolsConfig,
		"schedule":                    DefaultSchedule,
		"post_swap_refresh":           RefreshAlways,
		"forecast.window":             DefaultForecastWindow,
		"forecast.model_path":         DefaultModelPath,
		"forecast.api_url":            DefaultForecastAPIURL,
		"forecast.api_key":            "",
		"priority.level":              string(types.PriorityCustom),
		"priority.compute_units":      400_000,
		"priority.fee_micro_lamports": 5_000,
		"journal.dsn":                 "",
		"log.level":                   "info",
		"log.file":                    "lpbot.log",
		"log.development":             false,
	}
}

// flagKeys – соответствие CLI-флагов ключам конфигурации.
var flagKeys = map[string]string{
	"rpc-url":   "rpc_url",
	"wallet":    "wallet_path",
	"schedule":  "schedule",
	"journal":   "journal.dsn",
	"log-level": "log.level",
	"model":     "forecast.model_path",
	"priority":  "priority.level",
}

// LoadConfig объединяет значения по умолчанию, файл конфигурации, переменные окружения и флаги.
// Пустой path означает поиск config.{yaml,json} в текущей директории; отсутствие файла не ошибка.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	if err := loadEnvironmentVariables(v); err != nil {
		return nil, err
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(publicKeyHook())); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &cfg, validateConfig(&cfg)
}

// loadEnvironmentVariables: LPBOT_<KEY> для всех ключей и исторические имена переменных.
func loadEnvironmentVariables(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("rpc_url", EnvPrefix+"_RPC_URL", "ANCHOR_PROVIDER_URL"); err != nil {
		return err
	}
	if err := v.BindEnv("forecast.api_key", EnvPrefix+"_FORECAST_API_KEY", "HELLO_MOON_API_KEY"); err != nil {
		return err
	}
	return nil
}

func publicKeyHook() mapstructure.DecodeHookFuncType {
	keyType := reflect.TypeOf(solana.PublicKey{})
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != keyType || from.Kind() != reflect.String {
			return data, nil
		}
		s := strings.TrimSpace(data.(string))
		if s == "" {
			return solana.PublicKey{}, nil
		}
		pk, err := solana.PublicKeyFromBase58(s)
		if err != nil {
			return nil, fmt.Errorf("invalid public key %q: %w", s, err)
		}
		return pk, nil
	}
}

func validateConfig(cfg *Config) error {
	if err := validateURL(cfg.RPCURL, "http"); err != nil {
		return fmt.Errorf("invalid rpc_url: %w", err)
	}
	if cfg.WalletPath == "" && cfg.WalletKey == "" {
		return errors.New("either wallet_path or wallet_key is required")
	}
	if cfg.Target.Mint.IsZero() || cfg.Stable.Mint.IsZero() {
		return errors.New("target.mint and stable.mint are required")
	}
	if cfg.Target.Mint.Equals(cfg.Stable.Mint) {
		return errors.New("target.mint and stable.mint must differ")
	}
	if cfg.TickSpacing == 0 {
		return errors.New("invalid tick_spacing")
	}
	if cfg.Schedule == "" {
		return errors.New("schedule is empty")
	}
	switch cfg.PostSwapRefresh {
	case RefreshAlways, RefreshOnSuccess:
	default:
		return fmt.Errorf("invalid post_swap_refresh %q: want %s or %s", cfg.PostSwapRefresh, RefreshAlways, RefreshOnSuccess)
	}
	if _, err := types.ParsePriorityLevel(cfg.Priority.Level); err != nil {
		return fmt.Errorf("invalid priority.level: %w", err)
	}
	if cfg.Forecast.Window <= 0 {
		return errors.New("invalid forecast.window")
	}
	if err := validateURL(cfg.Forecast.APIURL, "http"); err != nil {
		return fmt.Errorf("invalid forecast.api_url: %w", err)
	}
	return nil
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	return nil
}
