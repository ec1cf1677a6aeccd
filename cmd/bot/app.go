// cmd/bot/app.go
package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/blockchain"
	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/blockchain/solbc"
	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/bot"
	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/config"
	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/dex/whirlpool"
	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/events"
	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/forecast"
	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/storage"
	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/storage/gormstore"
	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/types"
	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/utils/logger"
	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/wallet"
)

const busDrainTimeout = 5 * time.Second

// app – зависимости команды. Компоненты создаются по требованию: команде positions
// не нужен журнал, а download-candles не нужен кошелёк.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	shutdown *bot.ShutdownHandler

	bus     *events.Bus
	journal storage.Journal
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.LogFile = cfg.Log.File
	logCfg.Development = cfg.Log.Development
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		shutdown: bot.NewShutdownHandler(log.Logger, 0),
	}
	a.shutdown.AddFunc("logger", log.Close)
	return a, nil
}

// close освобождает ресурсы в порядке, обратном регистрации.
func (a *app) close() {
	if err := a.shutdown.Shutdown(context.Background()); err != nil {
		a.log.Warn("Shutdown finished with errors", zap.Error(err))
	}
}

// exchange подключается к RPC и готовит DEX для отслеживаемого пула.
func (a *app) exchange() (*whirlpool.DEX, *wallet.Wallet, error) {
	w, err := a.loadWallet()
	if err != nil {
		return nil, nil, err
	}

	client := solbc.NewClient(a.cfg.RPCURL, rpc.CommitmentConfirmed, a.log.Logger)
	chain := blockchain.NewChainContext(a.cfg.RPCURL, client, w)

	poolCfg := &whirlpool.Config{
		WhirlpoolsConfig: a.cfg.WhirlpoolsConfig,
		Target:           a.cfg.Target.Spec(),
		Stable:           a.cfg.Stable.Spec(),
		TickSpacing:      a.cfg.TickSpacing,
		Priority:         a.cfg.PriorityLevel(),
	}
	if err := poolCfg.Setup(a.log.Logger); err != nil {
		return nil, nil, fmt.Errorf("whirlpool setup: %w", err)
	}

	priority := types.NewPriorityManager(a.cfg.PriorityProfile(), a.log.Named("priority"))
	dex, err := whirlpool.NewDEX(chain, poolCfg, priority, a.log.Logger)
	if err != nil {
		return nil, nil, err
	}

	a.log.Info("Connected",
		zap.String("rpc", redactURL(a.cfg.RPCURL)),
		zap.String("wallet", w.Address().String()),
		zap.String("pool", poolCfg.PoolAddress.String()))
	return dex, w, nil
}

func (a *app) loadWallet() (*wallet.Wallet, error) {
	if a.cfg.WalletKey != "" {
		return wallet.NewWallet(a.cfg.WalletKey)
	}
	return wallet.LoadFromFile(a.cfg.WalletPath)
}

func (a *app) candleSource() *forecast.CandleSource {
	return forecast.NewCandleSource(a.cfg.Forecast.APIURL, a.cfg.Forecast.APIKey, a.log.Logger)
}

func (a *app) forecaster() (*forecast.Forecaster, error) {
	model, err := forecast.LoadModel(a.cfg.Forecast.ModelPath)
	if err != nil {
		return nil, err
	}
	return forecast.NewForecaster(a.candleSource(), model, a.cfg.Target.Spec(), a.cfg.Forecast.Window, a.log.Logger)
}

// openJournal открывает журнал циклов. Пустой DSN – журнал отключён, возвращается nil.
func (a *app) openJournal() (storage.Journal, error) {
	if a.journal != nil || a.cfg.Journal.DSN == "" {
		return a.journal, nil
	}
	journal, err := gormstore.Open(a.cfg.Journal.DSN, a.log.Logger)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", redactURL(a.cfg.Journal.DSN), err)
	}
	a.journal = journal
	a.shutdown.Add("journal", journal)
	return journal, nil
}

// publisher создаёт шину событий и, если журнал включён, подписывает на неё запись циклов.
func (a *app) publisher() (events.Publisher, error) {
	if a.bus != nil {
		return a.bus, nil
	}
	journal, err := a.openJournal()
	if err != nil {
		return nil, err
	}

	a.bus = events.NewBus(a.log.Logger, events.DefaultBufferSize)
	if journal != nil {
		recorder := storage.NewRecorder(a.bus, journal, a.log.Logger)
		a.shutdown.Add("recorder", recorder)
	}
	bus := a.bus
	a.shutdown.AddFunc("events", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), busDrainTimeout)
		defer cancel()
		return bus.Shutdown(ctx)
	})
	return a.bus, nil
}

// rebalancer собирает оркестратор цикла со всеми зависимостями.
func (a *app) rebalancer() (*bot.Rebalancer, error) {
	dex, w, err := a.exchange()
	if err != nil {
		return nil, err
	}
	forecaster, err := a.forecaster()
	if err != nil {
		return nil, err
	}
	publisher, err := a.publisher()
	if err != nil {
		return nil, err
	}
	return bot.NewRebalancer(dex, forecaster, bot.Options{
		Target:  a.cfg.Target.Spec(),
		Stable:  a.cfg.Stable.Spec(),
		Refresh: bot.RefreshPolicy(a.cfg.PostSwapRefresh),
		Events:  publisher,
		Pool:    dex.Config().PoolAddress,
		Wallet:  w.Address(),
	}, a.log.Logger)
}

// redactURL скрывает пароль и query-параметры (API-ключи RPC-провайдеров).
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		if i := strings.Index(raw, "?"); i >= 0 {
			return raw[:i]
		}
		return raw
	}
	if u.User != nil {
		u.User = url.User(u.User.Username())
	}
	if u.RawQuery != "" {
		u.RawQuery = "redacted"
	}
	return u.String()
}
