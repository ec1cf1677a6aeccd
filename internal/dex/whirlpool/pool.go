// =============================
// File: internal/dex/whirlpool/pool.go
// =============================
package whirlpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/blockchain"
)

// maxAccountsPerRequest – лимит getMultipleAccounts на один запрос.
const maxAccountsPerRequest = 100

// ErrPoolNotFound – аккаунт пула отсутствует в сети.
var ErrPoolNotFound = errors.New("whirlpool account not found")

// PoolManager отвечает за чтение пулов, аккаунтов и decimals mint'ов.
type PoolManager struct {
	client blockchain.Client
	logger *zap.Logger

	// кеш decimals: mint неизменяем
	mu       sync.RWMutex
	decimals map[solana.PublicKey]uint8
}

// NewPoolManager создаёт новый PoolManager.
func NewPoolManager(client blockchain.Client, logger *zap.Logger) *PoolManager {
	return &PoolManager{
		client:   client,
		logger:   logger.Named("whirlpool-pools"),
		decimals: make(map[solana.PublicKey]uint8),
	}
}

// SeedDecimals заранее кладёт известные decimals в кеш (из конфигурации).
func (pm *PoolManager) SeedDecimals(mint solana.PublicKey, decimals uint8) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.decimals[mint] = decimals
}

// FetchPool читает и декодирует аккаунт пула.
func (pm *PoolManager) FetchPool(ctx context.Context, address solana.PublicKey) (*Whirlpool, error) {
	data, err := pm.client.GetAccountData(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("fetch pool %s: %w", address, err)
	}
	pool, err := ParseWhirlpool(data)
	if err != nil {
		return nil, fmt.Errorf("fetch pool %s: %w", address, err)
	}
	return pool, nil
}

// FetchPools читает несколько пулов пачкой. Отсутствующий пул – ошибка.
func (pm *PoolManager) FetchPools(ctx context.Context, addresses []solana.PublicKey) (map[solana.PublicKey]*Whirlpool, error) {
	accounts, err := pm.FetchAccounts(ctx, addresses)
	if err != nil {
		return nil, err
	}

	pools := make(map[solana.PublicKey]*Whirlpool, len(addresses))
	for i, acc := range accounts {
		if acc == nil {
			return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, addresses[i])
		}
		pool, err := ParseWhirlpool(acc.Data)
		if err != nil {
			return nil, fmt.Errorf("pool %s: %w", addresses[i], err)
		}
		pools[addresses[i]] = pool
	}
	return pools, nil
}

// FetchAccounts читает аккаунты пачками по 100, пачки запрашиваются параллельно.
// Порядок результата совпадает с порядком addresses; nil – аккаунт не существует.
func (pm *PoolManager) FetchAccounts(ctx context.Context, addresses []solana.PublicKey) ([]*blockchain.AccountData, error) {
	out := make([]*blockchain.AccountData, len(addresses))
	if len(addresses) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(addresses); start += maxAccountsPerRequest {
		end := start + maxAccountsPerRequest
		if end > len(addresses) {
			end = len(addresses)
		}
		start, end := start, end
		g.Go(func() error {
			chunk, err := pm.client.GetMultipleAccountsData(gctx, addresses[start:end])
			if err != nil {
				return fmt.Errorf("get accounts [%d:%d]: %w", start, end, err)
			}
			if len(chunk) != end-start {
				return fmt.Errorf("get accounts [%d:%d]: got %d results", start, end, len(chunk))
			}
			copy(out[start:end], chunk)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pm.logger.Debug("Accounts fetched",
		zap.Int("requested", len(addresses)),
		zap.Int("batches", (len(addresses)+maxAccountsPerRequest-1)/maxAccountsPerRequest))
	return out, nil
}

// MintDecimals возвращает decimals для mint'ов, запрашивая в сети только отсутствующие в кеше.
func (pm *PoolManager) MintDecimals(ctx context.Context, mints []solana.PublicKey) (map[solana.PublicKey]uint8, error) {
	result := make(map[solana.PublicKey]uint8, len(mints))
	var missing []solana.PublicKey

	pm.mu.RLock()
	for _, mint := range mints {
		if d, ok := pm.decimals[mint]; ok {
			result[mint] = d
		} else if _, dup := result[mint]; !dup {
			missing = append(missing, mint)
		}
	}
	pm.mu.RUnlock()

	missing = uniqueKeys(missing)
	if len(missing) == 0 {
		return result, nil
	}

	accounts, err := pm.FetchAccounts(ctx, missing)
	if err != nil {
		return nil, err
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	for i, acc := range accounts {
		if acc == nil {
			return nil, fmt.Errorf("mint %s: account not found", missing[i])
		}
		d, err := ParseMintDecimals(acc.Data)
		if err != nil {
			return nil, fmt.Errorf("mint %s: %w", missing[i], err)
		}
		pm.decimals[missing[i]] = d
		result[missing[i]] = d
	}
	return result, nil
}

func uniqueKeys(keys []solana.PublicKey) []solana.PublicKey {
	seen := make(map[solana.PublicKey]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
