// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/blockchain"
)

// Client – тонкий адаптер для взаимодействия с блокчейном Solana через solana-go.
type Client struct {
	rpc        rpcAPI
	commitment rpc.CommitmentType
	logger     *zap.Logger

	pollInterval        time.Duration
	confirmationTimeout time.Duration
}

// rpcAPI – подмножество методов *rpc.Client, которые использует адаптер.
type rpcAPI interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, transaction *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
	GetMultipleAccountsWithOpts(ctx context.Context, accounts []solana.PublicKey, opts *rpc.GetMultipleAccountsOpts) (*rpc.GetMultipleAccountsResult, error)
	GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey, conf *rpc.GetTokenAccountsConfig, opts *rpc.GetTokenAccountsOpts) (*rpc.GetTokenAccountsResult, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

// Определение ошибок
var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrConfirmationTimeout  = errors.New("confirmation timeout")
	ErrTransactionFailed    = errors.New("transaction failed on-chain")
	defaultPollInterval     = 500 * time.Millisecond
	defaultConfirmationWait = 30 * time.Second
)

// NewClient создаёт новый клиент, принимая RPC URL и логгер через dependency injection.
func NewClient(rpcURL string, commitment rpc.CommitmentType, logger *zap.Logger) *Client {
	return newClient(rpc.New(rpcURL), commitment, logger)
}

func newClient(api rpcAPI, commitment rpc.CommitmentType, logger *zap.Logger) *Client {
	return &Client{
		rpc:                 api,
		commitment:          commitment,
		logger:              logger.Named("solbc-client"),
		pollInterval:        defaultPollInterval,
		confirmationTimeout: defaultConfirmationWait,
	}
}

// GetRecentBlockhash получает последний blockhash.
func (c *Client) GetRecentBlockhash(ctx context.Context) (solana.Hash, error) {
	result, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		c.logger.Error("GetRecentBlockhash error", zap.Error(err))
		return solana.Hash{}, err
	}
	return result.Value.Blockhash, nil
}

// SendTransaction отправляет транзакцию с preflight-проверкой на том же уровне подтверждения.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		c.logger.Error("SendTransaction error", zap.Error(err))
		return solana.Signature{}, err
	}
	return sig, nil
}

// GetAccountData получает сырые данные аккаунта.
func (c *Client) GetAccountData(ctx context.Context, pubkey solana.PublicKey) ([]byte, error) {
	result, err := c.rpc.GetAccountInfoWithOpts(ctx, pubkey, &rpc.GetAccountInfoOpts{
		Commitment: c.commitment,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, pubkey)
		}
		c.logger.Debug("GetAccountData error",
			zap.String("pubkey", pubkey.String()),
			zap.Error(err))
		return nil, err
	}
	if result == nil || result.Value == nil || result.Value.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, pubkey)
	}
	return result.Value.Data.GetBinary(), nil
}

// GetMultipleAccountsData получает информацию о нескольких аккаунтах за один запрос.
// Порядок результата соответствует порядку pubkeys.
func (c *Client) GetMultipleAccountsData(
	ctx context.Context,
	pubkeys []solana.PublicKey,
) ([]*blockchain.AccountData, error) {
	if len(pubkeys) == 0 {
		return nil, nil
	}

	opts := rpc.GetMultipleAccountsOpts{
		Commitment: c.commitment,
		Encoding:   solana.EncodingBase64,
	}

	res, err := c.rpc.GetMultipleAccountsWithOpts(ctx, pubkeys, &opts)
	if err != nil {
		c.logger.Debug("GetMultipleAccounts error",
			zap.Int("count", len(pubkeys)),
			zap.Error(err))
		return nil, err
	}
	if len(res.Value) != len(pubkeys) {
		return nil, fmt.Errorf("getMultipleAccounts returned %d accounts for %d keys", len(res.Value), len(pubkeys))
	}

	out := make([]*blockchain.AccountData, len(pubkeys))
	for i, acc := range res.Value {
		if acc == nil || acc.Data == nil {
			continue
		}
		out[i] = &blockchain.AccountData{
			Address: pubkeys[i],
			Owner:   acc.Owner,
			Data:    acc.Data.GetBinary(),
		}
	}
	return out, nil
}

// GetTokenAccountsByOwner возвращает все SPL-токен-аккаунты владельца.
func (c *Client) GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey) ([]*blockchain.AccountData, error) {
	programID := solana.TokenProgramID
	res, err := c.rpc.GetTokenAccountsByOwner(ctx, owner,
		&rpc.GetTokenAccountsConfig{ProgramId: &programID},
		&rpc.GetTokenAccountsOpts{
			Commitment: c.commitment,
			Encoding:   solana.EncodingBase64,
		})
	if err != nil {
		c.logger.Debug("GetTokenAccountsByOwner error",
			zap.String("owner", owner.String()),
			zap.Error(err))
		return nil, err
	}

	out := make([]*blockchain.AccountData, 0, len(res.Value))
	for _, ta := range res.Value {
		if ta == nil || ta.Account.Data == nil {
			continue
		}
		out = append(out, &blockchain.AccountData{
			Address: ta.Pubkey,
			Owner:   ta.Account.Owner,
			Data:    ta.Account.Data.GetBinary(),
		})
	}
	return out, nil
}

// WaitForTransactionConfirmation ожидает подтверждения транзакции (простой polling).
// Транзакция, подтверждённая с on-chain ошибкой, считается неуспешной.
func (c *Client) WaitForTransactionConfirmation(ctx context.Context, signature solana.Signature, commitment rpc.CommitmentType) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	timeout := time.After(c.confirmationTimeout)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return fmt.Errorf("%w: %s", ErrConfirmationTimeout, signature)
		case <-ticker.C:
			statuses, err := c.rpc.GetSignatureStatuses(ctx, false, signature)
			if err != nil {
				c.logger.Warn("Error getting signature statuses", zap.Error(err))
				continue
			}
			if statuses == nil || len(statuses.Value) == 0 || statuses.Value[0] == nil {
				continue
			}
			status := statuses.Value[0]
			if status.Err != nil {
				return fmt.Errorf("%w: %v", ErrTransactionFailed, status.Err)
			}
			if reached(status.ConfirmationStatus, commitment) {
				return nil
			}
		}
	}
}

// reached проверяет, достигнут ли требуемый уровень подтверждения.
func reached(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	switch status {
	case rpc.ConfirmationStatusFinalized:
		return true
	case rpc.ConfirmationStatusConfirmed:
		return want != rpc.CommitmentFinalized
	case rpc.ConfirmationStatusProcessed:
		return want == rpc.CommitmentProcessed
	}
	return false
}

// Гарантируем, что Client реализует интерфейс blockchain.Client.
var _ blockchain.Client = (*Client)(nil)
