// internal/blockchain/types.go
package blockchain

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Client определяет интерфейс для взаимодействия с блокчейном, необходимый боту.
type Client interface {
	// Получить последний blockhash.
	GetRecentBlockhash(ctx context.Context) (solana.Hash, error)
	// Отправить транзакцию.
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	// Получить данные аккаунта. Для несуществующего аккаунта возвращает ErrAccountNotFound.
	GetAccountData(ctx context.Context, pubkey solana.PublicKey) ([]byte, error)
	// Получить данные нескольких аккаунтов за один запрос; nil на месте несуществующих.
	GetMultipleAccountsData(ctx context.Context, pubkeys []solana.PublicKey) ([]*AccountData, error)
	// Получить все токен-аккаунты владельца (SPL Token).
	GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey) ([]*AccountData, error)
	// Ожидание подтверждения транзакции.
	WaitForTransactionConfirmation(ctx context.Context, signature solana.Signature, commitment rpc.CommitmentType) error
}

// AccountData – сырые данные аккаунта вместе с программой-владельцем.
type AccountData struct {
	Address solana.PublicKey
	Owner   solana.PublicKey
	Data    []byte
}

// Signer – кошелёк: подпись транзакций и его associated token accounts.
type Signer interface {
	Address() solana.PublicKey
	SignTransaction(tx *solana.Transaction, extra ...solana.PrivateKey) error
	GetATA(mint solana.PublicKey) (solana.PublicKey, error)
	CreateATAIdempotentInstruction(mint solana.PublicKey) (solana.Instruction, error)
}

// ChainContext явно передаётся во все компоненты, работающие с сетью:
// endpoint, уровень подтверждения и подписант.
type ChainContext struct {
	Endpoint   string
	Commitment rpc.CommitmentType
	Client     Client
	Signer     Signer
}

// NewChainContext создаёт контекст с фиксированным уровнем подтверждения "confirmed".
func NewChainContext(endpoint string, client Client, signer Signer) *ChainContext {
	return &ChainContext{
		Endpoint:   endpoint,
		Commitment: rpc.CommitmentConfirmed,
		Client:     client,
		Signer:     signer,
	}
}

// Owner возвращает адрес кошелька-подписанта.
func (c *ChainContext) Owner() solana.PublicKey {
	return c.Signer.Address()
}
