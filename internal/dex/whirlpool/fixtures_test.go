package whirlpool

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/blockchain"
	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/types"
	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/utils/binary"
	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/wallet"
)

var errNotFound = errors.New("account not found")

// fakeClient – in-memory реализация blockchain.Client.
type fakeClient struct {
	mu            sync.Mutex
	accounts      map[solana.PublicKey]*blockchain.AccountData
	tokenAccounts []*blockchain.AccountData
	readErr       error
	sendErr       error
	confirmErr    error
	sent          []*solana.Transaction
}

func newFakeClient() *fakeClient {
	return &fakeClient{accounts: make(map[solana.PublicKey]*blockchain.AccountData)}
}

func (f *fakeClient) put(address, owner solana.PublicKey, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[address] = &blockchain.AccountData{Address: address, Owner: owner, Data: data}
}

func (f *fakeClient) GetRecentBlockhash(context.Context) (solana.Hash, error) {
	return solana.Hash{9}, nil
}

func (f *fakeClient) SendTransaction(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return solana.Signature{}, f.sendErr
	}
	f.sent = append(f.sent, tx)
	return tx.Signatures[0], nil
}

func (f *fakeClient) GetAccountData(_ context.Context, pubkey solana.PublicKey) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	acc, ok := f.accounts[pubkey]
	if !ok {
		return nil, errNotFound
	}
	return acc.Data, nil
}

func (f *fakeClient) GetMultipleAccountsData(_ context.Context, pubkeys []solana.PublicKey) ([]*blockchain.AccountData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	out := make([]*blockchain.AccountData, len(pubkeys))
	for i, k := range pubkeys {
		out[i] = f.accounts[k]
	}
	return out, nil
}

func (f *fakeClient) GetTokenAccountsByOwner(context.Context, solana.PublicKey) ([]*blockchain.AccountData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.tokenAccounts, nil
}

func (f *fakeClient) WaitForTransactionConfirmation(context.Context, solana.Signature, rpc.CommitmentType) error {
	return f.confirmErr
}

func (f *fakeClient) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func u128(v *big.Int) bin.Uint128 {
	lo, hi := u128Halves(v)
	return bin.Uint128{Lo: lo, Hi: hi}
}

func encodeAccount(t *testing.T, discriminator []byte, size int, v interface{}) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	buf.Write(discriminator)
	require.NoError(t, bin.NewBorshEncoder(buf).Encode(v))
	data := buf.Bytes()
	if len(data) < size {
		data = append(data, make([]byte, size-len(data))...)
	}
	return data
}

func tokenAccountData(mint, owner solana.PublicKey, amount uint64) []byte {
	data := make([]byte, tokenAccountSize)
	copy(data[tokenAccountMintOffset:], mint[:])
	copy(data[32:], owner[:])
	binary.WriteUint64LittleEndian(amount, data, tokenAccountAmountOffset)
	return data
}

func mintData(decimals uint8) []byte {
	data := make([]byte, mintAccountSize)
	data[mintDecimalsOffset] = decimals
	return data
}

// testEnv – DEX поверх fakeClient с реальным кошельком.
type testEnv struct {
	dex    *DEX
	client *fakeClient
	wallet *wallet.Wallet
	config *Config
	pool   *Whirlpool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	w, err := wallet.NewWallet(solana.NewWallet().PrivateKey.String())
	require.NoError(t, err)

	cfg := &Config{
		Target:      types.TokenSpec{Mint: solana.NewWallet().PublicKey(), Decimals: 6},
		Stable:      types.TokenSpec{Mint: solana.NewWallet().PublicKey(), Decimals: 6},
		TickSpacing: 64,
	}
	require.NoError(t, cfg.Setup(logger))

	client := newFakeClient()
	chain := blockchain.NewChainContext("http://localhost:8899", client, w)
	priority := types.NewPriorityManager(types.PriorityConfig{ComputeUnits: 400_000, PriorityFee: 5_000}, logger)

	dex, err := NewDEX(chain, cfg, priority, logger)
	require.NoError(t, err)

	pool := &Whirlpool{
		WhirlpoolsConfig: cfg.WhirlpoolsConfig,
		TickSpacing:      64,
		FeeRate:          3000,
		Liquidity:        u128(new(big.Int).Mul(big.NewInt(1_000_000_000), big.NewInt(1_000_000_000))),
		SqrtPrice:        u128(new(big.Int).Set(q64)), // цена 1.0
		TickCurrentIndex: 0,
		TokenMintA:       cfg.Target.Mint,
		TokenVaultA:      solana.NewWallet().PublicKey(),
		TokenMintB:       cfg.Stable.Mint,
		TokenVaultB:      solana.NewWallet().PublicKey(),
	}

	env := &testEnv{dex: dex, client: client, wallet: w, config: cfg, pool: pool}
	env.storePool()
	return env
}

func (e *testEnv) storePool() {
	e.client.put(e.config.PoolAddress, e.config.ProgramID, e.encodePool())
}

func (e *testEnv) encodePool() []byte {
	buf := new(bytes.Buffer)
	buf.Write(WhirlpoolDiscriminator)
	if err := bin.NewBorshEncoder(buf).Encode(*e.pool); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// instructionsOf возвращает данные инструкций транзакции, адресованных программе programID.
func instructionsOf(t *testing.T, tx *solana.Transaction, programID solana.PublicKey) [][]byte {
	t.Helper()
	var out [][]byte
	for _, ix := range tx.Message.Instructions {
		pid, err := tx.ResolveProgramIDIndex(ix.ProgramIDIndex)
		require.NoError(t, err)
		if pid.Equals(programID) {
			out = append(out, ix.Data)
		}
	}
	return out
}

func hasPrefix(data, discriminator []byte) bool {
	return bytes.HasPrefix(data, discriminator)
}
