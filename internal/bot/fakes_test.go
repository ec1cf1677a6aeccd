package bot

import (
	"context"
	"errors"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/events"
	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/types"
)

var errRPC = errors.New("rpc down")

// fakeExchange записывает вызовы в порядке их выполнения.
type fakeExchange struct {
	calls []string

	positions []types.Position
	listErr   error
	closeErrs map[solana.PublicKey]error

	prices   []decimal.Decimal
	balances []types.Balance
	priceErr error
	reads    int

	swapErr   error
	swapInput types.TokenSpec
	swapAmt   decimal.Decimal

	openErr              error
	openLower, openUpper decimal.Decimal
	openDeposit          decimal.Decimal
}

func (f *fakeExchange) GetPrice(context.Context) (decimal.Decimal, error) {
	f.calls = append(f.calls, "price")
	if f.priceErr != nil {
		return decimal.Zero, f.priceErr
	}
	return f.prices[min(f.reads, len(f.prices)-1)], nil
}

func (f *fakeExchange) GetBalance(context.Context) (types.Balance, error) {
	f.calls = append(f.calls, "balance")
	b := f.balances[min(f.reads, len(f.balances)-1)]
	f.reads++
	return b, nil
}

func (f *fakeExchange) Swap(_ context.Context, input types.TokenSpec, amount decimal.Decimal) (types.SwapResult, error) {
	f.calls = append(f.calls, "swap")
	f.swapInput = input
	f.swapAmt = amount
	if f.swapErr != nil {
		return types.SwapResult{}, f.swapErr
	}
	return types.SwapResult{Signature: solana.Signature{1}, InputMint: input.Mint, AmountIn: amount}, nil
}

func (f *fakeExchange) ListPositions(context.Context) ([]types.Position, error) {
	f.calls = append(f.calls, "list")
	return f.positions, f.listErr
}

func (f *fakeExchange) OpenPosition(_ context.Context, lower, upper, deposit decimal.Decimal) (types.PositionHandle, error) {
	f.calls = append(f.calls, "open")
	f.openLower, f.openUpper, f.openDeposit = lower, upper, deposit
	if f.openErr != nil {
		return types.PositionHandle{}, f.openErr
	}
	return types.PositionHandle{
		Address:   solana.NewWallet().PublicKey(),
		Lower:     lower,
		Upper:     upper,
		Signature: solana.Signature{2},
	}, nil
}

func (f *fakeExchange) ClosePosition(_ context.Context, address solana.PublicKey) (solana.Signature, error) {
	f.calls = append(f.calls, "close:"+address.String())
	if err := f.closeErrs[address]; err != nil {
		return solana.Signature{}, err
	}
	return solana.Signature{3}, nil
}

type fakeForecaster struct {
	width decimal.Decimal
	err   error
}

func (f *fakeForecaster) ForecastRange(context.Context) (decimal.Decimal, error) {
	return f.width, f.err
}

type countingPauser struct {
	n int
}

func (p *countingPauser) Pause(ctx context.Context) error {
	p.n++
	return ctx.Err()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) eventTypes() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type()
	}
	return out
}

func matchingPosition() types.Position {
	return types.Position{
		Address: solana.NewWallet().PublicKey(),
		TokenA:  testTarget.Mint,
		TokenB:  testStable.Mint,
	}
}

func submissionErr(op string) error {
	return &types.SubmissionError{Op: op, Err: errors.New("blockhash not found")}
}
