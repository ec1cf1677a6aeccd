// =============================
// File: internal/dex/whirlpool/transaction.go
// =============================
package whirlpool

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/types"
)

// buildAndSubmitTransaction строит, подписывает, отправляет транзакцию и ждёт подтверждения.
// Повторов нет: любая ошибка возвращается как *types.SubmissionError.
func (d *DEX) buildAndSubmitTransaction(
	ctx context.Context,
	op string,
	instructions []solana.Instruction,
	extraSigners ...solana.PrivateKey,
) (solana.Signature, error) {
	tx, err := d.createSignedTransaction(ctx, instructions, extraSigners...)
	if err != nil {
		return solana.Signature{}, &types.SubmissionError{Op: op, Err: err}
	}

	sig, err := d.submitAndConfirmTransaction(ctx, tx)
	if err != nil {
		if IsSlippageExceededError(err) {
			err = &SlippageExceededError{Op: op, Slippage: d.config.Slippage.String(), OriginalError: err}
		}
		d.logger.Warn("Transaction failed",
			zap.String("op", op),
			zap.String("signature", sig.String()),
			zap.Error(err))
		return sig, &types.SubmissionError{Op: op, Signature: sig, Err: err}
	}

	d.logger.Info("Transaction confirmed",
		zap.String("op", op),
		zap.String("signature", sig.String()))
	return sig, nil
}

func (d *DEX) createSignedTransaction(
	ctx context.Context,
	instructions []solana.Instruction,
	extraSigners ...solana.PrivateKey,
) (*solana.Transaction, error) {
	priorityInstructions, err := d.priority.CreatePriorityInstructions(d.config.Priority)
	if err != nil {
		return nil, err
	}

	blockhash, err := d.chain.Client.GetRecentBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent blockhash: %w", err)
	}

	all := make([]solana.Instruction, 0, len(priorityInstructions)+len(instructions))
	all = append(all, priorityInstructions...)
	all = append(all, instructions...)

	tx, err := solana.NewTransaction(all, blockhash, solana.TransactionPayer(d.chain.Owner()))
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	if err := d.chain.Signer.SignTransaction(tx, extraSigners...); err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return tx, nil
}

func (d *DEX) submitAndConfirmTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := d.chain.Client.SendTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}

	if err := d.chain.Client.WaitForTransactionConfirmation(ctx, sig, d.chain.Commitment); err != nil {
		return sig, fmt.Errorf("confirm transaction: %w", err)
	}
	return sig, nil
}

// ensureTokenAccounts возвращает ATA владельца для mint'ов и инструкции создания
// только для тех, которых ещё нет в сети.
func (d *DEX) ensureTokenAccounts(ctx context.Context, mints ...solana.PublicKey) (map[solana.PublicKey]solana.PublicKey, []solana.Instruction, error) {
	mints = uniqueKeys(append([]solana.PublicKey(nil), mints...))

	atas := make(map[solana.PublicKey]solana.PublicKey, len(mints))
	addresses := make([]solana.PublicKey, len(mints))
	for i, mint := range mints {
		ata, err := d.chain.Signer.GetATA(mint)
		if err != nil {
			return nil, nil, fmt.Errorf("derive ATA for %s: %w", mint, err)
		}
		atas[mint] = ata
		addresses[i] = ata
	}

	accounts, err := d.pools.FetchAccounts(ctx, addresses)
	if err != nil {
		return nil, nil, err
	}

	var instructions []solana.Instruction
	for i, acc := range accounts {
		if acc != nil {
			continue
		}
		ix, err := d.chain.Signer.CreateATAIdempotentInstruction(mints[i])
		if err != nil {
			return nil, nil, fmt.Errorf("create ATA instruction for %s: %w", mints[i], err)
		}
		d.logger.Debug("Token account missing, will be created",
			zap.String("mint", mints[i].String()),
			zap.String("ata", addresses[i].String()))
		instructions = append(instructions, ix)
	}
	return atas, instructions, nil
}
