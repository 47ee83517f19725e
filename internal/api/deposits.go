/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"context"
	"fmt"

	"savings-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ObserveDeposit records an inbound transfer seen on-chain but not yet final.
// The balance is untouched until ConfirmDeposit.
func (s *LedgerService) ObserveDeposit(ctx context.Context, userId string, amount decimal.Decimal, txHash string) (*models.OperationResult, error) {
	if userId == "" || !amount.IsPositive() || txHash == "" {
		return failure(fmt.Errorf("invalid deposit parameters")), nil
	}

	zap.L().Info("Observed deposit",
		zap.String("user_id", userId),
		zap.String("amount", amount.String()),
		zap.String("tx_hash", txHash))

	// shares are issued at confirmation, at the price current then
	entry, err := s.ledger.CreateEntry(ctx, userId, models.EntryDraft{
		Type:              models.EntryTypeDeposit,
		Amount:            amount,
		ExternalReference: txHash,
		Metadata:          map[string]string{"source": "observed"},
	})
	if err != nil {
		logFailure("Deposit observation failed", err,
			zap.String("user_id", userId),
			zap.String("tx_hash", txHash))
		return failure(err), nil
	}

	return success(nil, entry), nil
}

// ConfirmDeposit credits a previously observed deposit
func (s *LedgerService) ConfirmDeposit(ctx context.Context, entryId string, effect models.EffectFields) (*models.OperationResult, error) {
	if entryId == "" {
		return failure(fmt.Errorf("entry_id is required")), nil
	}

	pending, err := s.store.GetEntry(ctx, entryId)
	if err != nil {
		logFailure("Deposit lookup failed", err, zap.String("entry_id", entryId))
		return failure(err), nil
	}
	if pending.Type != models.EntryTypeDeposit {
		return failure(fmt.Errorf("entry %s is a %s, not a deposit", entryId, pending.Type)), nil
	}

	balance, entry, err := s.ledger.Credit(ctx, pending.UserId, pending.Amount,
		models.ExistingEntry(entryId).WithEffect(effect))
	if err != nil {
		logFailure("Deposit confirmation failed", err,
			zap.String("user_id", pending.UserId),
			zap.String("entry_id", entryId))
		return failure(err), nil
	}

	zap.L().Info("Deposit confirmed",
		zap.String("user_id", entry.UserId),
		zap.String("entry_id", entry.Id),
		zap.String("amount", entry.Amount.String()),
		zap.String("new_balance", balance.TotalBalance.String()))
	return success(balance, entry), nil
}

// ProcessDeposit credits a deposit that is already final in one step
func (s *LedgerService) ProcessDeposit(ctx context.Context, userId string, amount decimal.Decimal, txHash string) (*models.OperationResult, error) {
	if userId == "" || !amount.IsPositive() || txHash == "" {
		zap.L().Error("Invalid deposit parameters",
			zap.String("user_id", userId),
			zap.String("amount", amount.String()),
			zap.String("tx_hash", txHash))
		return failure(fmt.Errorf("invalid deposit parameters")), nil
	}

	balance, entry, err := s.ledger.Credit(ctx, userId, amount,
		models.NewEntry(models.EntryDraft{
			Type:              models.EntryTypeDeposit,
			Amount:            amount,
			ExternalReference: txHash,
		}))
	if err != nil {
		logFailure("Deposit processing failed", err,
			zap.String("user_id", userId),
			zap.String("amount", amount.String()),
			zap.String("tx_hash", txHash))
		return failure(err), nil
	}

	zap.L().Info("Deposit processed successfully",
		zap.String("user_id", userId),
		zap.String("amount", amount.String()),
		zap.String("new_balance", balance.TotalBalance.String()))
	return success(balance, entry), nil
}
