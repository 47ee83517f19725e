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

const withdrawalRequestPrefix = "withdrawal-request:"

// RequestWithdrawal records a pending withdrawal after checking the available
// balance. requestId, when set, makes the request idempotent.
//
// Funds are not reserved: a cancelled or failed withdrawal carries no balance
// effect. Requests that together exceed the balance each pass this check, and
// the confirmation that no longer fits fails with ledger.ErrInsufficientFunds,
// leaving its entry pending for FailWithdrawal.
func (s *LedgerService) RequestWithdrawal(ctx context.Context, userId string, amount decimal.Decimal, requestId string) (*models.OperationResult, error) {
	if userId == "" || !amount.IsPositive() {
		return failure(fmt.Errorf("invalid withdrawal parameters")), nil
	}

	balance, err := s.store.GetBalance(ctx, userId)
	if err != nil {
		logFailure("Withdrawal request failed", err, zap.String("user_id", userId))
		return failure(err), nil
	}
	if balance.AvailableBalance.LessThan(amount) {
		zap.L().Warn("Withdrawal exceeds available balance",
			zap.String("user_id", userId),
			zap.String("amount", amount.String()),
			zap.String("available", balance.AvailableBalance.String()))
		return failure(fmt.Errorf("insufficient available balance: %s < %s", balance.AvailableBalance, amount)), nil
	}

	draft := models.EntryDraft{
		Type:   models.EntryTypeWithdraw,
		Amount: amount,
	}
	if requestId != "" {
		draft.ExternalReference = withdrawalRequestPrefix + requestId
	}

	entry, err := s.ledger.CreateEntry(ctx, userId, draft)
	if err != nil {
		logFailure("Withdrawal request failed", err,
			zap.String("user_id", userId),
			zap.String("request_id", requestId))
		return failure(err), nil
	}

	zap.L().Info("Withdrawal requested",
		zap.String("user_id", userId),
		zap.String("entry_id", entry.Id),
		zap.String("amount", amount.String()))
	return success(balance, entry), nil
}

// ConfirmWithdrawal debits a pending withdrawal once the transfer settled on-chain.
// Shares are burned at the share price current at confirmation.
func (s *LedgerService) ConfirmWithdrawal(ctx context.Context, entryId string, effect models.EffectFields) (*models.OperationResult, error) {
	if entryId == "" {
		return failure(fmt.Errorf("entry_id is required")), nil
	}

	pending, err := s.store.GetEntry(ctx, entryId)
	if err != nil {
		logFailure("Withdrawal lookup failed", err, zap.String("entry_id", entryId))
		return failure(err), nil
	}
	if pending.Type != models.EntryTypeWithdraw {
		return failure(fmt.Errorf("entry %s is a %s, not a withdrawal", entryId, pending.Type)), nil
	}

	balance, entry, err := s.ledger.Debit(ctx, pending.UserId, pending.Amount,
		models.ExistingEntry(entryId).WithEffect(effect))
	if err != nil {
		logFailure("Withdrawal confirmation failed", err,
			zap.String("user_id", pending.UserId),
			zap.String("entry_id", entryId))
		return failure(err), nil
	}

	zap.L().Info("Withdrawal confirmed",
		zap.String("user_id", entry.UserId),
		zap.String("entry_id", entry.Id),
		zap.String("amount", entry.Amount.String()),
		zap.String("new_balance", balance.TotalBalance.String()))
	return success(balance, entry), nil
}

// FailWithdrawal closes a pending withdrawal that did not settle
func (s *LedgerService) FailWithdrawal(ctx context.Context, entryId, reason string) (*models.OperationResult, error) {
	if entryId == "" || reason == "" {
		return failure(fmt.Errorf("entry_id and reason are required")), nil
	}
	return s.closeWithdrawal(ctx, entryId, models.EntryStatusFailed, models.EffectFields{ErrorMessage: reason})
}

// CancelWithdrawal closes a pending withdrawal before it was broadcast
func (s *LedgerService) CancelWithdrawal(ctx context.Context, entryId string) (*models.OperationResult, error) {
	if entryId == "" {
		return failure(fmt.Errorf("entry_id is required")), nil
	}
	return s.closeWithdrawal(ctx, entryId, models.EntryStatusCancelled, models.EffectFields{})
}

func (s *LedgerService) closeWithdrawal(ctx context.Context, entryId string, status models.EntryStatus, effect models.EffectFields) (*models.OperationResult, error) {
	entry, err := s.ledger.TransitionEntry(ctx, entryId, status, effect)
	if err != nil {
		logFailure("Withdrawal transition failed", err,
			zap.String("entry_id", entryId),
			zap.String("status", string(status)))
		return failure(err), nil
	}

	zap.L().Info("Withdrawal closed",
		zap.String("user_id", entry.UserId),
		zap.String("entry_id", entry.Id),
		zap.String("status", string(entry.Status)))
	return success(nil, entry), nil
}

// ProcessWithdrawal debits a withdrawal that already settled
func (s *LedgerService) ProcessWithdrawal(ctx context.Context, userId string, amount decimal.Decimal, txHash string) (*models.OperationResult, error) {
	if userId == "" || !amount.IsPositive() || txHash == "" {
		return failure(fmt.Errorf("invalid withdrawal parameters")), nil
	}

	newBalance, entry, err := s.ledger.Debit(ctx, userId, amount,
		models.NewEntry(models.EntryDraft{
			Type:              models.EntryTypeWithdraw,
			Amount:            amount,
			ExternalReference: txHash,
		}))
	if err != nil {
		logFailure("Withdrawal processing failed", err,
			zap.String("user_id", userId),
			zap.String("amount", amount.String()),
			zap.String("tx_hash", txHash))
		return failure(err), nil
	}

	zap.L().Info("Withdrawal processed successfully",
		zap.String("user_id", userId),
		zap.String("amount", amount.String()),
		zap.String("new_balance", newBalance.TotalBalance.String()))
	return success(newBalance, entry), nil
}
