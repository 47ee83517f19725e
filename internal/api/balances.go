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

	"savings-ledger-go/internal/ledger"
	"savings-ledger-go/internal/models"

	"go.uber.org/zap"
)

// GetUserBalance returns the current balance for a user
func (s *LedgerService) GetUserBalance(ctx context.Context, userId string) (*models.UserBalance, error) {
	if userId == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	b, err := s.ledger.GetBalance(ctx, userId)
	if err != nil {
		zap.L().Error("Failed to get user balance", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve balance: %w", err)
	}

	return &models.UserBalance{
		UserId:           b.UserId,
		Total:            b.TotalBalance,
		Available:        b.AvailableBalance,
		Locked:           b.LockedBalance,
		Shares:           b.TotalShares,
		SharePrice:       b.SharePrice,
		TotalYieldEarned: b.TotalYieldEarned,
		UpdatedAt:        b.UpdatedAt,
	}, nil
}

// GetEntryHistory returns a page of the user's entries, newest first
func (s *LedgerService) GetEntryHistory(ctx context.Context, userId string, filter models.EntryFilter) ([]models.EntryRecord, error) {
	if userId == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	entries, err := s.ledger.ListEntries(ctx, userId, filter)
	if err != nil {
		zap.L().Error("Failed to get entry history", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve entry history: %w", err)
	}

	result := make([]models.EntryRecord, len(entries))
	for i, e := range entries {
		result[i] = models.EntryRecord{
			Id:                e.Id,
			Type:              string(e.Type),
			Status:            string(e.Status),
			Amount:            e.Amount,
			ExternalReference: e.ExternalReference,
			ErrorMessage:      e.ErrorMessage,
			SubmittedAt:       e.SubmittedAt,
			ProcessedAt:       e.ProcessedAt,
		}
	}

	return result, nil
}

// ReconcileUser compares the stored balance against the user's confirmed entries
func (s *LedgerService) ReconcileUser(ctx context.Context, userId string) (*ledger.Reconciliation, error) {
	if userId == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	r, err := s.ledger.Reconcile(ctx, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile: %w", err)
	}
	if !r.Balanced() {
		zap.L().Error("Balance does not match confirmed entries",
			zap.String("user_id", userId),
			zap.String("total_balance", r.TotalBalance.String()),
			zap.String("entries_net", r.EntriesNet.String()),
			zap.String("difference", r.Difference.String()))
	}
	return r, nil
}
