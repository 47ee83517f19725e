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
	"errors"
	"fmt"

	"savings-ledger-go/internal/ledger"
	"savings-ledger-go/internal/models"
	"savings-ledger-go/internal/store"

	"go.uber.org/zap"
)

// LedgerService exposes the deposit, withdrawal and bonus flows on top of the ledger
type LedgerService struct {
	store  store.LedgerStore
	ledger *ledger.Ledger
}

func NewLedgerService(st store.LedgerStore, l *ledger.Ledger) *LedgerService {
	return &LedgerService{
		store:  st,
		ledger: l,
	}
}

func (s *LedgerService) HealthCheck(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

func success(balance *models.Balance, entry *models.LedgerEntry) *models.OperationResult {
	result := &models.OperationResult{
		Success: true,
		UserId:  entry.UserId,
		EntryId: entry.Id,
		Status:  string(entry.Status),
		Amount:  entry.Amount,
	}
	if balance != nil {
		result.NewBalance = balance.TotalBalance
	}
	return result
}

func failure(err error) *models.OperationResult {
	return &models.OperationResult{
		Success: false,
		Error:   err.Error(),
	}
}

// logFailure logs request problems quietly and system problems loudly
func logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	switch {
	case errors.Is(err, store.ErrDuplicateReference):
		zap.L().Info(msg+": duplicate reference", fields...)
	case ledger.IsClientError(err), errors.Is(err, ledger.ErrInvariantViolation):
		zap.L().Warn(msg, fields...)
	default:
		zap.L().Error(msg, fields...)
	}
}
