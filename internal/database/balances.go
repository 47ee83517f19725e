package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"savings-ledger-go/internal/models"
	"savings-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetBalance returns the committed balance row for a user
func (s *Service) GetBalance(ctx context.Context, userId string) (*models.Balance, error) {
	zap.L().Debug("Getting balance", zap.String("user_id", userId))

	b, err := scanBalance(s.db.QueryRowContext(ctx, queryGetBalance, userId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrUserNotFound, userId)
	}
	if err != nil {
		zap.L().Error("Failed to get balance", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to get balance: %w", classify(err))
	}
	return b, nil
}

func (s *Service) ListBalancesWithShares(ctx context.Context, afterUserId string, limit int) ([]models.Balance, error) {
	rows, err := s.db.QueryContext(ctx, queryListBalancesWithShares, afterUserId, limit)
	if err != nil {
		zap.L().Error("Failed to list balances", zap.Error(err))
		return nil, fmt.Errorf("failed to list balances: %w", classify(err))
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var balances []models.Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		balances = append(balances, *b)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during balance row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating balance rows: %w", err)
	}
	return balances, nil
}

// SumConfirmedEntries totals confirmed entry amounts per type. Amounts are
// decimal strings, so the sum happens here rather than in SQL.
func (s *Service) SumConfirmedEntries(ctx context.Context, userId string) (models.EntryTotals, error) {
	rows, err := s.db.QueryContext(ctx, queryListConfirmedAmounts, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to sum entries: %w", classify(err))
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	totals := models.EntryTotals{}
	for rows.Next() {
		var typ, amountStr string
		if err := rows.Scan(&typ, &amountStr); err != nil {
			return nil, fmt.Errorf("failed to scan entry amount: %w", err)
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
		}
		t := models.EntryType(typ)
		totals[t] = totals[t].Add(amount)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry rows: %w", err)
	}
	return totals, nil
}
