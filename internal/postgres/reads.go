package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"savings-ledger-go/internal/models"
	"savings-ledger-go/internal/store"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

func (s *Store) GetBalance(ctx context.Context, userId string) (*models.Balance, error) {
	b, err := scanBalance(s.pool.QueryRow(ctx, queryGetBalance, userId))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrUserNotFound, userId)
	}
	if err != nil {
		zap.L().Error("Failed to get balance", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to get balance: %w", classify(err))
	}
	return b, nil
}

func (s *Store) ListBalancesWithShares(ctx context.Context, afterUserId string, limit int) ([]models.Balance, error) {
	rows, err := s.pool.Query(ctx, queryListBalancesWithShares, afterUserId, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", classify(err))
	}
	defer rows.Close()

	var balances []models.Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		balances = append(balances, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balance rows: %w", classify(err))
	}
	return balances, nil
}

func (s *Store) GetEntry(ctx context.Context, entryId string) (*models.LedgerEntry, error) {
	e, err := scanEntry(s.pool.QueryRow(ctx, queryGetEntry, entryId))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrEntryNotFound, entryId)
		}
		return nil, fmt.Errorf("failed to get entry: %w", classify(err))
	}
	return e, nil
}

func (s *Store) ListEntries(ctx context.Context, userId string, filter models.EntryFilter) ([]models.LedgerEntry, error) {
	query, args := buildListEntriesQuery(userId, filter)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		zap.L().Error("Failed to list entries", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to list entries: %w", classify(err))
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry rows: %w", classify(err))
	}
	return entries, nil
}

func buildListEntriesQuery(userId string, filter models.EntryFilter) (string, []any) {
	var b strings.Builder
	args := []any{userId}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	b.WriteString("SELECT ")
	b.WriteString(entryColumns)
	b.WriteString(" FROM ledger_entries WHERE user_id = $1")

	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		b.WriteString(" AND type = ANY(" + arg(types) + ")")
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		b.WriteString(" AND status = ANY(" + arg(statuses) + ")")
	}
	if !filter.Since.IsZero() {
		b.WriteString(" AND submitted_at >= " + arg(filter.Since.UTC()))
	}
	if !filter.Until.IsZero() {
		b.WriteString(" AND submitted_at < " + arg(filter.Until.UTC()))
	}

	b.WriteString(" ORDER BY submitted_at DESC, id DESC")
	if filter.Limit > 0 {
		b.WriteString(" LIMIT " + arg(filter.Limit))
	}
	if filter.Offset > 0 {
		b.WriteString(" OFFSET " + arg(filter.Offset))
	}
	return b.String(), args
}

func (s *Store) SumConfirmedEntries(ctx context.Context, userId string) (models.EntryTotals, error) {
	rows, err := s.pool.Query(ctx, querySumConfirmedEntries, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to sum entries: %w", classify(err))
	}
	defer rows.Close()

	totals := models.EntryTotals{}
	for rows.Next() {
		var typ, sum string
		if err := rows.Scan(&typ, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan entry sum: %w", err)
		}
		amount, err := parseDecimal(sum, "amount")
		if err != nil {
			return nil, err
		}
		totals[models.EntryType(typ)] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry sums: %w", classify(err))
	}
	return totals, nil
}
