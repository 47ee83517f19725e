package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"savings-ledger-go/internal/models"
	"savings-ledger-go/internal/store"

	"go.uber.org/zap"
)

func (s *Service) GetEntry(ctx context.Context, entryId string) (*models.LedgerEntry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, queryGetEntry, entryId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrEntryNotFound, entryId)
		}
		return nil, fmt.Errorf("failed to get entry: %w", classify(err))
	}
	return e, nil
}

// ListEntries returns a user's entries newest first
func (s *Service) ListEntries(ctx context.Context, userId string, filter models.EntryFilter) ([]models.LedgerEntry, error) {
	query, args := buildListEntriesQuery(userId, filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		zap.L().Error("Failed to list entries", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to list entries: %w", classify(err))
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var entries []models.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, *e)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during entry row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating entry rows: %w", err)
	}

	zap.L().Debug("Retrieved entries", zap.String("user_id", userId), zap.Int("count", len(entries)))
	return entries, nil
}

func buildListEntriesQuery(userId string, filter models.EntryFilter) (string, []any) {
	var b strings.Builder
	args := []any{userId}

	b.WriteString("SELECT ")
	b.WriteString(entryColumns)
	b.WriteString(" FROM ledger_entries WHERE user_id = ?")

	if len(filter.Types) > 0 {
		b.WriteString(" AND type IN (")
		for i, t := range filter.Types {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("?")
			args = append(args, string(t))
		}
		b.WriteString(")")
	}
	if len(filter.Statuses) > 0 {
		b.WriteString(" AND status IN (")
		for i, st := range filter.Statuses {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("?")
			args = append(args, string(st))
		}
		b.WriteString(")")
	}
	if !filter.Since.IsZero() {
		b.WriteString(" AND submitted_at >= ?")
		args = append(args, filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		b.WriteString(" AND submitted_at < ?")
		args = append(args, filter.Until.UTC())
	}

	b.WriteString(" ORDER BY submitted_at DESC, id DESC")

	// SQLite requires LIMIT before OFFSET; -1 means unbounded
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	b.WriteString(" LIMIT ? OFFSET ?")
	args = append(args, limit, max(filter.Offset, 0))

	return b.String(), args
}
