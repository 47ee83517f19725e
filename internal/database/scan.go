package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"savings-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBalance(row rowScanner) (*models.Balance, error) {
	var (
		b                                              models.Balance
		total, available, locked, shares, price, yield string
	)
	if err := row.Scan(&b.Id, &b.UserId, &total, &available, &locked,
		&shares, &price, &yield, &b.Version, &b.UpdatedAt); err != nil {
		return nil, err
	}

	fields := []struct {
		raw string
		dst *decimal.Decimal
	}{
		{total, &b.TotalBalance},
		{available, &b.AvailableBalance},
		{locked, &b.LockedBalance},
		{shares, &b.TotalShares},
		{price, &b.SharePrice},
		{yield, &b.TotalYieldEarned},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse balance column '%s': %w", f.raw, err)
		}
		*f.dst = v
	}
	b.UpdatedAt = b.UpdatedAt.UTC()
	return &b, nil
}

func scanEntry(row rowScanner) (*models.LedgerEntry, error) {
	var (
		e                     models.LedgerEntry
		typ, status           string
		amount, shares        string
		reference, errMessage sql.NullString
		gasFee, metadata      sql.NullString
		blockHeight, gasUsed  sql.NullInt64
		confirmedAt           sql.NullTime
		processedAt           sql.NullTime
	)
	if err := row.Scan(&e.Id, &e.UserId, &typ, &status, &amount, &shares, &reference,
		&blockHeight, &gasUsed, &gasFee, &errMessage, &metadata,
		&e.SubmittedAt, &confirmedAt, &processedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}

	e.Type = models.EntryType(typ)
	e.Status = models.EntryStatus(status)

	var err error
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("failed to parse amount '%s': %w", amount, err)
	}
	if e.Shares, err = decimal.NewFromString(shares); err != nil {
		return nil, fmt.Errorf("failed to parse shares '%s': %w", shares, err)
	}
	if gasFee.Valid {
		fee, err := decimal.NewFromString(gasFee.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse gas fee '%s': %w", gasFee.String, err)
		}
		e.GasFee = &fee
	}
	if blockHeight.Valid {
		e.BlockHeight = &blockHeight.Int64
	}
	if gasUsed.Valid {
		e.GasUsed = &gasUsed.Int64
	}
	e.ExternalReference = reference.String
	e.ErrorMessage = errMessage.String
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}

	e.SubmittedAt = e.SubmittedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	if confirmedAt.Valid {
		t := confirmedAt.Time.UTC()
		e.ConfirmedAt = &t
	}
	if processedAt.Valid {
		t := processedAt.Time.UTC()
		e.ProcessedAt = &t
	}
	return &e, nil
}

// entryArgs flattens e into the column order of entryColumns
func entryArgs(e *models.LedgerEntry) ([]any, error) {
	metadata, err := encodeMetadata(e.Metadata)
	if err != nil {
		return nil, err
	}
	return []any{
		e.Id, e.UserId, string(e.Type), string(e.Status), e.Amount.String(), e.Shares.String(),
		nullString(e.ExternalReference), nullInt(e.BlockHeight), nullInt(e.GasUsed), nullDecimal(e.GasFee),
		nullString(e.ErrorMessage), metadata,
		e.SubmittedAt, nullTime(e.ConfirmedAt), nullTime(e.ProcessedAt), e.UpdatedAt,
	}, nil
}

func encodeMetadata(m map[string]string) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullDecimal(v *decimal.Decimal) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: v.String(), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
