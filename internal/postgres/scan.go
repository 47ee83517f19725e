package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"savings-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func parseDecimal(raw, column string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s %q: %w", column, raw, err)
	}
	return v, nil
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

	var err error
	if b.TotalBalance, err = parseDecimal(total, "total_balance"); err != nil {
		return nil, err
	}
	if b.AvailableBalance, err = parseDecimal(available, "available_balance"); err != nil {
		return nil, err
	}
	if b.LockedBalance, err = parseDecimal(locked, "locked_balance"); err != nil {
		return nil, err
	}
	if b.TotalShares, err = parseDecimal(shares, "total_shares"); err != nil {
		return nil, err
	}
	if b.SharePrice, err = parseDecimal(price, "share_price"); err != nil {
		return nil, err
	}
	if b.TotalYieldEarned, err = parseDecimal(yield, "total_yield_earned"); err != nil {
		return nil, err
	}
	b.UpdatedAt = b.UpdatedAt.UTC()
	return &b, nil
}

func scanEntry(row rowScanner) (*models.LedgerEntry, error) {
	var (
		e                     models.LedgerEntry
		typ, status           string
		amount, shares        string
		reference, errMessage *string
		gasFee                *string
		metadata              []byte
	)
	if err := row.Scan(&e.Id, &e.UserId, &typ, &status, &amount, &shares, &reference,
		&e.BlockHeight, &e.GasUsed, &gasFee, &errMessage, &metadata,
		&e.SubmittedAt, &e.ConfirmedAt, &e.ProcessedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}

	e.Type = models.EntryType(typ)
	e.Status = models.EntryStatus(status)

	var err error
	if e.Amount, err = parseDecimal(amount, "amount"); err != nil {
		return nil, err
	}
	if e.Shares, err = parseDecimal(shares, "shares"); err != nil {
		return nil, err
	}
	if gasFee != nil {
		fee, err := parseDecimal(*gasFee, "gas_fee")
		if err != nil {
			return nil, err
		}
		e.GasFee = &fee
	}
	if reference != nil {
		e.ExternalReference = *reference
	}
	if errMessage != nil {
		e.ErrorMessage = *errMessage
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}

	e.SubmittedAt = e.SubmittedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	e.ConfirmedAt = utcPtr(e.ConfirmedAt)
	e.ProcessedAt = utcPtr(e.ProcessedAt)
	return &e, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func encodeMetadata(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return raw, nil
}

func decimalArg(v *decimal.Decimal) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}
