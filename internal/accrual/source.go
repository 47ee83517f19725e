package accrual

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// SharePriceSource reports the vault's current share price
type SharePriceSource interface {
	SharePrice(ctx context.Context) (decimal.Decimal, error)
}

// SourceFunc adapts a function to SharePriceSource
type SourceFunc func(ctx context.Context) (decimal.Decimal, error)

func (f SourceFunc) SharePrice(ctx context.Context) (decimal.Decimal, error) {
	return f(ctx)
}

type sharePriceFile struct {
	SharePrice string `yaml:"share_price"`
	AsOf       string `yaml:"as_of"`
}

// FileSource reads the share price from a YAML file on every call, so an
// operator or an oracle sidecar can update it in place.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) SharePrice(_ context.Context) (decimal.Decimal, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unable to read %s: %w", s.Path, err)
	}

	var file sharePriceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return decimal.Zero, fmt.Errorf("unable to parse %s: %w", s.Path, err)
	}
	if file.SharePrice == "" {
		return decimal.Zero, fmt.Errorf("%s is missing share_price", s.Path)
	}

	price, err := decimal.NewFromString(file.SharePrice)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid share_price %q: %w", file.SharePrice, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("share_price must be positive, got %s", price)
	}
	return price, nil
}
