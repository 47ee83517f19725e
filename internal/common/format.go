package common

import (
	"fmt"
	"strings"
	"time"

	"savings-ledger-go/internal/ledger"
	"savings-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

const (
	DefaultWidth = 80
	WideWidth    = 100

	timestampLayout = "2006-01-02 15:04:05"
)

func PrintSeparator(char string, width int) {
	fmt.Println(strings.Repeat(char, width))
}

// PrintHeader prints a title framed by '=' rules, preceded by a blank line
func PrintHeader(title string, width int) {
	fmt.Println("\n" + strings.Repeat("=", width))
	fmt.Println(title)
	PrintSeparator("=", width)
}

func PrintFooter(message string, width int) {
	fmt.Println("\n" + strings.Repeat("=", width))
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", width) + "\n")
}

// PrintBoxSeparator prints the rule under a box title
func PrintBoxSeparator(width int) {
	fmt.Println("├" + strings.Repeat("─", width))
}

func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// BoxDetailPrefix indents continuation lines under a box item
func BoxDetailPrefix(isLast bool) string {
	if isLast {
		return "   "
	}
	return "│  "
}

// PrintBoxField prints one labelled line of a box
func PrintBoxField(isLast bool, label, value string) {
	fmt.Printf("%s %-14s: %s\n", BoxPrefix(isLast), label, value)
}

// FormatAmount renders a ledger amount right-aligned at the asset scale
func FormatAmount(amount decimal.Decimal) string {
	return fmt.Sprintf("%20s", amount.StringFixed(ledger.AssetScale))
}

func FormatTime(t time.Time) string {
	return t.Format(timestampLayout)
}

// ShortId abbreviates long identifiers such as UUIDs and transaction hashes
func ShortId(id string) string {
	if id == "" {
		return "none"
	}
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}

// PrintResult prints the outcome of a ledger operation
func PrintResult(result *models.OperationResult) {
	if !result.Success {
		fmt.Printf("✗ %s\n", result.Error)
		return
	}
	fmt.Printf("✓ Entry:   %s\n", result.EntryId)
	fmt.Printf("  Status:  %s\n", result.Status)
	fmt.Printf("  Amount:  %s\n", result.Amount.StringFixed(ledger.AssetScale))
	if !result.NewBalance.IsZero() {
		fmt.Printf("  Balance: %s\n", result.NewBalance.StringFixed(ledger.AssetScale))
	}
}
