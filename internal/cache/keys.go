package cache

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"savings-ledger-go/internal/models"
)

// Keys for one user share a hash tag so they land in the same cluster slot.
const namespace = "ledger:"

func userTag(userId string) string {
	return namespace + "{" + userId + "}:"
}

func BalanceKey(userId string) string {
	return userTag(userId) + "balance"
}

// EntriesPrefix covers every listing key of a user.
func EntriesPrefix(userId string) string {
	return userTag(userId) + "entries:"
}

// EntriesKey derives a deterministic listing key from the filter.
func EntriesKey(userId string, filter models.EntryFilter) string {
	var b strings.Builder
	b.WriteString(EntriesPrefix(userId))

	types := make([]string, 0, len(filter.Types))
	for _, t := range filter.Types {
		types = append(types, string(t))
	}
	statuses := make([]string, 0, len(filter.Statuses))
	for _, s := range filter.Statuses {
		statuses = append(statuses, string(s))
	}
	slices.Sort(types)
	slices.Sort(statuses)

	b.WriteString("t=")
	b.WriteString(strings.Join(types, ","))
	b.WriteString("|s=")
	b.WriteString(strings.Join(statuses, ","))
	fmt.Fprintf(&b, "|from=%s|to=%s|l=%d|o=%d",
		timeParam(filter.Since), timeParam(filter.Until), filter.Limit, filter.Offset)
	return b.String()
}

func timeParam(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func versionKey(key string) string {
	return key + ":v"
}
