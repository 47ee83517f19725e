package cache

import (
	"strings"
	"testing"
	"time"

	"savings-ledger-go/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestEntriesKeyIsDeterministic(t *testing.T) {
	since := time.Date(2025, 2, 1, 0, 0, 0, 0, time.FixedZone("CET", 3600))

	a := EntriesKey("u1", models.EntryFilter{
		Types:    []models.EntryType{models.EntryTypeWithdraw, models.EntryTypeDeposit},
		Statuses: []models.EntryStatus{models.EntryStatusConfirmed},
		Since:    since,
		Limit:    20,
	})
	b := EntriesKey("u1", models.EntryFilter{
		Types:    []models.EntryType{models.EntryTypeDeposit, models.EntryTypeWithdraw},
		Statuses: []models.EntryStatus{models.EntryStatusConfirmed},
		Since:    since.UTC(),
		Limit:    20,
	})
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, EntriesPrefix("u1")))

	c := EntriesKey("u1", models.EntryFilter{Limit: 20, Offset: 20})
	d := EntriesKey("u1", models.EntryFilter{Limit: 20})
	assert.NotEqual(t, c, d)
}

func TestKeysShareUserHashTag(t *testing.T) {
	assert.Equal(t, "ledger:{u1}:balance", BalanceKey("u1"))
	assert.Equal(t, "ledger:{u1}:entries:", EntriesPrefix("u1"))
	assert.Equal(t, "ledger:{u1}:balance:v", versionKey(BalanceKey("u1")))
}
