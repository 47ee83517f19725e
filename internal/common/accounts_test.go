package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAccounts(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAccountsConfig(t *testing.T) {
	path := writeAccounts(t, `
accounts:
  - id: alice
    name: Alice
    email: alice@example.com
    opening_deposit: "125.50"
  - name: Bob
    email: bob@example.com
`)

	accounts, err := LoadAccountsConfig(path)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "alice", accounts[0].Id)

	opening, err := accounts[0].Opening()
	require.NoError(t, err)
	assert.True(t, opening.Equal(decimal.RequireFromString("125.5")))

	opening, err = accounts[1].Opening()
	require.NoError(t, err)
	assert.True(t, opening.IsZero())
}

func TestLoadAccountsConfigRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing name":     "accounts:\n  - email: a@example.com\n",
		"bad email":        "accounts:\n  - name: A\n    email: nope\n",
		"duplicate email":  "accounts:\n  - name: A\n    email: a@example.com\n  - name: B\n    email: a@example.com\n",
		"negative opening": "accounts:\n  - name: A\n    email: a@example.com\n    opening_deposit: \"-1\"\n",
		"garbage opening":  "accounts:\n  - name: A\n    email: a@example.com\n    opening_deposit: lots\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadAccountsConfig(writeAccounts(t, content))
			assert.Error(t, err)
		})
	}

	_, err := LoadAccountsConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestShortId(t *testing.T) {
	assert.Equal(t, "none", ShortId(""))
	assert.Equal(t, "abc", ShortId("abc"))
	assert.Equal(t, "12345678...", ShortId("1234567890"))
}
