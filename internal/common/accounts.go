/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// AccountConfig is one account to onboard from the accounts file
type AccountConfig struct {
	Id             string `yaml:"id"`
	Name           string `yaml:"name"`
	Email          string `yaml:"email"`
	OpeningDeposit string `yaml:"opening_deposit"`
}

type AccountsConfig struct {
	Accounts []AccountConfig `yaml:"accounts"`
}

// Opening returns the parsed opening deposit, zero when absent
func (a AccountConfig) Opening() (decimal.Decimal, error) {
	if a.OpeningDeposit == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(a.OpeningDeposit)
}

func LoadAccountsConfig(accountsFile string) ([]AccountConfig, error) {
	var accountsPath string
	if filepath.IsAbs(accountsFile) {
		accountsPath = accountsFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		accountsPath = filepath.Join(wd, accountsFile)
	}

	data, err := os.ReadFile(accountsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", accountsFile, err)
	}

	var config AccountsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", accountsFile, err)
	}

	seen := make(map[string]bool, len(config.Accounts))
	for i, account := range config.Accounts {
		if account.Name == "" {
			return nil, fmt.Errorf("account at index %d missing name", i)
		}
		if !strings.Contains(account.Email, "@") {
			return nil, fmt.Errorf("account at index %d has invalid email %q", i, account.Email)
		}
		if seen[account.Email] {
			return nil, fmt.Errorf("account at index %d duplicates email %s", i, account.Email)
		}
		seen[account.Email] = true

		opening, err := account.Opening()
		if err != nil {
			return nil, fmt.Errorf("account at index %d has invalid opening_deposit: %w", i, err)
		}
		if opening.IsNegative() {
			return nil, fmt.Errorf("account at index %d has negative opening_deposit", i)
		}
	}

	return config.Accounts, nil
}
