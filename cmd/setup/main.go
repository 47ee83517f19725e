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

package main

import (
	"context"
	"errors"
	"flag"

	"savings-ledger-go/internal/common"
	"savings-ledger-go/internal/config"
	"savings-ledger-go/internal/store"

	"go.uber.org/zap"
)

type setupStats struct {
	created  int
	existing int
	funded   int
	failed   []string
}

// onboardAccount creates the account if needed and books its opening deposit.
// Both steps are idempotent, so setup can be re-run after a partial failure.
func onboardAccount(ctx context.Context, services *common.Services, account common.AccountConfig, stats *setupStats) error {
	userId := account.Id
	user, err := services.ApiService.OnboardUser(ctx, userId, account.Name, account.Email)
	switch {
	case err == nil:
		stats.created++
		userId = user.Id
	case errors.Is(err, store.ErrUserExists):
		existing, lookupErr := services.Store.GetUserByEmail(ctx, account.Email)
		if lookupErr != nil {
			return lookupErr
		}
		stats.existing++
		userId = existing.Id
	default:
		return err
	}

	opening, err := account.Opening()
	if err != nil || !opening.IsPositive() {
		return err
	}

	result, err := services.ApiService.ProcessDeposit(ctx, userId, opening, "opening:"+userId)
	if err != nil {
		return err
	}
	if !result.Success {
		return errors.New(result.Error)
	}
	stats.funded++
	return nil
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	accountsFlag := flag.String("accounts", "accounts.yaml", "YAML file with accounts to onboard")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	// opening the store applies the schema
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	accounts, err := common.LoadAccountsConfig(*accountsFlag)
	if err != nil {
		zap.L().Fatal("Failed to load accounts", zap.Error(err))
	}
	zap.L().Info("Accounts configuration loaded", zap.Int("count", len(accounts)))

	stats := &setupStats{}
	for _, account := range accounts {
		if err := onboardAccount(ctx, services, account, stats); err != nil {
			zap.L().Error("Failed to onboard account", zap.String("email", account.Email), zap.Error(err))
			stats.failed = append(stats.failed, account.Email)
		}
	}

	if len(stats.failed) > 0 {
		zap.L().Warn("Setup completed with some failures",
			zap.Int("created", stats.created),
			zap.Int("existing", stats.existing),
			zap.Int("funded", stats.funded),
			zap.Strings("failed", stats.failed))
		return
	}
	zap.L().Info("Setup completed successfully",
		zap.Int("created", stats.created),
		zap.Int("existing", stats.existing),
		zap.Int("funded", stats.funded))
}
