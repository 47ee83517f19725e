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
	"flag"
	"fmt"

	"savings-ledger-go/internal/common"
	"savings-ledger-go/internal/config"
	"savings-ledger-go/internal/models"

	"go.uber.org/zap"
)

type balanceStats struct {
	totalUsers        int
	usersWithBalances int
	unreconciled      int
}

func printUserBalance(user models.User, b *models.UserBalance) {
	fmt.Printf("\n┌─ User: %s (%s)\n", user.Name, user.Email)
	fmt.Printf("│  ID: %s\n", user.Id)
	common.PrintBoxSeparator(78)
	common.PrintBoxField(false, "total", common.FormatAmount(b.Total))
	common.PrintBoxField(false, "available", common.FormatAmount(b.Available))
	common.PrintBoxField(false, "locked", common.FormatAmount(b.Locked))
	common.PrintBoxField(false, "shares", common.FormatAmount(b.Shares)+" @ "+b.SharePrice.String())
	common.PrintBoxField(true, "yield earned",
		common.FormatAmount(b.TotalYieldEarned)+" (updated: "+common.FormatTime(b.UpdatedAt)+")")
}

func processUser(ctx context.Context, services *common.Services, user models.User, reconcile bool, stats *balanceStats) error {
	balance, err := services.ApiService.GetUserBalance(ctx, user.Id)
	if err != nil {
		return err
	}
	if !balance.Total.IsZero() {
		stats.usersWithBalances++
	}
	printUserBalance(user, balance)

	if !reconcile {
		return nil
	}
	r, err := services.ApiService.ReconcileUser(ctx, user.Id)
	if err != nil {
		return err
	}
	if r.Balanced() {
		fmt.Printf("   reconciled: entries net %s\n", r.EntriesNet)
	} else {
		stats.unreconciled++
		fmt.Printf("   MISMATCH: entries net %s, difference %s\n", r.EntriesNet, r.Difference)
	}
	return nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "Filter by specific user email (optional)")
	reconcileFlag := flag.Bool("reconcile", false, "Compare each balance against its confirmed entries")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	users, err := common.LookupUsers(ctx, services.Store, *emailFlag)
	if err != nil {
		logger.Fatal("Failed to look up users", zap.Error(err))
	}

	common.PrintHeader("USER BALANCE REPORT", common.DefaultWidth)

	stats := &balanceStats{}
	for _, user := range users {
		stats.totalUsers++
		if err := processUser(ctx, services, user, *reconcileFlag, stats); err != nil {
			logger.Error("Failed to process user",
				zap.String("user_id", user.Id),
				zap.String("user_name", user.Name),
				zap.Error(err))
		}
	}

	summary := fmt.Sprintf("SUMMARY: %d users with balances (%d users queried)", stats.usersWithBalances, stats.totalUsers)
	if *reconcileFlag {
		summary += fmt.Sprintf(", %d unreconciled", stats.unreconciled)
	}
	common.PrintFooter(summary, common.DefaultWidth)
}
