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
	"strings"
	"time"

	"savings-ledger-go/internal/common"
	"savings-ledger-go/internal/config"
	"savings-ledger-go/internal/models"

	"go.uber.org/zap"
)

func parseFilter(types, statuses, since string, limit, offset int) (models.EntryFilter, error) {
	filter := models.EntryFilter{Limit: limit, Offset: offset}
	for _, t := range splitList(types) {
		filter.Types = append(filter.Types, models.EntryType(t))
	}
	for _, s := range splitList(statuses) {
		filter.Statuses = append(filter.Statuses, models.EntryStatus(s))
	}
	if since != "" {
		d, err := time.ParseDuration(since)
		if err != nil {
			return filter, fmt.Errorf("invalid --since duration: %w", err)
		}
		filter.Since = time.Now().UTC().Add(-d)
	}
	return filter, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printEntries(entries []models.EntryRecord) {
	for i, e := range entries {
		isLast := i == len(entries)-1
		fmt.Printf("%s %-15s %-10s %s  ref: %-12s  %s\n",
			common.BoxPrefix(isLast),
			e.Type, e.Status, common.FormatAmount(e.Amount),
			common.ShortId(e.ExternalReference),
			common.FormatTime(e.SubmittedAt))
		if e.ErrorMessage != "" {
			fmt.Printf("%s   error: %s\n", common.BoxDetailPrefix(isLast), e.ErrorMessage)
		}
	}
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "User email (required)")
	typesFlag := flag.String("types", "", "Comma-separated entry types (optional)")
	statusesFlag := flag.String("statuses", "", "Comma-separated entry statuses (optional)")
	sinceFlag := flag.String("since", "", "Only entries newer than this duration, e.g. 72h (optional)")
	limitFlag := flag.Int("limit", 20, "Page size (max 100)")
	offsetFlag := flag.Int("offset", 0, "Page offset")
	flag.Parse()

	if *emailFlag == "" {
		logger.Fatal("--email is required")
	}
	filter, err := parseFilter(*typesFlag, *statusesFlag, *sinceFlag, *limitFlag, *offsetFlag)
	if err != nil {
		logger.Fatal("Invalid filter", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	user, err := services.Store.GetUserByEmail(ctx, *emailFlag)
	if err != nil {
		logger.Fatal("User not found", zap.String("email", *emailFlag), zap.Error(err))
	}

	entries, err := services.ApiService.GetEntryHistory(ctx, user.Id, filter)
	if err != nil {
		logger.Fatal("Failed to list entries", zap.Error(err))
	}

	common.PrintHeader(fmt.Sprintf("ENTRIES FOR %s (%s)", user.Name, user.Email), common.WideWidth)
	printEntries(entries)
	common.PrintFooter(fmt.Sprintf("%d entries (offset %d)", len(entries), filter.Offset), common.WideWidth)
}
