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

	"savings-ledger-go/internal/common"
	"savings-ledger-go/internal/config"
	"savings-ledger-go/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type withdrawalRequest struct {
	action      string
	email       string
	amount      decimal.Decimal
	requestId   string
	entryId     string
	txHash      string
	reason      string
	blockHeight int64
}

func parseAndValidateFlags() (*withdrawalRequest, error) {
	actionFlag := flag.String("action", "request", "One of: request, confirm, fail, cancel, direct")
	emailFlag := flag.String("email", "", "User email (request, direct)")
	amountFlag := flag.String("amount", "", "Amount to withdraw (request, direct)")
	requestIdFlag := flag.String("request-id", "", "Idempotency key for request (optional, generated when empty)")
	entryFlag := flag.String("entry", "", "Pending withdrawal entry ID (confirm, fail, cancel)")
	txFlag := flag.String("tx", "", "Settlement transaction hash (confirm, direct)")
	reasonFlag := flag.String("reason", "", "Failure reason (fail)")
	blockFlag := flag.Int64("block", 0, "Settlement block height (confirm, optional)")
	flag.Parse()

	req := &withdrawalRequest{
		action:      strings.ToLower(*actionFlag),
		email:       *emailFlag,
		requestId:   *requestIdFlag,
		entryId:     *entryFlag,
		txHash:      *txFlag,
		reason:      *reasonFlag,
		blockHeight: *blockFlag,
	}

	switch req.action {
	case "request", "direct":
		if req.email == "" || *amountFlag == "" {
			return nil, fmt.Errorf("--email and --amount are required for %s", req.action)
		}
		amount, err := decimal.NewFromString(*amountFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid amount format: %w", err)
		}
		if !amount.IsPositive() {
			return nil, fmt.Errorf("amount must be greater than zero")
		}
		req.amount = amount
		if req.action == "direct" && req.txHash == "" {
			return nil, fmt.Errorf("--tx is required for direct")
		}
	case "confirm", "cancel":
		if req.entryId == "" {
			return nil, fmt.Errorf("--entry is required for %s", req.action)
		}
	case "fail":
		if req.entryId == "" || req.reason == "" {
			return nil, fmt.Errorf("--entry and --reason are required for fail")
		}
	default:
		return nil, fmt.Errorf("unknown action %q", req.action)
	}
	return req, nil
}

func run(ctx context.Context, services *common.Services, req *withdrawalRequest) (*models.OperationResult, error) {
	api := services.ApiService

	switch req.action {
	case "confirm":
		effect := models.EffectFields{ExternalReference: req.txHash}
		if req.blockHeight > 0 {
			effect.BlockHeight = &req.blockHeight
		}
		return api.ConfirmWithdrawal(ctx, req.entryId, effect)
	case "fail":
		return api.FailWithdrawal(ctx, req.entryId, req.reason)
	case "cancel":
		return api.CancelWithdrawal(ctx, req.entryId)
	}

	user, err := services.Store.GetUserByEmail(ctx, req.email)
	if err != nil {
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}

	if req.action == "direct" {
		return api.ProcessWithdrawal(ctx, user.Id, req.amount, req.txHash)
	}

	if req.requestId == "" {
		req.requestId = uuid.New().String()
		zap.L().Info("Generated withdrawal request ID", zap.String("request_id", req.requestId))
	}
	return api.RequestWithdrawal(ctx, user.Id, req.amount, req.requestId)
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	req, err := parseAndValidateFlags()
	if err != nil {
		zap.L().Fatal("Invalid flags", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	result, err := run(ctx, services, req)
	if err != nil {
		zap.L().Fatal("Withdrawal failed", zap.String("action", req.action), zap.Error(err))
	}

	common.PrintHeader("WITHDRAWAL "+strings.ToUpper(req.action), common.DefaultWidth)
	common.PrintResult(result)
	if result.Success && req.requestId != "" {
		fmt.Printf("  Request: %s\n", req.requestId)
	}
	common.PrintSeparator("=", common.DefaultWidth)
}
