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

package api

import (
	"context"
	"fmt"
	"strings"

	"savings-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const referralReferencePrefix = "referral:"

// OnboardUser creates a user together with its zero balance row
func (s *LedgerService) OnboardUser(ctx context.Context, userId, name, email string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("name and a valid email are required")
	}

	user, _, err := s.store.CreateAccount(ctx, userId, name, email)
	if err != nil {
		logFailure("Onboarding failed", err, zap.String("email", email))
		return nil, err
	}
	return user, nil
}

// CreditReferralBonus pays a referral bonus once per referralId
func (s *LedgerService) CreditReferralBonus(ctx context.Context, userId string, amount decimal.Decimal, referralId string) (*models.OperationResult, error) {
	if userId == "" || !amount.IsPositive() || referralId == "" {
		return failure(fmt.Errorf("invalid referral bonus parameters")), nil
	}

	balance, entry, err := s.ledger.Credit(ctx, userId, amount,
		models.NewEntry(models.EntryDraft{
			Type:              models.EntryTypeReferralBonus,
			Amount:            amount,
			ExternalReference: referralReferencePrefix + referralId,
			Metadata:          map[string]string{"referral_id": referralId},
		}))
	if err != nil {
		logFailure("Referral bonus failed", err,
			zap.String("user_id", userId),
			zap.String("referral_id", referralId))
		return failure(err), nil
	}

	zap.L().Info("Referral bonus credited",
		zap.String("user_id", userId),
		zap.String("amount", amount.String()),
		zap.String("new_balance", balance.TotalBalance.String()))
	return success(balance, entry), nil
}
