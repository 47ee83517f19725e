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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserBalance is the caller-facing view of a balance row
type UserBalance struct {
	UserId           string          `json:"user_id"`
	Total            decimal.Decimal `json:"total"`
	Available        decimal.Decimal `json:"available"`
	Locked           decimal.Decimal `json:"locked"`
	Shares           decimal.Decimal `json:"shares"`
	SharePrice       decimal.Decimal `json:"share_price"`
	TotalYieldEarned decimal.Decimal `json:"total_yield_earned"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// EntryRecord represents an entry in the user's history
type EntryRecord struct {
	Id                string          `json:"id"`
	Type              string          `json:"type"`
	Status            string          `json:"status"`
	Amount            decimal.Decimal `json:"amount"`
	ExternalReference string          `json:"external_reference,omitempty"`
	ErrorMessage      string          `json:"error_message,omitempty"`
	SubmittedAt       time.Time       `json:"submitted_at"`
	ProcessedAt       *time.Time      `json:"processed_at,omitempty"`
}

// OperationResult represents the outcome of a deposit, withdrawal or bonus operation
type OperationResult struct {
	Success    bool            `json:"success"`
	UserId     string          `json:"user_id,omitempty"`
	EntryId    string          `json:"entry_id,omitempty"`
	Status     string          `json:"status,omitempty"`
	Amount     decimal.Decimal `json:"amount,omitempty"`
	NewBalance decimal.Decimal `json:"new_balance,omitempty"`
	Error      string          `json:"error,omitempty"`
}
