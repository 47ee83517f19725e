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

// User represents an onboarded account holder
type User struct {
	Id        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Balance is the per-user snapshot of current financial state (hot data).
// Rows are created at onboarding and only ever mutated by the ledger.
type Balance struct {
	Id               string          `db:"id" json:"id"`
	UserId           string          `db:"user_id" json:"user_id"`
	TotalBalance     decimal.Decimal `db:"total_balance" json:"total_balance"`
	AvailableBalance decimal.Decimal `db:"available_balance" json:"available_balance"`
	LockedBalance    decimal.Decimal `db:"locked_balance" json:"locked_balance"`
	TotalShares      decimal.Decimal `db:"total_shares" json:"total_shares"`
	SharePrice       decimal.Decimal `db:"share_price" json:"share_price"`
	TotalYieldEarned decimal.Decimal `db:"total_yield_earned" json:"total_yield_earned"`
	Version          int64           `db:"version" json:"version"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// LedgerEntry records a single financial event. Immutable once terminal,
// apart from enrichment fields that do not affect status.
type LedgerEntry struct {
	Id                string            `db:"id" json:"id"`
	UserId            string            `db:"user_id" json:"user_id"`
	Type              EntryType         `db:"type" json:"type"`
	Status            EntryStatus       `db:"status" json:"status"`
	Amount            decimal.Decimal   `db:"amount" json:"amount"`
	Shares            decimal.Decimal   `db:"shares" json:"shares"`
	ExternalReference string            `db:"external_reference" json:"external_reference,omitempty"`
	BlockHeight       *int64            `db:"block_height" json:"block_height,omitempty"`
	GasUsed           *int64            `db:"gas_used" json:"gas_used,omitempty"`
	GasFee            *decimal.Decimal  `db:"gas_fee" json:"gas_fee,omitempty"`
	ErrorMessage      string            `db:"error_message" json:"error_message,omitempty"`
	Metadata          map[string]string `db:"metadata" json:"metadata,omitempty"`
	SubmittedAt       time.Time         `db:"submitted_at" json:"submitted_at"`
	ConfirmedAt       *time.Time        `db:"confirmed_at" json:"confirmed_at,omitempty"`
	ProcessedAt       *time.Time        `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updated_at"`
}
