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

package database

const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	CREATE INDEX IF NOT EXISTS idx_users_active ON users(active);

	-- One row per user. Money columns hold decimal strings.
	CREATE TABLE IF NOT EXISTS balances (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE REFERENCES users(id),
		total_balance TEXT NOT NULL DEFAULT '0',
		available_balance TEXT NOT NULL DEFAULT '0',
		locked_balance TEXT NOT NULL DEFAULT '0',
		total_shares TEXT NOT NULL DEFAULT '0',
		share_price TEXT NOT NULL DEFAULT '1',
		total_yield_earned TEXT NOT NULL DEFAULT '0',
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_balances_shares ON balances(user_id) WHERE total_shares != '0';

	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		type TEXT NOT NULL CHECK (type IN ('deposit', 'withdraw', 'yield_harvest', 'referral_bonus')),
		status TEXT NOT NULL CHECK (status IN ('pending', 'confirmed', 'failed', 'cancelled')),
		amount TEXT NOT NULL,
		shares TEXT NOT NULL DEFAULT '0',
		external_reference TEXT,
		block_height INTEGER,
		gas_used INTEGER,
		gas_fee TEXT,
		error_message TEXT,
		metadata TEXT,
		submitted_at TIMESTAMP NOT NULL,
		confirmed_at TIMESTAMP,
		processed_at TIMESTAMP,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_entries_reference
		ON ledger_entries(external_reference) WHERE external_reference IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_user_submitted ON ledger_entries(user_id, submitted_at);
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_user_status ON ledger_entries(user_id, status);
`

const (
	// User queries
	queryGetActiveUsers = `
		SELECT id, name, email, created_at, updated_at
		FROM users
		WHERE active = 1
		ORDER BY created_at`

	queryInsertUser = `
		INSERT INTO users (id, name, email, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`

	queryGetUserById = `
		SELECT id, name, email, created_at, updated_at
		FROM users
		WHERE id = ? AND active = 1`

	queryGetUserByEmail = `
		SELECT id, name, email, created_at, updated_at
		FROM users
		WHERE email = ? AND active = 1`

	// Balance queries
	balanceColumns = `id, user_id, total_balance, available_balance, locked_balance,
		total_shares, share_price, total_yield_earned, version, updated_at`

	queryInsertBalance = `
		INSERT INTO balances (id, user_id, total_balance, available_balance, locked_balance,
			total_shares, share_price, total_yield_earned, version, updated_at)
		VALUES (?, ?, '0', '0', '0', '0', '1', '0', 1, ?)`

	queryGetBalance = `
		SELECT ` + balanceColumns + `
		FROM balances
		WHERE user_id = ?`

	queryListBalancesWithShares = `
		SELECT ` + balanceColumns + `
		FROM balances
		WHERE total_shares != '0' AND user_id > ?
		ORDER BY user_id
		LIMIT ?`

	queryUpdateBalance = `
		UPDATE balances
		SET total_balance = ?, available_balance = ?, locked_balance = ?,
			total_shares = ?, share_price = ?, total_yield_earned = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	// Entry queries
	entryColumns = `id, user_id, type, status, amount, shares, external_reference,
		block_height, gas_used, gas_fee, error_message, metadata,
		submitted_at, confirmed_at, processed_at, updated_at`

	queryInsertEntry = `
		INSERT INTO ledger_entries (` + entryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetEntry = `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE id = ?`

	queryGetEntryByReference = `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE external_reference = ?`

	queryUpdateEntry = `
		UPDATE ledger_entries
		SET status = ?, external_reference = ?, block_height = ?, gas_used = ?, gas_fee = ?,
			error_message = ?, metadata = ?, confirmed_at = ?, processed_at = ?, updated_at = ?
		WHERE id = ?`

	queryListConfirmedAmounts = `
		SELECT type, amount
		FROM ledger_entries
		WHERE user_id = ? AND status = 'confirmed'`
)
