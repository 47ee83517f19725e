package postgres

const (
	balanceColumns = `id, user_id, total_balance::text, available_balance::text, locked_balance::text,
		total_shares::text, share_price::text, total_yield_earned::text, version, updated_at`

	entryColumns = `id, user_id, type, status, amount::text, shares::text, external_reference,
		block_height, gas_used, gas_fee::text, error_message, metadata,
		submitted_at, confirmed_at, processed_at, updated_at`
)

const (
	queryInsertUser = `
		INSERT INTO users (id, name, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	queryGetActiveUsers = `
		SELECT id, name, email, created_at, updated_at
		FROM users WHERE active = TRUE ORDER BY created_at, id`

	queryGetUserById = `
		SELECT id, name, email, created_at, updated_at
		FROM users WHERE id = $1 AND active = TRUE`

	queryGetUserByEmail = `
		SELECT id, name, email, created_at, updated_at
		FROM users WHERE email = $1 AND active = TRUE`

	queryInsertBalance = `
		INSERT INTO balances (id, user_id, updated_at) VALUES ($1, $2, $3)
		RETURNING ` + balanceColumns

	queryGetBalance = `SELECT ` + balanceColumns + ` FROM balances WHERE user_id = $1`

	queryLockBalance = queryGetBalance + ` FOR UPDATE`

	queryListBalancesWithShares = `
		SELECT ` + balanceColumns + ` FROM balances
		WHERE total_shares > 0 AND user_id > $1
		ORDER BY user_id LIMIT $2`

	queryUpdateBalance = `
		UPDATE balances SET
			total_balance = $1::numeric, available_balance = $2::numeric, locked_balance = $3::numeric,
			total_shares = $4::numeric, share_price = $5::numeric, total_yield_earned = $6::numeric,
			updated_at = $7, version = version + 1
		WHERE id = $8 AND version = $9`

	queryInsertEntry = `
		INSERT INTO ledger_entries (` + entryInsertColumns + `)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, NULLIF($7, ''), $8, $9, $10::numeric,
			NULLIF($11, ''), $12, $13, $14, $15, $16)`

	entryInsertColumns = `id, user_id, type, status, amount, shares, external_reference,
		block_height, gas_used, gas_fee, error_message, metadata,
		submitted_at, confirmed_at, processed_at, updated_at`

	queryGetEntry = `SELECT ` + entryColumns + ` FROM ledger_entries WHERE id = $1`

	queryLockEntry = queryGetEntry + ` FOR UPDATE`

	queryGetEntryByReference = `SELECT ` + entryColumns + ` FROM ledger_entries WHERE external_reference = $1`

	queryUpdateEntry = `
		UPDATE ledger_entries SET
			status = $1, external_reference = NULLIF($2, ''), block_height = $3, gas_used = $4,
			gas_fee = $5::numeric, error_message = NULLIF($6, ''), metadata = $7,
			confirmed_at = $8, processed_at = $9, updated_at = $10
		WHERE id = $11`

	querySumConfirmedEntries = `
		SELECT type, SUM(amount)::text FROM ledger_entries
		WHERE user_id = $1 AND status = 'confirmed'
		GROUP BY type`
)
