package database

const (
	// User queries
	queryGetUsers = `
		SELECT id, chat_id, display_name, created_at, updated_at
		FROM users
		ORDER BY created_at`

	queryInsertUser = `
		INSERT OR IGNORE INTO users (id, chat_id, display_name) VALUES (?, ?, ?)`

	queryGetUserById = `
		SELECT id, chat_id, display_name, created_at, updated_at
		FROM users
		WHERE id = ?`

	queryGetUserByChatId = `
		SELECT id, chat_id, display_name, created_at, updated_at
		FROM users
		WHERE chat_id = ?`

	// Address queries
	queryInsertAddress = `
		INSERT INTO addresses (id, user_id, asset, network, address, derivation_path, address_index, change)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, user_id, asset, network, address, derivation_path, address_index, change, created_at`

	queryGetUserAddresses = `
		SELECT id, user_id, asset, network, address, derivation_path, address_index, change, created_at
		FROM addresses
		WHERE user_id = ?
		ORDER BY asset, created_at DESC`

	queryFindUserByAddress = `
		SELECT u.id, u.chat_id, u.display_name, u.created_at, u.updated_at,
		       a.id, a.user_id, a.asset, a.network, a.address, a.derivation_path, a.address_index, a.change, a.created_at
		FROM users u
		JOIN addresses a ON u.id = a.user_id
		WHERE LOWER(a.address) = LOWER(?)`

	// Balance queries
	queryGetBalance = `
		SELECT id, user_id, asset, available, locked, version, updated_at
		FROM balances
		WHERE user_id = ? AND asset = ?`

	queryGetAllBalances = `
		SELECT id, user_id, asset, available, locked, version, updated_at
		FROM balances
		WHERE user_id = ? AND (available != '0' OR locked != '0')
		ORDER BY asset`

	queryGetBalanceRow = `
		SELECT id, available, locked, version
		FROM balances
		WHERE user_id = ? AND asset = ?`

	queryInsertBalance = `
		INSERT INTO balances (id, user_id, asset, available, locked, version)
		VALUES (?, ?, ?, ?, ?, 1)`

	queryUpdateBalance = `
		UPDATE balances
		SET available = ?, locked = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND asset = ? AND version = ?`

	// Deposit queries
	queryGetDepositByTx = `
		SELECT id, user_id, asset, amount, from_address, to_address, tx_id, output_index, status, created_at, confirmed_at
		FROM deposits
		WHERE tx_id = ? AND output_index = ?`

	queryGetDepositById = `
		SELECT id, user_id, asset, amount, from_address, to_address, tx_id, output_index, status, created_at, confirmed_at
		FROM deposits
		WHERE id = ?`

	queryInsertDeposit = `
		INSERT INTO deposits (id, user_id, asset, amount, from_address, to_address, tx_id, output_index, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryConfirmDeposit = `
		UPDATE deposits
		SET status = ?, confirmed_at = ?
		WHERE id = ? AND status = ?`

	queryGetMostRecentDepositTime = `
		SELECT MAX(created_at) FROM deposits`

	// Swap queries
	queryGetSwapById = `
		SELECT id, user_id, from_asset, to_asset, from_amount, to_amount, fee_asset, fee_amount,
		       route, provider, status, error, created_at, completed_at
		FROM swaps
		WHERE id = ?`

	queryInsertSwap = `
		INSERT INTO swaps (id, user_id, from_asset, to_asset, from_amount, to_amount, fee_asset, fee_amount, route, provider, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '')`

	queryResolveSwap = `
		UPDATE swaps
		SET status = ?, to_amount = ?, error = ?, completed_at = ?
		WHERE id = ? AND status = ?`

	// Withdrawal queries
	queryGetWithdrawalById = `
		SELECT id, user_id, asset, amount, fee, destination, tx_id, status, error, funds_released, created_at, updated_at
		FROM withdrawals
		WHERE id = ?`

	queryInsertWithdrawal = `
		INSERT INTO withdrawals (id, user_id, asset, amount, fee, destination, tx_id, status, error, funds_released)
		VALUES (?, ?, ?, ?, ?, ?, '', ?, '', 0)`

	queryMarkWithdrawalBroadcast = `
		UPDATE withdrawals
		SET status = ?, tx_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?`

	queryResolveWithdrawal = `
		UPDATE withdrawals
		SET status = ?, error = ?, funds_released = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`
)
