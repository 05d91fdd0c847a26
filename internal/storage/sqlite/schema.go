package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS sync_state (
	id                   INTEGER PRIMARY KEY CHECK (id = 1),
	last_processed_block INTEGER NOT NULL,
	last_updated_at      TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	market_id     INTEGER NOT NULL,
	trader        TEXT    NOT NULL,
	is_yes        INTEGER NOT NULL,
	is_buy        INTEGER NOT NULL,
	usdc_amount   TEXT    NOT NULL,
	shares        TEXT    NOT NULL,
	new_yes_price TEXT    NOT NULL,
	tx_hash       TEXT    NOT NULL,
	log_index     INTEGER NOT NULL,
	block_number  INTEGER NOT NULL,
	indexed_at    TEXT    NOT NULL,
	UNIQUE (tx_hash, log_index)
);

CREATE INDEX IF NOT EXISTS trades_trader_idx ON trades (trader, block_number, log_index);
CREATE INDEX IF NOT EXISTS trades_market_idx ON trades (market_id, block_number, log_index);
CREATE INDEX IF NOT EXISTS trades_block_idx ON trades (block_number, log_index);

CREATE TABLE IF NOT EXISTS markets (
	market_id    INTEGER PRIMARY KEY,
	market_type  INTEGER NOT NULL,
	feed_id      TEXT    NOT NULL,
	question     TEXT    NOT NULL,
	target_value TEXT    NOT NULL,
	end_time     INTEGER NOT NULL,
	end_block    INTEGER NOT NULL,
	creator      TEXT    NOT NULL,
	tx_hash      TEXT    NOT NULL,
	log_index    INTEGER NOT NULL,
	block_number INTEGER NOT NULL,
	indexed_at   TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS markets_creator_idx ON markets (creator, block_number);

CREATE TABLE IF NOT EXISTS resolutions (
	market_id    INTEGER PRIMARY KEY,
	outcome      INTEGER NOT NULL,
	final_value  TEXT    NOT NULL,
	tx_hash      TEXT    NOT NULL,
	log_index    INTEGER NOT NULL,
	block_number INTEGER NOT NULL,
	indexed_at   TEXT    NOT NULL
);
`
