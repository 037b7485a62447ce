package repository

const postgresSchema = `
CREATE TABLE IF NOT EXISTS feature_records (
	date             DATE           NOT NULL,
	ticker           VARCHAR(32)    NOT NULL,
	open             NUMERIC(24, 6) NOT NULL,
	high             NUMERIC(24, 6) NOT NULL,
	low              NUMERIC(24, 6) NOT NULL,
	close            NUMERIC(24, 6) NOT NULL,
	adj_close        NUMERIC(24, 6) NOT NULL,
	volume           NUMERIC(24, 6) NOT NULL,
	rsi              NUMERIC(24, 6),
	macd             NUMERIC(24, 6),
	macd_signal      NUMERIC(24, 6),
	macd_hist        NUMERIC(24, 6),
	percent_change   NUMERIC(24, 6),
	ma_50            NUMERIC(24, 6),
	ma_200           NUMERIC(24, 6),
	close_50ma_diff  NUMERIC(24, 6),
	close_200ma_diff NUMERIC(24, 6),
	upper_bb         NUMERIC(24, 6),
	lower_bb         NUMERIC(24, 6),
	k_percent        NUMERIC(24, 6),
	d_percent        NUMERIC(24, 6),
	atr              NUMERIC(24, 6),
	volatility       NUMERIC(24, 6),
	next_high        NUMERIC(24, 6),
	high_change      NUMERIC(24, 6),
	interest_rate    NUMERIC(24, 6),
	inflation        NUMERIC(24, 6),
	dxy              NUMERIC(24, 6),
	market_sentiment NUMERIC(24, 6),
	economic_news    TEXT,
	label            VARCHAR(10)    NOT NULL,
	PRIMARY KEY (date, ticker)
);

CREATE INDEX IF NOT EXISTS idx_feature_records_ticker_date ON feature_records (ticker, date DESC);

CREATE TABLE IF NOT EXISTS pipeline_runs (
	id            UUID        PRIMARY KEY,
	run_trigger   VARCHAR(20) NOT NULL,
	status        VARCHAR(20) NOT NULL,
	tickers       TEXT[]      NOT NULL,
	start_date    DATE        NOT NULL,
	end_date      DATE,
	outcomes      JSONB,
	records_total INTEGER     NOT NULL DEFAULT 0,
	error_message TEXT,
	duration_ms   INTEGER,
	started_at    TIMESTAMPTZ NOT NULL,
	completed_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_pipeline_runs_started_at ON pipeline_runs (started_at DESC);
`

// SQLite keeps decimals as REAL and dates as ISO-8601 TEXT
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS feature_records (
		date             TEXT NOT NULL,
		ticker           TEXT NOT NULL,
		open             REAL NOT NULL,
		high             REAL NOT NULL,
		low              REAL NOT NULL,
		close            REAL NOT NULL,
		adj_close        REAL NOT NULL,
		volume           REAL NOT NULL,
		rsi              REAL,
		macd             REAL,
		macd_signal      REAL,
		macd_hist        REAL,
		percent_change   REAL,
		ma_50            REAL,
		ma_200           REAL,
		close_50ma_diff  REAL,
		close_200ma_diff REAL,
		upper_bb         REAL,
		lower_bb         REAL,
		k_percent        REAL,
		d_percent        REAL,
		atr              REAL,
		volatility       REAL,
		next_high        REAL,
		high_change      REAL,
		interest_rate    REAL,
		inflation        REAL,
		dxy              REAL,
		market_sentiment REAL,
		economic_news    TEXT,
		label            TEXT NOT NULL,
		PRIMARY KEY (date, ticker)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_feature_records_ticker_date ON feature_records (ticker, date)`,

	`CREATE TABLE IF NOT EXISTS pipeline_runs (
		id            TEXT PRIMARY KEY,
		run_trigger   TEXT NOT NULL,
		status        TEXT NOT NULL,
		tickers       TEXT NOT NULL,
		start_date    TEXT NOT NULL,
		end_date      TEXT,
		outcomes      TEXT,
		records_total INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		duration_ms   INTEGER,
		started_at    TEXT NOT NULL,
		completed_at  TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pipeline_runs_started_at ON pipeline_runs (started_at)`,
}
