package sqlstore

var schema = map[string]string{
	DialectSQLite: `
		CREATE TABLE IF NOT EXISTS assets (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			serial_number TEXT     NOT NULL UNIQUE,
			name          TEXT     NOT NULL,
			purchase_date DATETIME,
			status        TEXT     NOT NULL DEFAULT 'Em Estoque',
			created_at    DATETIME NOT NULL,
			updated_at    DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_assets_created_at ON assets (created_at);`,

	DialectPostgres: `
		CREATE TABLE IF NOT EXISTS assets (
			id            BIGSERIAL   PRIMARY KEY,
			serial_number TEXT        NOT NULL UNIQUE,
			name          TEXT        NOT NULL,
			purchase_date TIMESTAMPTZ,
			status        TEXT        NOT NULL DEFAULT 'Em Estoque',
			created_at    TIMESTAMPTZ NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_assets_created_at ON assets (created_at);`,
}
