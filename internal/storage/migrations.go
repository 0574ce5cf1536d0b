package storage

// Migration represents a database migration
type Migration struct {
	Version     string
	Description string
	SQL         string
}

// GetSQLiteMigrations returns SQLite migration scripts
func GetSQLiteMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create donations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS donations (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					amount REAL NOT NULL DEFAULT 0,
					time TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_donations_name ON donations(name);
			`,
		},
	}
}

// GetPostgreSQLMigrations returns PostgreSQL migration scripts
func GetPostgreSQLMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create donations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS donations (
					id BIGSERIAL PRIMARY KEY,
					name TEXT NOT NULL,
					amount DOUBLE PRECISION NOT NULL DEFAULT 0,
					time TEXT NOT NULL,
					created_at TIMESTAMPTZ DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_donations_name ON donations(name);
			`,
		},
	}
}
