package migrate

// Migrations is the full, ordered schema history. Never reorder or
// edit an entry that has shipped; append a new one instead.
//
// accounts comes first because entries carries a foreign key to it.
var Migrations = []Migration{
	{
		ID:   1,
		Name: "create_accounts",
		Script: `
			CREATE TABLE IF NOT EXISTS accounts (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				username TEXT NOT NULL UNIQUE,
				display_name TEXT NOT NULL,
				email TEXT NOT NULL,
				password_hash TEXT NOT NULL,
				role TEXT NOT NULL DEFAULT 'author',
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
		`,
	},
	{
		ID:   2,
		Name: "create_entries",
		Script: `
			CREATE TABLE IF NOT EXISTS entries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				title TEXT NOT NULL,
				slug TEXT NOT NULL UNIQUE,
				date TIMESTAMP NOT NULL,
				author TEXT NOT NULL,
				account_id INTEGER REFERENCES accounts(id) ON DELETE SET NULL,
				excerpt TEXT NOT NULL DEFAULT '',
				content TEXT NOT NULL DEFAULT '',
				published INTEGER NOT NULL DEFAULT 0,
				featured INTEGER NOT NULL DEFAULT 0,
				image TEXT
			);
		`,
	},
	{
		ID:   3,
		Name: "create_tags",
		Script: `
			CREATE TABLE IF NOT EXISTS tags (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				slug TEXT NOT NULL UNIQUE
			);
		`,
	},
	{
		ID:   4,
		Name: "create_entry_tags",
		Script: `
			CREATE TABLE IF NOT EXISTS entry_tags (
				entry_id INTEGER NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
				tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
				PRIMARY KEY (entry_id, tag_id)
			);
		`,
	},
	{
		ID:   5,
		Name: "create_entry_metadata",
		Script: `
			CREATE TABLE IF NOT EXISTS entry_metadata (
				entry_id INTEGER NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
				key TEXT NOT NULL,
				value TEXT NOT NULL,
				PRIMARY KEY (entry_id, key)
			);
		`,
	},
	{
		ID:   6,
		Name: "create_indexes",
		Script: `
			CREATE INDEX IF NOT EXISTS idx_entries_published_date ON entries(published, date DESC);
			CREATE INDEX IF NOT EXISTS idx_entries_account ON entries(account_id);
			CREATE INDEX IF NOT EXISTS idx_entry_tags_tag ON entry_tags(tag_id);
		`,
	},
}
