package config

// DefaultDatabasePath is where the content database lives unless
// DATABASE_PATH overrides it.
const DefaultDatabasePath = "./chronicle.db"
