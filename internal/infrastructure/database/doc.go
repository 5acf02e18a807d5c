// Package database provides SQLite connectivity for the command journal.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations from any fs.FS (the binary embeds its own)
//   - Connection lifecycle and health checks
//
// All queries use parameterised statements and the database file is
// created with 0600 permissions.
//
// Usage:
//
//	db, err := database.Open(database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql.
package database
