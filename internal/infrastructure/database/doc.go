// Package database provides SQLite connectivity for the relay's
// transition history.
//
// This package manages:
//   - Opening the database file with WAL mode and a busy timeout
//   - Versioned schema migrations loaded from an fs.FS
//   - Health checks for the metrics endpoint
//
// Usage:
//
//	db, err := database.Open(database.ConfigFromHistory(cfg.History))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files live in the top-level migrations package and are named
// YYYYMMDD_HHMMSS_description.up.sql with a matching .down.sql.
package database
