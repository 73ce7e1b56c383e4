// Package database provides SQLite connectivity for persisted user settings.
//
// This package manages:
//   - Database connection with optional WAL mode
//   - Schema migrations read from an fs.FS (normally the embedded
//     migrations package)
//   - Lifecycle and health checks
//
// The engine never touches the database on its hot path: settings are
// loaded once at startup and saved from the app loop when a user change
// marks them dirty.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
