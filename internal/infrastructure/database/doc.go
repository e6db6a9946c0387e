// Package database provides SQLite connectivity for Gray Logic Presence.
//
// It manages the connection (WAL mode, busy timeout, owner-only file
// permissions) and applies versioned schema migrations supplied as an
// fs.FS, normally the embedded files of the migrations package.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns are nullable or have defaults, and
// every .up.sql has a matching .down.sql for development rollbacks.
package database
