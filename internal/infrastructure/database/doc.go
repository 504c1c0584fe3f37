// Package database provides the SQLite store behind the fan state history.
//
// It opens the database with WAL mode and a busy timeout, keeps a single
// connection (SQLite has one writer) and applies embedded migrations.
// The schema lives in the top-level migrations package, which registers
// itself on import:
//
//	import _ "github.com/eb3nezer/mqtt-fan/migrations"
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Files are named YYYYMMDD_HHMMSS_description.{up,down}.sql. Each pending
// migration runs in its own transaction.
package database
