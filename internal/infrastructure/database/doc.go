// Package database opens the SQLite database behind Signage Core and
// applies its schema migrations.
//
// Displays, views, content slots and slot options all live in one file.
// Foreign keys are enforced on every connection, and the pool holds a
// single connection so a transaction sees every statement of its unit of
// work.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are embedded by the migrations package and named
// YYYYMMDD_HHMMSS_description.up.sql with a matching .down.sql.
// Each one is applied in its own transaction.
package database
