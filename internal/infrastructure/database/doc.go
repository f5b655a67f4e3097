// Package database opens and migrates the daemon's SQLite store.
//
// The control history repository is the only tenant: everything else
// the daemon knows (rules, card seed, credentials) lives in config
// files. The store runs in WAL mode so history queries from the API
// never block the event pump's inserts, with a single writer connection
// because that is what SQLite actually supports.
//
// Schema changes arrive as embedded migrations, applied on startup:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files pair YYYYMMDD_HHMMSS_name.up.sql with a .down.sql
// twin and apply oldest first, each in its own transaction. Keep them
// additive (nullable or defaulted columns, no drops or renames) so a
// rollback never strands data.
//
// The database file is chmodded to 0600 and every query in the daemon
// goes through parameterised statements.
package database
